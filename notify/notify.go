// Package notify records notifications and fans them out to the user's open
// websocket connections and Web Push subscriptions.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"confique/models"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/semaphore"
)

const (
	pushTimeout     = 15 * time.Second
	maxPushInFlight = 64
)

type Store interface {
	Create(ctx context.Context, n *models.Notification) error
}

type PushStore interface {
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

type Realtime interface {
	SendToUser(userID, eventType string, payload any)
}

// Pusher delivers one encrypted Web Push message and reports the push
// service's HTTP status.
type Pusher func(ctx context.Context, payload []byte, sub models.PushSubscription) (int, error)

type VAPID struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// Note describes a notification to send. Zero ids mean "none".
type Note struct {
	Recipient primitive.ObjectID
	Actor     primitive.ObjectID
	Post      primitive.ObjectID
	Type      models.NotificationType
	Message   string
}

type Dispatcher struct {
	store    Store
	push     PushStore
	realtime Realtime
	pusher   Pusher
	log      zerolog.Logger
	now      func() time.Time

	inflight *semaphore.Weighted
	wg       sync.WaitGroup
}

// New builds a dispatcher. Web Push is skipped when vapid keys are empty;
// realtime may be nil.
func New(store Store, push PushStore, realtime Realtime, vapid VAPID, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		push:     push,
		realtime: realtime,
		log:      log,
		now:      time.Now,
		inflight: semaphore.NewWeighted(maxPushInFlight),
	}
	if vapid.PublicKey != "" && vapid.PrivateKey != "" {
		d.pusher = webPusher(vapid)
	}
	return d
}

// WithPusher replaces the Web Push transport.
func (d *Dispatcher) WithPusher(p Pusher) *Dispatcher {
	d.pusher = p
	return d
}

// Notify persists and delivers n. Self-notifications are skipped and every
// failure is logged rather than returned, so callers can fire and forget.
func (d *Dispatcher) Notify(ctx context.Context, n Note) {
	if n.Recipient.IsZero() || (!n.Actor.IsZero() && n.Actor == n.Recipient) {
		return
	}
	doc := &models.Notification{
		Recipient: n.Recipient,
		Message:   n.Message,
		Type:      n.Type,
		CreatedAt: d.now().UTC(),
	}
	if !n.Actor.IsZero() {
		actor := n.Actor
		doc.Actor = &actor
	}
	if !n.Post.IsZero() {
		post := n.Post
		doc.Post = &post
	}
	if err := d.Send(ctx, doc); err != nil {
		d.log.Warn().Err(err).Str("recipient", n.Recipient.Hex()).Str("type", string(n.Type)).Msg("notification not sent")
	}
}

// Send persists doc and then delivers it. Only the persistence error is
// returned; delivery is best effort. Web Push runs in the background on a
// context detached from ctx, so the caller never waits on the push service.
func (d *Dispatcher) Send(ctx context.Context, doc *models.Notification) error {
	if err := d.store.Create(ctx, doc); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	if d.realtime != nil {
		d.realtime.SendToUser(doc.Recipient.Hex(), "notification", doc)
	}
	if d.pusher != nil && d.push != nil {
		d.deliverPushAsync(ctx, doc)
	}
	return nil
}

// Wait blocks until background push deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// deliverPushAsync drops the delivery when maxPushInFlight are already
// running.
func (d *Dispatcher) deliverPushAsync(ctx context.Context, doc *models.Notification) {
	if !d.inflight.TryAcquire(1) {
		d.log.Warn().Str("recipient", doc.Recipient.Hex()).Msg("push backlog full, delivery dropped")
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inflight.Release(1)
		defer cancel()
		d.deliverPush(pushCtx, doc)
	}()
}

func (d *Dispatcher) deliverPush(ctx context.Context, doc *models.Notification) {
	subs, err := d.push.ListForUser(ctx, doc.Recipient)
	if err != nil {
		d.log.Warn().Err(err).Str("recipient", doc.Recipient.Hex()).Msg("list push subscriptions")
		return
	}
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"title": "Confique",
		"body":  doc.Message,
		"data": map[string]any{
			"type":           doc.Type,
			"notificationId": doc.ID.Hex(),
			"timestamp":      doc.CreatedAt.Unix(),
		},
	})
	if err != nil {
		d.log.Error().Err(err).Msg("marshal push payload")
		return
	}
	for _, sub := range subs {
		status, err := d.pusher(ctx, payload, sub)
		if status == http.StatusGone || status == http.StatusNotFound {
			if delErr := d.push.DeleteByEndpoint(ctx, sub.Endpoint); delErr != nil {
				d.log.Warn().Err(delErr).Msg("delete expired push subscription")
			}
			continue
		}
		if err != nil {
			d.log.Warn().Err(err).Str("recipient", doc.Recipient.Hex()).Msg("web push failed")
		}
	}
}

func webPusher(vapid VAPID) Pusher {
	return func(ctx context.Context, payload []byte, sub models.PushSubscription) (int, error) {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			Subscriber:      vapid.Subject,
			VAPIDPublicKey:  vapid.PublicKey,
			VAPIDPrivateKey: vapid.PrivateKey,
			TTL:             60 * 60,
		})
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return resp.StatusCode, fmt.Errorf("push service returned %d", resp.StatusCode)
		}
		return resp.StatusCode, nil
	}
}

// GenerateVAPIDKeys returns a fresh (public, private) key pair.
func GenerateVAPIDKeys() (string, string, error) {
	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", err
	}
	return public, private, nil
}
