package notify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"confique/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memStore struct {
	mu    sync.Mutex
	saved []*models.Notification
	err   error
}

func (s *memStore) Create(_ context.Context, n *models.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = primitive.NewObjectID()
	s.saved = append(s.saved, n)
	return nil
}

type memPush struct {
	subs    []models.PushSubscription
	deleted []string
}

func (p *memPush) ListForUser(context.Context, primitive.ObjectID) ([]models.PushSubscription, error) {
	return p.subs, nil
}

func (p *memPush) DeleteByEndpoint(_ context.Context, endpoint string) error {
	p.deleted = append(p.deleted, endpoint)
	return nil
}

type memRealtime struct {
	sent []string
}

func (r *memRealtime) SendToUser(userID, eventType string, _ any) {
	r.sent = append(r.sent, userID+":"+eventType)
}

func TestNotify_PersistsAndDelivers(t *testing.T) {
	store := &memStore{}
	rt := &memRealtime{}
	push := &memPush{subs: []models.PushSubscription{{Endpoint: "https://push.example/a"}}}
	var pushed int
	d := New(store, push, rt, VAPID{}, zerolog.Nop()).WithPusher(func(context.Context, []byte, models.PushSubscription) (int, error) {
		pushed++
		return http.StatusCreated, nil
	})

	owner, actor, post := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	d.Notify(context.Background(), Note{Recipient: owner, Actor: actor, Post: post, Type: models.NotifyLike, Message: "Asha liked your post"})
	d.Wait()

	require.Len(t, store.saved, 1)
	n := store.saved[0]
	assert.Equal(t, owner, n.Recipient)
	assert.Equal(t, models.NotifyLike, n.Type)
	assert.False(t, n.Read)
	require.NotNil(t, n.Post)
	assert.Equal(t, post, *n.Post)
	require.NotNil(t, n.Actor)
	assert.Equal(t, []string{owner.Hex() + ":notification"}, rt.sent)
	assert.Equal(t, 1, pushed)
}

func TestNotify_SkipsSelf(t *testing.T) {
	store := &memStore{}
	d := New(store, nil, nil, VAPID{}, zerolog.Nop())

	uid := primitive.NewObjectID()
	d.Notify(context.Background(), Note{Recipient: uid, Actor: uid, Type: models.NotifyComment, Message: "x"})

	assert.Empty(t, store.saved)
}

func TestNotify_SystemNotificationWithoutActor(t *testing.T) {
	store := &memStore{}
	d := New(store, nil, nil, VAPID{}, zerolog.Nop())

	d.Notify(context.Background(), Note{Recipient: primitive.NewObjectID(), Type: models.NotifySystem, Message: "welcome"})

	require.Len(t, store.saved, 1)
	assert.Nil(t, store.saved[0].Actor)
	assert.Nil(t, store.saved[0].Post)
}

func TestSend_PersistFailureStopsDelivery(t *testing.T) {
	rt := &memRealtime{}
	d := New(&memStore{err: errors.New("down")}, nil, rt, VAPID{}, zerolog.Nop())

	err := d.Send(context.Background(), &models.Notification{Recipient: primitive.NewObjectID()})
	assert.Error(t, err)
	assert.Empty(t, rt.sent)
}

func TestSend_ExpiredSubscriptionIsDeleted(t *testing.T) {
	push := &memPush{subs: []models.PushSubscription{
		{Endpoint: "https://push.example/gone"},
		{Endpoint: "https://push.example/ok"},
	}}
	d := New(&memStore{}, push, nil, VAPID{}, zerolog.Nop()).WithPusher(func(_ context.Context, _ []byte, sub models.PushSubscription) (int, error) {
		if sub.Endpoint == "https://push.example/gone" {
			return http.StatusGone, errors.New("gone")
		}
		return http.StatusCreated, nil
	})

	require.NoError(t, d.Send(context.Background(), &models.Notification{Recipient: primitive.NewObjectID(), Message: "m"}))
	d.Wait()
	assert.Equal(t, []string{"https://push.example/gone"}, push.deleted)
}

func TestNotify_PushOutlivesRequestContext(t *testing.T) {
	push := &memPush{subs: []models.PushSubscription{{Endpoint: "https://push.example/a"}}}
	release := make(chan struct{})
	var (
		ctxErr      error
		hasDeadline bool
	)
	d := New(&memStore{}, push, nil, VAPID{}, zerolog.Nop()).WithPusher(func(ctx context.Context, _ []byte, _ models.PushSubscription) (int, error) {
		<-release
		ctxErr = ctx.Err()
		_, hasDeadline = ctx.Deadline()
		return http.StatusCreated, nil
	})

	reqCtx, cancel := context.WithCancel(context.Background())
	d.Notify(reqCtx, Note{Recipient: primitive.NewObjectID(), Type: models.NotifyComment, Message: "new comment"})
	cancel()
	close(release)
	d.Wait()

	assert.NoError(t, ctxErr)
	assert.True(t, hasDeadline)
}

func TestNotify_PushBacklogIsBounded(t *testing.T) {
	push := &memPush{subs: []models.PushSubscription{{Endpoint: "https://push.example/a"}}}
	release := make(chan struct{})
	var pushed atomic.Int32
	d := New(&memStore{}, push, nil, VAPID{}, zerolog.Nop()).WithPusher(func(context.Context, []byte, models.PushSubscription) (int, error) {
		<-release
		pushed.Add(1)
		return http.StatusCreated, nil
	})

	for i := 0; i < maxPushInFlight+5; i++ {
		d.Notify(context.Background(), Note{Recipient: primitive.NewObjectID(), Type: models.NotifyLike, Message: "like"})
	}
	close(release)
	d.Wait()

	assert.EqualValues(t, maxPushInFlight, pushed.Load())
}

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	assert.NotEmpty(t, pub)
	assert.NotEmpty(t, priv)
	assert.NotEqual(t, pub, priv)
}
