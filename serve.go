package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"confique/cache"
	"confique/config"
	"confique/database"
	"confique/handlers"
	"confique/logger"
	"confique/media"
	"confique/middleware"
	"confique/notify"
	"confique/routes"
	"confique/store"
	"confique/websocket"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	sweepSchedule   = "@every 10m"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	log := logger.New(cfg.LogLevel, cfg.IsProduction())
	log.Info().Str("env", cfg.Env).Msg("🚀 Starting Confique backend")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	db, err := database.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase, log)
	if err == nil {
		err = db.EnsureIndexes(connectCtx)
	}
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer dcancel()
		if err := db.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("MongoDB disconnect failed")
		}
	}()
	stores := store.New(db)

	responseCache, err := cache.New(cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		return err
	}
	defer responseCache.Close()

	assets, err := media.New(cfg.CloudinaryURL)
	if err != nil {
		return err
	}
	if cfg.CloudinaryURL == "" {
		log.Warn().Msg("CLOUDINARY_URL not set, image uploads are disabled")
	}

	hub := websocket.NewManager(log, cfg.FrontendURL)
	go hub.Run(ctx)

	dispatcher := notify.New(stores.Notifications, stores.Push, hub, notify.VAPID{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
	}, log)
	if !cfg.PushEnabled() {
		log.Warn().Msg("VAPID keys not set, Web Push is disabled")
	}
	defer dispatcher.Wait()

	auth := middleware.NewAuth(cfg.JWTSecret, cfg.JWTTTL)
	limiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	api := handlers.New(handlers.Deps{
		Config:        cfg,
		Log:           log,
		Auth:          auth,
		Posts:         stores.Posts,
		Registrations: stores.Registrations,
		Users:         stores.Users,
		Notifications: stores.Notifications,
		Push:          stores.Push,
		Cache:         responseCache,
		Media:         assets,
		Notifier:      dispatcher,
	})
	router := routes.SetupRouter(api, routes.Options{
		Config:   cfg,
		Log:      log,
		Auth:     auth,
		Limiter:  limiter,
		Realtime: hub,
	})

	scheduler, err := startScheduler(cfg, stores.Notifications, limiter, log)
	if err != nil {
		return err
	}
	defer func() { <-scheduler.Stop().Done() }()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("🌐 Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("🛑 Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		return err
	}
	log.Info().Msg("👋 Server stopped gracefully")
	return nil
}

// startScheduler runs the rate limiter sweep and, when a schedule is
// configured, the in-process notification purge.
func startScheduler(cfg *config.Config, purger notify.Purger, limiter *middleware.IPRateLimiter, log zerolog.Logger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(sweepSchedule, limiter.Sweep); err != nil {
		return nil, err
	}
	if cfg.NotificationCleanupSchedule != "" {
		_, err := c.AddFunc(cfg.NotificationCleanupSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			n, cutoff, err := notify.Purge(ctx, purger, cfg.NotificationRetention, time.Now())
			if err != nil {
				log.Error().Err(err).Msg("[Cron] notification purge failed")
				return
			}
			log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("[Cron] notifications purged")
		})
		if err != nil {
			return nil, err
		}
	}
	c.Start()
	return c, nil
}
