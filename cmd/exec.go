package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"prefest/config"
	"prefest/internal/handlers"
	"prefest/internal/services/gateway"
	"prefest/internal/store"
	_ "prefest/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	return newApp(config.LoadConfig()).Start()
}

// newApp registers the CLI commands and the server hooks. Server dependencies
// are wired in OnServe, so `client` and `migrate` work without Redis.
func newApp(cfg *config.Config) *pocketbase.PocketBase {
	app := pocketbase.New()

	ctx, cancel := context.WithCancel(context.Background())

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.IsDevelopment(),
	})

	// Client side commands
	app.RootCmd.AddCommand(NewClientCmd())

	app.OnRecordCreate("coupons").BindFunc(func(e *core.RecordEvent) error {
		e.Record.Set("code", strings.ToUpper(strings.TrimSpace(e.Record.GetString("code"))))
		return e.Next()
	})

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		srv, err := newServer(ctx, e.App, cfg)
		if err != nil {
			cancel()
			return err
		}

		// Setup graceful shutdown
		go handleShutdown(cancel)
		app.OnTerminate().BindFunc(func(te *core.TerminateEvent) error {
			cancel()
			srv.Close()
			return te.Next()
		})

		setupEventSync(app, srv.redis)
		syncPublishedEventsToRedis(ctx, srv.db, srv.redis)
		srv.registerRoutes(e)

		return e.Next()
	})

	return app
}

// registerGateways sets up the sandbox in development and Omise when keys are
// present. PAYMENT_PROVIDER picks the primary one.
func registerGateways(ctx context.Context, cfg *config.Config) (*gateway.Registry, error) {
	registry := gateway.NewRegistry(gateway.NewFactory())

	if cfg.OmisePublicKey != "" && cfg.OmiseSecretKey != "" {
		if err := registry.Register(ctx, gateway.ProviderOmise, &gateway.OmiseConfig{
			PublicKey:  cfg.OmisePublicKey,
			SecretKey:  cfg.OmiseSecretKey,
			SourceType: cfg.OmiseSourceType,
		}); err != nil {
			return nil, err
		}
	}

	if cfg.IsDevelopment() || cfg.PaymentProvider == string(gateway.ProviderSandbox) {
		if err := registry.Register(ctx, gateway.ProviderSandbox, &gateway.SandboxConfig{AppURL: cfg.AppURL}); err != nil {
			return nil, err
		}
	}

	if err := registry.SetPrimary(gateway.Provider(cfg.PaymentProvider)); err != nil {
		slog.Warn("configured payment provider unavailable", "provider", cfg.PaymentProvider, "available", registry.Available())
	}
	return registry, nil
}

func syncPublishedEventsToRedis(ctx context.Context, db *store.Store, redisClient *redis.Client) {
	ids, err := db.PublishedEventIDs(ctx)
	if err != nil {
		log.Printf("Error fetching published events: %v", err)
		return
	}

	redisClient.Del(ctx, handlers.PublishedEventsKey)
	if len(ids) == 0 {
		return
	}

	members := make([]any, 0, len(ids))
	for _, id := range ids {
		members = append(members, id)
	}
	if err := redisClient.SAdd(ctx, handlers.PublishedEventsKey, members...).Err(); err != nil {
		log.Printf("Error syncing published events: %v", err)
		return
	}
	log.Printf("Synced %d published events to Redis", len(ids))
}

// setupEventSync keeps the published events set in Redis in step with the
// events collection.
func setupEventSync(app core.App, redisClient *redis.Client) {
	syncEvent := func(e *core.RecordEvent) error {
		if err := e.Next(); err != nil {
			return err
		}

		eventID := e.Record.Id
		var err error
		if e.Record.GetString("status") == "published" {
			err = redisClient.SAdd(e.Context, handlers.PublishedEventsKey, eventID).Err()
		} else {
			err = redisClient.SRem(e.Context, handlers.PublishedEventsKey, eventID).Err()
		}
		if err != nil {
			// The record is saved either way; the set is rebuilt on the next serve.
			slog.Error("Failed to sync event to Redis", "eventID", eventID, "error", err)
		}
		return nil
	}
	app.OnRecordAfterCreateSuccess("events").BindFunc(syncEvent)
	app.OnRecordAfterUpdateSuccess("events").BindFunc(syncEvent)

	app.OnRecordAfterDeleteSuccess("events").BindFunc(func(e *core.RecordEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		if err := redisClient.SRem(e.Context, handlers.PublishedEventsKey, e.Record.Id).Err(); err != nil {
			slog.Error("Failed to remove deleted event from Redis", "eventID", e.Record.Id, "error", err)
		}
		return nil
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
