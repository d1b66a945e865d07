package main

import (
	"context"
	"fmt"
	"log"

	"ledgerlink/internal/domain/connection"
	"ledgerlink/internal/domain/notification"
	"ledgerlink/internal/domain/servicedata"
	"ledgerlink/internal/domain/session"
	"ledgerlink/internal/domain/transaction"
	"ledgerlink/internal/domain/webhook"
	"ledgerlink/internal/infrastructure/crypto"
	"ledgerlink/internal/infrastructure/firebase"
	"ledgerlink/internal/infrastructure/memstore"
	"ledgerlink/internal/infrastructure/postgres"
	"ledgerlink/internal/infrastructure/provider"
	"ledgerlink/internal/infrastructure/redis"
	httphandlers "ledgerlink/internal/interfaces/http"
	"ledgerlink/internal/shared/auth"
	"ledgerlink/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	WebhookHandler     *httphandlers.WebhookHandler
	SessionHandler     *httphandlers.SessionHandler
	AccountDataHandler *httphandlers.AccountDataHandler
	HealthHandler      *httphandlers.HealthHandler

	JWT *auth.JWT

	// Router is also the replay source for the scheduler.
	Router *webhook.Router

	closers []func() error
}

type stores struct {
	connections  connection.Repository
	transactions transaction.Repository
	snapshots    servicedata.Repository
	events       webhook.Repository
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	st, err := deps.openStores(ctx, cfg, encryptor)
	if err != nil {
		deps.Close()
		return nil, err
	}

	verifier, err := webhook.NewVerifier(cfg.Provider.WebhookSecret)
	if err != nil {
		deps.Close()
		return nil, err
	}

	var guard webhook.ReplayGuard = webhook.NopGuard{}
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.closers = append(deps.closers, client.Close)
		guard = redis.NewReplayGuard(client, cfg.Redis.ReplayTTL)
		log.Printf("Webhook replay guard enabled (redis %s, ttl %v)", cfg.Redis.Addr, cfg.Redis.ReplayTTL)
	}

	var notifier notification.Notifier = notification.NopNotifier{}
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Printf("Warning: Failed to initialize Firebase, push notifications disabled: %v", err)
		} else {
			notifier = fcm
		}
	}
	if cfg.Firebase.MessagesFile != "" {
		templates, err := notification.LoadTemplates(cfg.Firebase.MessagesFile)
		if err != nil {
			deps.Close()
			return nil, err
		}
		notifier = notification.Templated(notifier, templates)
	}

	connectionService := connection.NewService(st.connections, notifier)
	snapshotService := servicedata.NewService(st.snapshots)
	synchronizer := transaction.NewSynchronizer(st.transactions)

	deps.Router = webhook.NewRouter(webhook.RouterDeps{
		Verifier:     verifier,
		Connections:  connectionService,
		Transactions: synchronizer,
		Snapshots:    snapshotService,
		Events:       st.events,
		Guard:        guard,
	})

	providerClient := provider.NewClient(provider.Config{
		BaseURL:      cfg.Provider.BaseURL,
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		APIVersion:   cfg.Provider.APIVersion,
		Timeout:      cfg.Provider.Timeout,
	})
	sessionService := session.NewService(providerClient, session.RetryPolicy{
		MaxAttempts: cfg.Provider.MaxAttempts,
		Backoff:     cfg.Provider.RetryBackoff,
	})

	deps.JWT = auth.NewJWT(cfg.JWT.Secret, cfg.JWT.Issuer)
	deps.WebhookHandler = httphandlers.NewWebhookHandler(deps.Router)
	deps.SessionHandler = httphandlers.NewSessionHandler(sessionService)
	deps.AccountDataHandler = httphandlers.NewAccountDataHandler(connectionService, st.transactions, snapshotService)

	var ping func(context.Context) error
	if deps.DB != nil {
		ping = deps.DB.Ping
	}
	deps.HealthHandler = httphandlers.NewHealthHandler(ping)

	return deps, nil
}

// openStores connects the configured storage backend.
func (d *Dependencies) openStores(ctx context.Context, cfg *config.Config, encryptor *crypto.Encryptor) (*stores, error) {
	if cfg.Storage.Driver == "memory" {
		log.Println("Warning: using in-memory storage, data is lost on restart")
		store := memstore.New()
		return &stores{
			connections:  store.Connections(),
			transactions: store.Transactions(),
			snapshots:    store.Snapshots(),
			events:       store.WebhookEvents(),
		}, nil
	}

	connStr := cfg.Database.ConnectionString()
	if cfg.Storage.MigrateOnBoot {
		if err := postgres.Migrate(connStr); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	db, err := postgres.New(ctx, connStr, postgres.PoolConfig{})
	if err != nil {
		return nil, err
	}
	d.DB = db
	d.closers = append(d.closers, db.Close)
	log.Println("Connected to database")

	return &stores{
		connections:  postgres.NewConnectionRepository(db),
		transactions: postgres.NewTransactionRepository(db),
		snapshots:    postgres.NewSnapshotRepository(db),
		events:       postgres.NewWebhookEventRepository(db, encryptor),
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Printf("Error closing dependency: %v", err)
		}
	}
	d.closers = nil
}
