package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"ledgerlink/internal/domain/webhook"
)

const replayKeyPrefix = "ledgerlink:webhook:delivery:"

type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	log.Printf("Successfully connected to Redis at %s", cfg.Addr)
	return client, nil
}

// ReplayGuard remembers delivery keys for ttl with SET NX, so identical
// deliveries across all API instances are processed once.
type ReplayGuard struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

var _ webhook.ReplayGuard = (*ReplayGuard)(nil)

func NewReplayGuard(client goredis.UniversalClient, ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{client: client, ttl: ttl}
}

func (g *ReplayGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, replayKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery key: %w", err)
	}
	return ok, nil
}

func (g *ReplayGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, replayKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release delivery key: %w", err)
	}
	return nil
}
