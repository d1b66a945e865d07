package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"ledgerlink/internal/infrastructure/provider"
)

var (
	sessionMeter      = otel.Meter("ledgerlink/session")
	sessionTotal, _   = sessionMeter.Int64Counter("session.create.total", metric.WithDescription("Session creation attempts by outcome"))
	sessionRetries, _ = sessionMeter.Int64Counter("session.create.retries", metric.WithDescription("Session creation retries"))
)

// RetryPolicy bounds retries of provider calls.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is the wait before the second attempt; it doubles after each retry.
	Backoff time.Duration
}

// Service creates provider linking sessions and owns the retry policy for them.
type Service struct {
	client provider.ClientInterface
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func NewService(client provider.ClientInterface, policy RetryPolicy) *Service {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Service{
		client: client,
		policy: policy,
		sleep:  sleepContext,
		now:    time.Now,
	}
}

// Create starts a session of the given product type for userID. A synthetic
// card id is generated for card_switcher sessions, which require one.
// Provider failures are returned as *provider.Error after retries are spent.
func (s *Service) Create(ctx context.Context, userID string, product ProductType, email string) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("user id is required"))
	}
	if _, err := ParseProductType(string(product)); err != nil {
		return nil, err
	}

	req := provider.CreateSessionRequest{
		ExternalUserID: userID,
		Type:           string(product),
		Email:          strings.TrimSpace(email),
	}
	if product == ProductCardSwitcher {
		req.CardID = uuid.NewString()
	}

	resp, err := s.createWithRetry(ctx, req)
	if err != nil {
		sessionTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", string(product)),
			attribute.String("outcome", outcomeOf(err)),
		))
		return nil, err
	}

	sessionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", string(product)),
		attribute.String("outcome", "success"),
	))
	log.Printf("Created %s session for user %s", product, userID)

	return &Session{
		ID:        resp.SessionID,
		UserID:    userID,
		Type:      product,
		CardID:    req.CardID,
		CreatedAt: s.now().UTC(),
	}, nil
}

func (s *Service) createWithRetry(ctx context.Context, req provider.CreateSessionRequest) (*provider.CreateSessionResponse, error) {
	backoff := s.policy.Backoff

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		resp, err := s.client.CreateSession(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var perr *provider.Error
		if !errors.As(err, &perr) || !perr.Retryable() || attempt == s.policy.MaxAttempts {
			break
		}

		log.Printf("Session create attempt %d/%d for user %s failed, retrying in %v: %v",
			attempt, s.policy.MaxAttempts, req.ExternalUserID, backoff, err)
		sessionRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(perr.Kind))))

		if err := s.sleep(ctx, backoff); err != nil {
			return nil, lastErr
		}
		backoff *= 2
	}

	log.Printf("Session create for user %s failed: %v", req.ExternalUserID, lastErr)
	return nil, lastErr
}

func outcomeOf(err error) string {
	if kind := provider.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "error"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
