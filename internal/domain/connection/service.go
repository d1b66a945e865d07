package connection

import (
	"context"
	"errors"
	"log"
	"strings"

	"ledgerlink/internal/domain/notification"
)

// Service contains the business logic for connection operations
type Service struct {
	repo     Repository
	notifier notification.Notifier
}

// NewService creates a new connection service. notifier may be nil.
func NewService(repo Repository, notifier notification.Notifier) *Service {
	if notifier == nil {
		notifier = notification.NopNotifier{}
	}
	return &Service{repo: repo, notifier: notifier}
}

// UpsertConnection records a link or relink. Safe to repeat and safe under
// concurrent calls for the same key: the repository resolves the race.
func (s *Service) UpsertConnection(ctx context.Context, params UpsertParams) (*Connection, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	conn, err := s.repo.Upsert(ctx, params)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notification.ConnectionLinked(conn.UserID, conn.MerchantName))
	return conn, nil
}

// DeactivateConnection soft-deletes a connection. Unknown or already
// inactive connections are not an error.
func (s *Service) DeactivateConnection(ctx context.Context, userID, merchantName string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(merchantName) == "" {
		return errors.Join(ErrInvalidInput, errors.New("user id and merchant name are required"))
	}

	matched, err := s.repo.Deactivate(ctx, userID, merchantName)
	if err != nil {
		return err
	}
	if !matched {
		log.Printf("Deactivate: no connection for user %s merchant %s, nothing to do", userID, merchantName)
		return nil
	}

	s.notify(ctx, notification.ConnectionUnlinked(userID, merchantName))
	return nil
}

// ListActiveConnections returns every active connection for a user.
func (s *Service) ListActiveConnections(ctx context.Context, userID string) ([]*Connection, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("user id is required"))
	}
	return s.repo.ListActiveByUserID(ctx, userID)
}

// GetConnection returns one connection regardless of its active flag.
func (s *Service) GetConnection(ctx context.Context, userID, merchantName string) (*Connection, error) {
	return s.repo.Get(ctx, userID, merchantName)
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		log.Printf("Warning: failed to send %s notification to user %s: %v", msg.Kind, msg.UserID, err)
	}
}
