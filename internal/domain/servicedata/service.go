package servicedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ReplaceSnapshot overwrites the user's snapshot for the payload's service.
// The provider always sends a complete snapshot, so nothing is merged.
func (s *Service) ReplaceSnapshot(ctx context.Context, userID string, payload Payload) (*Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("user id is required"))
	}
	if payload == nil {
		return nil, errors.Join(ErrInvalidInput, errors.New("payload is required"))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", payload.Service(), err)
	}

	return s.repo.Replace(ctx, userID, payload.Service(), data)
}

// GetSnapshot returns the latest snapshot for a user and service.
func (s *Service) GetSnapshot(ctx context.Context, userID string, service ServiceName) (*Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("user id is required"))
	}
	return s.repo.Get(ctx, userID, service)
}
