package webhook

import (
	"context"
	"time"
)

// Status of a stored webhook delivery.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// EventRecord is the audit copy of an authenticated delivery, kept so failed
// events can be replayed. RawPayload is plaintext here; repositories encrypt
// it at rest.
type EventRecord struct {
	ID            string     `json:"id"`
	EventType     string     `json:"eventType"`
	UserID        string     `json:"userId"`
	Merchant      string     `json:"merchant,omitempty"`
	RawPayload    []byte     `json:"-"`
	SignatureHash string     `json:"signatureHash"`
	Status        Status     `json:"status"`
	Error         string     `json:"error,omitempty"`
	Attempts      int        `json:"attempts"`
	ReceivedAt    time.Time  `json:"receivedAt"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
}

// Repository stores webhook audit records.
type Repository interface {
	Create(ctx context.Context, record *EventRecord) error
	// MarkProcessed and MarkFailed set the final status and bump Attempts.
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	Get(ctx context.Context, id string) (*EventRecord, error)
	// ListByStatus returns the oldest records first.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*EventRecord, error)
}

// ReplayGuard suppresses re-processing of identical deliveries.
type ReplayGuard interface {
	// Claim reports true the first time key is seen within the guard's window.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a later redelivery is processed again.
	Release(ctx context.Context, key string) error
}

// NopGuard claims every key. Used when no shared cache is configured.
type NopGuard struct{}

func (NopGuard) Claim(context.Context, string) (bool, error) { return true, nil }
func (NopGuard) Release(context.Context, string) error       { return nil }
