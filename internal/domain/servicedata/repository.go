package servicedata

import "context"

// Repository stores one snapshot per (userID, service). Replace is a single
// atomic last-write-wins upsert.
type Repository interface {
	Replace(ctx context.Context, userID string, service ServiceName, payload []byte) (*Snapshot, error)
	Get(ctx context.Context, userID string, service ServiceName) (*Snapshot, error)
}
