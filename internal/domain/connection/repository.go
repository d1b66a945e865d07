package connection

import "context"

// Repository is the durable keyed store for connections. Upsert and
// Deactivate must each be a single atomic write keyed on
// (userID, merchantName); callers never read-modify-write.
type Repository interface {
	// Upsert inserts an active connection or, when the key exists, overwrites
	// merchant id, connection id and metadata, bumps connected_at and
	// reactivates it.
	Upsert(ctx context.Context, params UpsertParams) (*Connection, error)
	// Deactivate clears is_active. It reports whether a row matched.
	Deactivate(ctx context.Context, userID, merchantName string) (bool, error)
	Get(ctx context.Context, userID, merchantName string) (*Connection, error)
	ListActiveByUserID(ctx context.Context, userID string) ([]*Connection, error)
}
