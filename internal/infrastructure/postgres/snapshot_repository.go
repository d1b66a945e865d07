package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledgerlink/internal/domain/servicedata"
)

// SnapshotRepository implements servicedata.Repository for PostgreSQL
type SnapshotRepository struct {
	db *DB
}

var _ servicedata.Repository = (*SnapshotRepository)(nil)

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Replace overwrites the whole payload; nothing from the previous row survives.
func (r *SnapshotRepository) Replace(ctx context.Context, userID string, service servicedata.ServiceName, payload []byte) (*servicedata.Snapshot, error) {
	query := `
		INSERT INTO service_snapshots (user_id, service_name, payload, last_updated)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, service_name) DO UPDATE SET
			payload      = EXCLUDED.payload,
			last_updated = now()
		RETURNING user_id, service_name, payload, last_updated
	`

	snap, err := scanSnapshot(r.db.QueryRowContext(ctx, query, userID, string(service), string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to replace %s snapshot: %w", service, err)
	}
	return snap, nil
}

func (r *SnapshotRepository) Get(ctx context.Context, userID string, service servicedata.ServiceName) (*servicedata.Snapshot, error) {
	query := `
		SELECT user_id, service_name, payload, last_updated
		FROM service_snapshots
		WHERE user_id = $1 AND service_name = $2
	`

	snap, err := scanSnapshot(r.db.QueryRowContext(ctx, query, userID, string(service)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, servicedata.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s snapshot: %w", service, err)
	}
	return snap, nil
}

func scanSnapshot(row scanner) (*servicedata.Snapshot, error) {
	var (
		snap    servicedata.Snapshot
		service string
	)
	if err := row.Scan(&snap.UserID, &service, &snap.Payload, &snap.LastUpdated); err != nil {
		return nil, err
	}
	snap.ServiceName = servicedata.ServiceName(service)
	return &snap, nil
}
