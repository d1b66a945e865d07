package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ledgerlink/internal/domain/connection"
)

// ConnectionRepository implements connection.Repository for PostgreSQL
type ConnectionRepository struct {
	db *DB
}

var _ connection.Repository = (*ConnectionRepository)(nil)

func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `user_id, merchant_name, merchant_id, connection_id, connected_at, is_active, metadata, created_at, updated_at`

// Upsert relies on the (user_id, merchant_name) primary key so concurrent
// links of the same merchant collapse into one row.
func (r *ConnectionRepository) Upsert(ctx context.Context, params connection.UpsertParams) (*connection.Connection, error) {
	metadata, err := marshalMetadata(params.Metadata)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO connections (user_id, merchant_name, merchant_id, connection_id, metadata, connected_at, is_active)
		VALUES ($1, $2, $3, $4, $5, now(), TRUE)
		ON CONFLICT (user_id, merchant_name) DO UPDATE SET
			merchant_id   = EXCLUDED.merchant_id,
			connection_id = EXCLUDED.connection_id,
			metadata      = EXCLUDED.metadata,
			connected_at  = now(),
			is_active     = TRUE,
			updated_at    = now()
		RETURNING ` + connectionColumns

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query,
		params.UserID, params.MerchantName, params.MerchantID, params.ConnectionID, metadata,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert connection: %w", err)
	}
	return conn, nil
}

func (r *ConnectionRepository) Deactivate(ctx context.Context, userID, merchantName string) (bool, error) {
	query := `
		UPDATE connections
		SET is_active = FALSE,
		    updated_at = CASE WHEN is_active THEN now() ELSE updated_at END
		WHERE user_id = $1 AND merchant_name = $2
	`

	result, err := r.db.ExecContext(ctx, query, userID, merchantName)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *ConnectionRepository) Get(ctx context.Context, userID, merchantName string) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1 AND merchant_name = $2`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, userID, merchantName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, connection.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

func (r *ConnectionRepository) ListActiveByUserID(ctx context.Context, userID string) ([]*connection.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE user_id = $1 AND is_active
		ORDER BY merchant_name
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []*connection.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}
	return conns, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConnection(row scanner) (*connection.Connection, error) {
	var (
		conn     connection.Connection
		metadata []byte
	)
	err := row.Scan(
		&conn.UserID, &conn.MerchantName, &conn.MerchantID, &conn.ConnectionID,
		&conn.ConnectedAt, &conn.IsActive, &metadata, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &conn.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &conn, nil
}

// marshalMetadata returns nil (SQL NULL) for empty metadata. JSONB parameters
// go over the wire as text; lib/pq would send a []byte as bytea.
func marshalMetadata(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}
