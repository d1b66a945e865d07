package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledgerlink/internal/domain/webhook"
	"ledgerlink/internal/infrastructure/crypto"
)

// WebhookEventRepository stores the webhook audit log. Raw payloads are
// encrypted before they reach the database.
type WebhookEventRepository struct {
	db        *DB
	encryptor *crypto.Encryptor
}

var _ webhook.Repository = (*WebhookEventRepository)(nil)

func NewWebhookEventRepository(db *DB, encryptor *crypto.Encryptor) *WebhookEventRepository {
	return &WebhookEventRepository{db: db, encryptor: encryptor}
}

const webhookEventColumns = `id, event_type, user_id, merchant, raw_payload, signature_hash, status, error, attempts, received_at, processed_at`

func (r *WebhookEventRepository) Create(ctx context.Context, record *webhook.EventRecord) error {
	payload, err := r.encryptor.Encrypt(string(record.RawPayload))
	if err != nil {
		return fmt.Errorf("failed to encrypt webhook payload: %w", err)
	}

	query := `
		INSERT INTO webhook_events (id, event_type, user_id, merchant, raw_payload, signature_hash, status, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID, record.EventType, record.UserID, record.Merchant, payload,
		record.SignatureHash, string(record.Status), record.ReceivedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("webhook event %s already exists: %w", record.ID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to create webhook event: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id string) error {
	return r.mark(ctx, id, webhook.StatusProcessed, "")
}

func (r *WebhookEventRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.mark(ctx, id, webhook.StatusFailed, reason)
}

func (r *WebhookEventRepository) mark(ctx context.Context, id string, status webhook.Status, reason string) error {
	query := `
		UPDATE webhook_events
		SET status = $2, error = $3, attempts = attempts + 1, processed_at = now()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, string(status), reason)
	if err != nil {
		return fmt.Errorf("failed to update webhook event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return webhook.ErrEventNotFound
	}
	return nil
}

func (r *WebhookEventRepository) Get(ctx context.Context, id string) (*webhook.EventRecord, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE id = $1`

	record, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, webhook.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return record, nil
}

func (r *WebhookEventRepository) ListByStatus(ctx context.Context, status webhook.Status, limit int) ([]*webhook.EventRecord, error) {
	query := `
		SELECT ` + webhookEventColumns + `
		FROM webhook_events
		WHERE status = $1
		ORDER BY received_at
		LIMIT $2
	`

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	defer rows.Close()

	var records []*webhook.EventRecord
	for rows.Next() {
		record, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook events: %w", err)
	}
	return records, nil
}

func (r *WebhookEventRepository) scan(row scanner) (*webhook.EventRecord, error) {
	var (
		record      webhook.EventRecord
		payload     string
		status      string
		processedAt sql.NullTime
	)
	err := row.Scan(
		&record.ID, &record.EventType, &record.UserID, &record.Merchant, &payload,
		&record.SignatureHash, &status, &record.Error, &record.Attempts,
		&record.ReceivedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	plaintext, err := r.encryptor.Decrypt(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt webhook payload %s: %w", record.ID, err)
	}
	record.RawPayload = []byte(plaintext)
	record.Status = webhook.Status(status)
	if processedAt.Valid {
		record.ProcessedAt = &processedAt.Time
	}
	return &record, nil
}
