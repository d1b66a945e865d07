package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledgerlink/internal/domain/transaction"
)

// TransactionRepository implements transaction.Repository for PostgreSQL
type TransactionRepository struct {
	db *DB
}

var _ transaction.Repository = (*TransactionRepository)(nil)

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `transaction_id, user_id, merchant, amount, date, card_type, card_last4, category, description, is_pending, created_at, updated_at`

// Upsert is one statement: the conflict branch only touches the mutable
// fields, keeps created_at, and refuses rows owned by another user (no row
// comes back). xmax = 0 identifies a freshly inserted row.
func (r *TransactionRepository) Upsert(ctx context.Context, params transaction.UpsertParams) (*transaction.Transaction, bool, error) {
	query := `
		INSERT INTO transactions (transaction_id, user_id, merchant, amount, date, card_type, card_last4, category, description, is_pending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (transaction_id) DO UPDATE SET
			amount      = EXCLUDED.amount,
			is_pending  = EXCLUDED.is_pending,
			category    = EXCLUDED.category,
			description = EXCLUDED.description,
			updated_at  = now()
		WHERE transactions.user_id = EXCLUDED.user_id
		RETURNING ` + transactionColumns + `, (xmax = 0) AS inserted
	`

	var (
		tx          transaction.Transaction
		description sql.NullString
		inserted    bool
	)
	err := r.db.QueryRowContext(ctx, query,
		params.TransactionID, params.UserID, params.Merchant, params.Amount, params.Date,
		params.CardType, params.CardLast4, params.Category, nullStringPtr(params.Description), params.IsPending,
	).Scan(
		&tx.TransactionID, &tx.UserID, &tx.Merchant, &tx.Amount, &tx.Date,
		&tx.CardType, &tx.CardLast4, &tx.Category, &description, &tx.IsPending,
		&tx.CreatedAt, &tx.UpdatedAt, &inserted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, transaction.ErrOwnershipConflict
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert transaction: %w", err)
	}

	if description.Valid {
		tx.Description = &description.String
	}
	return &tx, inserted, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC, transaction_id
		LIMIT $2 OFFSET $3
	`

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(row scanner) (*transaction.Transaction, error) {
	var (
		tx          transaction.Transaction
		description sql.NullString
	)
	err := row.Scan(
		&tx.TransactionID, &tx.UserID, &tx.Merchant, &tx.Amount, &tx.Date,
		&tx.CardType, &tx.CardLast4, &tx.Category, &description, &tx.IsPending,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		tx.Description = &description.String
	}
	return &tx, nil
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
