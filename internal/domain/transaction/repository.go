package transaction

import "context"

// Repository defines the interface for transaction data access.
type Repository interface {
	// Upsert inserts the transaction or updates its mutable fields in a single
	// atomic statement keyed on TransactionID. created reports whether a new
	// row was inserted. CreatedAt of an existing row is preserved.
	Upsert(ctx context.Context, params UpsertParams) (tx *Transaction, created bool, err error)
	GetByID(ctx context.Context, transactionID string) (*Transaction, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*Transaction, error)
}
