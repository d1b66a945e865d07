package transaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrOwnershipConflict is returned when a transaction id is already stored
	// for a different user. The stored row is left untouched.
	ErrOwnershipConflict = errors.New("transaction belongs to another user")
)

// Transaction is one financial event reported by a linked merchant.
// TransactionID is the provider-assigned dedup key.
type Transaction struct {
	TransactionID string          `json:"transactionId"`
	UserID        string          `json:"userId"`
	Merchant      string          `json:"merchant"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	CardType      string          `json:"cardType"`
	CardLast4     string          `json:"cardLast4"`
	Category      string          `json:"category"`
	Description   *string         `json:"description,omitempty"`
	IsPending     bool            `json:"isPending"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// UpsertParams is a validated transaction ready to be written.
// On conflict only Amount, IsPending, Category and Description are overwritten.
type UpsertParams struct {
	TransactionID string
	UserID        string
	Merchant      string
	Amount        decimal.Decimal
	Date          time.Time
	CardType      string
	CardLast4     string
	Category      string
	Description   *string
	IsPending     bool
}

// SyncResult summarizes one batch. Failures carry enough context to replay
// the skipped items later.
type SyncResult struct {
	UserID   string        `json:"userId"`
	Received int           `json:"received"`
	Created  int           `json:"created"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Failures []ItemFailure `json:"failures,omitempty"`
}

// ItemFailure records why a single transaction in a batch was skipped.
type ItemFailure struct {
	TransactionID string `json:"transactionId"`
	Index         int    `json:"index"`
	Reason        string `json:"reason"`
}

func (f ItemFailure) Error() string {
	if f.TransactionID == "" {
		return fmt.Sprintf("item %d: %s", f.Index, f.Reason)
	}
	return fmt.Sprintf("transaction %s: %s", f.TransactionID, f.Reason)
}
