package memstore

import (
	"context"
	"sort"

	"ledgerlink/internal/domain/transaction"
)

type TransactionRepository struct {
	s *Store
}

var _ transaction.Repository = (*TransactionRepository)(nil)

func (r *TransactionRepository) Upsert(_ context.Context, params transaction.UpsertParams) (*transaction.Transaction, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()

	if tx, ok := r.s.transactions[params.TransactionID]; ok {
		if tx.UserID != params.UserID {
			return nil, false, transaction.ErrOwnershipConflict
		}
		tx.Amount = params.Amount
		tx.IsPending = params.IsPending
		tx.Category = params.Category
		tx.Description = copyString(params.Description)
		tx.UpdatedAt = now
		return copyTransaction(tx), false, nil
	}

	tx := &transaction.Transaction{
		TransactionID: params.TransactionID,
		UserID:        params.UserID,
		Merchant:      params.Merchant,
		Amount:        params.Amount,
		Date:          params.Date,
		CardType:      params.CardType,
		CardLast4:     params.CardLast4,
		Category:      params.Category,
		Description:   copyString(params.Description),
		IsPending:     params.IsPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.s.transactions[params.TransactionID] = tx
	return copyTransaction(tx), true, nil
}

func (r *TransactionRepository) GetByID(_ context.Context, transactionID string) (*transaction.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx, ok := r.s.transactions[transactionID]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	return copyTransaction(tx), nil
}

// ListByUserID returns the user's transactions newest first.
func (r *TransactionRepository) ListByUserID(_ context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var txs []*transaction.Transaction
	for _, tx := range r.s.transactions {
		if tx.UserID == userID {
			txs = append(txs, copyTransaction(tx))
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Date.Equal(txs[j].Date) {
			return txs[i].TransactionID < txs[j].TransactionID
		}
		return txs[i].Date.After(txs[j].Date)
	})

	if offset >= len(txs) {
		return nil, nil
	}
	txs = txs[offset:]
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return txs, nil
}

func copyTransaction(tx *transaction.Transaction) *transaction.Transaction {
	out := *tx
	out.Description = copyString(tx.Description)
	return &out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
