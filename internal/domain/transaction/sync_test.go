package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockTransactionRepo struct {
	UpsertFunc       func(ctx context.Context, params UpsertParams) (*Transaction, bool, error)
	GetByIDFunc      func(ctx context.Context, transactionID string) (*Transaction, error)
	ListByUserIDFunc func(ctx context.Context, userID string, limit, offset int) ([]*Transaction, error)
}

func (m *MockTransactionRepo) Upsert(ctx context.Context, params UpsertParams) (*Transaction, bool, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return &Transaction{TransactionID: params.TransactionID}, true, nil
}

func (m *MockTransactionRepo) GetByID(ctx context.Context, transactionID string) (*Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, transactionID)
	}
	return nil, ErrTransactionNotFound
}

func (m *MockTransactionRepo) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*Transaction, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID, limit, offset)
	}
	return nil, nil
}

// keyedRepo mimics the store's upsert-by-id contract.
func keyedRepo() (*MockTransactionRepo, map[string]*Transaction) {
	var mu sync.Mutex
	rows := map[string]*Transaction{}
	repo := &MockTransactionRepo{
		UpsertFunc: func(ctx context.Context, p UpsertParams) (*Transaction, bool, error) {
			mu.Lock()
			defer mu.Unlock()
			now := time.Now()
			if existing, ok := rows[p.TransactionID]; ok {
				if existing.UserID != p.UserID {
					return nil, false, ErrOwnershipConflict
				}
				existing.Amount = p.Amount
				existing.IsPending = p.IsPending
				existing.Category = p.Category
				existing.Description = p.Description
				existing.UpdatedAt = now
				return existing, false, nil
			}
			tx := &Transaction{
				TransactionID: p.TransactionID, UserID: p.UserID, Merchant: p.Merchant,
				Amount: p.Amount, Date: p.Date, CardType: p.CardType, CardLast4: p.CardLast4,
				Category: p.Category, Description: p.Description, IsPending: p.IsPending,
				CreatedAt: now, UpdatedAt: now,
			}
			rows[p.TransactionID] = tx
			return tx, true, nil
		},
	}
	return repo, rows
}

func rawTx(id, amount string, pending bool) RawTransaction {
	return RawTransaction{
		ID:        id,
		Merchant:  "Netflix",
		Amount:    json.RawMessage(amount),
		Date:      "2024-03-01T12:00:00Z",
		CardType:  "visa",
		CardLast4: "4242",
		Category:  "Streaming",
		IsPending: pending,
	}
}

func TestSyncTransactions_DedupRoundTrip(t *testing.T) {
	repo, rows := keyedRepo()
	s := NewSynchronizer(repo)
	ctx := context.Background()

	first, err := s.SyncTransactions(ctx, "u1", []RawTransaction{rawTx("tx-1", `"15.49"`, true)})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	createdAt := rows["tx-1"].CreatedAt

	second, err := s.SyncTransactions(ctx, "u1", []RawTransaction{rawTx("tx-1", `15.49`, false)})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)

	require.Len(t, rows, 1)
	assert.False(t, rows["tx-1"].IsPending)
	assert.Equal(t, createdAt, rows["tx-1"].CreatedAt)
	assert.True(t, rows["tx-1"].Amount.Equal(decimal.RequireFromString("15.49")))
}

func TestSyncTransactions_PartialBatchIsolation(t *testing.T) {
	repo, rows := keyedRepo()
	s := NewSynchronizer(repo)

	batch := []RawTransaction{
		rawTx("tx-1", `"10.00"`, false),
		rawTx("tx-2", `"ten dollars"`, false),
		rawTx("tx-3", `"30.25"`, false),
	}

	result, err := s.SyncTransactions(context.Background(), "u1", batch)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Received)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "tx-2", result.Failures[0].TransactionID)
	assert.Equal(t, 1, result.Failures[0].Index)
	assert.Contains(t, result.Failures[0].Reason, "not a number")

	assert.Contains(t, rows, "tx-1")
	assert.NotContains(t, rows, "tx-2")
	assert.Contains(t, rows, "tx-3")
}

func TestSyncTransactions_RepositoryFailureIsolated(t *testing.T) {
	calls := 0
	repo := &MockTransactionRepo{
		UpsertFunc: func(ctx context.Context, p UpsertParams) (*Transaction, bool, error) {
			calls++
			if p.TransactionID == "tx-1" {
				return nil, false, errors.New("connection reset")
			}
			return &Transaction{TransactionID: p.TransactionID}, true, nil
		},
	}

	result, err := NewSynchronizer(repo).SyncTransactions(context.Background(), "u1", []RawTransaction{
		rawTx("tx-1", `1`, false),
		rawTx("tx-2", `2`, false),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Contains(t, result.Failures[0].Reason, "connection reset")
}

func TestSyncTransactions_ItemValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *RawTransaction)
		reason string
	}{
		{"missing id", func(r *RawTransaction) { r.ID = "" }, "id is required"},
		{"blank id", func(r *RawTransaction) { r.ID = "   " }, "id is required"},
		{"tab id", func(r *RawTransaction) { r.ID = "\t" }, "id is required"},
		{"negative amount", func(r *RawTransaction) { r.Amount = json.RawMessage(`-4.20`) }, "negative"},
		{"null amount", func(r *RawTransaction) { r.Amount = json.RawMessage(`null`) }, "amount is required"},
		{"bad date", func(r *RawTransaction) { r.Date = "yesterday" }, "not a valid date"},
		{"short card", func(r *RawTransaction) { r.CardLast4 = "424" }, "exactly 4 digits"},
		{"non-digit card", func(r *RawTransaction) { r.CardLast4 = "42a2" }, "exactly 4 digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockTransactionRepo{
				UpsertFunc: func(ctx context.Context, p UpsertParams) (*Transaction, bool, error) {
					t.Fatal("invalid item must not reach repository")
					return nil, false, nil
				},
			}
			item := rawTx("tx-1", `"5.00"`, false)
			tt.mutate(&item)

			result, err := NewSynchronizer(repo).SyncTransactions(context.Background(), "u1", []RawTransaction{item})
			require.NoError(t, err)
			require.Len(t, result.Failures, 1)
			assert.Contains(t, result.Failures[0].Reason, tt.reason)
		})
	}
}

func TestSyncTransactions_BlankIDsNeverShareARow(t *testing.T) {
	repo, rows := keyedRepo()
	items := []RawTransaction{
		rawTx("   ", `"1.00"`, false),
		rawTx("\t", `"2.00"`, false),
		rawTx(" tx-3 ", `"3.00"`, false),
	}

	result, err := NewSynchronizer(repo).SyncTransactions(context.Background(), "u1", items)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, rows, 1)
	assert.Contains(t, rows, "tx-3")
	assert.NotContains(t, rows, "")
}

func TestSyncTransactions_RequiresUser(t *testing.T) {
	_, err := NewSynchronizer(&MockTransactionRepo{}).SyncTransactions(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSyncTransactions_NormalizesFields(t *testing.T) {
	var got UpsertParams
	repo := &MockTransactionRepo{
		UpsertFunc: func(ctx context.Context, p UpsertParams) (*Transaction, bool, error) {
			got = p
			return &Transaction{}, true, nil
		},
	}
	blank := "  "
	item := rawTx("tx-9", `"12.345"`, true)
	item.Date = "2024-03-01"
	item.Description = &blank

	_, err := NewSynchronizer(repo).SyncTransactions(context.Background(), "u1", []RawTransaction{item})
	require.NoError(t, err)

	assert.Equal(t, "12.35", got.Amount.StringFixed(2))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got.Date)
	assert.Equal(t, "entertainment", got.Category)
	assert.Nil(t, got.Description)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`12.5`, "12.50", false},
		{`"0.10"`, "0.10", false},
		{`"  7 "`, "7.00", false},
		{`0`, "0.00", false},
		{`"abc"`, "", true},
		{`""`, "", true},
		{`-1`, "", true},
		{`1000000000000`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}
