package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlink/internal/domain/connection"
	"ledgerlink/internal/domain/servicedata"
	"ledgerlink/internal/domain/transaction"
	"ledgerlink/internal/infrastructure/memstore"
	"ledgerlink/internal/shared/middleware"
)

func authedGet(target, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func newAccountDataHandler(store *memstore.Store) *AccountDataHandler {
	return NewAccountDataHandler(
		connection.NewService(store.Connections(), nil),
		store.Transactions(),
		servicedata.NewService(store.Snapshots()),
	)
}

func TestHandleListConnections(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	_, err := store.Connections().Upsert(ctx, connection.UpsertParams{UserID: "user-1", MerchantName: "Netflix", MerchantID: 16, ConnectionID: "c-1"})
	require.NoError(t, err)
	_, err = store.Connections().Upsert(ctx, connection.UpsertParams{UserID: "user-1", MerchantName: "Uber", MerchantID: 7, ConnectionID: "c-2"})
	require.NoError(t, err)
	_, err = store.Connections().Deactivate(ctx, "user-1", "Uber")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newAccountDataHandler(store).HandleListConnections(rr, authedGet("/api/connections", "user-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	var conns []connection.Connection
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &conns))
	require.Len(t, conns, 1)
	assert.Equal(t, "Netflix", conns[0].MerchantName)
}

func TestHandleListConnections_EmptyIsArray(t *testing.T) {
	rr := httptest.NewRecorder()
	newAccountDataHandler(memstore.New()).HandleListConnections(rr, authedGet("/api/connections", "user-9"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestHandleListConnections_Unauthorized(t *testing.T) {
	rr := httptest.NewRecorder()
	newAccountDataHandler(memstore.New()).HandleListConnections(rr, httptest.NewRequest(http.MethodGet, "/api/connections", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// MockTransactionLister implements TransactionLister for testing
type MockTransactionLister struct {
	ListByUserIDFunc func(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error)
}

func (m *MockTransactionLister) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID, limit, offset)
	}
	return nil, nil
}

func TestHandleListTransactions_Pagination(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedLimit  int
		expectedOffset int
	}{
		{"defaults", "", 50, 0},
		{"explicit", "?limit=10&offset=20", 10, 20},
		{"invalid values ignored", "?limit=abc&offset=-1", 50, 0},
		{"limit capped", "?limit=10000", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit, gotOffset int
			lister := &MockTransactionLister{
				ListByUserIDFunc: func(_ context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error) {
					gotLimit, gotOffset = limit, offset
					return []*transaction.Transaction{{TransactionID: "t-1", UserID: userID, Amount: decimal.RequireFromString("4.50")}}, nil
				},
			}
			handler := NewAccountDataHandler(nil, lister, nil)

			rr := httptest.NewRecorder()
			handler.HandleListTransactions(rr, authedGet("/api/transactions"+tt.query, "user-1"))

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.expectedLimit, gotLimit)
			assert.Equal(t, tt.expectedOffset, gotOffset)
			assert.Contains(t, rr.Body.String(), `"amount":"4.5"`)
		})
	}
}

func TestHandleListTransactions_StoreError(t *testing.T) {
	lister := &MockTransactionLister{
		ListByUserIDFunc: func(context.Context, string, int, int) ([]*transaction.Transaction, error) {
			return nil, errors.New("db down")
		},
	}

	rr := httptest.NewRecorder()
	NewAccountDataHandler(nil, lister, nil).HandleListTransactions(rr, authedGet("/api/transactions", "user-1"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandleGetServiceData(t *testing.T) {
	store := memstore.New()
	snaps := servicedata.NewService(store.Snapshots())
	_, err := snaps.ReplaceSnapshot(context.Background(), "user-1", &servicedata.SpotifyActivity{TopArtists: []string{"Radiohead"}})
	require.NoError(t, err)
	handler := newAccountDataHandler(store)

	tests := []struct {
		name           string
		service        string
		userID         string
		expectedStatus int
	}{
		{"found", "spotify", "user-1", http.StatusOK},
		{"case insensitive", "Spotify", "user-1", http.StatusOK},
		{"no snapshot yet", "netflix", "user-1", http.StatusNotFound},
		{"other user", "spotify", "user-2", http.StatusNotFound},
		{"unknown service", "myspace", "user-1", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedGet("/api/services/"+tt.service, tt.userID)
			req.SetPathValue("service", tt.service)

			rr := httptest.NewRecorder()
			handler.HandleGetServiceData(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())
			if tt.expectedStatus == http.StatusOK {
				assert.Contains(t, rr.Body.String(), "Radiohead")
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandler(nil).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	failing := NewHealthHandler(func(context.Context) error { return errors.New("connection refused") })
	failing.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
