package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"ledgerlink/internal/domain/connection"
	"ledgerlink/internal/domain/servicedata"
	"ledgerlink/internal/domain/transaction"
	"ledgerlink/internal/shared/middleware"
)

type ConnectionLister interface {
	ListActiveConnections(ctx context.Context, userID string) ([]*connection.Connection, error)
}

type TransactionLister interface {
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error)
}

type SnapshotReader interface {
	GetSnapshot(ctx context.Context, userID string, service servicedata.ServiceName) (*servicedata.Snapshot, error)
}

// AccountDataHandler serves the caller's own linked data.
type AccountDataHandler struct {
	connections  ConnectionLister
	transactions TransactionLister
	snapshots    SnapshotReader
}

func NewAccountDataHandler(connections ConnectionLister, transactions TransactionLister, snapshots SnapshotReader) *AccountDataHandler {
	return &AccountDataHandler{
		connections:  connections,
		transactions: transactions,
		snapshots:    snapshots,
	}
}

// HandleListConnections returns the caller's active merchant connections.
func (h *AccountDataHandler) HandleListConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conns, err := h.connections.ListActiveConnections(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing connections for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to list connections")
		return
	}
	if conns == nil {
		conns = []*connection.Connection{}
	}

	writeJSON(w, http.StatusOK, conns)
}

// HandleListTransactions returns the caller's transactions, newest first.
func (h *AccountDataHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 50
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	txs, err := h.transactions.ListByUserID(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("Error listing transactions for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []*transaction.Transaction{}
	}

	writeJSON(w, http.StatusOK, txs)
}

// HandleGetServiceData returns the latest snapshot for /api/services/{service}.
func (h *AccountDataHandler) HandleGetServiceData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	service, err := servicedata.ParseServiceName(r.PathValue("service"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	snap, err := h.snapshots.GetSnapshot(r.Context(), userID, service)
	if errors.Is(err, servicedata.ErrSnapshotNotFound) {
		writeError(w, http.StatusNotFound, "no data for "+string(service))
		return
	}
	if err != nil {
		log.Printf("Error getting %s snapshot for user %s: %v", service, userID, err)
		writeError(w, http.StatusInternalServerError, "failed to get service data")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}
