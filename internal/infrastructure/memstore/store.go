// Package memstore keeps every repository in process memory. Each operation
// runs in one critical section, which gives the same atomic upsert-by-key
// behaviour the Postgres repositories get from ON CONFLICT.
package memstore

import (
	"sync"
	"time"

	"ledgerlink/internal/domain/connection"
	"ledgerlink/internal/domain/servicedata"
	"ledgerlink/internal/domain/transaction"
	"ledgerlink/internal/domain/webhook"
)

type connKey struct {
	userID       string
	merchantName string
}

type snapshotKey struct {
	userID  string
	service servicedata.ServiceName
}

type Store struct {
	mu           sync.Mutex
	now          func() time.Time
	connections  map[connKey]*connection.Connection
	transactions map[string]*transaction.Transaction
	snapshots    map[snapshotKey]*servicedata.Snapshot
	events       map[string]*webhook.EventRecord
}

func New() *Store {
	return &Store{
		now:          func() time.Time { return time.Now().UTC() },
		connections:  make(map[connKey]*connection.Connection),
		transactions: make(map[string]*transaction.Transaction),
		snapshots:    make(map[snapshotKey]*servicedata.Snapshot),
		events:       make(map[string]*webhook.EventRecord),
	}
}

func (s *Store) Connections() *ConnectionRepository { return &ConnectionRepository{s: s} }

func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{s: s} }

func (s *Store) Snapshots() *SnapshotRepository { return &SnapshotRepository{s: s} }

func (s *Store) WebhookEvents() *WebhookEventRepository { return &WebhookEventRepository{s: s} }

// Counts reports how many records each collection holds.
func (s *Store) Counts() (connections, transactions, snapshots, events int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections), len(s.transactions), len(s.snapshots), len(s.events)
}
