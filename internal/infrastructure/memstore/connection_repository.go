package memstore

import (
	"context"
	"maps"
	"sort"

	"ledgerlink/internal/domain/connection"
)

type ConnectionRepository struct {
	s *Store
}

var _ connection.Repository = (*ConnectionRepository)(nil)

func (r *ConnectionRepository) Upsert(_ context.Context, params connection.UpsertParams) (*connection.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	key := connKey{params.UserID, params.MerchantName}

	conn, ok := r.s.connections[key]
	if !ok {
		conn = &connection.Connection{
			UserID:       params.UserID,
			MerchantName: params.MerchantName,
			CreatedAt:    now,
		}
		r.s.connections[key] = conn
	}
	conn.MerchantID = params.MerchantID
	conn.ConnectionID = params.ConnectionID
	conn.Metadata = maps.Clone(params.Metadata)
	conn.ConnectedAt = now
	conn.IsActive = true
	conn.UpdatedAt = now

	return copyConnection(conn), nil
}

func (r *ConnectionRepository) Deactivate(_ context.Context, userID, merchantName string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	conn, ok := r.s.connections[connKey{userID, merchantName}]
	if !ok {
		return false, nil
	}
	if conn.IsActive {
		conn.IsActive = false
		conn.UpdatedAt = r.s.now()
	}
	return true, nil
}

func (r *ConnectionRepository) Get(_ context.Context, userID, merchantName string) (*connection.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	conn, ok := r.s.connections[connKey{userID, merchantName}]
	if !ok {
		return nil, connection.ErrConnectionNotFound
	}
	return copyConnection(conn), nil
}

func (r *ConnectionRepository) ListActiveByUserID(_ context.Context, userID string) ([]*connection.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var conns []*connection.Connection
	for key, conn := range r.s.connections {
		if key.userID == userID && conn.IsActive {
			conns = append(conns, copyConnection(conn))
		}
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].MerchantName < conns[j].MerchantName })
	return conns, nil
}

func copyConnection(c *connection.Connection) *connection.Connection {
	out := *c
	out.Metadata = maps.Clone(c.Metadata)
	return &out
}
