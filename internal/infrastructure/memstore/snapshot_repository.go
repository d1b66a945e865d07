package memstore

import (
	"bytes"
	"context"

	"ledgerlink/internal/domain/servicedata"
)

type SnapshotRepository struct {
	s *Store
}

var _ servicedata.Repository = (*SnapshotRepository)(nil)

func (r *SnapshotRepository) Replace(_ context.Context, userID string, service servicedata.ServiceName, payload []byte) (*servicedata.Snapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	snap := &servicedata.Snapshot{
		UserID:      userID,
		ServiceName: service,
		Payload:     bytes.Clone(payload),
		LastUpdated: r.s.now(),
	}
	r.s.snapshots[snapshotKey{userID, service}] = snap
	return copySnapshot(snap), nil
}

func (r *SnapshotRepository) Get(_ context.Context, userID string, service servicedata.ServiceName) (*servicedata.Snapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	snap, ok := r.s.snapshots[snapshotKey{userID, service}]
	if !ok {
		return nil, servicedata.ErrSnapshotNotFound
	}
	return copySnapshot(snap), nil
}

func copySnapshot(s *servicedata.Snapshot) *servicedata.Snapshot {
	out := *s
	out.Payload = bytes.Clone(s.Payload)
	return &out
}
