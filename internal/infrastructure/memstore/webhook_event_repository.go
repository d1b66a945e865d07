package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"ledgerlink/internal/domain/webhook"
)

type WebhookEventRepository struct {
	s *Store
}

var _ webhook.Repository = (*WebhookEventRepository)(nil)

func (r *WebhookEventRepository) Create(_ context.Context, record *webhook.EventRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.events[record.ID]; exists {
		return fmt.Errorf("webhook event %s already exists", record.ID)
	}
	r.s.events[record.ID] = copyRecord(record)
	return nil
}

func (r *WebhookEventRepository) MarkProcessed(_ context.Context, id string) error {
	return r.mark(id, webhook.StatusProcessed, "")
}

func (r *WebhookEventRepository) MarkFailed(_ context.Context, id string, reason string) error {
	return r.mark(id, webhook.StatusFailed, reason)
}

func (r *WebhookEventRepository) mark(id string, status webhook.Status, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	record, ok := r.s.events[id]
	if !ok {
		return webhook.ErrEventNotFound
	}
	now := r.s.now()
	record.Status = status
	record.Error = reason
	record.Attempts++
	record.ProcessedAt = &now
	return nil
}

func (r *WebhookEventRepository) Get(_ context.Context, id string) (*webhook.EventRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	record, ok := r.s.events[id]
	if !ok {
		return nil, webhook.ErrEventNotFound
	}
	return copyRecord(record), nil
}

func (r *WebhookEventRepository) ListByStatus(_ context.Context, status webhook.Status, limit int) ([]*webhook.EventRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var records []*webhook.EventRecord
	for _, record := range r.s.events {
		if record.Status == status {
			records = append(records, copyRecord(record))
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ReceivedAt.Before(records[j].ReceivedAt) })

	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

func copyRecord(r *webhook.EventRecord) *webhook.EventRecord {
	out := *r
	out.RawPayload = bytes.Clone(r.RawPayload)
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		out.ProcessedAt = &t
	}
	return &out
}
