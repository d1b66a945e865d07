package webhook

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrNoEventStore is returned by Replay when the router has no audit store.
var ErrNoEventStore = errors.New("webhook event store not configured")

// Replay re-dispatches a stored delivery. The signature was verified when the
// event was first received and is not checked again.
func (r *Router) Replay(ctx context.Context, id string) error {
	if r.events == nil {
		return ErrNoEventStore
	}

	record, err := r.events.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.Status == StatusProcessed {
		log.Printf("Webhook event %s already processed, skipping replay", id)
		return nil
	}

	env, err := DecodeEnvelope(record.RawPayload)
	if err == nil {
		var event Event
		event, err = Parse(env)
		if err == nil {
			_, err = r.Dispatch(ctx, event)
		}
	}

	r.finish(ctx, record, err)
	if err != nil {
		return fmt.Errorf("replay of %s (%s) failed: %w", id, record.EventType, err)
	}

	log.Printf("Replayed webhook event %s (%s) for user %s", id, record.EventType, record.UserID)
	return nil
}

// PendingReplays lists stored events that still need processing.
func (r *Router) PendingReplays(ctx context.Context, status Status, limit int) ([]*EventRecord, error) {
	if r.events == nil {
		return nil, ErrNoEventStore
	}
	return r.events.ListByStatus(ctx, status, limit)
}
