package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ledgerlink/internal/domain/connection"
	"ledgerlink/internal/domain/servicedata"
	"ledgerlink/internal/domain/transaction"
)

var (
	webhookTracer            = otel.Tracer("ledgerlink/webhook")
	webhookMeter             = otel.Meter("ledgerlink/webhook")
	webhookTotal, _          = webhookMeter.Int64Counter("webhook.events.total", metric.WithDescription("Webhook deliveries by event type and outcome"))
	signatureFailureTotal, _ = webhookMeter.Int64Counter("webhook.signature.failures", metric.WithDescription("Webhook deliveries rejected by signature verification"))
)

// Outcome values reported for a delivery that was accepted.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
)

// Delivery is one inbound webhook request as received.
type Delivery struct {
	ContentLength  string
	ContentType    string
	EncryptionType string
	Signature      string
	Body           []byte
	ReceivedAt     time.Time
}

// Outcome describes what happened to an accepted delivery.
type Outcome struct {
	EventID   string                  `json:"eventId,omitempty"`
	EventType string                  `json:"event"`
	Status    string                  `json:"status"`
	Sync      *transaction.SyncResult `json:"sync,omitempty"`
}

// ConnectionHandler applies connection lifecycle events.
type ConnectionHandler interface {
	UpsertConnection(ctx context.Context, params connection.UpsertParams) (*connection.Connection, error)
	DeactivateConnection(ctx context.Context, userID, merchantName string) error
}

// TransactionSyncer applies transaction batches.
type TransactionSyncer interface {
	SyncTransactions(ctx context.Context, userID string, items []transaction.RawTransaction) (*transaction.SyncResult, error)
}

// SnapshotWriter replaces service data snapshots.
type SnapshotWriter interface {
	ReplaceSnapshot(ctx context.Context, userID string, payload servicedata.Payload) (*servicedata.Snapshot, error)
}

// Router authenticates deliveries and dispatches them to the stores. It
// holds no state of its own beyond its collaborators.
type Router struct {
	verifier     *Verifier
	connections  ConnectionHandler
	transactions TransactionSyncer
	snapshots    SnapshotWriter
	events       Repository
	guard        ReplayGuard
}

// RouterDeps groups the Router's collaborators. Events and Guard are optional.
type RouterDeps struct {
	Verifier     *Verifier
	Connections  ConnectionHandler
	Transactions TransactionSyncer
	Snapshots    SnapshotWriter
	Events       Repository
	Guard        ReplayGuard
}

func NewRouter(deps RouterDeps) *Router {
	guard := deps.Guard
	if guard == nil {
		guard = NopGuard{}
	}
	return &Router{
		verifier:     deps.Verifier,
		connections:  deps.Connections,
		transactions: deps.Transactions,
		snapshots:    deps.Snapshots,
		events:       deps.Events,
		guard:        guard,
	}
}

// Handle runs verify, parse, dispatch for one delivery. Errors wrap
// ErrAuthentication or ErrValidation when the delivery itself is at fault;
// any other error is a processing failure the provider should retry.
// Unknown event types succeed without touching any store.
func (r *Router) Handle(ctx context.Context, d Delivery) (Outcome, error) {
	ctx, span := webhookTracer.Start(ctx, "webhook.handle")
	defer span.End()

	outcome, err := r.handle(ctx, d)

	status := outcome.Status
	switch {
	case errors.Is(err, ErrAuthentication):
		status = "unauthenticated"
	case errors.Is(err, ErrValidation):
		status = "invalid"
	case err != nil:
		status = "failed"
	}
	span.SetAttributes(attribute.String("webhook.event", outcome.EventType), attribute.String("webhook.status", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	webhookTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", outcome.EventType),
		attribute.String("status", status),
	))

	return outcome, err
}

func (r *Router) handle(ctx context.Context, d Delivery) (Outcome, error) {
	env, err := DecodeEnvelope(d.Body)
	if err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{EventType: env.Event}

	in := SignatureInput{
		ContentLength:  d.ContentLength,
		ContentType:    d.ContentType,
		EncryptionType: d.EncryptionType,
		Event:          env.SignedEvent(),
		SessionID:      env.SessionID,
	}
	if err := r.verifier.Verify(in, d.Signature); err != nil {
		signatureFailureTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", err.Error())))
		log.Printf("Webhook rejected: %v (event=%q)", err, env.Event)
		return outcome, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	event, err := Parse(env)
	if err != nil {
		log.Printf("Webhook rejected: %v", err)
		return outcome, err
	}

	if unknown, ok := event.(UnknownEvent); ok {
		log.Printf("Ignoring unhandled webhook event %q for user %s", unknown.EventType, unknown.UserID)
		outcome.Status = OutcomeIgnored
		return outcome, nil
	}

	key := deliveryKey(d.Signature, d.Body)
	first, err := r.guard.Claim(ctx, key)
	if err != nil {
		log.Printf("Warning: replay guard unavailable, processing anyway: %v", err)
		first = true
	}
	if !first {
		log.Printf("Duplicate webhook delivery for %s (user %s), skipping", event.Type(), event.User())
		outcome.Status = OutcomeDuplicate
		return outcome, nil
	}

	record := r.audit(ctx, d, env)
	if record != nil {
		outcome.EventID = record.ID
	}

	result, err := r.Dispatch(ctx, event)
	if err != nil {
		if releaseErr := r.guard.Release(ctx, key); releaseErr != nil {
			log.Printf("Warning: failed to release replay guard: %v", releaseErr)
		}
		r.finish(ctx, record, err)
		log.Printf("Failed to process %s for user %s: %v", event.Type(), event.User(), err)
		return outcome, err
	}

	r.finish(ctx, record, nil)
	outcome.Status = OutcomeProcessed
	outcome.Sync = result
	return outcome, nil
}

// Dispatch applies an already authenticated event. It is also used to
// replay stored events. Domain input errors are reported as ErrValidation.
func (r *Router) Dispatch(ctx context.Context, event Event) (*transaction.SyncResult, error) {
	ctx, span := webhookTracer.Start(ctx, "webhook.dispatch",
		trace.WithAttributes(
			attribute.String("webhook.event", event.Type()),
			attribute.String("webhook.user_id", event.User()),
		),
	)
	defer span.End()

	var (
		result *transaction.SyncResult
		err    error
	)

	switch e := event.(type) {
	case ConnectionCreated:
		_, err = r.connections.UpsertConnection(ctx, e.upsertParams())
	case ConnectionUpdated:
		_, err = r.connections.UpsertConnection(ctx, e.upsertParams())
	case ConnectionDeleted:
		err = r.connections.DeactivateConnection(ctx, e.UserID, e.MerchantName)
	case TransactionsSynced:
		result, err = r.transactions.SyncTransactions(ctx, e.UserID, e.Transactions)
	case ServiceDataReceived:
		_, err = r.snapshots.ReplaceSnapshot(ctx, e.UserID, e.Payload)
	case UnknownEvent:
		return nil, nil
	default:
		err = fmt.Errorf("unhandled event type %T", event)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isInputError(err) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, fmt.Errorf("failed to apply %s: %w", event.Type(), err)
	}
	return result, nil
}

func (c ConnectionChange) upsertParams() connection.UpsertParams {
	return connection.UpsertParams{
		UserID:       c.UserID,
		MerchantName: c.MerchantName,
		MerchantID:   c.MerchantID,
		ConnectionID: c.ConnectionID,
		Metadata:     c.Metadata,
	}
}

// audit stores the delivery as pending. Audit failures never block processing.
func (r *Router) audit(ctx context.Context, d Delivery, env *Envelope) *EventRecord {
	if r.events == nil {
		return nil
	}

	receivedAt := d.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	sum := sha256.Sum256([]byte(d.Signature))

	record := &EventRecord{
		ID:            uuid.NewString(),
		EventType:     env.Event,
		UserID:        env.UserID,
		Merchant:      env.MerchantName(),
		RawPayload:    d.Body,
		SignatureHash: hex.EncodeToString(sum[:]),
		Status:        StatusPending,
		ReceivedAt:    receivedAt.UTC(),
	}
	if err := r.events.Create(ctx, record); err != nil {
		log.Printf("Warning: failed to store webhook event %s: %v", env.Event, err)
		return nil
	}
	return record
}

func (r *Router) finish(ctx context.Context, record *EventRecord, procErr error) {
	if record == nil {
		return
	}

	var err error
	if procErr != nil {
		err = r.events.MarkFailed(ctx, record.ID, procErr.Error())
	} else {
		err = r.events.MarkProcessed(ctx, record.ID)
	}
	if err != nil {
		log.Printf("Warning: failed to update webhook event %s: %v", record.ID, err)
	}
}

// deliveryKey identifies a delivery by its signature and exact body.
func deliveryKey(signature string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(signature))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func isInputError(err error) bool {
	return errors.Is(err, connection.ErrInvalidInput) ||
		errors.Is(err, transaction.ErrInvalidInput) ||
		errors.Is(err, servicedata.ErrInvalidInput)
}
