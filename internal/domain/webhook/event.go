package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ledgerlink/internal/domain/servicedata"
	"ledgerlink/internal/domain/transaction"
)

// Event types sent by the provider.
const (
	EventConnectionCreated   = "connection.created"
	EventConnectionUpdated   = "connection.updated"
	EventConnectionDeleted   = "connection.deleted"
	EventTransactionsNew     = "transactions.new"
	EventTransactionsUpdated = "transactions.updated"
	eventDataPrefix          = "data."
)

// Envelope is the common shape of every webhook body.
type Envelope struct {
	Event     string          `json:"event"`
	UserID    string          `json:"user_id"`
	Merchant  *Merchant       `json:"merchant,omitempty"`
	SessionID *string         `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	rawEvent string
}

type Merchant struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// SignedEvent is the event field exactly as it appeared in the body. The
// signature covers this value, not the trimmed Event.
func (e *Envelope) SignedEvent() string {
	return e.rawEvent
}

// MerchantName returns the merchant name or "" when absent.
func (e *Envelope) MerchantName() string {
	if e.Merchant == nil {
		return ""
	}
	return e.Merchant.Name
}

// Event is the parsed, typed form of a webhook. The concrete types below
// are the only implementations.
type Event interface {
	Type() string
	User() string
	isEvent()
}

// ConnectionChange is the payload shared by connection.created and
// connection.updated.
type ConnectionChange struct {
	UserID       string
	MerchantName string
	MerchantID   int64
	ConnectionID string
	Metadata     map[string]any
}

type ConnectionCreated struct{ ConnectionChange }

type ConnectionUpdated struct{ ConnectionChange }

type ConnectionDeleted struct {
	UserID       string
	MerchantName string
}

type TransactionsSynced struct {
	EventType    string
	UserID       string
	MerchantName string
	Transactions []transaction.RawTransaction
}

type ServiceDataReceived struct {
	UserID  string
	Service servicedata.ServiceName
	Payload servicedata.Payload
}

// UnknownEvent is any event type this service does not handle.
type UnknownEvent struct {
	EventType string
	UserID    string
}

func (ConnectionCreated) Type() string     { return EventConnectionCreated }
func (ConnectionUpdated) Type() string     { return EventConnectionUpdated }
func (ConnectionDeleted) Type() string     { return EventConnectionDeleted }
func (e TransactionsSynced) Type() string  { return e.EventType }
func (e ServiceDataReceived) Type() string { return eventDataPrefix + string(e.Service) }
func (e UnknownEvent) Type() string        { return e.EventType }

func (e ConnectionChange) User() string    { return e.UserID }
func (e ConnectionDeleted) User() string   { return e.UserID }
func (e TransactionsSynced) User() string  { return e.UserID }
func (e ServiceDataReceived) User() string { return e.UserID }
func (e UnknownEvent) User() string        { return e.UserID }

func (ConnectionCreated) isEvent()   {}
func (ConnectionUpdated) isEvent()   {}
func (ConnectionDeleted) isEvent()   {}
func (TransactionsSynced) isEvent()  {}
func (ServiceDataReceived) isEvent() {}
func (UnknownEvent) isEvent()        {}

// DecodeEnvelope decodes the common envelope without interpreting data.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", ErrValidation, err)
	}
	env.rawEvent = env.Event
	env.Event = strings.TrimSpace(env.Event)
	env.UserID = strings.TrimSpace(env.UserID)
	return &env, nil
}

// Parse turns an envelope into its typed event. Every event needs an event
// type and a user id; unknown types are returned as UnknownEvent, not an error.
func Parse(env *Envelope) (Event, error) {
	if env.Event == "" {
		return nil, fmt.Errorf("%w: event is required", ErrValidation)
	}
	if env.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}

	switch env.Event {
	case EventConnectionCreated:
		change, err := parseConnectionChange(env)
		if err != nil {
			return nil, err
		}
		return ConnectionCreated{change}, nil

	case EventConnectionUpdated:
		change, err := parseConnectionChange(env)
		if err != nil {
			return nil, err
		}
		return ConnectionUpdated{change}, nil

	case EventConnectionDeleted:
		if strings.TrimSpace(env.MerchantName()) == "" {
			return nil, fmt.Errorf("%w: merchant.name is required", ErrValidation)
		}
		return ConnectionDeleted{UserID: env.UserID, MerchantName: env.Merchant.Name}, nil

	case EventTransactionsNew, EventTransactionsUpdated:
		return parseTransactions(env)
	}

	if name, ok := strings.CutPrefix(env.Event, eventDataPrefix); ok {
		service, err := servicedata.ParseServiceName(name)
		if err != nil {
			return UnknownEvent{EventType: env.Event, UserID: env.UserID}, nil
		}
		payload, err := servicedata.DecodePayload(service, env.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return ServiceDataReceived{UserID: env.UserID, Service: service, Payload: payload}, nil
	}

	return UnknownEvent{EventType: env.Event, UserID: env.UserID}, nil
}

func parseConnectionChange(env *Envelope) (ConnectionChange, error) {
	var missing []string
	if env.Merchant == nil || strings.TrimSpace(env.Merchant.Name) == "" {
		missing = append(missing, "merchant.name")
	}
	if env.Merchant == nil || env.Merchant.ID <= 0 {
		missing = append(missing, "merchant.id")
	}

	data, err := decodeObject(env.Data)
	if err != nil {
		return ConnectionChange{}, err
	}
	connectionID, _ := data["connection_id"].(string)
	if strings.TrimSpace(connectionID) == "" {
		missing = append(missing, "data.connection_id")
	}
	if len(missing) > 0 {
		return ConnectionChange{}, fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, ", "))
	}

	// Everything else under data is kept as connection metadata.
	delete(data, "connection_id")
	if len(data) == 0 {
		data = nil
	}

	return ConnectionChange{
		UserID:       env.UserID,
		MerchantName: env.Merchant.Name,
		MerchantID:   env.Merchant.ID,
		ConnectionID: connectionID,
		Metadata:     data,
	}, nil
}

func parseTransactions(env *Envelope) (Event, error) {
	var data struct {
		Transactions *[]transaction.RawTransaction `json:"transactions"`
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: data.transactions is required", ErrValidation)
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: malformed transactions: %v", ErrValidation, err)
	}
	if data.Transactions == nil {
		return nil, fmt.Errorf("%w: data.transactions is required", ErrValidation)
	}

	items := *data.Transactions
	merchant := env.MerchantName()
	for i := range items {
		if items[i].Merchant == "" {
			items[i].Merchant = merchant
		}
	}

	return TransactionsSynced{
		EventType:    env.Event,
		UserID:       env.UserID,
		MerchantName: merchant,
		Transactions: items,
	}, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return map[string]any{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Join(ErrValidation, fmt.Errorf("data must be an object: %w", err))
	}
	return obj, nil
}
