package connection

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrConnectionNotFound = errors.New("connection not found")
)

// Connection is one user's link to one merchant through the provider.
// (UserID, MerchantName) is unique; unlinking only clears IsActive.
type Connection struct {
	UserID       string         `json:"userId"`
	MerchantName string         `json:"merchantName"`
	MerchantID   int64          `json:"merchantId"`
	ConnectionID string         `json:"connectionId"`
	ConnectedAt  time.Time      `json:"connectedAt"`
	IsActive     bool           `json:"isActive"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// UpsertParams carries a link or relink observed from the provider.
type UpsertParams struct {
	UserID       string
	MerchantName string
	MerchantID   int64
	ConnectionID string
	Metadata     map[string]any
}

// Validate checks the fields the store keys and overwrites on.
// MerchantName is case-sensitive and kept as received.
func (p UpsertParams) Validate() error {
	switch {
	case strings.TrimSpace(p.UserID) == "":
		return errors.Join(ErrInvalidInput, errors.New("user id is required"))
	case strings.TrimSpace(p.MerchantName) == "":
		return errors.Join(ErrInvalidInput, errors.New("merchant name is required"))
	case p.MerchantID <= 0:
		return errors.Join(ErrInvalidInput, errors.New("merchant id must be positive"))
	case strings.TrimSpace(p.ConnectionID) == "":
		return errors.Join(ErrInvalidInput, errors.New("connection id is required"))
	}
	return nil
}
