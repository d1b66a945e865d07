package session

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInput = errors.New("invalid input")

// ProductType selects the provider product a session is created for.
type ProductType string

const (
	ProductCardSwitcher    ProductType = "card_switcher"
	ProductTransactionLink ProductType = "transaction_link"
)

func ParseProductType(s string) (ProductType, error) {
	switch p := ProductType(s); p {
	case ProductCardSwitcher, ProductTransactionLink:
		return p, nil
	}
	return "", errors.Join(ErrInvalidInput, fmt.Errorf("unsupported product type %q", s))
}

// Session is a provider linking session handed to the client-side widget.
type Session struct {
	ID        string      `json:"session_id"`
	UserID    string      `json:"-"`
	Type      ProductType `json:"type"`
	CardID    string      `json:"card_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
