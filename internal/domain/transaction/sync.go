package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	syncMeter         = otel.Meter("ledgerlink/transaction")
	syncItemsTotal, _ = syncMeter.Int64Counter("transaction.sync.items.total",
		metric.WithDescription("Transactions processed by sync result"))
)

// maxAmount is the first value that no longer fits NUMERIC(14,2).
var maxAmount = decimal.New(1, 12)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// RawTransaction is one item of a transaction sync event as the provider
// sends it. Amount is kept raw so a malformed value only fails its own item.
type RawTransaction struct {
	ID          string          `json:"id" validate:"required"`
	Merchant    string          `json:"merchant"`
	Amount      json.RawMessage `json:"amount" validate:"required"`
	Date        string          `json:"date" validate:"required"`
	CardType    string          `json:"card_type"`
	CardLast4   string          `json:"card_last4" validate:"len=4,number"`
	Category    string          `json:"category"`
	Description *string         `json:"description"`
	IsPending   bool            `json:"is_pending"`
}

// Synchronizer applies provider transaction batches to the repository.
type Synchronizer struct {
	repo     Repository
	validate *validator.Validate
}

func NewSynchronizer(repo Repository) *Synchronizer {
	return &Synchronizer{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SyncTransactions upserts every item of the batch for userID. Items are
// isolated from each other: a malformed or unpersistable item is logged,
// counted as skipped and recorded in Failures while the rest continue.
// An error is only returned when the batch itself is unusable.
func (s *Synchronizer) SyncTransactions(ctx context.Context, userID string, items []RawTransaction) (*SyncResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("user id is required"))
	}

	result := &SyncResult{
		UserID:   userID,
		Received: len(items),
	}

	for i := range items {
		raw := &items[i]

		if err := ctx.Err(); err != nil {
			s.skip(ctx, result, i, raw.ID, fmt.Sprintf("batch aborted: %v", err))
			continue
		}

		params, err := s.toParams(userID, raw)
		if err != nil {
			s.skip(ctx, result, i, raw.ID, err.Error())
			continue
		}

		_, created, err := s.repo.Upsert(ctx, params)
		if err != nil {
			s.skip(ctx, result, i, raw.ID, fmt.Sprintf("failed to upsert: %v", err))
			continue
		}

		if created {
			result.Created++
			syncItemsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "created")))
		} else {
			result.Updated++
			syncItemsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "updated")))
		}
	}

	log.Printf("Transaction sync completed for user %s: received=%d, created=%d, updated=%d, skipped=%d",
		userID, result.Received, result.Created, result.Updated, result.Skipped)

	return result, nil
}

func (s *Synchronizer) skip(ctx context.Context, result *SyncResult, index int, id, reason string) {
	failure := ItemFailure{TransactionID: id, Index: index, Reason: reason}
	result.Skipped++
	result.Failures = append(result.Failures, failure)
	syncItemsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "skipped")))
	log.Printf("Skipping transaction for user %s: %v", result.UserID, failure)
}

// toParams validates one raw item and converts it into upsert params.
func (s *Synchronizer) toParams(userID string, in *RawTransaction) (UpsertParams, error) {
	// A blank id would collapse distinct items onto the empty key.
	raw := *in
	raw.ID = strings.TrimSpace(raw.ID)
	if err := s.validate.Struct(&raw); err != nil {
		return UpsertParams{}, describeValidation(err)
	}

	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return UpsertParams{}, err
	}

	date, err := ParseDate(raw.Date)
	if err != nil {
		return UpsertParams{}, err
	}

	var description *string
	if raw.Description != nil {
		if d := strings.TrimSpace(*raw.Description); d != "" {
			description = &d
		}
	}

	return UpsertParams{
		TransactionID: raw.ID,
		UserID:        userID,
		Merchant:      strings.TrimSpace(raw.Merchant),
		Amount:        amount,
		Date:          date,
		CardType:      strings.TrimSpace(raw.CardType),
		CardLast4:     raw.CardLast4,
		Category:      NormalizeCategory(raw.Category),
		Description:   description,
		IsPending:     raw.IsPending,
	}, nil
}

// ParseAmount accepts a JSON number or a numeric string and returns a
// non-negative amount rounded to cents.
func ParseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	if text == "" || text == "null" {
		return decimal.Decimal{}, errors.New("amount is required")
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q is not a number", text)
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("amount %s is negative", amount)
	}

	amount = amount.Round(2)
	if amount.GreaterThanOrEqual(maxAmount) {
		return decimal.Decimal{}, fmt.Errorf("amount %s is out of range", amount)
	}
	return amount, nil
}

// ParseDate accepts RFC 3339 timestamps and plain dates. Results are UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q is not a valid date", value)
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			reasons = append(reasons, fmt.Sprintf("%s is required", jsonName(fe.Field())))
		case "len", "number":
			reasons = append(reasons, fmt.Sprintf("%s must be exactly 4 digits", jsonName(fe.Field())))
		default:
			reasons = append(reasons, fmt.Sprintf("%s failed %s", jsonName(fe.Field()), fe.Tag()))
		}
	}
	return errors.New(strings.Join(reasons, "; "))
}

func jsonName(field string) string {
	switch field {
	case "ID":
		return "id"
	case "CardLast4":
		return "card_last4"
	default:
		return strings.ToLower(field)
	}
}
