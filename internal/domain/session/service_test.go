package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlink/internal/infrastructure/provider"
)

type MockProviderClient struct {
	CreateSessionFunc func(ctx context.Context, params provider.CreateSessionRequest) (*provider.CreateSessionResponse, error)
	calls             []provider.CreateSessionRequest
}

func (m *MockProviderClient) CreateSession(ctx context.Context, params provider.CreateSessionRequest) (*provider.CreateSessionResponse, error) {
	m.calls = append(m.calls, params)
	return m.CreateSessionFunc(ctx, params)
}

// failThen fails with errs in order, then succeeds.
func failThen(errs ...error) *MockProviderClient {
	return &MockProviderClient{
		CreateSessionFunc: func(ctx context.Context, params provider.CreateSessionRequest) (*provider.CreateSessionResponse, error) {
			if len(errs) > 0 {
				err := errs[0]
				errs = errs[1:]
				return nil, err
			}
			return &provider.CreateSessionResponse{SessionID: "sess-1"}, nil
		},
	}
}

func newTestService(client provider.ClientInterface, attempts int) (*Service, *[]time.Duration) {
	svc := NewService(client, RetryPolicy{MaxAttempts: attempts, Backoff: 100 * time.Millisecond})
	var waits []time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return svc, &waits
}

func TestCreate_CardSwitcherGetsSyntheticCardID(t *testing.T) {
	client := failThen()
	svc, _ := newTestService(client, 3)

	s, err := svc.Create(context.Background(), "u1", ProductCardSwitcher, " a@b.co ")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", s.ID)
	assert.Equal(t, ProductCardSwitcher, s.Type)
	_, err = uuid.Parse(s.CardID)
	assert.NoError(t, err)

	require.Len(t, client.calls, 1)
	assert.Equal(t, s.CardID, client.calls[0].CardID)
	assert.Equal(t, "u1", client.calls[0].ExternalUserID)
	assert.Equal(t, "a@b.co", client.calls[0].Email)
}

func TestCreate_TransactionLinkHasNoCardID(t *testing.T) {
	client := failThen()
	svc, _ := newTestService(client, 3)

	s, err := svc.Create(context.Background(), "u1", ProductTransactionLink, "")
	require.NoError(t, err)
	assert.Empty(t, s.CardID)
	assert.Empty(t, client.calls[0].CardID)
}

func TestCreate_RetriesTransientFailures(t *testing.T) {
	client := failThen(
		&provider.Error{Kind: provider.KindUnreachable},
		&provider.Error{Kind: provider.KindRejected, StatusCode: http.StatusServiceUnavailable},
	)
	svc, waits := newTestService(client, 3)

	s, err := svc.Create(context.Background(), "u1", ProductTransactionLink, "")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", s.ID)
	assert.Len(t, client.calls, 3)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *waits)
}

func TestCreate_DoesNotRetryPermanentFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"4xx", &provider.Error{Kind: provider.KindRejected, StatusCode: http.StatusUnauthorized}},
		{"malformed", &provider.Error{Kind: provider.KindMalformedResponse}},
		{"missing session", &provider.Error{Kind: provider.KindMissingSessionID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := failThen(tt.err, tt.err, tt.err)
			svc, waits := newTestService(client, 3)

			_, err := svc.Create(context.Background(), "u1", ProductTransactionLink, "")
			assert.ErrorIs(t, err, tt.err)
			assert.Len(t, client.calls, 1)
			assert.Empty(t, *waits)
		})
	}
}

func TestCreate_GivesUpAfterMaxAttempts(t *testing.T) {
	unreachable := &provider.Error{Kind: provider.KindUnreachable}
	client := failThen(unreachable, unreachable, unreachable, unreachable)
	svc, _ := newTestService(client, 3)

	_, err := svc.Create(context.Background(), "u1", ProductTransactionLink, "")
	assert.ErrorIs(t, err, provider.ErrUnreachable)
	assert.Len(t, client.calls, 3)
}

func TestCreate_StopsWhenContextCancelled(t *testing.T) {
	unreachable := &provider.Error{Kind: provider.KindUnreachable}
	client := failThen(unreachable, unreachable)
	svc := NewService(client, RetryPolicy{MaxAttempts: 3, Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Create(ctx, "u1", ProductTransactionLink, "")
	assert.ErrorIs(t, err, provider.ErrUnreachable)
	assert.Len(t, client.calls, 1)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(failThen(), 1)

	_, err := svc.Create(context.Background(), "", ProductCardSwitcher, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), "u1", ProductType("card_offers"), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
