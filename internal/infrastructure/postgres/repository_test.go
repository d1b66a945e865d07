package postgres

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlink/internal/domain/connection"
	"ledgerlink/internal/domain/servicedata"
	"ledgerlink/internal/domain/transaction"
	"ledgerlink/internal/domain/webhook"
	"ledgerlink/internal/infrastructure/crypto"
)

// testDB migrates and connects to TEST_DATABASE_URL, skipping the test when
// it is unset. Tables are emptied before and after each test.
func testDB(t *testing.T) *DB {
	t.Helper()

	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("Skipping Postgres-dependent test: TEST_DATABASE_URL not set")
	}

	require.NoError(t, Migrate(connStr))

	db, err := New(context.Background(), connStr, PoolConfig{})
	require.NoError(t, err)

	truncate := func() {
		_, err := db.ExecContext(context.Background(),
			`TRUNCATE connections, transactions, service_snapshots, webhook_events`)
		require.NoError(t, err)
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		_ = db.Close()
	})
	return db
}

func txParams(id, userID, amount string, pending bool) transaction.UpsertParams {
	return transaction.UpsertParams{
		TransactionID: id,
		UserID:        userID,
		Merchant:      "Netflix",
		Amount:        decimal.RequireFromString(amount),
		Date:          time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		CardType:      "visa",
		CardLast4:     "4242",
		Category:      "entertainment",
		IsPending:     pending,
	}
}

func TestConnectionRepository_UpsertIsIdempotent(t *testing.T) {
	repo := NewConnectionRepository(testDB(t))
	ctx := context.Background()

	first, err := repo.Upsert(ctx, connection.UpsertParams{
		UserID: "u1", MerchantName: "Netflix", MerchantID: 16, ConnectionID: "c-123",
	})
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	second, err := repo.Upsert(ctx, connection.UpsertParams{
		UserID: "u1", MerchantName: "Netflix", MerchantID: 16, ConnectionID: "c-456",
		Metadata: map[string]any{"scope": "full"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c-456", second.ConnectionID)
	assert.Equal(t, "full", second.Metadata["scope"])
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt), "created_at must survive the upsert")
	assert.False(t, second.ConnectedAt.Before(first.ConnectedAt))

	active, err := repo.ListActiveByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestConnectionRepository_Deactivate(t *testing.T) {
	repo := NewConnectionRepository(testDB(t))
	ctx := context.Background()

	found, err := repo.Deactivate(ctx, "u1", "Netflix")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = repo.Upsert(ctx, connection.UpsertParams{
		UserID: "u1", MerchantName: "Netflix", MerchantID: 16, ConnectionID: "c-123",
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		found, err = repo.Deactivate(ctx, "u1", "Netflix")
		require.NoError(t, err)
		assert.True(t, found)
	}

	conn, err := repo.Get(ctx, "u1", "Netflix")
	require.NoError(t, err)
	assert.False(t, conn.IsActive)

	active, err := repo.ListActiveByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = repo.Get(ctx, "u1", "Spotify")
	assert.ErrorIs(t, err, connection.ErrConnectionNotFound)
}

func TestTransactionRepository_DedupRoundTrip(t *testing.T) {
	repo := NewTransactionRepository(testDB(t))
	ctx := context.Background()

	created, isNew, err := repo.Upsert(ctx, txParams("tx-1", "u1", "15.49", true))
	require.NoError(t, err)
	assert.True(t, isNew)

	update := txParams("tx-1", "u1", "15.99", false)
	update.Merchant = "Renamed"
	updated, isNew, err := repo.Upsert(ctx, update)
	require.NoError(t, err)
	assert.False(t, isNew)

	assert.Equal(t, "15.99", updated.Amount.StringFixed(2))
	assert.False(t, updated.IsPending)
	assert.Equal(t, "Netflix", updated.Merchant)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "created_at must survive the upsert")

	stored, err := repo.GetByID(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "15.99", stored.Amount.StringFixed(2))

	list, err := repo.ListByUserID(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTransactionRepository_RefusesOtherUsersID(t *testing.T) {
	repo := NewTransactionRepository(testDB(t))
	ctx := context.Background()

	_, _, err := repo.Upsert(ctx, txParams("tx-1", "u1", "10.00", false))
	require.NoError(t, err)

	_, _, err = repo.Upsert(ctx, txParams("tx-1", "u2", "99.00", true))
	assert.ErrorIs(t, err, transaction.ErrOwnershipConflict)

	stored, err := repo.GetByID(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "10.00", stored.Amount.StringFixed(2))
}

func TestTransactionRepository_RejectsEmptyID(t *testing.T) {
	repo := NewTransactionRepository(testDB(t))

	_, _, err := repo.Upsert(context.Background(), txParams("", "u1", "1.00", false))
	require.Error(t, err)
	assert.NotErrorIs(t, err, transaction.ErrOwnershipConflict)
}

func TestSnapshotRepository_LastWriteWins(t *testing.T) {
	repo := NewSnapshotRepository(testDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, "u1", servicedata.ServiceNetflix)
	assert.ErrorIs(t, err, servicedata.ErrSnapshotNotFound)

	first, err := repo.Replace(ctx, "u1", servicedata.ServiceNetflix, []byte(`{"plan":"basic","profiles":1}`))
	require.NoError(t, err)

	second, err := repo.Replace(ctx, "u1", servicedata.ServiceNetflix, []byte(`{"plan":"premium"}`))
	require.NoError(t, err)
	assert.False(t, second.LastUpdated.Before(first.LastUpdated))

	got, err := repo.Get(ctx, "u1", servicedata.ServiceNetflix)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan":"premium"}`, string(got.Payload))
}

func TestWebhookEventRepository_EncryptsAndTracksStatus(t *testing.T) {
	db := testDB(t)
	encryptor, err := crypto.NewEncryptor("01234567890123456789012345678901")
	require.NoError(t, err)
	repo := NewWebhookEventRepository(db, encryptor)
	ctx := context.Background()

	body := `{"event":"connection.created","user_id":"u1"}`
	record := &webhook.EventRecord{
		ID:            uuid.NewString(),
		EventType:     "connection.created",
		UserID:        "u1",
		Merchant:      "Netflix",
		RawPayload:    []byte(body),
		SignatureHash: "abc",
		Status:        webhook.StatusPending,
		ReceivedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, record))
	assert.Error(t, repo.Create(ctx, record), "duplicate id must be refused")

	var stored string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT raw_payload FROM webhook_events WHERE id = $1`, record.ID).Scan(&stored))
	assert.NotContains(t, stored, "connection.created")

	got, err := repo.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, body, string(got.RawPayload))
	assert.Nil(t, got.ProcessedAt)

	require.NoError(t, repo.MarkFailed(ctx, record.ID, "store down"))
	failed, err := repo.ListByStatus(ctx, webhook.StatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "store down", failed[0].Error)
	assert.Equal(t, 1, failed[0].Attempts)

	require.NoError(t, repo.MarkProcessed(ctx, record.ID))
	got, err = repo.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, webhook.StatusProcessed, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.NotNil(t, got.ProcessedAt)

	assert.ErrorIs(t, repo.MarkProcessed(ctx, uuid.NewString()), webhook.ErrEventNotFound)
}

// TestRouter_NetflixScenario drives the connection lifecycle through the
// webhook router with every store on Postgres.
func TestRouter_NetflixScenario(t *testing.T) {
	db := testDB(t)
	encryptor, err := crypto.NewEncryptor("01234567890123456789012345678901")
	require.NoError(t, err)
	verifier, err := webhook.NewVerifier("whsec_postgres_test")
	require.NoError(t, err)

	conns := connection.NewService(NewConnectionRepository(db), nil)
	router := webhook.NewRouter(webhook.RouterDeps{
		Verifier:     verifier,
		Connections:  conns,
		Transactions: transaction.NewSynchronizer(NewTransactionRepository(db)),
		Snapshots:    servicedata.NewService(NewSnapshotRepository(db)),
		Events:       NewWebhookEventRepository(db, encryptor),
	})
	ctx := context.Background()

	deliver := func(event, body string) {
		t.Helper()
		d := webhook.Delivery{
			ContentLength:  strconv.Itoa(len(body)),
			ContentType:    "application/json",
			EncryptionType: "HMAC-SHA256",
			Body:           []byte(body),
		}
		d.Signature = verifier.Sign(webhook.SignatureInput{
			ContentLength:  d.ContentLength,
			ContentType:    d.ContentType,
			EncryptionType: d.EncryptionType,
			Event:          event,
		})
		outcome, err := router.Handle(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, webhook.OutcomeProcessed, outcome.Status)
	}

	created := `{"event":"connection.created","user_id":"u1","merchant":{"name":"Netflix","id":16},"data":{"connection_id":"c-123"}}`
	deliver("connection.created", created)
	deliver("connection.created", created)

	active, err := conns.ListActiveConnections(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(16), active[0].MerchantID)
	assert.Equal(t, "c-123", active[0].ConnectionID)

	deliver("connection.deleted", `{"event":"connection.deleted","user_id":"u1","merchant":{"name":"Netflix"}}`)

	conn, err := conns.GetConnection(ctx, "u1", "Netflix")
	require.NoError(t, err)
	assert.False(t, conn.IsActive)
}
