package servicedata

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSnapshotRepo struct {
	ReplaceFunc func(ctx context.Context, userID string, service ServiceName, payload []byte) (*Snapshot, error)
	GetFunc     func(ctx context.Context, userID string, service ServiceName) (*Snapshot, error)
}

func (m *MockSnapshotRepo) Replace(ctx context.Context, userID string, service ServiceName, payload []byte) (*Snapshot, error) {
	return m.ReplaceFunc(ctx, userID, service, payload)
}

func (m *MockSnapshotRepo) Get(ctx context.Context, userID string, service ServiceName) (*Snapshot, error) {
	return m.GetFunc(ctx, userID, service)
}

func keyedRepo() *MockSnapshotRepo {
	var mu sync.Mutex
	rows := map[string]*Snapshot{}
	return &MockSnapshotRepo{
		ReplaceFunc: func(ctx context.Context, userID string, service ServiceName, payload []byte) (*Snapshot, error) {
			mu.Lock()
			defer mu.Unlock()
			snap := &Snapshot{UserID: userID, ServiceName: service, Payload: payload, LastUpdated: time.Now()}
			rows[userID+"|"+string(service)] = snap
			return snap, nil
		},
		GetFunc: func(ctx context.Context, userID string, service ServiceName) (*Snapshot, error) {
			mu.Lock()
			defer mu.Unlock()
			snap, ok := rows[userID+"|"+string(service)]
			if !ok {
				return nil, ErrSnapshotNotFound
			}
			return snap, nil
		},
	}
}

func TestParseServiceName(t *testing.T) {
	got, err := ParseServiceName(" DoorDash ")
	require.NoError(t, err)
	assert.Equal(t, ServiceDoorDash, got)

	_, err = ParseServiceName("hulu")
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(ServiceNetflix, json.RawMessage(`{"recently_watched":[{"name":"Dark","watched_at":"2024-03-01T20:00:00Z"}],"extra":true}`))
	require.NoError(t, err)

	netflix, ok := p.(*NetflixActivity)
	require.True(t, ok)
	require.Len(t, netflix.RecentlyWatched, 1)
	assert.Equal(t, "Dark", netflix.RecentlyWatched[0].Name)

	_, err = DecodePayload(ServiceSpotify, json.RawMessage(`{"top_artists":"not a list"}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = DecodePayload(ServiceUber, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = DecodePayload("hulu", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestReplaceSnapshot_LastWriteWins(t *testing.T) {
	svc := NewService(keyedRepo())
	ctx := context.Background()

	_, err := svc.ReplaceSnapshot(ctx, "u1", &SpotifyActivity{TopArtists: []string{"Björk"}, Plan: "family"})
	require.NoError(t, err)

	_, err = svc.ReplaceSnapshot(ctx, "u1", &SpotifyActivity{TopGenres: []string{"jazz"}})
	require.NoError(t, err)

	snap, err := svc.GetSnapshot(ctx, "u1", ServiceSpotify)
	require.NoError(t, err)

	var stored SpotifyActivity
	require.NoError(t, json.Unmarshal(snap.Payload, &stored))
	assert.Empty(t, stored.TopArtists, "previous payload must not be merged")
	assert.Empty(t, stored.Plan)
	assert.Equal(t, []string{"jazz"}, stored.TopGenres)
}

func TestReplaceSnapshot_Validation(t *testing.T) {
	svc := NewService(keyedRepo())

	_, err := svc.ReplaceSnapshot(context.Background(), "", &UberActivity{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ReplaceSnapshot(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetSnapshot_NotFound(t *testing.T) {
	_, err := NewService(keyedRepo()).GetSnapshot(context.Background(), "u1", ServiceAmazon)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
