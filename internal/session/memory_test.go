package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerline-backend/internal/models"
)

func TestGenerateToken(t *testing.T) {
	first, err := GenerateToken()
	require.NoError(t, err)
	second, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first, TokenPrefix))
	assert.Len(t, first, len(TokenPrefix)+tokenLength*2)
	assert.NotEqual(t, first, second)
}

func TestMemoryStoreCreateGetDestroy(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	sess := &models.Session{
		UserID:  "u-1",
		Name:    "Alice",
		Email:   "a@acme.com",
		OrgID:   "org-1",
		OrgName: "Acme",
		Role:    "admin",
	}

	token, err := store.Create(ctx, sess)
	require.NoError(t, err)

	got, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	require.NoError(t, store.Destroy(ctx, token))

	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUnknownToken(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	_, err := store.Get(context.Background(), "ll_sess_nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()

	token, err := store.Create(ctx, &models.Session{UserID: "u-1"})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSnapshotIsImmutable(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	sess := &models.Session{UserID: "u-1", Name: "Alice"}
	token, err := store.Create(ctx, sess)
	require.NoError(t, err)

	// Mutating the original or a returned copy must not leak into the store.
	sess.Name = "Mallory"
	got, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	got.Name = "Eve"
	again, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Name)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(5 * time.Millisecond)
	ctx := context.Background()

	token, err := store.Create(ctx, &models.Session{UserID: "u-1"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	store.sweepOnce()

	store.mu.RLock()
	_, ok := store.sessions[token]
	store.mu.RUnlock()
	assert.False(t, ok)
}
