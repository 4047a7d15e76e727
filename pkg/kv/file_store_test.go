package kv

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 0)
	assert.NoError(t, err)

	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, store.Set(ctx, "sanctuary:conversations", `[{"id":"a"}]`))

	val, found, err := store.Get(ctx, "sanctuary:conversations")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":"a"}]`, val)

	// Whole-value replace, not append
	assert.NoError(t, store.Set(ctx, "sanctuary:conversations", `[]`))
	val, _, _ = store.Get(ctx, "sanctuary:conversations")
	assert.Equal(t, `[]`, val)
}

func TestFileStoreQuota(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 16)
	assert.NoError(t, err)

	ctx := context.Background()

	assert.NoError(t, store.Set(ctx, "k", "small"))

	err = store.Set(ctx, "k", strings.Repeat("x", 17))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// The previous value survives a refused write.
	val, found, err := store.Get(ctx, "k")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "small", val)
}

func TestFileStoreDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 0)
	assert.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, store.Set(ctx, "k", "v"))
	assert.NoError(t, store.Delete(ctx, "k"))
	assert.NoError(t, store.Delete(ctx, "k")) // idempotent

	_, found, _ := store.Get(ctx, "k")
	assert.False(t, found)
}
