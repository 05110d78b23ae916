package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_UpdateRetrieveDelete(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	ok, err := b.Verify(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Update(ctx, "k1", map[string]any{"processed_records": []any{1, 2}}))

	ok, err = b.Verify(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := b.Retrieve(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, rec["processed_records"])

	keys, err := b.RetrieveKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, keys)

	require.NoError(t, b.Delete(ctx, "k1"))
	rec, err = b.Retrieve(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryBackend_DeleteAll(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Update(ctx, "a", map[string]any{}))
	require.NoError(t, b.Update(ctx, "b", map[string]any{}))

	require.NoError(t, b.DeleteAll(ctx))

	keys, err := b.RetrieveKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryBackend_IsAvailable(t *testing.T) {
	b := NewMemoryBackend()
	assert.True(t, b.IsAvailable(context.Background()))
}

func TestNullBackend_NeverStores(t *testing.T) {
	ctx := context.Background()
	b := NewNullBackend()

	require.NoError(t, b.Update(ctx, "k", map[string]any{"x": 1}))

	rec, err := b.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, rec)

	ok, err := b.Verify(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.False(t, b.IsAvailable(ctx))
}

// backendConformance asserts any Backend implementation satisfies the
// same observable contract, so swapping backends never changes
// cachemgr.Manager's behavior.
func backendConformance(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, b.Update(ctx, "conformance-key", map[string]any{"v": "x"}))
	rec, err := b.Retrieve(ctx, "conformance-key")
	require.NoError(t, err)
	assert.Equal(t, "x", rec["v"])

	ok, err := b.Verify(ctx, "conformance-key")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.Delete(ctx, "conformance-key"))
	ok, err = b.Verify(ctx, "conformance-key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackend_Conformance(t *testing.T) {
	backendConformance(t, NewMemoryBackend())
}
