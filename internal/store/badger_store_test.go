package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadgerStore(BadgerOptions{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, []byte("k"), []byte("v"), 0))
	got, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), []byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []byte("k"), []byte("v1"), 0))
	err := s.Add(ctx, []byte("k"), []byte("v2"), 0)
	assert.ErrorIs(t, err, ErrExists)
}

func TestDeleteRemovesKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, []byte("k"), []byte("v"), 0))
	require.NoError(t, s.Delete(ctx, []byte("k")))

	_, err := s.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, []byte("k"), []byte("v"), 0))
	ok, err = s.Exists(ctx, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTouchMissingKeyFails(t *testing.T) {
	s := newTestStore(t)
	err := s.Touch(context.Background(), []byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndexListsStoredKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, []byte("a"), []byte("1"), 0))
	require.NoError(t, s.Set(ctx, []byte("bb"), []byte("22"), 0))

	entries, err := s.Index(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byKey := map[string]uint32{}
	for _, e := range entries {
		byKey[string(e.Key)] = e.VLen
	}
	assert.Equal(t, uint32(1), byKey["a"])
	assert.Equal(t, uint32(2), byKey["bb"])
}

func TestEvictClearsHotCacheButNotDurableCopy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, []byte("k"), []byte("v"), 0))
	_, err := s.Get(ctx, []byte("k")) // warm the hot cache
	require.NoError(t, err)

	require.NoError(t, s.Evict(ctx, []byte("k")))

	got, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
