package resume

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, "v1", "r1")
	require.NoError(t, err)
	assert.Nil(t, got)

	pos := &Position{Fraction: 0.42, UpdatedAt: time.Now().UTC()}
	require.NoError(t, s.Put(ctx, "v1", "r1", pos))

	got, err = s.Get(ctx, "v1", "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.42, got.Fraction, 1e-9)
	assert.False(t, got.Watched)

	// Upsert overwrites.
	require.NoError(t, s.Put(ctx, "v1", "r1", &Position{Fraction: 0.9, Watched: true, UpdatedAt: time.Now().UTC()}))
	got, err = s.Get(ctx, "v1", "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.9, got.Fraction, 1e-9)
	assert.True(t, got.Watched)

	// Viewer isolation.
	got, err = s.Get(ctx, "v2", "r1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Delete(ctx, "v1", "r1"))
	got, err = s.Get(ctx, "v1", "r1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()
	testStoreRoundTrip(t, s)
}

func TestSqliteStore(t *testing.T) {
	s, err := NewSqliteStore(filepath.Join(t.TempDir(), "resume.sqlite"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	testStoreRoundTrip(t, s)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	pos := &Position{Fraction: 0.1}
	require.NoError(t, s.Put(ctx, "v1", "r1", pos))
	pos.Fraction = 0.99

	got, err := s.Get(ctx, "v1", "r1")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got.Fraction, 1e-9)
}

func TestMemoryStoreRejectsUseAfterClose(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "v1", "r1", &Position{Fraction: 0.5}))
	require.NoError(t, s.Close())

	// A controller teardown may still try to persist after the store is
	// closed; that must surface as an error, not a panic.
	err := s.Put(ctx, "v1", "r1", &Position{Fraction: 0.7})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Get(ctx, "v1", "r1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Delete(ctx, "v1", "r1"), ErrClosed)
}

func TestNewStoreFactory(t *testing.T) {
	s, err := NewStore("memory", "")
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
	_ = s.Close()

	s, err = NewStore("", "")
	require.NoError(t, err)
	_, ok = s.(*MemoryStore)
	assert.True(t, ok, "sqlite backend without a directory falls back to memory")
	_ = s.Close()

	s, err = NewStore("sqlite", t.TempDir())
	require.NoError(t, err)
	_, ok = s.(*SqliteStore)
	assert.True(t, ok)
	_ = s.Close()

	_, err = NewStore("bolt", "")
	assert.Error(t, err)
}
