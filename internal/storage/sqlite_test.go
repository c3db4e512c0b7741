package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "worklink.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "history", "a=1\nb=2"))
	v, found, err := s.Get(ctx, "history")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a=1\nb=2", v)

	// Upsert overwrites.
	require.NoError(t, s.Set(ctx, "history", "c=3"))
	v, found, err = s.Get(ctx, "history")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "c=3", v)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "worklink.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s2, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	v, found, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", v)
}
