package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmcopilot/internal/vectorstore"
)

func newTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewStorage(context.Background(), Config{Addr: mr.Addr(), KeyPrefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()

	want := vectorstore.Artifacts{ID: "c1", Index: []byte{0, 1, 2, 255}, Chunks: []string{"one", "two"}}
	require.NoError(t, s.Save(ctx, want))
	assert.True(t, mr.Exists("test:index"))
	assert.True(t, mr.Exists("test:chunks"))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissing(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, vectorstore.ErrNoArtifacts)

	require.NoError(t, s.Save(ctx, vectorstore.Artifacts{ID: "c1", Index: []byte{1}, Chunks: []string{"a"}}))
	mr.Del("test:chunks")
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, vectorstore.ErrNoArtifacts)
}

func TestNewStorageUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewStorage(context.Background(), Config{Addr: addr})
	assert.Error(t, err)
}

func TestSaveReplacesBothKeys(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, vectorstore.Artifacts{ID: "old", Index: []byte{1}, Chunks: []string{"a"}}))
	want := vectorstore.Artifacts{ID: "new", Index: []byte{2}, Chunks: []string{"b", "c"}}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
