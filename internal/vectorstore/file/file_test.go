package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmcopilot/internal/vectorstore"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(filepath.Join(dir, "data"))
	require.NoError(t, err)

	want := vectorstore.Artifacts{ID: "c1", Index: []byte{1, 2, 3}, Chunks: []string{"first", "second"}}
	require.NoError(t, s.Save(context.Background(), want))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = os.Stat(filepath.Join(dir, "data", "CURRENT.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMissing(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, vectorstore.ErrNoArtifacts)
}

func TestLoadMissingChunks(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), vectorstore.Artifacts{ID: "c1", Index: []byte{1}, Chunks: []string{"a"}}))
	require.NoError(t, os.Remove(filepath.Join(dir, "corpus-c1", "chunks.json")))

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, vectorstore.ErrNoArtifacts)
}

func TestSaveOverwritesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, vectorstore.Artifacts{ID: "old", Index: []byte{1}, Chunks: []string{"a", "b"}}))
	require.NoError(t, s.Save(ctx, vectorstore.Artifacts{ID: "new", Index: []byte{2}, Chunks: []string{"c"}}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)
	assert.Equal(t, []byte{2}, got.Index)
	assert.Equal(t, []string{"c"}, got.Chunks)

	_, err = os.Stat(filepath.Join(dir, "corpus-old"))
	assert.True(t, os.IsNotExist(err))
}

func TestFailedChunkWriteKeepsPreviousPair(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()
	prev := vectorstore.Artifacts{ID: "prev", Index: []byte{1, 1}, Chunks: []string{"aaaa", "bbbb"}}
	require.NoError(t, s.Save(ctx, prev))

	// a non-empty directory where the chunk file goes makes the second write fail
	blocker := filepath.Join(dir, "corpus-next", "chunks.json")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "x"), 0o755))

	err = s.Save(ctx, vectorstore.Artifacts{ID: "next", Index: []byte{2, 2}, Chunks: []string{"zzzz", "yyyy"}})
	require.Error(t, err)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, prev, got)
}

func TestSaveRejectsBadID(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	for _, id := range []string{"", "..", "a/b"} {
		assert.Error(t, s.Save(context.Background(), vectorstore.Artifacts{ID: id, Index: []byte{1}}))
	}
}
