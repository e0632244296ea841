package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/models"
)

func newStore(t *testing.T) *FSBlobStore {
	t.Helper()
	s, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestPersistRaw_SkipsExisting(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	docs := []models.FilingDocument{{FileName: "a.htm", Content: []byte("first")}}

	require.NoError(t, s.PersistRaw(ctx, "conv1", docs))

	// Second persist with different content must NOT overwrite.
	docs[0].Content = []byte("second")
	require.NoError(t, s.PersistRaw(ctx, "conv1", docs))

	raw, err := s.ListRaw(ctx, "conv1")
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "first", string(raw[0].Data))
}

func TestWriteAtomic_NoPartialFileVisible(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks", "chunks.json")

	require.NoError(t, writeAtomic(path, []byte(`{"ok":true}`)))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, filepath.Ext(e.Name()) == ".tmp", "leftover tmp file: %s", e.Name())
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestChunksExist_WholeArtifactSkip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ok, err := s.ChunksExist(ctx, "conv1")
	require.NoError(t, err)
	assert.False(t, ok)

	chunks := []models.DocumentChunk{{SourceDocument: "a.htm", ChunkIndex: 0, Text: "hello", StartOffset: 0, EndOffset: 5}}
	require.NoError(t, s.WriteChunks(ctx, "conv1", chunks))

	ok, err = s.ChunksExist(ctx, "conv1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.ReadChunks(ctx, "conv1")
	require.NoError(t, err)
	assert.Equal(t, chunks, got)
}

func TestReadState_MissingIsErrStateMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.ReadState(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStateCorrupt)
	assert.ErrorIs(t, err, core.ErrStateMissing)
}

func TestWriteState_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	state := &models.BatchProcessingState{
		ConversationID: "conv1",
		UserID:         "user1",
		Status:         models.StatusDownloading,
	}
	require.NoError(t, s.WriteState(ctx, state))

	got, err := s.ReadState(ctx, "conv1")
	require.NoError(t, err)
	assert.Equal(t, state.Status, got.Status)
	assert.Equal(t, state.UserID, got.UserID)
}

func TestExtractedExists_PerFileIdempotence(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ok, err := s.ExtractedExists(ctx, "conv1", "a.htm")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WriteExtracted(ctx, "conv1", "a.htm", "extracted text"))

	ok, err = s.ExtractedExists(ctx, "conv1", "a.htm")
	require.NoError(t, err)
	assert.True(t, ok)

	text, err := s.ReadExtracted(ctx, "conv1", "a.htm")
	require.NoError(t, err)
	assert.Equal(t, "extracted text", text)
}
