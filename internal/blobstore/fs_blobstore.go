// Package blobstore implements the Blob Store (§4.2): a hierarchical,
// conversation-scoped staging area on the local filesystem with atomic
// writes. The atomic-write discipline (temp file, then rename, best-effort
// cleanup on failure) is the local equivalent of the teacher's S3
// PutObject-then-confirm upload step.
package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/models"
)

// FSBlobStore implements core.BlobStore rooted at a base directory.
type FSBlobStore struct {
	base string
}

// NewFSBlobStore constructs a store rooted at base, creating it if absent.
func NewFSBlobStore(base string) (*FSBlobStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create blob store base: %w", err)
	}
	return &FSBlobStore{base: base}, nil
}

var _ core.BlobStore = (*FSBlobStore)(nil)

func (s *FSBlobStore) convDir(conversationID string) string {
	return filepath.Join(s.base, conversationID)
}

func (s *FSBlobStore) rawDir(conversationID string) string {
	return filepath.Join(s.convDir(conversationID), "raw")
}

func (s *FSBlobStore) extractedDir(conversationID string) string {
	return filepath.Join(s.convDir(conversationID), "extracted")
}

func (s *FSBlobStore) chunksPath(conversationID string) string {
	return filepath.Join(s.convDir(conversationID), "chunks", "chunks.json")
}

func (s *FSBlobStore) embeddingsPath(conversationID string) string {
	return filepath.Join(s.convDir(conversationID), "embeddings", "embeddings.json")
}

func (s *FSBlobStore) statePath(conversationID string) string {
	return filepath.Join(s.convDir(conversationID), "status.json")
}

// writeAtomic writes data to path via a {path}.tmp + rename, cleaning up
// the temp file best-effort on any failure. This is the atomicity
// invariant §8 property 3 depends on: no reader ever observes a partial
// file, because readers only ever see the name after the rename commits.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// PersistRaw writes each filing to raw/{fileName}, skipping files that
// already exist (§4.2 idempotence).
func (s *FSBlobStore) PersistRaw(ctx context.Context, conversationID string, docs []models.FilingDocument) error {
	dir := s.rawDir(conversationID)
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, d.FileName)
		ok, err := exists(path)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := writeAtomic(path, d.Content); err != nil {
			return fmt.Errorf("persist raw %s: %w", d.FileName, err)
		}
	}
	return nil
}

// ListRaw returns every file currently staged under raw/.
func (s *FSBlobStore) ListRaw(ctx context.Context, conversationID string) ([]core.RawBlob, error) {
	dir := s.rawDir(conversationID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []core.RawBlob
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, core.RawBlob{FileName: e.Name(), Data: data})
	}
	return out, nil
}

// WriteExtracted writes extracted/{fileName}.txt atomically.
func (s *FSBlobStore) WriteExtracted(ctx context.Context, conversationID, fileName, text string) error {
	path := filepath.Join(s.extractedDir(conversationID), fileName+".txt")
	return writeAtomic(path, []byte(text))
}

// ExtractedExists implements the per-file idempotence check of stage 1.
func (s *FSBlobStore) ExtractedExists(ctx context.Context, conversationID, fileName string) (bool, error) {
	return exists(filepath.Join(s.extractedDir(conversationID), fileName+".txt"))
}

func (s *FSBlobStore) ReadExtracted(ctx context.Context, conversationID, fileName string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.extractedDir(conversationID), fileName+".txt"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteChunks writes the whole chunks.json artifact atomically.
func (s *FSBlobStore) WriteChunks(ctx context.Context, conversationID string, chunks []models.DocumentChunk) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return err
	}
	return writeAtomic(s.chunksPath(conversationID), data)
}

func (s *FSBlobStore) ChunksExist(ctx context.Context, conversationID string) (bool, error) {
	return exists(s.chunksPath(conversationID))
}

func (s *FSBlobStore) ReadChunks(ctx context.Context, conversationID string) ([]models.DocumentChunk, error) {
	data, err := os.ReadFile(s.chunksPath(conversationID))
	if err != nil {
		return nil, err
	}
	var chunks []models.DocumentChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("%w: chunks.json: %v", core.ErrStateCorrupt, err)
	}
	return chunks, nil
}

// WriteEmbeddings writes the whole embeddings.json artifact atomically.
// This is the expensive-to-recompute artifact (§4.4 stage 3); it is
// written exactly once, in full, never incrementally.
func (s *FSBlobStore) WriteEmbeddings(ctx context.Context, conversationID string, embeddings []models.ChunkEmbedding) error {
	data, err := json.Marshal(embeddings)
	if err != nil {
		return err
	}
	return writeAtomic(s.embeddingsPath(conversationID), data)
}

func (s *FSBlobStore) EmbeddingsExist(ctx context.Context, conversationID string) (bool, error) {
	return exists(s.embeddingsPath(conversationID))
}

func (s *FSBlobStore) ReadEmbeddings(ctx context.Context, conversationID string) ([]models.ChunkEmbedding, error) {
	data, err := os.ReadFile(s.embeddingsPath(conversationID))
	if err != nil {
		return nil, err
	}
	var embeddings []models.ChunkEmbedding
	if err := json.Unmarshal(data, &embeddings); err != nil {
		return nil, fmt.Errorf("%w: embeddings.json: %v", core.ErrStateCorrupt, err)
	}
	return embeddings, nil
}

// WriteState (re)writes status.json atomically.
func (s *FSBlobStore) WriteState(ctx context.Context, state *models.BatchProcessingState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(s.statePath(state.ConversationID), data)
}

// ReadState deserializes status.json. A missing file is ErrStateMissing
// for every caller; the ingestion handler writes the initial file.
func (s *FSBlobStore) ReadState(ctx context.Context, conversationID string) (*models.BatchProcessingState, error) {
	data, err := os.ReadFile(s.statePath(conversationID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ErrStateMissing
		}
		return nil, err
	}
	var state models.BatchProcessingState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: status.json: %v", core.ErrStateCorrupt, err)
	}
	return &state, nil
}
