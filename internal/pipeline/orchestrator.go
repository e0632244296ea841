// Package pipeline drives a single ingestion batch through five
// monotonically ordered, independently retried and checkpointed stages,
// adapted from the teacher's internal/core/ingestion_engine package. The
// teacher's single extract-chunk-embed errgroup chain per document is
// generalized here into a conversation-scoped batch with per-stage
// whole-artifact and per-file checkpoints on the Blob Store.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/models"
)

// stageLockTimeout bounds the stage-4 single-instance lock per §4.4.
const stageLockTimeout = 300 * time.Second

// Orchestrator wires the external collaborators into the five-stage
// ingestion flow. Start/Enqueue follow the teacher's DocumentIngestor
// worker-pool shape (a buffered jobs channel drained by N goroutines).
type Orchestrator struct {
	fetcher    core.ArchiveFetcher
	blob       core.BlobStore
	extractor  core.DocumentExtractor
	chunker    core.Chunker
	embedder   core.EmbeddingProvider
	vectors    core.VectorStore
	convStore  core.ConversationStore
	progress   core.ProgressBus
	embedBatch int
	jobs       chan string
	stageLocks singleflight.Group
}

// New constructs an Orchestrator with a bounded job queue (64), same
// capacity as the teacher's NewDocumentIngestor.
func New(fetcher core.ArchiveFetcher, blob core.BlobStore, extractor core.DocumentExtractor, chunker core.Chunker, embedder core.EmbeddingProvider, vectors core.VectorStore, convStore core.ConversationStore, progress core.ProgressBus, embedBatch int) *Orchestrator {
	if embedBatch <= 0 {
		embedBatch = 16
	}
	return &Orchestrator{
		fetcher:    fetcher,
		blob:       blob,
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		vectors:    vectors,
		convStore:  convStore,
		progress:   progress,
		embedBatch: embedBatch,
		jobs:       make(chan string, 64),
	}
}

// Start runs numWorkers goroutines draining the job queue, each calling
// RunBatch for the conversation id it receives.
func (o *Orchestrator) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("pipeline: worker %d shutting down", w)
					return
				case conversationID := <-o.jobs:
					if err := o.RunBatch(ctx, conversationID); err != nil {
						log.Printf("pipeline: batch %s failed: %v", conversationID, err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a conversation id for ingestion. Blocks if the queue
// is full, same backpressure as the teacher's Enqueue.
func (o *Orchestrator) Enqueue(conversationID string) {
	o.jobs <- conversationID
}

// RunBatch loads durable state for conversationID and drives it through
// whichever stages remain, honoring crash-safe resume: a restart re-reads
// status.json and each stage's own idempotence check decides whether to
// redo work.
func (o *Orchestrator) RunBatch(ctx context.Context, conversationID string) error {
	state, err := o.blob.ReadState(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load state for %s: %w", conversationID, err)
	}

	stages := []struct {
		target models.IngestionStatus
		run    func(context.Context, *models.BatchProcessingState) error
	}{
		{models.StatusDownloading, o.stageDownload},
		{models.StatusExtracting, o.stageExtract},
		{models.StatusChunking, o.stageChunk},
		{models.StatusGeneratingEmbeddings, o.stageEmbed},
		{models.StatusPersistingEmbeddings, o.stagePersist},
	}

	for _, s := range stages {
		if order[state.Status] > order[s.target] {
			continue // already past this stage from a prior run
		}
		if err := o.runStage(ctx, state, s.target, s.run); err != nil {
			return err
		}
	}

	state.Status = models.StatusCompleted
	now := clockNow()
	completedAt := now
	state.CompletedAt = &completedAt
	if err := o.blob.WriteState(ctx, state); err != nil {
		return fmt.Errorf("persist completed state: %w", err)
	}
	if err := o.convStore.UpdateIngestionStatus(ctx, conversationID, models.StatusCompleted); err != nil {
		log.Printf("pipeline: mirror completed status for %s: %v", conversationID, err)
	}
	total := len(state.Documents)
	o.progress.Publish(conversationID, core.ProgressEvent{
		Kind:                core.EventCompletion,
		TotalDocuments:      &total,
		SuccessfulDocuments: total,
		Timestamp:           now.UnixMilli(),
	})
	return nil
}

// runStage transitions state into the stage-in-progress status, persists
// it, runs the stage body under its retry policy, and on failure writes
// Failed + emits an error event before propagating.
func (o *Orchestrator) runStage(ctx context.Context, state *models.BatchProcessingState, target models.IngestionStatus, body func(context.Context, *models.BatchProcessingState) error) error {
	// Resuming a crashed run re-enters the stage it was last in; that is
	// not a transition (status is already at target), just a retry.
	if state.Status != target {
		if err := transitionTo(state.Status, target); err != nil {
			return err
		}
		state.Status = target
		if err := o.blob.WriteState(ctx, state); err != nil {
			return fmt.Errorf("persist state before stage %s: %w", target, err)
		}
	}
	o.emitProgress(state, target, progressStart(target))

	policy := policyFor(target)
	runErr := policy.run(ctx, func(ctx context.Context) error {
		return body(ctx, state)
	})
	if runErr != nil {
		state.Status = models.StatusFailed
		state.ErrorMessage = runErr.Error()
		_ = o.blob.WriteState(ctx, state)
		if err := o.convStore.UpdateIngestionStatus(ctx, state.ConversationID, models.StatusFailed); err != nil {
			log.Printf("pipeline: mirror failed status for %s: %v", state.ConversationID, err)
		}
		o.progress.Publish(state.ConversationID, core.ProgressEvent{
			Kind:         core.EventError,
			Stage:        string(target),
			ErrorMessage: runErr.Error(),
			Timestamp:    clockNow().UnixMilli(),
		})
		return fmt.Errorf("stage %s: %w", target, runErr)
	}

	o.emitProgress(state, target, progressEnd(target))
	return nil
}

func (o *Orchestrator) emitProgress(state *models.BatchProcessingState, stage models.IngestionStatus, pct int) {
	processed := len(state.Documents)
	total := len(state.Documents)
	o.progress.Publish(state.ConversationID, core.ProgressEvent{
		Kind:               core.EventProgressUpdate,
		Stage:              string(stage),
		ProgressPercent:    pct,
		DocumentsProcessed: &processed,
		TotalDocuments:     &total,
		Timestamp:          clockNow().UnixMilli(),
	})
}

func policyFor(stage models.IngestionStatus) retryPolicy {
	switch stage {
	case models.StatusDownloading:
		return downloadRetry
	case models.StatusExtracting:
		return extractRetry
	case models.StatusChunking:
		return chunkRetry
	case models.StatusGeneratingEmbeddings:
		return embedRetry
	case models.StatusPersistingEmbeddings:
		return persistRetry
	default:
		return retryPolicy{maxAttempts: 1}
	}
}

// progressStart/progressEnd implement the suggested milestone table of
// §4.5: Downloading 10->20, Extracting 30->40, Chunking 50->60,
// GeneratingEmbeddings 70->80, PersistingEmbeddings 90->100.
func progressStart(stage models.IngestionStatus) int {
	switch stage {
	case models.StatusDownloading:
		return 10
	case models.StatusExtracting:
		return 30
	case models.StatusChunking:
		return 50
	case models.StatusGeneratingEmbeddings:
		return 70
	case models.StatusPersistingEmbeddings:
		return 90
	default:
		return 0
	}
}

func progressEnd(stage models.IngestionStatus) int {
	switch stage {
	case models.StatusDownloading:
		return 20
	case models.StatusExtracting:
		return 40
	case models.StatusChunking:
		return 60
	case models.StatusGeneratingEmbeddings:
		return 80
	case models.StatusPersistingEmbeddings:
		return 100
	default:
		return 0
	}
}

// stageDownload fetches filings for state.CompanyIdentifier and persists
// them to raw/, recording each as an IngestedDocumentRef on state.
func (o *Orchestrator) stageDownload(ctx context.Context, state *models.BatchProcessingState) error {
	docs, err := o.fetcher.DownloadFilings(ctx, state.CompanyIdentifier, state.FilingTypes)
	if err != nil {
		return fmt.Errorf("download filings: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("%w: company %s", core.ErrNoFilingsFound, state.CompanyIdentifier)
	}

	if err := o.blob.PersistRaw(ctx, state.ConversationID, docs); err != nil {
		return fmt.Errorf("persist raw filings: %w", err)
	}

	refs := make([]models.IngestedDocumentRef, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, models.IngestedDocumentRef{
			FileName:        d.FileName,
			FilingType:      d.FilingType,
			AccessionNumber: d.AccessionNumber,
			FilingDate:      d.FilingDate,
		})
	}
	state.Documents = refs
	return o.blob.WriteState(ctx, state)
}

// stageExtract converts each raw file to normalized text, per-file
// idempotent via ExtractedExists.
func (o *Orchestrator) stageExtract(ctx context.Context, state *models.BatchProcessingState) error {
	raws, err := o.blob.ListRaw(ctx, state.ConversationID)
	if err != nil {
		return fmt.Errorf("list raw: %w", err)
	}

	for _, raw := range raws {
		exists, err := o.blob.ExtractedExists(ctx, state.ConversationID, raw.FileName)
		if err != nil {
			return fmt.Errorf("check extracted %s: %w", raw.FileName, err)
		}
		if exists {
			continue
		}
		text, err := o.extractor.ExtractText(ctx, raw.FileName, raw.Data)
		if err != nil {
			return fmt.Errorf("extract %s: %w", raw.FileName, err)
		}
		if err := o.blob.WriteExtracted(ctx, state.ConversationID, raw.FileName, text); err != nil {
			return fmt.Errorf("write extracted %s: %w", raw.FileName, err)
		}
	}
	return nil
}

// stageChunk is a whole-artifact skip: if chunks.json exists, chunking
// from this run is a no-op. Otherwise it chunks every extracted text and
// anchors offsets back into the source per §4.4's indexOf algorithm.
func (o *Orchestrator) stageChunk(ctx context.Context, state *models.BatchProcessingState) error {
	exists, err := o.blob.ChunksExist(ctx, state.ConversationID)
	if err != nil {
		return fmt.Errorf("check chunks artifact: %w", err)
	}
	if exists {
		return nil
	}

	var all []models.DocumentChunk
	for _, ref := range state.Documents {
		text, err := o.blob.ReadExtracted(ctx, state.ConversationID, ref.FileName)
		if err != nil {
			return fmt.Errorf("read extracted %s: %w", ref.FileName, err)
		}
		all = append(all, anchorChunks(ref.FileName, text, o.chunker.Chunk(text))...)
	}

	return o.blob.WriteChunks(ctx, state.ConversationID, all)
}

// anchorChunks implements the stage-2 offset computation: start_i =
// indexOf(T, text(c_i), min(cursor, len(T))), falling back to
// min(cursor, len(T)) when not found, and advancing the cursor to end_i
// regardless of outcome.
func anchorChunks(sourceDocument, text string, chunks []core.ChunkedText) []models.DocumentChunk {
	out := make([]models.DocumentChunk, 0, len(chunks))
	cursor := 0
	for _, c := range chunks {
		searchFrom := cursor
		if searchFrom > len(text) {
			searchFrom = len(text)
		}
		start := strings.Index(text[searchFrom:], c.Text)
		if start < 0 {
			start = searchFrom
		} else {
			start += searchFrom
		}
		end := start + len(c.Text)
		cursor = end

		out = append(out, models.DocumentChunk{
			SourceDocument: sourceDocument,
			ChunkIndex:     c.Index,
			Text:           c.Text,
			StartOffset:    start,
			EndOffset:      end,
		})
	}
	return out
}

// stageEmbed is a whole-artifact skip: embeddings are the expensive,
// cost-bearing stage, so retrying a batch that already has
// embeddings.json must not spend money again.
func (o *Orchestrator) stageEmbed(ctx context.Context, state *models.BatchProcessingState) error {
	exists, err := o.blob.EmbeddingsExist(ctx, state.ConversationID)
	if err != nil {
		return fmt.Errorf("check embeddings artifact: %w", err)
	}
	if exists {
		return nil
	}

	chunks, err := o.blob.ReadChunks(ctx, state.ConversationID)
	if err != nil {
		return fmt.Errorf("read chunks: %w", err)
	}

	var out []models.ChunkEmbedding
	for start := 0; start < len(chunks); start += o.embedBatch {
		end := start + o.embedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("%w: embed batch returned %d vectors for %d inputs", core.ErrProviderFailure, len(vectors), len(batch))
		}
		for i, c := range batch {
			out = append(out, models.ChunkEmbedding{DocumentChunk: c, Embedding: vectors[i]})
		}
	}

	return o.blob.WriteEmbeddings(ctx, state.ConversationID, out)
}

// stagePersist upserts embedding rows into the Vector Store, serialized
// per conversation by a 300s single-instance lock (§4.4).
func (o *Orchestrator) stagePersist(ctx context.Context, state *models.BatchProcessingState) error {
	lockCtx, cancel := context.WithTimeout(ctx, stageLockTimeout)
	defer cancel()

	_, err, _ := o.stageLocks.Do(state.ConversationID, func() (any, error) {
		return nil, o.persistEmbeddings(lockCtx, state)
	})
	return err
}

func (o *Orchestrator) persistEmbeddings(ctx context.Context, state *models.BatchProcessingState) error {
	chunkEmbeddings, err := o.blob.ReadEmbeddings(ctx, state.ConversationID)
	if err != nil {
		return fmt.Errorf("read embeddings: %w", err)
	}

	items := make([]models.Embedding, 0, len(chunkEmbeddings))
	for _, ce := range chunkEmbeddings {
		items = append(items, models.Embedding{
			ID:                fmt.Sprintf("%s:%s:%d", state.ConversationID, ce.SourceDocument, ce.ChunkIndex),
			Text:              ce.Text,
			Vector:            ce.Embedding,
			DocumentID:        ce.SourceDocument,
			DocumentTitle:     ce.SourceDocument,
			Owner:             models.OwnerUserDocument,
			UserScope:         state.UserID,
			ConversationScope: state.ConversationID,
			ChunkIndex:        ce.ChunkIndex,
			ChunkHash:         contentHash(ce.Text),
		})
	}

	return o.vectors.UpsertEmbeddings(ctx, items)
}

// clockNow is the single time.Now() call site in the orchestrator, kept
// narrow so tests can observe it is the only source of wall-clock
// nondeterminism in the stage chain.
func clockNow() time.Time {
	return time.Now().UTC()
}
