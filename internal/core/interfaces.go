// Package core defines the external-collaborator interfaces (§6) that the
// ingestion and retrieval core depends on, and the sentinel error kinds
// (§7) it surfaces. Concrete adapters live in sibling packages
// (fetcher, blobstore, llm, vectorstore, progressbus, identity).
package core

import (
	"context"

	"github.com/contexta-labs/filingsrag/internal/models"
)

// ArchiveFetcher resolves a company identifier to a set of filings and
// downloads their raw bytes, honoring the archive's rate and etiquette
// rules (§4.1).
type ArchiveFetcher interface {
	DownloadFilings(ctx context.Context, companyIdentifier string, filingTypes []string) ([]models.FilingDocument, error)
}

// BlobStore provides the hierarchical, conversation-scoped staging area
// described in §4.2. Every write must be atomic (temp file + rename).
type BlobStore interface {
	PersistRaw(ctx context.Context, conversationID string, docs []models.FilingDocument) error
	WriteExtracted(ctx context.Context, conversationID, fileName, text string) error
	ExtractedExists(ctx context.Context, conversationID, fileName string) (bool, error)
	ReadExtracted(ctx context.Context, conversationID, fileName string) (string, error)
	ListRaw(ctx context.Context, conversationID string) ([]RawBlob, error)

	WriteChunks(ctx context.Context, conversationID string, chunks []models.DocumentChunk) error
	ChunksExist(ctx context.Context, conversationID string) (bool, error)
	ReadChunks(ctx context.Context, conversationID string) ([]models.DocumentChunk, error)

	WriteEmbeddings(ctx context.Context, conversationID string, embeddings []models.ChunkEmbedding) error
	EmbeddingsExist(ctx context.Context, conversationID string) (bool, error)
	ReadEmbeddings(ctx context.Context, conversationID string) ([]models.ChunkEmbedding, error)

	WriteState(ctx context.Context, state *models.BatchProcessingState) error
	ReadState(ctx context.Context, conversationID string) (*models.BatchProcessingState, error)
}

// RawBlob is one entry under a conversation's raw/ directory.
type RawBlob struct {
	FileName    string
	ContentType string
	Data        []byte
}

// DocumentExtractor dispatches format-specific extraction to normalized
// text (§4.3).
type DocumentExtractor interface {
	ExtractText(ctx context.Context, fileName string, data []byte) (string, error)
}

// Chunker splits normalized text into overlapping passages (§2 Chunker).
// Offset anchoring back into the source text is the pipeline's job
// (§4.4), not the chunker's: it returns text-only chunks in order.
type Chunker interface {
	Chunk(text string) []ChunkedText
}

// ChunkedText is one chunker output, prior to offset anchoring.
type ChunkedText struct {
	Index int
	Text  string
}

// EmbeddingProvider batch-computes fixed-dimension vectors (§6).
type EmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChatProvider generates grounded answers from a prompt and context
// block (§6). Tier selects between the default and a low-cost Fast
// model; the Intent Classifier always uses TierDefault.
type ChatProvider interface {
	Generate(ctx context.Context, tier Tier, systemPrompt, userPrompt string) (string, error)
}

// Tier names a Chat Provider quality/cost tier.
type Tier int

const (
	TierDefault Tier = iota
	TierFast
)

// VectorStore persists embedding rows and answers the three KNN query
// shapes of §4.9, plus the two upsert variants of that section.
type VectorStore interface {
	FindSimilarAllSystem(ctx context.Context, queryVec []float32, topK int) ([]models.SimilarChunk, error)
	FindSimilarInConversation(ctx context.Context, queryVec []float32, owner models.OwnerKind, scope models.VectorScope, topK int) ([]models.SimilarChunk, error)
	FindSimilarAdaptive(ctx context.Context, queryVec []float32, owner models.OwnerKind, maxK int, minSimilarity float32, scope *models.VectorScope) ([]models.SimilarChunk, error)

	UpsertEmbeddings(ctx context.Context, items []models.Embedding) error
	UpsertDocumentEmbeddings(ctx context.Context, items []models.Embedding) error

	EmbeddingsForDocument(ctx context.Context, documentID string) ([]models.Embedding, error)
}

// IdentityProvider supplies the current user id for scoping (§6).
// Authentication itself is out of scope; this is narrowly the claim
// extraction step.
type IdentityProvider interface {
	CurrentUserID(ctx context.Context, bearerToken string) (string, error)
}

// ConversationStore is the Answer Orchestrator's domain-storage
// dependency: it needs to load history and persist the assistant
// message it produces. This is distinct from the CRUD HTTP surface for
// conversations/messages, which is out of scope; ConversationStore is a
// direct repository the orchestrator calls, never exposed as its own
// endpoint set.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conversationID, userID, title string) error
	GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error)
	LoadMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	AppendMessage(ctx context.Context, message *models.Message) error
	TouchConversation(ctx context.Context, conversationID string) error
	UpdateIngestionStatus(ctx context.Context, conversationID string, status models.IngestionStatus) error
}

// ProgressBus fans stage updates out to subscribed clients, keyed by
// conversation id (§4.5).
type ProgressBus interface {
	Publish(conversationID string, event ProgressEvent)
	Subscribe(conversationID string) (ch <-chan ProgressEvent, unsubscribe func())
}

// ProgressEventKind names one of the three channels of §4.5/§6.
type ProgressEventKind string

const (
	EventProgressUpdate ProgressEventKind = "ProcessingUpdate"
	EventCompletion     ProgressEventKind = "ProcessingComplete"
	EventError          ProgressEventKind = "ProcessingError"
)

// ProgressEvent is the envelope delivered to subscribers. Only the fields
// relevant to Kind are populated.
type ProgressEvent struct {
	Kind    ProgressEventKind `json:"kind"`
	Stage   string            `json:"stage,omitempty"`
	Message string            `json:"message,omitempty"`

	ProgressPercent    int  `json:"progressPercent,omitempty"`
	DocumentsProcessed *int `json:"documentsProcessed,omitempty"`
	TotalDocuments     *int `json:"totalDocuments,omitempty"`

	SuccessfulDocuments int            `json:"successfulDocuments,omitempty"`
	FailedDocuments     int            `json:"failedDocuments,omitempty"`
	Duration            *int64         `json:"durationMs,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty"`

	Timestamp int64 `json:"timestamp"`
}
