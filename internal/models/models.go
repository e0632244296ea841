// Package models holds the domain and pipeline record types shared across
// the ingestion and retrieval core.
package models

import "time"

// MessageRole identifies who authored a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// IngestionStatus mirrors BatchProcessingState.Status, written onto the
// Conversation only on terminal transitions.
type IngestionStatus string

const (
	StatusPending               IngestionStatus = "pending"
	StatusDownloading           IngestionStatus = "downloading"
	StatusExtracting            IngestionStatus = "extracting"
	StatusChunking              IngestionStatus = "chunking"
	StatusGeneratingEmbeddings  IngestionStatus = "generating_embeddings"
	StatusPersistingEmbeddings  IngestionStatus = "persisting_embeddings"
	StatusCompleted             IngestionStatus = "completed"
	StatusFailed                IngestionStatus = "failed"
)

// IsTerminal reports whether the status is a pipeline end state.
func (s IngestionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Company is a surrogate (name, id) pair attached to a Conversation.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Conversation is the top-level container for a user's Q&A session over a
// set of ingested companies.
type Conversation struct {
	ID              string          `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	UserID          string          `db:"user_id" json:"user_id"`
	Companies       []Company       `db:"-" json:"companies"`
	IngestionStatus IngestionStatus `db:"ingestion_status" json:"ingestion_status,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Source is a per-document citation attached to an Assistant Message.
type Source struct {
	DocumentID     string  `db:"document_id" json:"document_id"`
	DocumentTitle  string  `db:"document_title" json:"document_title"`
	RelevanceScore float32 `db:"relevance_score" json:"relevance_score"`
	ChunksUsed     int     `db:"chunks_used" json:"chunks_used"`
	Order          int     `db:"source_order" json:"order"`
}

// ClipForPresentation clips RelevanceScore into [0, 1] for display,
// leaving the stored value (which may be negative, per §3) untouched.
func (s Source) ClipForPresentation() float32 {
	switch {
	case s.RelevanceScore < 0:
		return 0
	case s.RelevanceScore > 1:
		return 1
	default:
		return s.RelevanceScore
	}
}

// Message is one turn in a Conversation's transcript.
type Message struct {
	ID             string            `db:"id" json:"id"`
	ConversationID string            `db:"conversation_id" json:"conversation_id"`
	Role           MessageRole       `db:"role" json:"role"`
	Content        string            `db:"content" json:"content"`
	Metadata       map[string]string `db:"-" json:"metadata,omitempty"`
	Sources        []Source          `db:"-" json:"sources,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}

// DocumentScope distinguishes a conversation-bound user upload from a
// corpus-wide system document.
type DocumentScope string

const (
	ScopeUserUpload DocumentScope = "user_upload"
	ScopeSystemDoc  DocumentScope = "system"
)

// Document is a filing or upload that has been (or is being) ingested.
type Document struct {
	ID             string        `db:"id" json:"id"`
	Title          string        `db:"title" json:"title"`
	FullText       string        `db:"full_text" json:"-"`
	Scope          DocumentScope `db:"scope" json:"scope"`
	ContentType    string        `db:"content_type" json:"content_type"`
	BlobPath       string        `db:"blob_path" json:"-"`
	UserID         string        `db:"user_id" json:"user_id,omitempty"`
	ConversationID string        `db:"conversation_id" json:"conversation_id,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// OwnerKind distinguishes the two embedding ownership buckets queried by
// the Vector Store (§4.9, §9 open question — made an explicit parameter).
type OwnerKind string

const (
	OwnerUserDocument       OwnerKind = "user_document"
	OwnerSystemKnowledgeBase OwnerKind = "system_kb"
)

// Embedding is one persisted chunk-vector row.
type Embedding struct {
	ID                 string    `db:"id" json:"id"`
	Text               string    `db:"text" json:"text"`
	Vector             []float32 `db:"vector" json:"-"`
	DocumentID         string    `db:"document_id" json:"document_id"`
	DocumentTitle      string    `db:"document_title" json:"document_title"`
	Owner              OwnerKind `db:"owner" json:"owner"`
	UserScope          string    `db:"user_scope" json:"user_scope,omitempty"`
	ConversationScope  string    `db:"conversation_scope" json:"conversation_scope,omitempty"`
	ChunkIndex         int       `db:"chunk_index" json:"chunk_index"`
	ChunkHash          string    `db:"chunk_hash" json:"chunk_hash"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// FilingDocument is the Archive Fetcher's output: raw bytes plus the
// archive metadata needed to classify and store the filing.
type FilingDocument struct {
	Content          []byte
	FileName         string
	FilingType       string
	AccessionNumber  string
	FilingDate       time.Time
	CompanyIdentifier string
}

// IngestedDocumentRef is the lightweight record of a downloaded filing
// kept on BatchProcessingState.
type IngestedDocumentRef struct {
	FileName        string    `json:"fileName"`
	FilingType      string    `json:"filingType"`
	AccessionNumber string    `json:"accessionNumber"`
	FilingDate      time.Time `json:"filingDate"`
}

// BatchProcessingState is the durable, per-conversation pipeline record
// persisted to status.json and mirrored into the domain store.
type BatchProcessingState struct {
	ConversationID    string                 `json:"conversationId"`
	UserID            string                 `json:"userId"`
	CompanyIdentifier string                 `json:"companyIdentifier"`
	FilingTypes       []string               `json:"filingTypes"`
	Status            IngestionStatus        `json:"status"`
	JobID             string                 `json:"jobId,omitempty"`
	ErrorMessage      string                 `json:"errorMessage,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	CompletedAt       *time.Time             `json:"completedAt,omitempty"`
	Documents         []IngestedDocumentRef  `json:"documents"`
}

// DocumentChunk is the on-disk chunk artifact (chunks.json), carrying
// offsets back into the source text per §4.4's offset algorithm.
type DocumentChunk struct {
	SourceDocument string `json:"sourceDocument"`
	ChunkIndex     int    `json:"chunkIndex"`
	Text           string `json:"text"`
	StartOffset    int    `json:"startOffset"`
	EndOffset      int    `json:"endOffset"`
}

// ChunkEmbedding is DocumentChunk plus its computed vector
// (embeddings.json).
type ChunkEmbedding struct {
	DocumentChunk
	Embedding []float32 `json:"embedding"`
}

// SimilarChunk is the uniform return shape of every Vector Store KNN
// query (§4.9).
type SimilarChunk struct {
	Text          string
	DocumentID    string
	DocumentTitle string
	Similarity    float32
}

// VectorScope narrows FindSimilarInConversation / adaptive queries to a
// user, optionally further narrowed to one conversation.
type VectorScope struct {
	UserID         string
	ConversationID string // empty means "any conversation for this user"
}
