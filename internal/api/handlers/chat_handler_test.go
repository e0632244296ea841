package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexta-labs/filingsrag/internal/api/middlewares"
	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/models"
	"github.com/contexta-labs/filingsrag/internal/retrieval"
)

type fixedIdentity struct{ userID string }

func (f fixedIdentity) CurrentUserID(ctx context.Context, bearerToken string) (string, error) {
	return f.userID, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type fakeChat struct{}

func (fakeChat) Generate(ctx context.Context, tier core.Tier, systemPrompt, userPrompt string) (string, error) {
	if strings.Contains(systemPrompt, "classify") {
		return `{"intent": "REGULAR", "reasoning": "single fact"}`, nil
	}
	return "an answer", nil
}

type fakeVectors struct{}

func (fakeVectors) FindSimilarAllSystem(ctx context.Context, queryVec []float32, topK int) ([]models.SimilarChunk, error) {
	return nil, nil
}
func (fakeVectors) FindSimilarInConversation(ctx context.Context, queryVec []float32, owner models.OwnerKind, scope models.VectorScope, topK int) ([]models.SimilarChunk, error) {
	return nil, nil
}
func (fakeVectors) FindSimilarAdaptive(ctx context.Context, queryVec []float32, owner models.OwnerKind, maxK int, minSimilarity float32, scope *models.VectorScope) ([]models.SimilarChunk, error) {
	return nil, nil
}
func (fakeVectors) UpsertEmbeddings(ctx context.Context, items []models.Embedding) error { return nil }
func (fakeVectors) UpsertDocumentEmbeddings(ctx context.Context, items []models.Embedding) error {
	return nil
}
func (fakeVectors) EmbeddingsForDocument(ctx context.Context, documentID string) ([]models.Embedding, error) {
	return nil, nil
}

// negativeScoreVectors mimics a referenced document whose stored vector
// is anti-correlated with the query, producing a negative cosine
// similarity per §3's RelevanceScore range.
type negativeScoreVectors struct{}

func (negativeScoreVectors) FindSimilarAllSystem(ctx context.Context, queryVec []float32, topK int) ([]models.SimilarChunk, error) {
	return nil, nil
}
func (negativeScoreVectors) FindSimilarInConversation(ctx context.Context, queryVec []float32, owner models.OwnerKind, scope models.VectorScope, topK int) ([]models.SimilarChunk, error) {
	return nil, nil
}
func (negativeScoreVectors) FindSimilarAdaptive(ctx context.Context, queryVec []float32, owner models.OwnerKind, maxK int, minSimilarity float32, scope *models.VectorScope) ([]models.SimilarChunk, error) {
	return nil, nil
}
func (negativeScoreVectors) UpsertEmbeddings(ctx context.Context, items []models.Embedding) error {
	return nil
}
func (negativeScoreVectors) UpsertDocumentEmbeddings(ctx context.Context, items []models.Embedding) error {
	return nil
}
func (negativeScoreVectors) EmbeddingsForDocument(ctx context.Context, documentID string) ([]models.Embedding, error) {
	return []models.Embedding{{DocumentID: documentID, Text: "opposing content", Vector: []float32{-1, 0}}}, nil
}

type recordingConvStore struct {
	appended []*models.Message
}

func (c *recordingConvStore) CreateConversation(ctx context.Context, conversationID, userID, title string) error {
	return nil
}
func (c *recordingConvStore) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	return &models.Conversation{ID: conversationID}, nil
}
func (c *recordingConvStore) LoadMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return nil, nil
}
func (c *recordingConvStore) AppendMessage(ctx context.Context, message *models.Message) error {
	c.appended = append(c.appended, message)
	return nil
}
func (c *recordingConvStore) TouchConversation(ctx context.Context, conversationID string) error {
	return nil
}
func (c *recordingConvStore) UpdateIngestionStatus(ctx context.Context, conversationID string, status models.IngestionStatus) error {
	return nil
}

// TestAsk_PersistsUserMessageBeforeAnswering guards against the user's
// turn being dropped from the transcript: AppendMessage must be called
// for the incoming question, not only for the generated reply.
func TestAsk_PersistsUserMessageBeforeAnswering(t *testing.T) {
	convStore := &recordingConvStore{}
	strategy := retrieval.DefaultStrategy()
	classifier := retrieval.NewIntentClassifier(fakeChat{})
	answers := retrieval.NewAnswerOrchestrator(convStore, fakeVectors{}, fakeEmbedder{}, fakeChat{}, classifier, strategy)
	handler := NewChatHandler(answers, convStore)

	r := chi.NewRouter()
	r.Group(func(protected chi.Router) {
		protected.Use(middlewares.JWTMiddleware(fixedIdentity{userID: "U1"}))
		protected.Post("/conversations/{conversationID}/messages", handler.Ask)
	})

	req := httptest.NewRequest(http.MethodPost, "/conversations/C1/messages", strings.NewReader(`{"content": "what was revenue?"}`))
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, convStore.appended, 2)
	assert.Equal(t, models.RoleUser, convStore.appended[0].Role)
	assert.Equal(t, "what was revenue?", convStore.appended[0].Content)
	assert.Equal(t, models.RoleAssistant, convStore.appended[1].Role)
}

// TestAsk_ClipsNegativeRelevanceScoreForPresentation guards the §3
// presentation invariant: a raw negative cosine similarity must never
// reach the JSON response uncapped.
func TestAsk_ClipsNegativeRelevanceScoreForPresentation(t *testing.T) {
	convStore := &recordingConvStore{}
	strategy := retrieval.DefaultStrategy()
	classifier := retrieval.NewIntentClassifier(fakeChat{})
	answers := retrieval.NewAnswerOrchestrator(convStore, negativeScoreVectors{}, fakeEmbedder{}, fakeChat{}, classifier, strategy)
	handler := NewChatHandler(answers, convStore)

	r := chi.NewRouter()
	r.Group(func(protected chi.Router) {
		protected.Use(middlewares.JWTMiddleware(fixedIdentity{userID: "U1"}))
		protected.Post("/conversations/{conversationID}/messages", handler.Ask)
	})

	body := `{"content": "tell me about this", "referenced_document_ids": ["D-neg"]}`
	req := httptest.NewRequest(http.MethodPost, "/conversations/C1/messages", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, 1)
	assert.GreaterOrEqual(t, resp.Sources[0].RelevanceScore, float32(0))
	assert.LessOrEqual(t, resp.Sources[0].RelevanceScore, float32(1))
}
