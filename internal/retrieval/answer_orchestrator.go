package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/models"
)

// AnswerOrchestrator implements the 11-step adaptive retrieval and
// grounding flow of §4.6.
type AnswerOrchestrator struct {
	convStore  core.ConversationStore
	vectors    core.VectorStore
	embedder   core.EmbeddingProvider
	chat       core.ChatProvider
	classifier *IntentClassifier
	strategy   *Strategy
}

func NewAnswerOrchestrator(convStore core.ConversationStore, vectors core.VectorStore, embedder core.EmbeddingProvider, chat core.ChatProvider, classifier *IntentClassifier, strategy *Strategy) *AnswerOrchestrator {
	return &AnswerOrchestrator{
		convStore:  convStore,
		vectors:    vectors,
		embedder:   embedder,
		chat:       chat,
		classifier: classifier,
		strategy:   strategy,
	}
}

// AnswerRequest is the orchestrator's input; the user message has
// already been persisted by the caller before Answer is invoked.
type AnswerRequest struct {
	ConversationID        string
	UserID                string
	UserContent           string
	ReferencedDocumentIDs []string
}

// Answer drives the full flow and returns the persisted assistant
// message, or a single wrapped error on any internal failure (the
// "single QueryFailed result" of §4.6). Embedding, vector-search and
// generation failures wrap core.ErrProviderFailure; store failures wrap
// the store's own error (core.ErrNotFound for a missing conversation).
func (o *AnswerOrchestrator) Answer(ctx context.Context, req AnswerRequest) (*models.Message, error) {
	if _, err := o.convStore.GetConversation(ctx, req.ConversationID); err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	// 1. History. The caller has already persisted the current user turn
	// (see AnswerRequest's doc comment), so it is the last entry in
	// history; the transcript covers only what came before it, since the
	// current question is passed separately as req.UserContent.
	history, err := o.convStore.LoadMessages(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	priorHistory := history
	if n := len(history); n > 0 && history[n-1].Role == models.RoleUser {
		priorHistory = history[:n-1]
	}
	transcript := renderTranscript(priorHistory)

	// 2. Intent classify.
	classification := o.classifier.Classify(ctx, req.UserContent)

	// 3. Strategy lookup.
	params := o.strategy.ParamsFor(classification.Intent)

	// 4. Query rewrite.
	searchQuery := o.rewriteQuery(ctx, req.UserContent, transcript)

	// 5. Embed.
	queryVec, err := o.embedder.Embed(ctx, searchQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", core.ErrProviderFailure, err)
	}

	// 6. Referenced chunks.
	referenced, err := o.loadReferencedChunks(ctx, req.ReferencedDocumentIDs, queryVec)
	if err != nil {
		return nil, err
	}

	// 7. Adaptive KNN. Regular intent stays scoped to this conversation's
	// own uploads; Exhaustive intent broadens the scope to every
	// conversation this user has ingested (still their documents, not
	// the whole owner class, since nothing in the ingestion path ever
	// writes embeddings under OwnerSystemKnowledgeBase).
	owner := models.OwnerUserDocument
	scope := &models.VectorScope{UserID: req.UserID, ConversationID: req.ConversationID}
	if classification.Intent == IntentExhaustive {
		scope = &models.VectorScope{UserID: req.UserID}
	}
	adaptive, err := o.vectors.FindSimilarAdaptive(ctx, queryVec, owner, params.MaxK, params.MinSimilarity, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: adaptive knn: %v", core.ErrProviderFailure, err)
	}

	// 8. Merge.
	merged := mergeResults(adaptive, referenced)

	// 9. Source aggregation.
	sources := aggregate(merged, req.ReferencedDocumentIDs)

	// 10. Grounding and generation.
	content, err := o.generate(ctx, classification.Intent, req.UserContent, transcript, merged, len(sources))
	if err != nil {
		return nil, err
	}

	// 11. Persist.
	assistant := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		Role:           models.RoleAssistant,
		Content:        content,
		Sources:        sources,
	}
	if err := o.convStore.AppendMessage(ctx, assistant); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	if err := o.convStore.TouchConversation(ctx, req.ConversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	return assistant, nil
}

func (o *AnswerOrchestrator) loadReferencedChunks(ctx context.Context, documentIDs []string, queryVec []float32) ([]models.SimilarChunk, error) {
	var out []models.SimilarChunk
	for _, docID := range documentIDs {
		embeddings, err := o.vectors.EmbeddingsForDocument(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("load embeddings for referenced document %s: %w", docID, err)
		}
		for _, e := range embeddings {
			out = append(out, models.SimilarChunk{
				Text:          e.Text,
				DocumentID:    e.DocumentID,
				DocumentTitle: e.DocumentTitle,
				Similarity:    cosineSimilarity(queryVec, e.Vector),
			})
		}
	}
	return out, nil
}

const rewriteSystemPrompt = `Rewrite the user's latest message into a short, search-oriented query suitable for
a vector similarity search over company filings. Use the conversation transcript only to resolve
pronouns or implicit references. Reply with the rewritten query only, no explanation.`

// rewriteQuery calls the chat provider with history when present (the
// two-argument form of §4.6 step 4); the single-argument form is just
// the same call with an empty transcript. Any failure falls back to the
// original content unchanged, the same resilience posture as the
// classifier's fallback.
func (o *AnswerOrchestrator) rewriteQuery(ctx context.Context, userContent, transcript string) string {
	prompt := userContent
	if transcript != "" {
		prompt = transcript + "\n\n" + userContent
	}

	rewritten, err := o.chat.Generate(ctx, core.TierFast, rewriteSystemPrompt, prompt)
	rewritten = strings.TrimSpace(rewritten)
	if err != nil || rewritten == "" {
		return userContent
	}
	return rewritten
}

func (o *AnswerOrchestrator) generate(ctx context.Context, intent Intent, userContent, transcript string, merged []mergeChunk, distinctDocuments int) (string, error) {
	if intent == IntentExhaustive {
		prompt := fmt.Sprintf("%s\n\nThe retrieval system found %d distinct document(s) relevant to this question. Summarize what was found without fabricating chunk content.", transcript, distinctDocuments)
		out, err := o.chat.Generate(ctx, core.TierDefault, "", prompt)
		if err != nil {
			return "", fmt.Errorf("%w: generate exhaustive answer: %v", core.ErrProviderFailure, err)
		}
		return out, nil
	}

	var kb strings.Builder
	kb.WriteString("KNOWLEDGE BASE DOCUMENTS\n")
	for _, c := range merged {
		fmt.Fprintf(&kb, "[%s] (similarity %.3f)\n%s\n\n", c.DocumentID, c.Similarity, c.Text)
	}

	groundedContext := transcript + "\n\n" + kb.String()
	out, err := o.chat.Generate(ctx, core.TierDefault, "", fmt.Sprintf("%s\n\n%s", userContent, groundedContext))
	if err != nil {
		return "", fmt.Errorf("%w: generate regular answer: %v", core.ErrProviderFailure, err)
	}
	return out, nil
}

func renderTranscript(history []models.Message) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range history {
		label := strings.ToUpper(string(m.Role))
		fmt.Fprintf(&b, "[%s]\n%s\n[/%s]\n", label, m.Content, label)
	}
	return strings.TrimRight(b.String(), "\n")
}

// cosineSimilarity computes 1 - cosineDistance directly, used for
// referenced-document chunks which are compared in-process rather than
// through the Vector Store's KNN index (they bypass the similarity
// threshold entirely per §4.6 step 6, so no ANN query is needed).
func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
