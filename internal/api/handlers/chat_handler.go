package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/contexta-labs/filingsrag/internal/api/middlewares"
	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/models"
	"github.com/contexta-labs/filingsrag/internal/retrieval"
)

// ChatHandler drives the Answer Orchestrator from an HTTP request; the
// CRUD surface for listing/editing conversations and messages is out of
// scope, this is only the "ask a question" entry point.
type ChatHandler struct {
	answers *retrieval.AnswerOrchestrator
	convos  core.ConversationStore
}

func NewChatHandler(answers *retrieval.AnswerOrchestrator, convos core.ConversationStore) *ChatHandler {
	return &ChatHandler{answers: answers, convos: convos}
}

type askRequest struct {
	Content               string   `json:"content"`
	ReferencedDocumentIDs []string `json:"referenced_document_ids"`
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID := chi.URLParam(r, "conversationID")

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	userMessage := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        req.Content,
	}
	if err := h.convos.AppendMessage(ctx, userMessage); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to persist message: "+err.Error(), http.StatusInternalServerError)
		return
	}

	msg, err := h.answers.Answer(ctx, retrieval.AnswerRequest{
		ConversationID:        conversationID,
		UserID:                userID,
		UserContent:           req.Content,
		ReferencedDocumentIDs: req.ReferencedDocumentIDs,
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to answer: "+err.Error(), http.StatusInternalServerError)
		return
	}

	for i := range msg.Sources {
		msg.Sources[i].RelevanceScore = msg.Sources[i].ClipForPresentation()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msg)
}
