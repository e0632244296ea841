package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/contexta-labs/filingsrag/internal/api/middlewares"
	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/models"
)

// IngestionHandler exposes the ingestion trigger the orchestrator
// consumes; the HTTP surface for conversation/message CRUD around it is
// out of scope, so this only creates the conversation row, writes the
// seed state and enqueues a job.
type IngestionHandler struct {
	blob         core.BlobStore
	convos       core.ConversationStore
	orchestrator interface {
		Enqueue(conversationID string)
	}
}

func NewIngestionHandler(blob core.BlobStore, convos core.ConversationStore, orchestrator interface {
	Enqueue(conversationID string)
}) *IngestionHandler {
	return &IngestionHandler{blob: blob, convos: convos, orchestrator: orchestrator}
}

type startIngestionRequest struct {
	CompanyIdentifier string   `json:"company_identifier"`
	FilingTypes       []string `json:"filing_types"`
}

type startIngestionResponse struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
}

func (h *IngestionHandler) StartIngestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req startIngestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.CompanyIdentifier == "" {
		http.Error(w, "company_identifier is required", http.StatusBadRequest)
		return
	}

	conversationID := uuid.NewString()

	if err := h.convos.CreateConversation(ctx, conversationID, userID, req.CompanyIdentifier); err != nil {
		http.Error(w, "failed to create conversation", http.StatusInternalServerError)
		return
	}

	state := &models.BatchProcessingState{
		ConversationID:    conversationID,
		UserID:            userID,
		CompanyIdentifier: req.CompanyIdentifier,
		FilingTypes:       req.FilingTypes,
		Status:            models.StatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	if err := h.blob.WriteState(ctx, state); err != nil {
		http.Error(w, "failed to seed ingestion state", http.StatusInternalServerError)
		return
	}

	h.orchestrator.Enqueue(conversationID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(startIngestionResponse{ConversationID: conversationID, Status: string(models.StatusPending)})
}

func (h *IngestionHandler) GetIngestionStatus(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	state, err := h.blob.ReadState(r.Context(), conversationID)
	if err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}
