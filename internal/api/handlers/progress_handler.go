package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contexta-labs/filingsrag/internal/progressbus"
)

// ProgressHandler upgrades an HTTP request into the progress websocket
// stream for one conversation's ingestion run.
type ProgressHandler struct {
	hub *progressbus.WebSocketHub
}

func NewProgressHandler(hub *progressbus.WebSocketHub) *ProgressHandler {
	return &ProgressHandler{hub: hub}
}

func (h *ProgressHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	h.hub.ServeConversation(w, r, conversationID)
}
