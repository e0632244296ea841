package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/contexta-labs/filingsrag/internal/api/handlers"
	appMiddleware "github.com/contexta-labs/filingsrag/internal/api/middlewares"
	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/pipeline"
	"github.com/contexta-labs/filingsrag/internal/progressbus"
	"github.com/contexta-labs/filingsrag/internal/retrieval"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(port string, identity core.IdentityProvider, blob core.BlobStore, orchestrator *pipeline.Orchestrator, hub *progressbus.WebSocketHub, answers *retrieval.AnswerOrchestrator, conversations core.ConversationStore) *Server {
	ingestionHandler := handlers.NewIngestionHandler(blob, conversations, orchestrator)
	progressHandler := handlers.NewProgressHandler(hub)
	chatHandler := handlers.NewChatHandler(answers, conversations)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", handlers.Healthz)

	r.Route("/api", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(identity))
			protected.Post("/ingestion", ingestionHandler.StartIngestion)
			protected.Get("/ingestion/{conversationID}", ingestionHandler.GetIngestionStatus)
			protected.Get("/ingestion/{conversationID}/progress", progressHandler.Stream)
			protected.Post("/conversations/{conversationID}/messages", chatHandler.Ask)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
