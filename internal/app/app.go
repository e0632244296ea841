// Package app wires every adapter into the ingestion and retrieval
// core and exposes the resulting HTTP server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/contexta-labs/filingsrag/internal/api"
	"github.com/contexta-labs/filingsrag/internal/blobstore"
	"github.com/contexta-labs/filingsrag/internal/chunker"
	"github.com/contexta-labs/filingsrag/internal/config"
	"github.com/contexta-labs/filingsrag/internal/convstore"
	"github.com/contexta-labs/filingsrag/internal/db"
	"github.com/contexta-labs/filingsrag/internal/extractor"
	"github.com/contexta-labs/filingsrag/internal/fetcher"
	"github.com/contexta-labs/filingsrag/internal/identity"
	"github.com/contexta-labs/filingsrag/internal/llm"
	"github.com/contexta-labs/filingsrag/internal/pipeline"
	"github.com/contexta-labs/filingsrag/internal/progressbus"
	"github.com/contexta-labs/filingsrag/internal/retrieval"
	"github.com/contexta-labs/filingsrag/internal/vectorstore"
)

const pipelineWorkers = 4

type App struct {
	DB           *sql.DB
	Embedder     *llm.GeminiEmbedder
	Chat         *llm.GeminiChat
	Orchestrator *pipeline.Orchestrator
	Server       *api.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	conn, err := db.Open(appCtx, cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the database, %w", err)
	}
	log.Println("Database initialized and bootstrapped.")

	blob, err := blobstore.NewFSBlobStore(cfg.BlobStoreBase)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the blob store, %w", err)
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	chat, err := llm.NewGeminiChat(appCtx, cfg.AIAPIKey, cfg.GenModel, cfg.FastModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the chat provider, %w", err)
	}

	archiveFetcher := fetcher.NewEdgarFetcher(cfg.EdgarBaseURL, cfg.EdgarDataBaseURL, cfg.EdgarUserAgent, cfg.FetchRateFloor, cfg.MaxFilingsPerRun)
	docExtractor := extractor.NewDispatchExtractor(false)
	textChunker := chunker.NewOverlapChunker(cfg.ChunkTargetTokens, cfg.ChunkOverlapTokens)

	vectors := vectorstore.New(conn)
	conversations := convstore.New(conn)
	identityProvider := identity.NewJWTIdentityProvider(cfg.JWTSecret)

	bus := progressbus.NewInMemoryBus()
	hub := progressbus.NewWebSocketHub(bus)

	orchestrator := pipeline.New(archiveFetcher, blob, docExtractor, textChunker, embedder, vectors, conversations, bus, 16)
	orchestrator.Start(ctx, pipelineWorkers)

	strategy := retrieval.NewStrategy(
		retrieval.StrategyParams{MaxK: cfg.RetrievalRegularMaxK, MinSimilarity: cfg.RetrievalRegularMinSim},
		retrieval.StrategyParams{MaxK: cfg.RetrievalExhaustiveMaxK, MinSimilarity: cfg.RetrievalExhaustiveMin},
	)
	classifier := retrieval.NewIntentClassifier(chat)
	answers := retrieval.NewAnswerOrchestrator(conversations, vectors, embedder, chat, classifier, strategy)

	server := api.NewServer(cfg.Port, identityProvider, blob, orchestrator, hub, answers, conversations)

	return &App{DB: conn, Embedder: embedder, Chat: chat, Orchestrator: orchestrator, Server: server}, nil
}

func (a *App) Close() {
	if a.Embedder != nil {
		a.Embedder.Close()
	}
	if a.Chat != nil {
		a.Chat.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
