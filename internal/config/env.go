package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime knob the ingestion and retrieval core reads
// from the environment. Mirrors the shape of a deployment's .env file.
type Config struct {
	DatabaseURL string
	SslCertPath string

	AIAPIKey   string
	EmbedModel string
	EmbedDim   int
	GenModel   string
	FastModel  string

	BlobStoreBase string

	ChunkTargetTokens  int
	ChunkOverlapTokens int

	EdgarBaseURL     string
	EdgarDataBaseURL string
	EdgarUserAgent   string
	MaxFilingsPerRun int
	FetchRateFloor   time.Duration

	RetrievalRegularMaxK    int
	RetrievalRegularMinSim  float32
	RetrievalExhaustiveMaxK int // 0 means unlimited
	RetrievalExhaustiveMin  float32

	JWTSecret string
	Port      string
}

// LoadConfig loads environment variables (optionally from a .env file) and
// returns the parsed Config, failing fast when mandatory keys are absent.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "gemini-embedding-001"),
		EmbedDim:   getEnvInt("EMBED_DIM", 1536),
		GenModel:   getEnv("GEN_MODEL", "gemini-1.5-pro"),
		FastModel:  getEnv("GEN_MODEL_FAST", "gemini-1.5-flash"),

		BlobStoreBase: getEnv("BLOB_STORE_BASE", "./data/blobs"),

		ChunkTargetTokens:  getEnvInt("CHUNK_TARGET_TOKENS", 500),
		ChunkOverlapTokens: getEnvInt("CHUNK_OVERLAP_TOKENS", 50),

		EdgarBaseURL:     getEnv("EDGAR_BASE_URL", "https://www.sec.gov"),
		EdgarDataBaseURL: getEnv("EDGAR_DATA_BASE_URL", "https://data.sec.gov"),
		EdgarUserAgent:   getEnv("EDGAR_USER_AGENT", "FilingsRAG/1.0 (contact@example.com)"),
		MaxFilingsPerRun: getEnvInt("MAX_FILINGS_PER_RUN", 0),
		FetchRateFloor:   time.Duration(getEnvInt("FETCH_RATE_FLOOR_MS", 100)) * time.Millisecond,

		RetrievalRegularMaxK:    getEnvInt("RETRIEVAL_REGULAR_MAXK", 15),
		RetrievalRegularMinSim:  float32(getEnvInt("RETRIEVAL_REGULAR_MIN_SIM_PCT", 70)) / 100,
		RetrievalExhaustiveMaxK: getEnvInt("RETRIEVAL_EXHAUSTIVE_MAXK", 0),
		RetrievalExhaustiveMin:  float32(getEnvInt("RETRIEVAL_EXHAUSTIVE_MIN_SIM_PCT", 0)) / 100,

		JWTSecret: getEnv("JWT_SECRET", ""),
		Port:      getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
