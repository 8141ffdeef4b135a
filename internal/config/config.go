package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Port                int
	Environment         string
	DatabaseURL         string
	DatabaseMaxConns    int
	GCPProject          string
	VertexAILocation    string
	VertexAIModel       string
	EmbeddingLocation   string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChunkSizeTokens     int
	ChunkOverlapTokens  int
	CORSAllowOrigins    []string
	DefaultTargetWeeks  int
	DocAILocation       string
	DocAIProcessor      string
	RedisURL            string
}

// Load reads configuration from environment variables. DATABASE_URL (the
// vector store's connection string, service credentials included) and
// GOOGLE_CLOUD_PROJECT (the LLM/embedding provider's identity) are
// required; everything else has a sensible default.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	return &Config{
		Port:                envInt("PORT", 8080),
		Environment:         envStr("ENVIRONMENT", "development"),
		DatabaseURL:         dbURL,
		DatabaseMaxConns:    envInt("DATABASE_MAX_CONNS", 25),
		GCPProject:          gcpProject,
		VertexAILocation:    envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIModel:       envStr("VERTEX_AI_MODEL", "gemini-3-pro-preview"),
		EmbeddingLocation:   envStr("VERTEX_AI_EMBEDDING_LOCATION", envStr("GCP_REGION", "us-east4")),
		EmbeddingModel:      envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 1536),
		ChunkSizeTokens:     envInt("CHUNK_SIZE_TOKENS", 700),
		ChunkOverlapTokens:  envInt("CHUNK_OVERLAP_TOKENS", 80),
		CORSAllowOrigins:    envCSV("CORS_ALLOW_ORIGINS"),
		DefaultTargetWeeks:  envInt("DEFAULT_TARGET_WEEKS", 8),
		DocAILocation:       envStr("DOCUMENT_AI_LOCATION", "us"),
		DocAIProcessor:      os.Getenv("DOCUMENT_AI_PROCESSOR"),
		RedisURL:            os.Getenv("REDIS_URL"),
	}, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envCSV splits a comma-separated environment variable into a trimmed,
// non-empty list of origins. An unset or empty variable yields nil, which
// middleware.CORS treats as "allow no cross-origin requests".
func envCSV(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
