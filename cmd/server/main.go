package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/resumatch/internal/cache"
	"github.com/connexus-ai/resumatch/internal/catalog"
	"github.com/connexus-ai/resumatch/internal/config"
	"github.com/connexus-ai/resumatch/internal/llmclient"
	"github.com/connexus-ai/resumatch/internal/middleware"
	"github.com/connexus-ai/resumatch/internal/repository"
	"github.com/connexus-ai/resumatch/internal/router"
	"github.com/connexus-ai/resumatch/internal/service"
)

const Version = "0.1.0"

func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

// buildRouter wires every collaborator — vector store, LLM/embedding
// adapters, caches, the resource catalog, and the core services — into a
// router.Dependencies and returns the finished HTTP handler together with a
// function that closes the collaborators it opened.
func buildRouter(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("main: connect database: %w", err)
	}
	closers := []func(){pool.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	docRepo := repository.NewDocumentRepo(pool)
	chunkRepo := repository.NewChunkRepo(pool)

	cat, err := catalog.Load()
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("main: load resource catalog: %w", err)
	}

	embeddingAdapter, err := llmclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("main: create embedding adapter: %w", err)
	}
	genAIAdapter, err := llmclient.NewGenAIAdapter(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("main: create genai adapter: %w", err)
	}
	docAIAdapter, err := llmclient.NewDocAIAdapter(ctx, cfg.DocAILocation)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("main: create document ai adapter: %w", err)
	}

	embedCache := cache.NewEmbeddingCache(cache.DefaultEmbeddingTTL())
	closers = append(closers, embedCache.Stop)

	embedder := service.NewEmbedderService(embeddingAdapter, chunkRepo).WithCache(embedCache)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("main: parse REDIS_URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		closers = append(closers, func() { redisClient.Close() })
		embedder = embedder.WithDistributedCache(cache.NewRedisEmbeddingCache(redisClient, cache.DefaultEmbeddingTTL()))
	}

	chunker := service.NewChunkerService()
	ingestion := service.NewIngestionOrchestratorService(docRepo, chunker, embedder, chunkRepo)
	parser := service.NewParserService(docAIAdapter, cfg.DocAIProcessor)
	documents := service.NewDocumentService(parser, docRepo, ingestion)

	matcher := service.NewMatcherService(chunkRepo, docRepo)
	feedback := service.NewFeedbackGeneratorService(genAIAdapter, cfg.VertexAIModel)
	roadmap := service.NewRoadmapPlannerService(genAIAdapter, cat, cfg.VertexAIModel)

	metricsReg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(metricsReg)

	r := router.New(&router.Dependencies{
		DB:               pool,
		Version:          Version,
		Documents:        documents,
		Matcher:          matcher,
		Feedback:         feedback,
		Roadmap:          roadmap,
		Chunks:           chunkRepo,
		Metrics:          metrics,
		MetricsReg:       metricsReg,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	return r, closeAll, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}

	ctx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()

	handler, closeAll, err := buildRouter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	port := getPort()
	if cfg.Port != 0 {
		port = fmt.Sprintf("%d", cfg.Port)
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("resumatch starting", "version", Version, "port", port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
