package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/resumatch/internal/handler"
	"github.com/connexus-ai/resumatch/internal/middleware"
	"github.com/connexus-ai/resumatch/internal/service"
)

// embedTimeout, vectorTimeout and llmTimeout bound the per-route write
// timeout (spec section 5): the upload/extract path, the vector-store
// match path, and the LLM-backed gap-analysis/roadmap path each get a
// budget sized to their slowest dependency.
const (
	embedTimeout  = 30 * time.Second
	vectorTimeout = 10 * time.Second
	llmTimeout    = 120 * time.Second
)

// Dependencies holds every injected collaborator the router wires into
// handlers.
type Dependencies struct {
	DB      handler.DBPinger
	Version string

	Documents *service.DocumentService
	Matcher   *service.MatcherService
	Feedback  *service.FeedbackGeneratorService
	Roadmap   *service.RoadmapPlannerService
	Chunks    handler.ChunkFetcher

	Metrics    *middleware.Metrics
	MetricsReg *prometheus.Registry

	CORSAllowOrigins []string
}

// New builds the chi router for every spec operation: upload, document
// status/delete, match, gap-analysis, roadmap generation, plus health and
// metrics.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.CORSAllowOrigins))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Get("/api/health", handler.Health(deps.DB, deps.Version))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Timeout(embedTimeout)).
			Post("/upload", handler.Upload(deps.Documents))

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/health", handler.Health(deps.DB, deps.Version))
			r.With(middleware.Timeout(embedTimeout)).
				Get("/documents/{file_id}", handler.GetDocumentStatus(deps.Documents))
			r.With(middleware.Timeout(embedTimeout)).
				Delete("/documents/{file_id}", handler.DeleteDocument(deps.Documents))

			r.With(middleware.Timeout(vectorTimeout)).
				Post("/match", handler.Match(deps.Matcher))
			r.With(middleware.Timeout(llmTimeout)).
				Post("/gap-analysis", handler.GapAnalysis(deps.Matcher, deps.Feedback, deps.Chunks))
		})

		r.Route("/roadmap", func(r chi.Router) {
			r.Get("/health", handler.Health(deps.DB, deps.Version))
			r.With(middleware.Timeout(llmTimeout)).
				Post("/generate", handler.GenerateRoadmap(deps.Matcher, deps.Roadmap, deps.Chunks))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}
