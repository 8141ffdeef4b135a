package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/google"
)

// EmbeddingModelTag is recorded on every chunk embedded by this adapter.
// It labels the vector space version, not a specific vendor SDK.
const EmbeddingModelTag = "text-embedding-3-small"

// EmbeddingDimensions is the fixed vector width produced by EmbedTexts.
const EmbeddingDimensions = 1536

// EmbeddingAdapter calls a managed text-embedding endpoint and implements
// service.Embedder.
type EmbeddingAdapter struct {
	project  string
	location string
	model    string
	client   *http.Client
}

// NewEmbeddingAdapter creates an EmbeddingAdapter using application default
// credentials.
func NewEmbeddingAdapter(ctx context.Context, project, location, model string) (*EmbeddingAdapter, error) {
	client, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("llmclient.NewEmbeddingAdapter: %w", err)
	}
	if model == "" {
		model = EmbeddingModelTag
	}
	return &EmbeddingAdapter{
		project:  project,
		location: location,
		model:    model,
		client:   client,
	}, nil
}

type embeddingRequest struct {
	Instances []embeddingInstance `json:"instances"`
}

type embeddingInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embeddingResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// EmbedTexts embeds a batch of chunk texts for storage and later matching.
// Implements service.Embedder. Retries transient failures per the configured
// backoff schedule; Matching Engine and Roadmap Planner callers never retry
// this call themselves.
func (a *EmbeddingAdapter) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, "EmbedTexts", func() ([][]float32, error) {
		return a.doEmbed(ctx, texts, "RETRIEVAL_DOCUMENT")
	})
}

// EmbedQuery embeds a single query-side text (e.g. a JD chunk used as the
// match anchor). Uses the asymmetric retrieval task type.
func (a *EmbeddingAdapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := withRetry(ctx, "EmbedQuery", func() ([][]float32, error) {
		return a.doEmbed(ctx, []string{text}, "RETRIEVAL_QUERY")
	})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("llmclient.EmbedQuery: empty response")
	}
	return vecs[0], nil
}

func (a *EmbeddingAdapter) doEmbed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	instances := make([]embeddingInstance, len(texts))
	for i, t := range texts {
		instances[i] = embeddingInstance{Content: t, TaskType: taskType}
	}

	reqBody, err := json.Marshal(embeddingRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("llmclient.EmbedTexts marshal: %w", err)
	}

	url := a.buildEndpointURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("llmclient.EmbedTexts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llmclient.EmbedTexts call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if isRetryableStatus(resp.StatusCode) {
			return nil, fmt.Errorf("llmclient.EmbedTexts: status %d (quota/rate limit): %s", resp.StatusCode, body)
		}
		return nil, fmt.Errorf("llmclient.EmbedTexts: status %d: %s", resp.StatusCode, body)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("llmclient.EmbedTexts decode: %w", err)
	}

	results := make([][]float32, len(embResp.Predictions))
	for i, p := range embResp.Predictions {
		results[i] = fitDimensions(p.Embeddings.Values, EmbeddingDimensions)
	}
	return results, nil
}

// fitDimensions truncates or zero-pads v to exactly n dimensions, so the
// vector store schema's fixed-width column is always satisfied regardless
// of the upstream provider's native width.
func fitDimensions(v []float32, n int) []float32 {
	if len(v) == n {
		return v
	}
	out := make([]float32, n)
	copy(out, v)
	return out
}

func (a *EmbeddingAdapter) buildEndpointURL() string {
	if a.location == "global" {
		return fmt.Sprintf(
			"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:predict",
			a.project, a.model,
		)
	}
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		a.location, a.project, a.location, a.model,
	)
}

// HealthCheck validates the embedding service connection.
func (a *EmbeddingAdapter) HealthCheck(ctx context.Context) error {
	_, err := a.EmbedQuery(ctx, "health check")
	if err != nil {
		return fmt.Errorf("embedding health check failed: %w", err)
	}
	return nil
}
