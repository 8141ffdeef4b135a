package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/resumatch/internal/cache"
	"github.com/connexus-ai/resumatch/internal/llmclient"
	"github.com/connexus-ai/resumatch/internal/model"
)

// maxConcurrentBatches bounds how many EmbedTexts calls are in flight at
// once — the spec's "bounded parallelism across outbound I/O" (section 5):
// fan out batches concurrently but never unboundedly.
const maxConcurrentBatches = 4

// maxBatchSize is the max texts per embedding API call.
const maxBatchSize = 96

// Embedder abstracts the embedding provider used to vectorize chunk text.
// Implementations retry transient failures themselves per the backoff
// schedule; callers here never retry.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore abstracts bulk insertion of chunks with vectors.
type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []model.Chunk) error
}

// distributedEmbeddingCache abstracts a shared cache reachable from every
// server replica, e.g. cache.RedisEmbeddingCache — consulted after a miss
// in the per-process cache, so a vector computed by one instance is
// reusable by every other instance behind the same deployment.
type distributedEmbeddingCache interface {
	Get(ctx context.Context, queryHash string) ([]float32, bool, error)
	Set(ctx context.Context, queryHash string, vec []float32) error
}

// EmbedderService generates vector embeddings for chunks and stores them.
type EmbedderService struct {
	client     Embedder
	chunkStore ChunkStore
	cache      *cache.EmbeddingCache
	distCache  distributedEmbeddingCache
}

// NewEmbedderService creates an EmbedderService.
func NewEmbedderService(client Embedder, chunkStore ChunkStore) *EmbedderService {
	return &EmbedderService{client: client, chunkStore: chunkStore}
}

// WithCache attaches an in-process EmbeddingCache so identical chunk text
// (common across re-ingestion of the same file, or JD boilerplate repeated
// across postings) skips a redundant provider call. Optional — a nil cache
// (the zero value) is never set and Embed behaves exactly as without one.
func (s *EmbedderService) WithCache(c *cache.EmbeddingCache) *EmbedderService {
	s.cache = c
	return s
}

// WithDistributedCache attaches a shared cache (e.g. Redis) consulted after
// an in-process cache miss and before the provider; a hit there is copied
// into the in-process cache. Use this in multi-replica
// deployments where the in-process cache alone only helps the replica that
// happened to see a given text first.
func (s *EmbedderService) WithDistributedCache(c distributedEmbeddingCache) *EmbedderService {
	s.distCache = c
	return s
}

// Embed generates embeddings for a slice of texts, batching as needed, and
// returns one llmclient.EmbeddingDimensions-wide vector per input text in
// the same order. Cache hits are served without touching the provider;
// only cache misses are batched into EmbedTexts calls.
func (s *EmbedderService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("service.Embed: no texts provided")
	}

	result := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	hashes := make([]string, len(texts))

	for i, t := range texts {
		if s.cache == nil && s.distCache == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
			continue
		}
		h := cache.EmbeddingQueryHash(t)
		hashes[i] = h

		if s.cache != nil {
			if vec, ok := s.cache.Get(h); ok {
				result[i] = vec
				continue
			}
		}
		if s.distCache != nil {
			if vec, ok, err := s.distCache.Get(ctx, h); err == nil && ok {
				result[i] = vec
				if s.cache != nil {
					s.cache.Set(h, vec)
				}
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)

	for start := 0; start < len(missTexts); start += maxBatchSize {
		start := start
		end := start + maxBatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		batch := missTexts[start:end]

		g.Go(func() error {
			vectors, err := s.client.EmbedTexts(gctx, batch)
			if err != nil {
				return fmt.Errorf("service.Embed: batch %d-%d: %w", start, end, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("service.Embed: got %d vectors for %d texts in batch", len(vectors), len(batch))
			}

			for j, vec := range vectors {
				origIdx := missIdx[start+j]
				result[origIdx] = vec
				if s.cache != nil {
					s.cache.Set(hashes[origIdx], vec)
				}
				if s.distCache != nil {
					s.distCache.Set(gctx, hashes[origIdx], vec)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// EmbedAndStore generates embeddings for chunks, stamps each with the
// embedding model tag, and persists them via ChunkStore. If any batch
// fails, EmbedAndStore returns that error and stores none of the chunks;
// it does no retrying of its own.
func (s *EmbedderService) EmbedAndStore(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("service.EmbedAndStore: %w", err)
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
		chunks[i].EmbeddingModel = llmclient.EmbeddingModelTag
	}

	if err := s.chunkStore.InsertChunks(ctx, chunks); err != nil {
		return fmt.Errorf("service.EmbedAndStore: store: %w", err)
	}

	return nil
}
