package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEmbeddingCache is a distributed alternative to EmbeddingCache: the
// in-process cache only helps a single instance, but an embedding provider
// call is identical across every replica serving the same upload traffic.
// Shares EmbeddingQueryHash as its key function so a value computed by one
// instance is reusable by every other instance behind the same Redis.
type RedisEmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEmbeddingCache creates a RedisEmbeddingCache against an existing
// client (use redis.NewClient(redis.ParseURL(...)) to build one from a
// REDIS_URL environment variable).
func NewRedisEmbeddingCache(client *redis.Client, ttl time.Duration) *RedisEmbeddingCache {
	return &RedisEmbeddingCache{client: client, ttl: ttl}
}

// Get returns a cached embedding vector, if present.
func (c *RedisEmbeddingCache) Get(ctx context.Context, queryHash string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, redisEmbeddingKey(queryHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache.RedisEmbeddingCache.Get: %w", err)
	}
	return decodeFloat32s(raw), true, nil
}

// Set stores an embedding vector with the cache's configured TTL.
func (c *RedisEmbeddingCache) Set(ctx context.Context, queryHash string, vec []float32) error {
	if err := c.client.Set(ctx, redisEmbeddingKey(queryHash), encodeFloat32s(vec), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache.RedisEmbeddingCache.Set: %w", err)
	}
	return nil
}

func redisEmbeddingKey(hash string) string {
	return "resumatch:embed:" + hash
}

func encodeFloat32s(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeFloat32s(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
