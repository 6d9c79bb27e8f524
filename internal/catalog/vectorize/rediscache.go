// rediscache.go backs the embedding cache with Redis for deployments
// that need the cache shared across multiple JobRunner processes,
// falling back to the in-process Cache's LRU when Redis is unavailable.
package vectorize

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFallbackCache is a Vectorizer decorator that checks a Redis
// string key before falling through to the wrapped cache/client.
type RedisFallbackCache struct {
	client *redis.Client
	inner  Vectorizer
	ttl    time.Duration
}

// NewRedisFallbackCache wraps inner with a Redis-backed layer.
func NewRedisFallbackCache(client *redis.Client, inner Vectorizer, ttl time.Duration) *RedisFallbackCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisFallbackCache{client: client, inner: inner, ttl: ttl}
}

func redisKey(kind, text string) string {
	return fmt.Sprintf("embed:%s:%s", kind, cacheKey(kind, text))
}

func (c *RedisFallbackCache) GenerateDocumentEmbedding(ctx context.Context, text string) ([]float32, error) {
	return c.lookupOrCompute(ctx, redisKey("doc", text), func() ([]float32, error) {
		return c.inner.GenerateDocumentEmbedding(ctx, text)
	})
}

func (c *RedisFallbackCache) GenerateQueryEmbedding(ctx context.Context, text string) ([]float32, error) {
	return c.lookupOrCompute(ctx, redisKey("query", text), func() ([]float32, error) {
		return c.inner.GenerateQueryEmbedding(ctx, text)
	})
}

func (c *RedisFallbackCache) GenerateBatchDocumentEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.GenerateDocumentEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *RedisFallbackCache) IsAvailable(ctx context.Context) bool { return c.inner.IsAvailable(ctx) }
func (c *RedisFallbackCache) Dimension() int                       { return c.inner.Dimension() }

// lookupOrCompute tries Redis first; a Redis error (connection down,
// timeout) is treated as a cache miss rather than a hard failure, since
// Redis here is a fallback layer, not the source of truth.
func (c *RedisFallbackCache) lookupOrCompute(ctx context.Context, key string, compute func() ([]float32, error)) ([]float32, error) {
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		if vec := decodeVector(raw); vec != nil {
			return vec, nil
		}
	}

	vec, err := compute()
	if err != nil {
		return nil, err
	}

	if raw := encodeVector(vec); raw != nil {
		c.client.Set(ctx, key, raw, c.ttl)
	}
	return vec, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(raw []byte) []float32 {
	if len(raw)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec
}
