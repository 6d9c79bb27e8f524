// cache.go implements the bounded embedding cache the engine sits in
// front of the (potentially slow/rate-limited) embedding service: an
// LRU keyed by a hash of the input text, safe for concurrent get/put.
package vectorize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"
)

// Cache wraps a Vectorizer with a bounded LRU cache keyed by a SHA-256
// hash of the embedding kind and the input text exactly as given (the
// cache does not normalize it), and collapses concurrent identical misses
// through a singleflight.Group.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache
	inner Vectorizer
	group singleflight.Group
}

// NewCache wraps inner with an LRU of the given capacity (entry count).
func NewCache(inner Vectorizer, capacity int) *Cache {
	return &Cache{
		lru:   lru.New(capacity),
		inner: inner,
	}
}

func cacheKey(kind, text string) string {
	sum := sha256.Sum256([]byte(kind + ":" + text))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]float32), true
}

func (c *Cache) put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, vec)
}

// GenerateDocumentEmbedding returns the cached vector for text, or calls
// through to the inner Vectorizer on a miss, deduplicating concurrent
// identical misses.
func (c *Cache) GenerateDocumentEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey("doc", text)
	if v, ok := c.get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		vec, err := c.inner.GenerateDocumentEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		c.put(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// GenerateQueryEmbedding mirrors GenerateDocumentEmbedding for query-side
// text.
func (c *Cache) GenerateQueryEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey("query", text)
	if v, ok := c.get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		vec, err := c.inner.GenerateQueryEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		c.put(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// GenerateBatchDocumentEmbeddings resolves each text through the cache
// individually, so a batch with partial cache hits only calls the inner
// Vectorizer for the misses.
func (c *Cache) GenerateBatchDocumentEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
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

func (c *Cache) IsAvailable(ctx context.Context) bool { return c.inner.IsAvailable(ctx) }
func (c *Cache) Dimension() int                       { return c.inner.Dimension() }
