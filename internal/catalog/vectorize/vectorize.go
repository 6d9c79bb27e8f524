// Package vectorize wraps the external embedding service: an opaque
// text-to-unit-vector collaborator the engine treats as a narrow
// interface, never an implementation detail. A null vector is a valid,
// tolerated outcome.
package vectorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Vectorizer is the embedding service contract. Implementations must
// unit-normalize their vectors and apply "query: "/"passage: " prefixes
// internally.
type Vectorizer interface {
	GenerateQueryEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateDocumentEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchDocumentEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	IsAvailable(ctx context.Context) bool
	Dimension() int
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0 if
// either is empty/absent — the PairScorer's semantic feature must
// contribute 0 when a vector is missing.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// HTTPClient is a thin wrapper around a remote embedding HTTP service
// Retries once on a 429 response after a 2s delay, matching the
// service's documented rate-limit behavior.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
	dimension  int
}

// NewHTTPClient builds an HTTPClient against baseURL with the given
// embedding dimension (the service emits unit-normalized 768-dim vectors).
func NewHTTPClient(baseURL string, dimension int) *HTTPClient {
	return &HTTPClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		dimension:  dimension,
	}
}

func (c *HTTPClient) Dimension() int { return c.dimension }

func (c *HTTPClient) GenerateQueryEmbedding(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, "query: "+text)
}

func (c *HTTPClient) GenerateDocumentEmbedding(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, "passage: "+text)
}

func (c *HTTPClient) GenerateBatchDocumentEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = "passage: " + t
	}

	var resp batchEmbedResponse
	if err := c.post(ctx, "/embed/batch", batchEmbedRequest{Texts: prefixed}, &resp); err != nil {
		return nil, fmt.Errorf("vectorize: batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("vectorize: batch embed returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (c *HTTPClient) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type batchEmbedRequest struct {
	Texts []string `json:"texts"`
}

type batchEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *HTTPClient) embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, "/embed", embedRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("vectorize: embed: %w", err)
	}
	return resp.Embedding, nil
}

// post sends one JSON request and decodes the JSON response. A 429 is
// retried once after a 2s delay; any other non-2xx status is an error.
func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			resp.Body.Close()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}
