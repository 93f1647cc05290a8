// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package embedclient calls an external embedding inference service in
// batches, with request retry, a content-addressed cache, and
// per-model dimensionality bookkeeping.
package embedclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Dimensions maps a known model identifier to its output vector size.
var Dimensions = map[string]int{
	"bge-m3":      1024,
	"gemma":       768,
	"gemma300":    768,
}

// Config controls batching, retry, and truncation behavior.
type Config struct {
	Endpoint    string
	Model       string
	BatchSize   int
	MaxRetries  int
	MaxTextLen  int // characters; longer inputs are truncated
	CacheSize   int
	HTTPTimeout time.Duration
}

// DefaultConfig returns reasonable batching/retry defaults.
func DefaultConfig(endpoint, model string) Config {
	return Config{
		Endpoint:    endpoint,
		Model:       model,
		BatchSize:   32,
		MaxRetries:  5,
		MaxTextLen:  8192,
		CacheSize:   100_000,
		HTTPTimeout: 30 * time.Second,
	}
}

// CacheStats reports in-process embedding cache effectiveness.
type CacheStats struct {
	Hits    int64
	Total   int64
	HitRate float64
}

// Error is returned when a batch cannot be embedded after retries are
// exhausted. Items lists the texts that failed when the upstream
// service supports partial-result reporting; it is empty when the
// whole batch failed wholesale.
type Error struct {
	Err   error
	Items []int // indices into the original batch, if known
}

func (e *Error) Error() string {
	if len(e.Items) > 0 {
		return fmt.Sprintf("embedding error for %d item(s): %v", len(e.Items), e.Err)
	}
	return fmt.Sprintf("embedding error: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client batches and caches calls to an embedding inference service.
type Client struct {
	cfg    Config
	http   *retryablehttp.Client
	cache  *lru.Cache[string, []float32]
	mu     sync.Mutex
	hits   int64
	misses int64
}

// New creates a Client backed by a retryable HTTP client configured
// from cfg.
func New(cfg Config) (*Client, error) {
	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("embedclient: creating cache: %w", err)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.HTTPClient.Timeout = cfg.HTTPTimeout
	rc.Logger = nil

	return &Client{cfg: cfg, http: rc, cache: cache}, nil
}

// cacheKey returns the (model, sha256(text)) cache key.
func (c *Client) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.cfg.Model + ":" + hex.EncodeToString(sum[:])
}

// Embed returns one vector per input text, batching upstream requests
// of at most cfg.BatchSize texts and serving repeats from the cache.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var misses []int
	pending := make(map[string]int) // key -> first index sent upstream
	dupOf := make(map[int]int)      // repeat index -> first index

	for i, text := range texts {
		key := c.cacheKey(truncate(text, c.cfg.MaxTextLen))
		c.mu.Lock()
		vec, ok := c.cache.Get(key)
		first, dup := pending[key]
		if ok || dup {
			c.hits++
		} else {
			c.misses++
		}
		c.mu.Unlock()
		switch {
		case ok:
			results[i] = vec
		case dup:
			dupOf[i] = first
		default:
			pending[key] = i
			misses = append(misses, i)
		}
	}

	for start := 0; start < len(misses); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(misses) {
			end = len(misses)
		}
		batchIdx := misses[start:end]
		batchTexts := make([]string, len(batchIdx))
		for j, idx := range batchIdx {
			batchTexts[j] = truncate(texts[idx], c.cfg.MaxTextLen)
		}

		vecs, err := c.callBatch(ctx, batchTexts)
		if err != nil {
			return nil, err
		}

		for j, idx := range batchIdx {
			results[idx] = vecs[j]
			c.mu.Lock()
			c.cache.Add(c.cacheKey(batchTexts[j]), vecs[j])
			c.mu.Unlock()
		}
	}
	for i, first := range dupOf {
		results[i] = results[first]
	}

	return results, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Cached     bool        `json:"cached"`
}

// callBatch issues one POST /embeddings call, retrying via the
// retryablehttp client's exponential backoff on 429/5xx.
func (c *Client) callBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(embedRequest{Model: c.cfg.Model, Texts: texts})
	if err != nil {
		return nil, &Error{Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("after retries: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Err: fmt.Errorf("embedding service returned status %d", resp.StatusCode)}
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(out.Embeddings) != len(texts) {
		return nil, &Error{Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(out.Embeddings))}
	}
	return out.Embeddings, nil
}

// Stats returns the current cache hit rate.
func (c *Client) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{Hits: c.hits, Total: total, HitRate: rate}
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
