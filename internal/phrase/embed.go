// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package phrase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/decred/go-socks/socks"
)

// Embedder produces sentence embeddings for semantic similarity checks.
type Embedder interface {
	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// HTTPEmbedderConfig configures an HTTP embedding backend.
type HTTPEmbedderConfig struct {
	// URL is the embedding endpoint.  The backend accepts a JSON body
	// {"texts": [...]} and answers {"embeddings": [[...], ...]}.
	URL string

	// Proxy optionally routes backend traffic through a SOCKS5 proxy
	// given as host:port.
	Proxy string

	// ProxyUser and ProxyPass are optional proxy credentials.
	ProxyUser string
	ProxyPass string

	// Timeout bounds each embedding request.  Zero selects 10 seconds.
	Timeout time.Duration
}

// httpEmbedder calls an external embedding service over HTTP.  The
// underlying client is built lazily on first use so constructing a
// validator never touches the network.
type httpEmbedder struct {
	cfg HTTPEmbedderConfig

	once   sync.Once
	client *http.Client
}

// NewHTTPEmbedder returns an Embedder backed by an HTTP embedding
// service.
func NewHTTPEmbedder(cfg HTTPEmbedderConfig) Embedder {
	return &httpEmbedder{cfg: cfg}
}

func (e *httpEmbedder) httpClient() *http.Client {
	e.once.Do(func() {
		timeout := e.cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		transport := &http.Transport{}
		if e.cfg.Proxy != "" {
			proxy := &socks.Proxy{
				Addr:     e.cfg.Proxy,
				Username: e.cfg.ProxyUser,
				Password: e.cfg.ProxyPass,
			}
			transport.DialContext = proxy.DialContext
		}
		e.client = &http.Client{
			Transport: transport,
			Timeout:   timeout,
		}
	})
	return e.client
}

func (e *httpEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(struct {
		Texts []string `json:"texts"`
	}{Texts: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL,
		bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding backend returned status %d",
			resp.StatusCode)
	}

	var decoded struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding backend returned %d vectors for "+
			"%d texts", len(decoded.Embeddings), len(texts))
	}
	return decoded.Embeddings, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either vector is zero or the lengths differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// semanticSimilarity embeds both phrases and returns their cosine
// similarity.  Phrases are lowercased before embedding so the backend
// sees the same casing regardless of how the player typed them.
func semanticSimilarity(ctx context.Context, e Embedder, a, b string) (float64, error) {
	vecs, err := e.Embed(ctx, []string{
		strings.ToLower(strings.TrimSpace(a)),
		strings.ToLower(strings.TrimSpace(b)),
	})
	if err != nil {
		return 0, err
	}
	return cosineSimilarity(vecs[0], vecs[1]), nil
}
