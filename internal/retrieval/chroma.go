// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// CHROMADB RETRIEVER
// =============================================================================

// Embedder produces an embedding vector for a query string. Satisfied by
// *ollama.Client.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, model string, text string) ([]float64, error)
}

// ChromaConfig holds connection settings for the ChromaDB v2 API.
type ChromaConfig struct {
	// BaseURL of the ChromaDB server (default: http://127.0.0.1:8000)
	BaseURL string
	// Tenant and Database appear in every v2 API path.
	Tenant   string
	Database string
	// Collection holding the OCR'd textbook chunks.
	Collection string
	// EmbeddingModel passed to the embedder for query vectors.
	EmbeddingModel string
	// Timeout for search requests (default: 30s)
	Timeout time.Duration
}

// ChromaRetriever queries a ChromaDB collection over its v2 HTTP API.
//
// The official Go client is not used: the v2 REST surface is small and the
// client libraries have lagged behind API revisions, so we talk to the
// endpoints directly.
type ChromaRetriever struct {
	cfg        ChromaConfig
	embedder   Embedder
	httpClient *http.Client
	logger     *zap.Logger

	mu           sync.Mutex
	collectionID string // resolved lazily, cached
}

// NewChromaRetriever creates a retriever for the configured collection.
func NewChromaRetriever(cfg ChromaConfig, embedder Embedder, logger *zap.Logger) *ChromaRetriever {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:8000"
	}
	if cfg.Tenant == "" {
		cfg.Tenant = "default_tenant"
	}
	if cfg.Database == "" {
		cfg.Database = "default_database"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromaRetriever{
		cfg:        cfg,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// apiBase returns the tenant/database-scoped v2 API prefix.
func (r *ChromaRetriever) apiBase() string {
	return fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s", r.cfg.BaseURL, r.cfg.Tenant, r.cfg.Database)
}

// Heartbeat checks that the ChromaDB server is alive.
func (r *ChromaRetriever) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"/api/v2/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("create heartbeat request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat failed with status %d", resp.StatusCode)
	}
	return nil
}

// resolveCollectionID looks up the collection id by name and caches it.
func (r *ChromaRetriever) resolveCollectionID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.collectionID != "" {
		return r.collectionID, nil
	}

	url := fmt.Sprintf("%s/collections/%s", r.apiBase(), r.cfg.Collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get collection: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("get collection %q failed (status %d): %s", r.cfg.Collection, resp.StatusCode, string(body))
	}

	var col struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&col); err != nil {
		return "", fmt.Errorf("decode collection: %w", err)
	}
	r.collectionID = col.ID
	return col.ID, nil
}

// queryResponse mirrors the nested-array shape of a ChromaDB query result.
type queryResponse struct {
	IDs       [][]string                 `json:"ids"`
	Documents [][]string                 `json:"documents"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Distances [][]float64                `json:"distances"`
}

// Search embeds the query and runs a nearest-neighbor search, returning up
// to k passages ranked by distance.
func (r *ChromaRetriever) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = 5
	}

	embedding, err := r.embedder.GenerateEmbedding(ctx, r.cfg.EmbeddingModel, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	colID, err := r.resolveCollectionID(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"query_embeddings": [][]float64{embedding},
		"n_results":        k,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/query", r.apiBase(), colID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("query failed (status %d): %s", resp.StatusCode, string(body))
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	passages := flattenQueryResponse(&qr)
	r.logger.Debug("similarity search completed",
		zap.String("collection", r.cfg.Collection),
		zap.Int("requested", k),
		zap.Int("returned", len(passages)))
	return passages, nil
}

// flattenQueryResponse converts the first (and only) query's nested arrays
// into passages, applying defensive defaults for missing metadata.
func flattenQueryResponse(qr *queryResponse) []Passage {
	if len(qr.Documents) == 0 {
		return nil
	}
	docs := qr.Documents[0]
	passages := make([]Passage, 0, len(docs))
	for i, text := range docs {
		p := Passage{Text: text, Distance: 1.0, Page: "N/A"}
		if len(qr.Distances) > 0 && i < len(qr.Distances[0]) {
			p.Distance = clampDistance(qr.Distances[0][i])
		}
		if len(qr.Metadatas) > 0 && i < len(qr.Metadatas[0]) {
			meta := qr.Metadatas[0][i]
			if s, ok := meta["source"].(string); ok {
				p.Source = s
			}
			p.Page = formatPage(meta["page"])
		}
		passages = append(passages, p)
	}
	return passages
}

// clampDistance forces a backend distance into [0,1]. Collections indexed
// with l2 space can report values above 1.
func clampDistance(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}

// formatPage renders the page metadata, which arrives as a JSON number or
// string depending on how the OCR pipeline stored it.
func formatPage(v interface{}) string {
	switch p := v.(type) {
	case string:
		if p == "" {
			return "N/A"
		}
		return p
	case float64:
		return strconv.Itoa(int(p))
	default:
		return "N/A"
	}
}
