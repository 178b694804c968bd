// Package qdrant implements the vector index port against the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*Index)(nil)

// Config holds Qdrant connection configuration
type Config struct {
	// BaseURL is the Qdrant HTTP endpoint (http://localhost:6333)
	BaseURL string

	// Collection is the collection name
	Collection string

	// APIKey is sent as the api-key header when set
	APIKey string

	// Timeout for individual requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Collection: "knowledge_base",
		Timeout:    30 * time.Second,
	}
}

// Index talks to a Qdrant collection over its REST API
type Index struct {
	cfg    Config
	client *http.Client
}

// New creates a Qdrant-backed vector index
func New(cfg Config) *Index {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Index{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// EnsureCollection creates the collection if it does not exist. Qdrant's
// PUT /collections/{name} returns 409 when the collection already exists,
// which is treated as success.
func (i *Index) EnsureCollection(ctx context.Context, dimension int) error {
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": "Cosine",
		},
	}

	status, _, err := i.do(ctx, http.MethodPut, i.collectionPath(""), body)
	if err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	if status != http.StatusOK && status != http.StatusConflict {
		return fmt.Errorf("ensure collection: unexpected status %d", status)
	}
	return nil
}

type pointPayload struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

// Upsert writes points with wait=true so the write is visible to the next
// similarity query in the same scan.
func (i *Index) Upsert(ctx context.Context, vectors []domain.ChunkVector) error {
	if len(vectors) == 0 {
		return nil
	}

	points := make([]pointPayload, 0, len(vectors))
	for _, v := range vectors {
		points = append(points, pointPayload{
			ID:     v.PointID,
			Vector: v.Vector,
			Payload: map[string]interface{}{
				"document_id": v.Payload.DocumentID,
				"file_name":   v.Payload.FileName,
				"chunk_index": v.Payload.ChunkIndex,
				"content":     v.Payload.Content,
				"created_at":  v.Payload.CreatedAt.Format(time.RFC3339),
			},
		})
	}

	body := map[string]interface{}{"points": points}
	status, respBody, err := i.do(ctx, http.MethodPut, i.collectionPath("/points?wait=true"), body)
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("upsert points: status %d: %s", status, snippet(respBody))
	}
	return nil
}

// Delete removes points by ID
func (i *Index) Delete(ctx context.Context, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return nil
	}

	body := map[string]interface{}{"points": pointIDs}
	status, respBody, err := i.do(ctx, http.MethodPost, i.collectionPath("/points/delete?wait=true"), body)
	if err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("delete points: status %d: %s", status, snippet(respBody))
	}
	return nil
}

// DeleteByDocument removes every point whose payload names the document
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "document_id", "match": map[string]interface{}{"value": documentID}},
			},
		},
	}

	status, respBody, err := i.do(ctx, http.MethodPost, i.collectionPath("/points/delete?wait=true"), body)
	if err != nil {
		return fmt.Errorf("delete by document: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("delete by document: status %d: %s", status, snippet(respBody))
	}
	return nil
}

type searchResponse struct {
	Result []struct {
		ID      interface{}            `json:"id"`
		Score   float64                `json:"score"`
		Payload map[string]interface{} `json:"payload"`
	} `json:"result"`
}

// Query runs a nearest-neighbor search, excluding the querying document's
// own points so a document never matches itself.
func (i *Index) Query(ctx context.Context, vector []float32, excludeDocumentID string, topK int) ([]domain.ScoredPoint, error) {
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if excludeDocumentID != "" {
		body["filter"] = map[string]interface{}{
			"must_not": []map[string]interface{}{
				{"key": "document_id", "match": map[string]interface{}{"value": excludeDocumentID}},
			},
		}
	}

	status, respBody, err := i.do(ctx, http.MethodPost, i.collectionPath("/points/search"), body)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search points: status %d: %s", status, snippet(respBody))
	}

	var resp searchResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	points := make([]domain.ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		points = append(points, domain.ScoredPoint{
			PointID: fmt.Sprintf("%v", r.ID),
			Score:   r.Score,
			Payload: payloadFromMap(r.Payload),
		})
	}
	return points, nil
}

func payloadFromMap(m map[string]interface{}) domain.VectorPayload {
	var p domain.VectorPayload
	if v, ok := m["document_id"].(string); ok {
		p.DocumentID = v
	}
	if v, ok := m["file_name"].(string); ok {
		p.FileName = v
	}
	if v, ok := m["chunk_index"].(float64); ok {
		p.ChunkIndex = int(v)
	}
	if v, ok := m["content"].(string); ok {
		p.Content = v
	}
	if v, ok := m["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.CreatedAt = t
		}
	}
	return p
}

type countResponse struct {
	Result struct {
		Count int `json:"count"`
	} `json:"result"`
}

// Count returns the exact number of points in the collection
func (i *Index) Count(ctx context.Context) (int, error) {
	body := map[string]interface{}{"exact": true}

	status, respBody, err := i.do(ctx, http.MethodPost, i.collectionPath("/points/count"), body)
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("count points: status %d: %s", status, snippet(respBody))
	}

	var resp countResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return resp.Result.Count, nil
}

// HealthCheck verifies the collection exists and is reachable
func (i *Index) HealthCheck(ctx context.Context) error {
	status, _, err := i.do(ctx, http.MethodGet, i.collectionPath(""), nil)
	if err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("qdrant health check: status %d", status)
	}
	return nil
}

func (i *Index) collectionPath(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", i.cfg.BaseURL, i.cfg.Collection, suffix)
}

func (i *Index) do(ctx context.Context, method, url string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if i.cfg.APIKey != "" {
		req.Header.Set("api-key", i.cfg.APIKey)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
