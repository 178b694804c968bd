package ai

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

// Ensure OllamaEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OllamaEmbedding)(nil)

// OllamaEmbedding implements EmbeddingService against a local Ollama server.
// This is the default embedder: the knowledge base is typically run next to
// an Ollama instance serving a small embedding model.
type OllamaEmbedding struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// Known dimensions for common Ollama embedding models
var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
	"bge-m3":            1024,
}

// NewOllamaEmbedding creates a new Ollama embedding service. A non-zero
// dimensions argument overrides the model default.
func NewOllamaEmbedding(baseURL, model string, dimensions int) (driven.EmbeddingService, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}

	if dimensions <= 0 {
		var ok bool
		dimensions, ok = ollamaModelDimensions[model]
		if !ok {
			return nil, fmt.Errorf("unknown Ollama model %q: dimensions must be configured explicitly", model)
		}
	}

	return &OllamaEmbedding{
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// ollamaEmbedRequest is the request body for Ollama's batch embed API
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the response from Ollama's batch embed API
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed generates embeddings for multiple texts using POST /api/embed
func (e *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var embResp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if embResp.Error != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmbeddingFailed, embResp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrEmbeddingFailed, resp.StatusCode)
	}
	if len(embResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
			domain.ErrEmbeddingFailed, len(embResp.Embeddings), len(texts))
	}

	return embResp.Embeddings, nil
}

// Dimensions returns the embedding dimension size
func (e *OllamaEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OllamaEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the Ollama server is reachable
func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", e.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check: status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources held by the embedding service
func (e *OllamaEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
