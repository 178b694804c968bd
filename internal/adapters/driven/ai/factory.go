// Package ai contains embedding provider adapters.
package ai

import (
	"fmt"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Provider identifies an embedding backend
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Config selects and configures an embedding provider
type Config struct {
	Provider Provider

	// Model is the embedding model name; provider-specific default when empty
	Model string

	// BaseURL overrides the provider endpoint
	BaseURL string

	// APIKey is required for hosted providers
	APIKey string

	// Dimensions overrides the model's default vector size when non-zero.
	// Must match the vector collection's configured dimension.
	Dimensions int
}

// NewEmbeddingService creates an embedding service from configuration
func NewEmbeddingService(cfg Config) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		return NewOllamaEmbedding(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case ProviderOpenAI:
		return NewOpenAIEmbedding(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, cfg.Provider)
	}
}
