// Package embedding provides clients that turn text into fixed-dimension vectors.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"rag-pipeline-go/internal/config"
	"rag-pipeline-go/pkg/log"
)

// Client defines the interface for an embedding model.
// Encode returns one vector per input text, in input order.
type Client interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

// NewClient creates an embedding client based on the provider in the config.
// In mock mode the deterministic hash embedder is always used.
func NewClient(cfg config.EmbeddingConfig, mockMode bool) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if mockMode {
		provider = ProviderHash
	}
	log.Infof("[EmbeddingClient] 使用 embedding provider: %s, model: %s", provider, cfg.Model)

	switch provider {
	case ProviderOpenAI:
		return newOpenAICompatibleClient(cfg), nil
	case ProviderOllama:
		return newOllamaClient(cfg)
	case ProviderHash, "":
		return NewHashClient(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
