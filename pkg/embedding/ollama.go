package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"rag-pipeline-go/internal/config"
	"rag-pipeline-go/pkg/log"
)

// ollamaClient generates embeddings through a local Ollama server.
type ollamaClient struct {
	client *api.Client
	model  string
}

func newOllamaClient(cfg config.EmbeddingConfig) (*ollamaClient, error) {
	host := envconfig.Host()
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base url %q: %w", cfg.BaseURL, err)
		}
		host = u
	}
	return &ollamaClient{
		client: api.NewClient(host, &http.Client{Timeout: cfg.Timeout()}),
		model:  cfg.Model,
	}, nil
}

// Encode 逐条调用 Ollama embeddings 接口，保持输入顺序。
func (c *ollamaClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		resp, err := c.client.Embeddings(ctx, &api.EmbeddingRequest{
			Model:  c.model,
			Prompt: text,
		})
		if err != nil {
			log.Errorf("[EmbeddingClient] Ollama 向量化失败, index: %d, error: %v", i, err)
			return nil, fmt.Errorf("failed to create embedding: %w", err)
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("ollama returned empty embedding for input %d", i)
		}
		vec := make([]float32, len(resp.Embedding))
		for j, v := range resp.Embedding {
			vec[j] = float32(v)
		}
		out = append(out, vec)
	}
	return out, nil
}
