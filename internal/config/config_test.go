package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.False(t, cfg.MockMode)
	assert.Equal(t, "local", cfg.Retrieval.Mode)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 30*time.Second, cfg.Retrieval.Timeout())
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.InDelta(t, 0.1, cfg.LLM.Generation.Temperature, 1e-9)
	assert.Equal(t, 2048, cfg.LLM.Generation.MaxTokens)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, "needs human review", cfg.Parser.FailureMessage)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
mock_mode: true
retrieval:
  mode: http
  top_k: 8
chunking:
  chunk_size: 200
  overlap: 20
llm:
  generation:
    max_tokens: 512
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.MockMode)
	assert.Equal(t, "http", cfg.Retrieval.Mode)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 200, cfg.Chunking.ChunkSize)
	assert.Equal(t, 20, cfg.Chunking.Overlap)
	assert.Equal(t, 512, cfg.LLM.Generation.MaxTokens)
	// 未覆盖的键保留默认值
	assert.Equal(t, "8000", cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RAG_SERVER_PORT", "9090")
	t.Setenv("GROQ_MODEL", "mixtral")
	t.Setenv("RETRIEVAL_TIMEOUT", "7")
	t.Setenv("MOCK_MODE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "mixtral", cfg.LLM.Model)
	assert.Equal(t, 7*time.Second, cfg.Retrieval.Timeout())
	assert.True(t, cfg.MockMode)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestTimeoutFallback(t *testing.T) {
	assert.Equal(t, 60*time.Second, LLMConfig{}.Timeout())
	assert.Equal(t, 60*time.Second, EmbeddingConfig{TimeoutSeconds: -1}.Timeout())
}
