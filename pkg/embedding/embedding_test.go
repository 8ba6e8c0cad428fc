package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipeline-go/internal/config"
)

func TestHashClientDeterministicAndNormalized(t *testing.T) {
	h := NewHashClient(64)
	a, err := h.Encode(context.Background(), []string{"Golf rules: the ball", "golf RULES the ball!"})
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Len(t, a[0], 64)
	assert.Equal(t, a[0], a[1], "tokenisation ignores case and punctuation")

	var norm float64
	for _, v := range a[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	b, err := h.Encode(context.Background(), []string{"Golf rules: the ball"})
	require.NoError(t, err)
	assert.Equal(t, a[0], b[0])
}

func TestHashClientEmptyText(t *testing.T) {
	v, err := NewHashClient(0).Encode(context.Background(), []string{""})
	require.NoError(t, err)
	assert.Len(t, v[0], defaultHashDimensions)
	for _, x := range v[0] {
		assert.Zero(t, x)
	}
}

func TestNewClientMockModeForcesHash(t *testing.T) {
	c, err := NewClient(config.EmbeddingConfig{Provider: ProviderOpenAI, Dimensions: 16}, true)
	require.NoError(t, err)
	assert.IsType(t, &HashClient{}, c)

	_, err = NewClient(config.EmbeddingConfig{Provider: "nope"}, false)
	assert.Error(t, err)
}

func TestOpenAICompatibleClientBatches(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		for i, in := range req.Input {
			data[i] = item{Index: i, Embedding: []float32{float32(len(in)), 1}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	c, err := NewClient(config.EmbeddingConfig{Provider: ProviderOpenAI, BaseURL: srv.URL, APIKey: "key", Model: "m", BatchSize: 2}, false)
	require.NoError(t, err)

	vecs, err := c.Encode(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}, {3, 1}}, vecs)
}

func TestOpenAICompatibleClientNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(config.EmbeddingConfig{Provider: ProviderOpenAI, BaseURL: srv.URL}, false)
	require.NoError(t, err)
	_, err = c.Encode(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "401")
}

func TestOllamaClientEncode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.5, 0.25}})
	}))
	defer srv.Close()

	c, err := NewClient(config.EmbeddingConfig{Provider: ProviderOllama, BaseURL: srv.URL, Model: "nomic-embed-text"}, false)
	require.NoError(t, err)
	vecs, err := c.Encode(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.25}, {0.5, 0.25}}, vecs)
}
