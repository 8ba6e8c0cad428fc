package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipeline-go/internal/config"
	"rag-pipeline-go/internal/service"
)

func mockConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	root := t.TempDir()
	cfg.MockMode = true
	cfg.Storage.ChunksDir = filepath.Join(root, "chunks")
	cfg.Storage.UploadsDir = filepath.Join(root, "uploads")
	cfg.Storage.IndexDir = filepath.Join(root, "index")
	cfg.Prompt.Dir = "../../prompts"
	cfg.Embedding.Dimensions = 32
	return cfg
}

func TestNewMockModeWiring(t *testing.T) {
	a, err := New(context.Background(), mockConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.KafkaEnabled())
	assert.False(t, a.LoadIndex())

	res, err := a.Orchestrator.Run(context.Background(), "what applies?", nil, "qa")
	require.NoError(t, err)
	assert.Len(t, res.Checklist, 4)

	_, err = a.DocumentSvc.List(context.Background())
	assert.ErrorIs(t, err, service.ErrNotConfigured)
}

func TestIngestThenReload(t *testing.T) {
	cfg := mockConfig(t)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("quality system records must be retained"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	report, err := a.IngestSvc.Ingest(context.Background(), []service.UploadedFile{{FileName: "doc.txt", Reader: f}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reindexed)

	b, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()
	assert.True(t, b.LoadIndex())
	assert.Equal(t, 1, b.Index.Size())
}

func TestNewRejectsInvalidChunking(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Chunking.Overlap = cfg.Chunking.ChunkSize
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
