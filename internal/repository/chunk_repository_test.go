package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipeline-go/internal/model"
)

func TestChunkRepositorySaveAndLoad(t *testing.T) {
	repo := NewChunkRepository(t.TempDir())

	for i, text := range []string{"alpha beta", "gamma delta"} {
		path, err := repo.Save("docB", i, model.Chunk{DocID: "docB", ChunkIndex: i, ChunkID: model.ChunkIDFor("docB", i), Text: text, Source: "b.txt", Page: model.IntPtr(1)})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(repo.BaseDir(), "docB", "chunk_"+string(rune('0'+i))+".json"), path)
	}
	_, err := repo.Save("docA", 0, model.Chunk{DocID: "docA", ChunkIndex: 0, ChunkID: "docA_0", Text: "first"})
	require.NoError(t, err)

	chunks, err := repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"docA_0", "docB_0", "docB_1"}, []string{chunks[0].ChunkID, chunks[1].ChunkID, chunks[2].ChunkID})
	require.NotNil(t, chunks[1].Page)
	assert.Equal(t, 1, *chunks[1].Page)
}

func TestChunkRepositorySkipsMalformedAndDerivesID(t *testing.T) {
	base := t.TempDir()
	docDir := filepath.Join(base, "doc1")
	require.NoError(t, os.MkdirAll(docDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docDir, "chunk_0.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docDir, "chunk_1.json"), []byte(`{"doc_id":"doc1","chunk_index":1,"text":"hello"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docDir, "notes.txt"), []byte("ignored"), 0o644))

	chunks, err := NewChunkRepository(base).LoadAll()
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc1_1", chunks[0].ChunkID)
}

func TestChunkRepositoryMissingDir(t *testing.T) {
	chunks, err := NewChunkRepository(filepath.Join(t.TempDir(), "absent")).LoadAll()
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
