package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/internal/repository"
	"rag-pipeline-go/pkg/embedding"
)

var corpus = map[string][]string{
	"docA": {"the golf ball must be played as it lies", "a penalty stroke applies for a lost ball", "the putting green is marked by the flagstick"},
	"docB": {"bunkers are areas of prepared sand", "relief from abnormal course conditions is free"},
	"docC": {"the golf ball lies in the bunker sand near the green"},
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo := repository.NewChunkRepository(dir)
	for doc, texts := range corpus {
		for i, text := range texts {
			_, err := repo.Save(doc, i, model.Chunk{DocID: doc, ChunkIndex: i, ChunkID: model.ChunkIDFor(doc, i), Text: text, Source: doc + ".txt"})
			require.NoError(t, err)
		}
	}
	return dir
}

func ids(hits []model.SearchHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ChunkID
	}
	return out
}

func TestRebuildAndSearch(t *testing.T) {
	chunksDir := writeCorpus(t)
	idx := New(embedding.NewHashClient(128), t.TempDir())

	n, err := idx.Rebuild(context.Background(), chunksDir)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 6, idx.Size())
	assert.True(t, idx.Loaded())

	hits, err := idx.Search(context.Background(), "the putting green is marked by the flagstick", 3, Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "docA_2", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	chunksDir := writeCorpus(t)
	indexDir := t.TempDir()
	enc := embedding.NewHashClient(64)

	original := New(enc, indexDir)
	_, err := original.Rebuild(context.Background(), chunksDir)
	require.NoError(t, err)
	before, err := original.Search(context.Background(), "golf ball sand", 4, Filters{})
	require.NoError(t, err)

	restored := New(enc, indexDir)
	ok, err := restored.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, original.Size(), restored.Size())

	after, err := restored.Search(context.Background(), "golf ball sand", 4, Filters{})
	require.NoError(t, err)
	assert.Equal(t, ids(before), ids(after))
}

func TestBuildIndexIsFullReplace(t *testing.T) {
	idx := New(embedding.NewHashClient(32), t.TempDir())
	chunks, err := idx.LoadChunks(writeCorpus(t))
	require.NoError(t, err)
	vectors, err := idx.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)

	require.NoError(t, idx.BuildIndex(vectors, chunks))
	assert.Equal(t, len(chunks), idx.Size())
	require.NoError(t, idx.BuildIndex(vectors, chunks))
	assert.Equal(t, len(chunks), idx.Size())

	assert.Error(t, idx.BuildIndex(vectors[:1], chunks))
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := New(embedding.NewHashClient(32), t.TempDir())
	hits, err := idx.Search(context.Background(), "anything", 5, Filters{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.BuildIndex([][]float32{}, []model.Chunk{}))
	hits, err = idx.Search(context.Background(), "anything", 5, Filters{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchFilterScansPastK(t *testing.T) {
	idx := New(embedding.NewHashClient(128), t.TempDir())
	_, err := idx.Rebuild(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	// docB 的分块与查询都不相近，但过滤后仍然要凑满 k 个
	hits, err := idx.Search(context.Background(), "the golf ball lies in the bunker sand near the green", 2, Filters{DocID: "docB"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "docB", h.DocID)
	}
}

func TestMissingEmbeddingModel(t *testing.T) {
	idx := New(nil, t.TempDir())
	_, err := idx.Search(context.Background(), "q", 1, Filters{})
	assert.ErrorIs(t, err, ErrNoEmbeddingModel)
	_, err = idx.EmbedChunks(context.Background(), []model.Chunk{{Text: "x"}})
	assert.ErrorIs(t, err, ErrNoEmbeddingModel)
}

func TestRebuildWithoutChunks(t *testing.T) {
	idx := New(embedding.NewHashClient(8), t.TempDir())
	_, err := idx.Rebuild(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrNoChunks)
	assert.False(t, idx.Loaded())
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	indexDir := t.TempDir()
	idx := New(embedding.NewHashClient(16), indexDir)

	ok, err := idx.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = idx.Rebuild(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	// 只剩一半文件时视为索引不存在
	require.NoError(t, os.Remove(filepath.Join(indexDir, metadataFile)))
	ok, err = New(embedding.NewHashClient(16), indexDir).Load()
	require.NoError(t, err)
	assert.False(t, ok)

	// 行数不一致视为损坏
	data, err := json.Marshal([]model.Chunk{{ChunkID: "only_one", Text: "x"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(indexDir, metadataFile), data, 0o644))
	ok, err = New(embedding.NewHashClient(16), indexDir).Load()
	assert.ErrorIs(t, err, ErrCorruptIndex)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(indexDir, vectorsFile), []byte("garbage"), 0o644))
	_, err = New(embedding.NewHashClient(16), indexDir).Load()
	assert.ErrorIs(t, err, ErrCorruptIndex)
}

func TestConcurrentSearchDuringRebuild(t *testing.T) {
	chunksDir := writeCorpus(t)
	idx := New(embedding.NewHashClient(32), t.TempDir())
	_, err := idx.Rebuild(context.Background(), chunksDir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				_, err := idx.Rebuild(context.Background(), chunksDir)
				assert.NoError(t, err)
				return
			}
			hits, err := idx.Search(context.Background(), fmt.Sprintf("golf %d", i), 3, Filters{})
			assert.NoError(t, err)
			assert.Len(t, hits, 3)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 6, idx.Size())
}

func TestScoreIsOrderPreserving(t *testing.T) {
	assert.Equal(t, 1.0, Score(0))
	assert.Greater(t, Score(0.5), Score(1.5))
}
