// Package index 实现基于平铺向量矩阵的最近邻索引，支持持久化与整体重建。
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/internal/repository"
	"rag-pipeline-go/pkg/embedding"
	"rag-pipeline-go/pkg/log"
	"rag-pipeline-go/pkg/metrics"
)

const DefaultTopK = 5

var (
	// ErrNoEmbeddingModel 表示索引没有注入 embedding 模型。
	ErrNoEmbeddingModel = errors.New("no embedding model configured")
	// ErrCorruptIndex 表示持久化的索引文件无法使用。
	ErrCorruptIndex = errors.New("persisted index is corrupt")
	// ErrIndexNotLoaded 表示索引尚未构建或加载。
	ErrIndexNotLoaded = errors.New("index not loaded")
	// ErrNoChunks 表示重建时没有找到任何分块。
	ErrNoChunks = errors.New("no chunks found")
)

// Filters 限定检索范围，DocID 为空表示不过滤。
type Filters struct {
	DocID string `json:"doc_id,omitempty"`
}

// Index 持有向量矩阵与按位置对齐的分块元数据表。
// 检索持有读锁；构建、保存、重建持有写锁，检索只会看到重建前或重建后的完整索引。
type Index struct {
	mu        sync.RWMutex
	rebuildMu sync.Mutex

	encoder embedding.Client
	dir     string

	dim     int
	vectors [][]float32
	meta    []model.Chunk
	loaded  bool
}

// New 创建一个空索引，dir 为持久化目录。
func New(encoder embedding.Client, dir string) *Index {
	return &Index{encoder: encoder, dir: dir}
}

// Dir 返回持久化目录。
func (idx *Index) Dir() string { return idx.dir }

// Size 返回索引中的向量数量。
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Loaded 表示索引是否已经通过构建或加载就绪。
func (idx *Index) Loaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loaded
}

// LoadChunks 读取 dir 下所有文档目录中的分块文件，跳过无法解析的文件。
func (idx *Index) LoadChunks(dir string) ([]model.Chunk, error) {
	return repository.NewChunkRepository(dir).LoadAll()
}

// EmbedChunks 用注入的模型把每个分块文本转换为向量，顺序与 chunks 一致。
func (idx *Index) EmbedChunks(ctx context.Context, chunks []model.Chunk) ([][]float32, error) {
	if idx.encoder == nil {
		return nil, ErrNoEmbeddingModel
	}
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := idx.encoder.Encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding model returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return vectors, nil
}

// BuildIndex 用给定向量与分块整体替换当前索引。
func (idx *Index) BuildIndex(vectors [][]float32, chunks []model.Chunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.buildLocked(vectors, chunks)
}

func (idx *Index) buildLocked(vectors [][]float32, chunks []model.Chunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("vector count %d does not match chunk count %d", len(vectors), len(chunks))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}

	idx.dim = dim
	idx.vectors = vectors
	idx.meta = append([]model.Chunk(nil), chunks...)
	idx.loaded = true
	metrics.IndexVectors.Set(float64(len(vectors)))
	log.Infof("[Index] 索引构建完成, 向量数: %d, 维度: %d", len(vectors), dim)
	return nil
}

// Rebuild 读取分块、向量化、构建并持久化索引。
// 向量化在锁外完成，替换与保存在写锁内完成。
func (idx *Index) Rebuild(ctx context.Context, chunksDir string) (int, error) {
	idx.rebuildMu.Lock()
	defer idx.rebuildMu.Unlock()

	log.Infof("[Index] 步骤1: 读取分块, dir: %s", chunksDir)
	chunks, err := idx.LoadChunks(chunksDir)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, ErrNoChunks
	}

	log.Infof("[Index] 步骤2: 向量化 %d 个分块", len(chunks))
	vectors, err := idx.EmbedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	log.Info("[Index] 步骤3: 构建并保存索引")
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.buildLocked(vectors, chunks); err != nil {
		return 0, err
	}
	if err := idx.saveLocked(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Search 对查询文本向量化，按平方欧氏距离返回最近的 k 个分块。
// 设置 DocID 过滤时会继续扫描，直到凑满 k 个匹配的分块或扫描结束。
// 索引为空时返回空结果而不是错误。
func (idx *Index) Search(ctx context.Context, query string, k int, filters Filters) ([]model.SearchHit, error) {
	if idx.encoder == nil {
		return nil, ErrNoEmbeddingModel
	}
	if k <= 0 {
		k = DefaultTopK
	}
	if idx.Size() == 0 {
		return []model.SearchHit{}, nil
	}

	qv, err := idx.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(qv) != 1 {
		return nil, fmt.Errorf("embedding model returned %d vectors for query", len(qv))
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return []model.SearchHit{}, nil
	}
	if len(qv[0]) != idx.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(qv[0]), idx.dim)
	}

	type candidate struct {
		pos  int
		dist float64
	}
	cands := make([]candidate, len(idx.vectors))
	for i, v := range idx.vectors {
		cands[i] = candidate{pos: i, dist: squaredL2(qv[0], v)}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	hits := make([]model.SearchHit, 0, k)
	for _, c := range cands {
		chunk := idx.meta[c.pos]
		if filters.DocID != "" && chunk.DocID != filters.DocID {
			continue
		}
		hits = append(hits, model.SearchHit{
			ChunkID:     chunk.ChunkID,
			DocID:       chunk.DocID,
			ChunkIndex:  chunk.ChunkIndex,
			Text:        chunk.Text,
			Source:      chunk.Source,
			Page:        chunk.Page,
			StartOffset: chunk.StartOffset,
			EndOffset:   chunk.EndOffset,
			Score:       Score(c.dist),
			Distance:    c.dist,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Score 把距离映射为 (0, 1] 区间的相似度，距离越小分数越高。
func Score(distance float64) float64 {
	return 1 / (1 + distance)
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
