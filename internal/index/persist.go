package index

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/pkg/log"
	"rag-pipeline-go/pkg/metrics"
)

const (
	vectorsFile  = "vectors.gob"
	metadataFile = "chunk_metadata.json"
)

// vectorMatrix 是 vectors.gob 的磁盘格式：按行展开的 float32 矩阵。
type vectorMatrix struct {
	Dim  int
	Rows int
	Data []float32
}

// Save 把向量矩阵与元数据表成对写入持久化目录。
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.saveLocked()
}

func (idx *Index) saveLocked() error {
	if !idx.loaded {
		return ErrIndexNotLoaded
	}
	if err := os.MkdirAll(idx.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}

	matrix := vectorMatrix{Dim: idx.dim, Rows: len(idx.vectors), Data: make([]float32, 0, idx.dim*len(idx.vectors))}
	for _, v := range idx.vectors {
		matrix.Data = append(matrix.Data, v...)
	}
	if err := writeAtomic(filepath.Join(idx.dir, vectorsFile), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(matrix)
	}); err != nil {
		return fmt.Errorf("failed to save vectors: %w", err)
	}

	if err := writeAtomic(filepath.Join(idx.dir, metadataFile), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(idx.meta)
	}); err != nil {
		return fmt.Errorf("failed to save chunk metadata: %w", err)
	}

	log.Infof("[Index] 索引已保存到 %s, 向量数: %d", idx.dir, len(idx.vectors))
	return nil
}

// Load 从持久化目录恢复索引。两个文件缺任意一个时返回 false 且不报错；
// 文件损坏或行数不一致时返回 ErrCorruptIndex。
func (idx *Index) Load() (bool, error) {
	vecPath := filepath.Join(idx.dir, vectorsFile)
	metaPath := filepath.Join(idx.dir, metadataFile)
	if !exists(vecPath) || !exists(metaPath) {
		log.Warnf("[Index] 持久化索引不完整或不存在, dir: %s", idx.dir)
		return false, nil
	}

	var matrix vectorMatrix
	if err := readFile(vecPath, func(f *os.File) error { return gob.NewDecoder(f).Decode(&matrix) }); err != nil {
		return false, fmt.Errorf("%w: vectors: %v", ErrCorruptIndex, err)
	}
	var meta []model.Chunk
	if err := readFile(metaPath, func(f *os.File) error { return json.NewDecoder(f).Decode(&meta) }); err != nil {
		return false, fmt.Errorf("%w: metadata: %v", ErrCorruptIndex, err)
	}
	if matrix.Rows != len(meta) || len(matrix.Data) != matrix.Rows*matrix.Dim || (matrix.Rows > 0 && matrix.Dim == 0) {
		return false, fmt.Errorf("%w: %d vectors, %d metadata rows", ErrCorruptIndex, matrix.Rows, len(meta))
	}

	vectors := make([][]float32, matrix.Rows)
	for i := range vectors {
		vectors[i] = matrix.Data[i*matrix.Dim : (i+1)*matrix.Dim : (i+1)*matrix.Dim]
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dim = matrix.Dim
	idx.vectors = vectors
	idx.meta = meta
	idx.loaded = true
	metrics.IndexVectors.Set(float64(len(vectors)))
	log.Infof("[Index] 已从 %s 加载索引, 向量数: %d", idx.dir, len(vectors))
	return true, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readFile(path string, decode func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decode(f)
}

// writeAtomic 先写临时文件再 rename，避免留下写了一半的文件。
func writeAtomic(path string, encode func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if err := encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
