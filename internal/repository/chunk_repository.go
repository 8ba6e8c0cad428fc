// Package repository 定义了分块文件、文档登记与运行历史的持久化接口和实现。
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/pkg/log"
)

// ChunkRepository 以每个分块一个 JSON 文件的形式保存分块：<base>/<doc_id>/chunk_<index>.json。
type ChunkRepository interface {
	Save(docID string, index int, chunk model.Chunk) (string, error)
	LoadAll() ([]model.Chunk, error)
	BaseDir() string
}

type fsChunkRepository struct {
	baseDir string
}

// NewChunkRepository 创建一个基于本地文件系统的 ChunkRepository。
func NewChunkRepository(baseDir string) ChunkRepository {
	return &fsChunkRepository{baseDir: baseDir}
}

func (r *fsChunkRepository) BaseDir() string { return r.baseDir }

// Save 写入单个分块文件并返回其路径。
func (r *fsChunkRepository) Save(docID string, index int, chunk model.Chunk) (string, error) {
	docDir := filepath.Join(r.baseDir, docID)
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create chunk dir: %w", err)
	}
	data, err := json.MarshalIndent(chunk, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal chunk: %w", err)
	}
	path := filepath.Join(docDir, fmt.Sprintf("chunk_%d.json", index))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write chunk file: %w", err)
	}
	return path, nil
}

// LoadAll 扫描所有文档子目录并读取分块文件。
// 无法解析的文件会被跳过并记录警告，不影响其它文件。目录不存在时返回空结果。
// 结果按文档目录名、再按 chunk_index 排序。
func (r *fsChunkRepository) LoadAll() ([]model.Chunk, error) {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("[ChunkRepository] 分块目录不存在: %s", r.baseDir)
			return []model.Chunk{}, nil
		}
		return nil, fmt.Errorf("failed to read chunks dir: %w", err)
	}

	chunks := make([]model.Chunk, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		docChunks := r.loadDoc(entry.Name())
		sort.SliceStable(docChunks, func(i, j int) bool {
			return docChunks[i].ChunkIndex < docChunks[j].ChunkIndex
		})
		chunks = append(chunks, docChunks...)
	}
	log.Infof("[ChunkRepository] 从 %s 读取到 %d 个分块", r.baseDir, len(chunks))
	return chunks, nil
}

func (r *fsChunkRepository) loadDoc(docDirName string) []model.Chunk {
	pattern := filepath.Join(r.baseDir, docDirName, "chunk_*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		log.Warnf("[ChunkRepository] 匹配分块文件失败: %s, error: %v", pattern, err)
		return nil
	}

	out := make([]model.Chunk, 0, len(files))
	for _, file := range files {
		chunk, err := readChunkFile(file)
		if err != nil {
			log.Warnw("[ChunkRepository] 跳过无法解析的分块文件", "file", file, "error", err)
			continue
		}
		if chunk.DocID == "" {
			chunk.DocID = docDirName
		}
		if chunk.ChunkID == "" {
			chunk.ChunkID = model.ChunkIDFor(chunk.DocID, chunk.ChunkIndex)
		}
		out = append(out, chunk)
	}
	return out
}

func readChunkFile(path string) (model.Chunk, error) {
	var chunk model.Chunk
	data, err := os.ReadFile(path)
	if err != nil {
		return chunk, err
	}
	if err := json.Unmarshal(data, &chunk); err != nil {
		return chunk, err
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return chunk, errors.New("chunk has no text")
	}
	if chunk.ChunkIndex == 0 {
		// 旧文件可能缺少 chunk_index，从文件名恢复
		base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "chunk_"), ".json")
		if n, err := strconv.Atoi(base); err == nil {
			chunk.ChunkIndex = n
		}
	}
	return chunk, nil
}
