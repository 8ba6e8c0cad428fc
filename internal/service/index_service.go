package service

import (
	"context"
	"errors"

	"rag-pipeline-go/internal/index"
	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/pkg/log"
)

// IndexStatus 描述索引当前状态。
type IndexStatus struct {
	Size   int    `json:"index_size"`
	Loaded bool   `json:"index_loaded"`
	Dir    string `json:"index_dir"`
}

// IndexService 接口定义了向量索引的重建与检索操作。
type IndexService interface {
	Reindex(ctx context.Context) (int, error)
	Search(ctx context.Context, query string, k int, filters index.Filters) ([]model.SearchHit, error)
	Status() IndexStatus
}

type indexService struct {
	idx       *index.Index
	chunksDir string
}

// NewIndexService 创建一个新的 IndexService 实例。
func NewIndexService(idx *index.Index, chunksDir string) IndexService {
	return &indexService{idx: idx, chunksDir: chunksDir}
}

// Reindex 从分块目录整体重建索引。没有任何分块时返回 index.ErrNoChunks。
func (s *indexService) Reindex(ctx context.Context) (int, error) {
	log.Infof("[IndexService] 开始重建索引, chunks_dir: %s", s.chunksDir)
	n, err := s.idx.Rebuild(ctx, s.chunksDir)
	if err != nil {
		if errors.Is(err, index.ErrNoChunks) {
			log.Warnf("[IndexService] 没有找到可索引的分块")
		} else {
			log.Errorf("[IndexService] 重建索引失败: %v", err)
		}
		return 0, err
	}
	log.Infof("[IndexService] 重建索引完成, 共 %d 个分块", n)
	return n, nil
}

// Search 在已就绪的索引上检索。索引未加载或为空时返回 index.ErrIndexNotLoaded。
func (s *indexService) Search(ctx context.Context, query string, k int, filters index.Filters) ([]model.SearchHit, error) {
	if !s.idx.Loaded() || s.idx.Size() == 0 {
		return nil, index.ErrIndexNotLoaded
	}
	return s.idx.Search(ctx, query, k, filters)
}

func (s *indexService) Status() IndexStatus {
	return IndexStatus{Size: s.idx.Size(), Loaded: s.idx.Loaded(), Dir: s.idx.Dir()}
}
