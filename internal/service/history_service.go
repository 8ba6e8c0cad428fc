package service

import (
	"context"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/internal/repository"
)

// HistoryService 定义了查询运行历史的业务接口。
type HistoryService interface {
	Recent(ctx context.Context, n int) ([]model.RunRecord, error)
}

type historyService struct {
	repo repository.RunHistoryRepository
}

// NewHistoryService 创建一个新的 HistoryService。repo 为 nil 时返回 ErrNotConfigured。
func NewHistoryService(repo repository.RunHistoryRepository) HistoryService {
	return &historyService{repo: repo}
}

// Recent 返回最近 n 条运行记录。
func (s *historyService) Recent(ctx context.Context, n int) ([]model.RunRecord, error) {
	if s.repo == nil {
		return nil, ErrNotConfigured
	}
	return s.repo.Recent(ctx, n)
}
