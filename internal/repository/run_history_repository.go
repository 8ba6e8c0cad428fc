package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"rag-pipeline-go/internal/model"
)

const (
	runHistoryKey = "rag:runs"
	// MaxRunHistory 是 Redis 列表中保留的最大记录数。
	MaxRunHistory = 100
)

// RunHistoryRepository 定义了查询运行历史的操作接口。
type RunHistoryRepository interface {
	Append(ctx context.Context, record model.RunRecord) error
	Recent(ctx context.Context, n int) ([]model.RunRecord, error)
}

type redisRunHistoryRepository struct {
	redisClient *redis.Client
}

// NewRunHistoryRepository 创建一个新的 RunHistoryRepository 实例。
func NewRunHistoryRepository(redisClient *redis.Client) RunHistoryRepository {
	return &redisRunHistoryRepository{redisClient: redisClient}
}

// Append 将记录压入列表头部，并裁剪到 MaxRunHistory 条。
func (r *redisRunHistoryRepository) Append(ctx context.Context, record model.RunRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	pipe := r.redisClient.TxPipeline()
	pipe.LPush(ctx, runHistoryKey, data)
	pipe.LTrim(ctx, runHistoryKey, 0, MaxRunHistory-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append run history: %w", err)
	}
	return nil
}

// Recent 返回最近 n 条记录，最新的在前。
func (r *redisRunHistoryRepository) Recent(ctx context.Context, n int) ([]model.RunRecord, error) {
	if n <= 0 || n > MaxRunHistory {
		n = MaxRunHistory
	}
	items, err := r.redisClient.LRange(ctx, runHistoryKey, 0, int64(n-1)).Result()
	if err == redis.Nil {
		return []model.RunRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}
	records := make([]model.RunRecord, 0, len(items))
	for _, item := range items {
		var rec model.RunRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
