// Package app 负责按配置组装所有组件，供 HTTP 服务与命令行工具共用。
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"rag-pipeline-go/internal/chunker"
	"rag-pipeline-go/internal/config"
	"rag-pipeline-go/internal/index"
	"rag-pipeline-go/internal/parser"
	"rag-pipeline-go/internal/pipeline"
	"rag-pipeline-go/internal/prompt"
	"rag-pipeline-go/internal/repository"
	"rag-pipeline-go/internal/retrieval"
	"rag-pipeline-go/internal/service"
	"rag-pipeline-go/pkg/database"
	"rag-pipeline-go/pkg/embedding"
	"rag-pipeline-go/pkg/extract"
	"rag-pipeline-go/pkg/kafka"
	"rag-pipeline-go/pkg/llm"
	"rag-pipeline-go/pkg/log"
	"rag-pipeline-go/pkg/storage"
	"rag-pipeline-go/pkg/tika"
)

// App 持有组装好的服务与需要在退出时释放的资源。
type App struct {
	Config *config.Config

	Index        *index.Index
	Processor    *pipeline.Processor
	IndexSvc     service.IndexService
	IngestSvc    service.IngestService
	Orchestrator service.OrchestratorService
	DocumentSvc  service.DocumentService
	HistorySvc   service.HistoryService

	rdb      *redis.Client
	producer *kafka.Producer
	closers  []func() error
}

// New 按配置初始化所有依赖。MySQL、Redis、MinIO、Kafka 仅在配置了地址时启用，
// 配置了但连接失败时返回错误。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	// 1. 可选后端
	var (
		docRepo     repository.DocumentRepository
		historyRepo repository.RunHistoryRepository
		store       storage.ObjectStore
		producer    service.TaskProducer
	)
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.InitMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		docRepo = repository.NewDocumentRepository(db)
	}
	if cfg.Database.Redis.Addr != "" {
		rdb, err := database.InitRedis(ctx, cfg.Database.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.rdb = rdb
		a.closers = append(a.closers, rdb.Close)
		historyRepo = repository.NewRunHistoryRepository(rdb)
	}
	if cfg.MinIO.Endpoint != "" {
		s, err := storage.NewMinIOStore(ctx, cfg.MinIO)
		if err != nil {
			a.Close()
			return nil, err
		}
		store = s
	}
	if strings.TrimSpace(cfg.Kafka.Brokers) != "" {
		a.producer = kafka.NewProducer(cfg.Kafka)
		a.closers = append(a.closers, a.producer.Close)
		producer = a.producer
	}

	// 2. 模型客户端与索引
	encoder, err := embedding.NewClient(cfg.Embedding, cfg.MockMode)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Index = index.New(encoder, cfg.Storage.IndexDir)
	a.IndexSvc = service.NewIndexService(a.Index, cfg.Storage.ChunksDir)

	// 3. 入库流程
	c, err := chunker.New(chunker.WithChunkSize(cfg.Chunking.ChunkSize), chunker.WithOverlap(cfg.Chunking.Overlap))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}
	opts := []pipeline.Option{pipeline.WithReindexer(a.Index)}
	if docRepo != nil {
		opts = append(opts, pipeline.WithDocumentRepository(docRepo))
	}
	if store != nil {
		opts = append(opts, pipeline.WithObjectStore(store))
	}
	a.Processor = pipeline.NewProcessor(
		extract.New(tika.NewClient(cfg.Tika)),
		c,
		repository.NewChunkRepository(cfg.Storage.ChunksDir),
		cfg.Storage.UploadsDir,
		opts...,
	)
	a.IngestSvc = service.NewIngestService(a.Processor, a.IndexSvc, cfg.Storage.UploadsDir, store, producer)

	// 4. 查询编排
	retriever, err := retrieval.New(cfg, a.Index)
	if err != nil {
		a.Close()
		return nil, err
	}
	composer, err := prompt.NewComposer(cfg.Prompt)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Orchestrator = service.NewOrchestratorService(
		retriever,
		composer,
		llm.NewClient(cfg.LLM, cfg.MockMode),
		parser.New(cfg.Parser.FailureMessage),
		historyRepo,
		cfg.Retrieval.TopK,
	)
	a.DocumentSvc = service.NewDocumentService(docRepo, store)
	a.HistorySvc = service.NewHistoryService(historyRepo)
	return a, nil
}

// LoadIndex 尝试从持久化目录恢复索引，返回是否恢复成功。
func (a *App) LoadIndex() bool {
	ok, err := a.Index.Load()
	switch {
	case err != nil && errors.Is(err, index.ErrCorruptIndex):
		log.Warnf("[App] 持久化索引已损坏, 需要重新构建: %v", err)
	case err != nil:
		log.Warnf("[App] 加载持久化索引失败: %v", err)
	case ok:
		log.Infof("[App] 已恢复持久化索引, 向量数: %d", a.Index.Size())
	default:
		log.Info("[App] 没有可恢复的持久化索引")
	}
	return ok && err == nil
}

// KafkaEnabled 表示是否配置了异步入库队列。
func (a *App) KafkaEnabled() bool {
	return a.producer != nil
}

// RunConsumer 阻塞消费入库任务直到 ctx 取消。未配置 Kafka 时直接返回。
func (a *App) RunConsumer(ctx context.Context) {
	if !a.KafkaEnabled() {
		return
	}
	kafka.NewConsumer(a.Config.Kafka, a.Processor, a.rdb).Run(ctx)
}

// Close 释放所有已打开的连接。
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warnf("[App] 释放资源失败: %v", err)
		}
	}
	a.closers = nil
}
