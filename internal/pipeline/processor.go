// Package pipeline 定义了文档入库的核心流程：抽取 → 切块 → 保存分块。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"rag-pipeline-go/internal/chunker"
	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/internal/repository"
	"rag-pipeline-go/pkg/extract"
	"rag-pipeline-go/pkg/log"
	"rag-pipeline-go/pkg/storage"
	"rag-pipeline-go/pkg/tasks"
)

// ErrNoSource 表示任务既没有本地路径也无法从对象存储获取文件。
var ErrNoSource = errors.New("ingest task has no readable source")

// IngestResult 是单个文件入库后的摘要。
type IngestResult struct {
	DocID      string `json:"doc_id"`
	FileName   string `json:"filename"`
	Chunks     int    `json:"chunks"`
	Characters int    `json:"characters"`
	Pages      int    `json:"pages"`
}

// TextExtractor 抽取文件的全文与逐页文本。
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, []model.PageText, error)
}

// Reindexer 在异步任务完成后重建索引。
type Reindexer interface {
	Rebuild(ctx context.Context, chunksDir string) (int, error)
}

// Processor 封装了文件处理的所有依赖和逻辑。
type Processor struct {
	extractor  TextExtractor
	chunker    *chunker.Chunker
	chunkRepo  repository.ChunkRepository
	docRepo    repository.DocumentRepository
	store      storage.ObjectStore
	reindexer  Reindexer
	uploadsDir string
}

// Option 配置 Processor 的可选依赖。
type Option func(*Processor)

// WithDocumentRepository 在入库后登记文档。
func WithDocumentRepository(r repository.DocumentRepository) Option {
	return func(p *Processor) { p.docRepo = r }
}

// WithObjectStore 允许从对象存储读取任务文件。
func WithObjectStore(s storage.ObjectStore) Option {
	return func(p *Processor) { p.store = s }
}

// WithReindexer 用于 Kafka 任务带 Reindex 标记时重建索引。
func WithReindexer(r Reindexer) Option {
	return func(p *Processor) { p.reindexer = r }
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(extractor TextExtractor, c *chunker.Chunker, chunkRepo repository.ChunkRepository, uploadsDir string, opts ...Option) *Processor {
	p := &Processor{
		extractor:  extractor,
		chunker:    c,
		chunkRepo:  chunkRepo,
		uploadsDir: uploadsDir,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDocID 生成 32 位十六进制的文档 id。
func NewDocID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Process 是文件处理的主函数。
func (p *Processor) Process(ctx context.Context, task tasks.IngestTask) (*IngestResult, error) {
	if task.DocID == "" {
		task.DocID = NewDocID()
	}
	log.Infof("[Processor] 开始处理文件, DocID: %s, FileName: %s", task.DocID, task.FileName)

	// 1. 准备本地文件
	path, cleanup, err := p.localFile(ctx, task)
	if err != nil {
		log.Errorf("[Processor] 步骤1: 获取文件失败, DocID: %s, Error: %v", task.DocID, err)
		return nil, err
	}
	defer cleanup()
	log.Infof("[Processor] 步骤1: 文件就绪, path: %s", path)

	// 2. 抽取文本
	fullText, pages, err := p.extractor.Extract(ctx, path)
	if err != nil {
		log.Errorf("[Processor] 步骤2: 文本抽取失败, FileName: %s, Error: %v", task.FileName, err)
		return nil, fmt.Errorf("extract %s: %w", task.FileName, err)
	}
	log.Infof("[Processor] 步骤2: 文本抽取成功, 字符数: %d, 页数: %d", len(fullText), len(pages))

	// 3. 切块
	ranges := chunker.BuildPageRanges(pages)
	chunks := p.chunker.Chunk(fullText, task.DocID, task.FileName, ranges)
	log.Infof("[Processor] 步骤3: 切块完成, 共 %d 个分块", len(chunks))

	// 4. 保存分块
	for i, c := range chunks {
		if _, err := p.chunkRepo.Save(task.DocID, i, c); err != nil {
			log.Errorf("[Processor] 步骤4: 保存分块失败, chunk: %d, Error: %v", i, err)
			return nil, err
		}
	}
	log.Infof("[Processor] 步骤4: 分块已保存到 %s", filepath.Join(p.chunkRepo.BaseDir(), task.DocID))

	// 5. 登记文档
	if p.docRepo != nil {
		doc := &model.Document{
			DocID:      task.DocID,
			FileName:   task.FileName,
			FileType:   extract.DetectFileType(task.FileName),
			ObjectName: task.ObjectName,
			NumPages:   len(pages),
			NumChunks:  len(chunks),
		}
		if err := p.docRepo.Create(doc); err != nil {
			// 登记失败不影响检索
			log.Warnf("[Processor] 步骤5: 文档登记失败, DocID: %s, Error: %v", task.DocID, err)
		}
	}

	log.Infof("[Processor] 文件处理完成, DocID: %s, chunks: %d", task.DocID, len(chunks))
	return &IngestResult{
		DocID:      task.DocID,
		FileName:   task.FileName,
		Chunks:     len(chunks),
		Characters: len([]rune(fullText)),
		Pages:      len(pages),
	}, nil
}

// ProcessTask 实现 kafka.TaskProcessor。
func (p *Processor) ProcessTask(ctx context.Context, task tasks.IngestTask) error {
	if _, err := p.Process(ctx, task); err != nil {
		return err
	}
	if task.Reindex && p.reindexer != nil {
		n, err := p.reindexer.Rebuild(ctx, p.chunkRepo.BaseDir())
		if err != nil {
			log.Warnf("[Processor] 重建索引失败: %v", err)
			return nil
		}
		log.Infof("[Processor] 重建索引完成, 向量数: %d", n)
	}
	return nil
}

// localFile 返回可供抽取的本地路径。对象存储中的文件会下载到上传目录，处理结束后删除。
func (p *Processor) localFile(ctx context.Context, task tasks.IngestTask) (string, func(), error) {
	noop := func() {}
	if task.LocalPath != "" {
		if _, err := os.Stat(task.LocalPath); err == nil {
			return task.LocalPath, noop, nil
		}
	}
	if task.ObjectName == "" || p.store == nil {
		return "", noop, fmt.Errorf("%w: %s", ErrNoSource, task.FileName)
	}

	obj, err := p.store.Get(ctx, task.ObjectName)
	if err != nil {
		return "", noop, err
	}
	defer obj.Close()

	if err := os.MkdirAll(p.uploadsDir, 0o755); err != nil {
		return "", noop, err
	}
	path := filepath.Join(p.uploadsDir, task.DocID+"_"+filepath.Base(task.FileName))
	f, err := os.Create(path)
	if err != nil {
		return "", noop, err
	}
	size, err := io.Copy(f, obj)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", noop, fmt.Errorf("download %s: %w", task.ObjectName, err)
	}
	log.Infof("[Processor] 从对象存储下载文件成功, Object: %s, 大小: %d字节", task.ObjectName, size)
	return path, func() { _ = os.Remove(path) }, nil
}
