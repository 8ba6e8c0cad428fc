package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"rag-pipeline-go/internal/pipeline"
	"rag-pipeline-go/pkg/extract"
	"rag-pipeline-go/pkg/log"
	"rag-pipeline-go/pkg/storage"
	"rag-pipeline-go/pkg/tasks"
)

// ErrNoValidFiles 表示上传的文件中没有任何允许的类型。
var ErrNoValidFiles = errors.New("no valid files to process")

// UploadedFile 是一个待入库的上传文件。
type UploadedFile struct {
	FileName string
	Size     int64
	Reader   io.Reader
}

// IngestReport 汇总一次上传的处理结果。
type IngestReport struct {
	Files     []pipeline.IngestResult `json:"files"`
	Reindexed int                     `json:"reindexed"`
	Queued    bool                    `json:"queued,omitempty"`
}

// DocIDs 返回本次入库的文档 id。
func (r *IngestReport) DocIDs() []string {
	ids := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		ids = append(ids, f.DocID)
	}
	return ids
}

// TaskProducer 把入库任务投递到消息队列。
type TaskProducer interface {
	Produce(ctx context.Context, task tasks.IngestTask) error
}

// IngestService 接口定义了文件上传入库的业务操作。
type IngestService interface {
	Ingest(ctx context.Context, files []UploadedFile) (*IngestReport, error)
}

type ingestService struct {
	processor  *pipeline.Processor
	indexSvc   IndexService
	uploadsDir string
	store      storage.ObjectStore
	producer   TaskProducer
}

// NewIngestService 创建一个新的 IngestService 实例。store 与 producer 可以为 nil；
// producer 不为 nil 时走异步入库。
func NewIngestService(processor *pipeline.Processor, indexSvc IndexService, uploadsDir string, store storage.ObjectStore, producer TaskProducer) IngestService {
	return &ingestService{
		processor:  processor,
		indexSvc:   indexSvc,
		uploadsDir: uploadsDir,
		store:      store,
		producer:   producer,
	}
}

// Ingest 保存上传文件并入库。不允许的扩展名会被跳过。
// 同步模式下处理完所有文件后重建一次索引，重建失败只记录日志，reindexed 为 0。
func (s *ingestService) Ingest(ctx context.Context, files []UploadedFile) (*IngestReport, error) {
	var pending []tasks.IngestTask
	for _, f := range files {
		name := SanitizeFileName(f.FileName)
		if extract.DetectFileType(name) == "" {
			log.Warnf("[IngestService] 跳过不支持的文件类型: %s", f.FileName)
			continue
		}
		task, err := s.stage(ctx, name, f)
		if err != nil {
			return nil, err
		}
		pending = append(pending, task)
	}
	if len(pending) == 0 {
		return nil, ErrNoValidFiles
	}

	if s.producer != nil {
		return s.enqueue(ctx, pending)
	}

	report := &IngestReport{Files: make([]pipeline.IngestResult, 0, len(pending))}
	for _, task := range pending {
		res, err := s.processor.Process(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("process %s: %w", task.FileName, err)
		}
		report.Files = append(report.Files, *res)
	}

	n, err := s.indexSvc.Reindex(ctx)
	if err != nil {
		log.Warnf("[IngestService] 上传后重建索引失败: %v", err)
		n = 0
	}
	report.Reindexed = n
	return report, nil
}

// stage 把文件写入上传目录，配置了对象存储时同时归档。
func (s *ingestService) stage(ctx context.Context, name string, f UploadedFile) (tasks.IngestTask, error) {
	task := tasks.IngestTask{
		DocID:    pipeline.NewDocID(),
		FileName: name,
		FileType: extract.DetectFileType(name),
	}
	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return task, fmt.Errorf("create uploads dir: %w", err)
	}
	task.LocalPath = filepath.Join(s.uploadsDir, task.DocID+"_"+name)

	out, err := os.Create(task.LocalPath)
	if err != nil {
		return task, fmt.Errorf("save upload %s: %w", name, err)
	}
	size, err := io.Copy(out, f.Reader)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return task, fmt.Errorf("save upload %s: %w", name, err)
	}
	log.Infof("[IngestService] 文件已保存, DocID: %s, path: %s, 大小: %d字节", task.DocID, task.LocalPath, size)

	if s.store != nil {
		if err := s.archive(ctx, &task, size); err != nil {
			// 归档失败不影响本地入库
			log.Warnf("[IngestService] 归档到对象存储失败, DocID: %s, Error: %v", task.DocID, err)
		}
	}
	return task, nil
}

func (s *ingestService) archive(ctx context.Context, task *tasks.IngestTask, size int64) error {
	f, err := os.Open(task.LocalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	objectName := storage.ObjectName(task.DocID, task.FileName)
	contentType := mime.TypeByExtension(filepath.Ext(task.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.store.Put(ctx, objectName, f, size, contentType); err != nil {
		return err
	}
	task.ObjectName = objectName
	return nil
}

// enqueue 把任务投递到 Kafka。分区之间没有顺序保证，所以每个任务处理完都重建一次索引。
func (s *ingestService) enqueue(ctx context.Context, pending []tasks.IngestTask) (*IngestReport, error) {
	report := &IngestReport{Files: make([]pipeline.IngestResult, 0, len(pending)), Queued: true}
	for _, task := range pending {
		task.Reindex = true
		if err := s.producer.Produce(ctx, task); err != nil {
			return nil, fmt.Errorf("enqueue %s: %w", task.FileName, err)
		}
		log.Infof("[IngestService] 入库任务已投递, DocID: %s", task.DocID)
		report.Files = append(report.Files, pipeline.IngestResult{DocID: task.DocID, FileName: task.FileName})
	}
	return report, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFileName 去掉路径部分，并把不安全字符替换为下划线。
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return "upload"
	}
	return name
}
