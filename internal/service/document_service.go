package service

import (
	"context"
	"errors"
	"time"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/internal/repository"
	"rag-pipeline-go/pkg/log"
	"rag-pipeline-go/pkg/storage"
)

// ErrNotConfigured 表示依赖的可选后端（MySQL、Redis）未配置。
var ErrNotConfigured = errors.New("backend not configured")

// presignExpiry 是下载链接的有效期。
const presignExpiry = time.Hour

// DocumentView 是文档登记信息加上可选的下载链接。
type DocumentView struct {
	model.Document
	DownloadURL string `json:"download_url,omitempty"`
}

// DocumentService 接口定义了文档登记表的查询操作。
type DocumentService interface {
	List(ctx context.Context) ([]DocumentView, error)
	Get(ctx context.Context, docID string) (*DocumentView, error)
}

type documentService struct {
	repo  repository.DocumentRepository
	store storage.ObjectStore
}

// NewDocumentService 创建一个新的 DocumentService 实例。repo 为 nil 时所有操作返回 ErrNotConfigured。
func NewDocumentService(repo repository.DocumentRepository, store storage.ObjectStore) DocumentService {
	return &documentService{repo: repo, store: store}
}

func (s *documentService) List(ctx context.Context) ([]DocumentView, error) {
	if s.repo == nil {
		return nil, ErrNotConfigured
	}
	docs, err := s.repo.FindAll()
	if err != nil {
		return nil, err
	}
	views := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, s.view(ctx, d))
	}
	return views, nil
}

func (s *documentService) Get(ctx context.Context, docID string) (*DocumentView, error) {
	if s.repo == nil {
		return nil, ErrNotConfigured
	}
	doc, err := s.repo.FindByDocID(docID)
	if err != nil {
		return nil, err
	}
	v := s.view(ctx, *doc)
	return &v, nil
}

func (s *documentService) view(ctx context.Context, d model.Document) DocumentView {
	v := DocumentView{Document: d}
	if s.store == nil || d.ObjectName == "" {
		return v
	}
	url, err := s.store.PresignedURL(ctx, d.ObjectName, presignExpiry)
	if err != nil {
		log.Warnf("[DocumentService] 生成下载链接失败, DocID: %s, Error: %v", d.DocID, err)
		return v
	}
	v.DownloadURL = url
	return v
}
