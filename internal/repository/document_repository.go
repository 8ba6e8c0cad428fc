package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"rag-pipeline-go/internal/model"
)

// ErrDocumentNotFound 表示登记表中没有该文档。
var ErrDocumentNotFound = errors.New("document not found")

// DocumentRepository 接口定义了已入库文档的登记操作。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindAll() ([]model.Document, error)
	FindByDocID(docID string) (*model.Document, error)
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中登记一个新文档。
func (r *documentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document record: %w", err)
	}
	return nil
}

// FindAll 按创建时间倒序返回所有文档。
func (r *documentRepository) FindAll() ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Order("created_at desc").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// FindByDocID 根据 doc_id 查找文档。
func (r *documentRepository) FindByDocID(docID string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("doc_id = ?", docID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return &doc, nil
}
