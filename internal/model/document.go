package model

import "time"

// Document 定义了 rag_document 表的 ORM 模型，登记每个已入库的上传文件。
type Document struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocID      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"doc_id"`
	FileName   string    `gorm:"type:varchar(255);not null" json:"file_name"`
	FileType   string    `gorm:"type:varchar(16);not null" json:"file_type"`
	ObjectName string    `gorm:"type:varchar(255)" json:"object_name,omitempty"`
	NumPages   int       `gorm:"not null;default:0" json:"num_pages"`
	NumChunks  int       `gorm:"not null;default:0" json:"num_chunks"`
	CreatedAt  LocalTime `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "rag_document"
}

// RunRecord 是一次查询运行的历史记录，保存在 Redis 列表中。
type RunRecord struct {
	Query        string    `json:"query"`
	DocIDs       []string  `json:"doc_ids"`
	TemplateType string    `json:"template_type"`
	NumChunks    int       `json:"num_chunks"`
	ParseStatus  string    `json:"parse_status"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    LocalTime `json:"created_at"`
}

// NewRunRecord 基于运行元数据构造一条历史记录。
func NewRunRecord(meta RunMetadata, status string, elapsed time.Duration) RunRecord {
	if status == "" {
		status = "ok"
	}
	return RunRecord{
		Query:        meta.Query,
		DocIDs:       meta.DocIDs,
		TemplateType: meta.TemplateType,
		NumChunks:    meta.NumChunksRetrieved,
		ParseStatus:  status,
		DurationMs:   elapsed.Milliseconds(),
		CreatedAt:    LocalTime(time.Now()),
	}
}
