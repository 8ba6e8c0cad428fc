// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestTask represents one uploaded document waiting to be extracted and chunked.
type IngestTask struct {
	DocID      string `json:"doc_id"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	LocalPath  string `json:"local_path"`
	ObjectName string `json:"object_name,omitempty"`
	// Reindex 为 true 时，处理完成后重建向量索引。
	Reindex bool `json:"reindex"`
}
