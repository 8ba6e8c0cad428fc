// Package model 定义了检索增强流水线中各阶段流转的数据结构。
package model

import "strconv"

// Chunk 是文档切分后的最小检索单元，持久化为 <base>/<doc_id>/chunk_<index>.json。
// StartOffset/EndOffset 是按词计数的位置，不是字节偏移。
type Chunk struct {
	DocID       string `json:"doc_id"`
	ChunkIndex  int    `json:"chunk_index"`
	ChunkID     string `json:"chunk_id"`
	Text        string `json:"text"`
	Source      string `json:"source"`
	Page        *int   `json:"page"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// ChunkIDFor 按 doc_id + "_" + chunk_index 生成分块 ID。
func ChunkIDFor(docID string, index int) string {
	return docID + "_" + strconv.Itoa(index)
}

// PageText 是抽取阶段得到的单页文本，页码从 1 开始。
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// PageRange 记录某一页在全文中的词偏移区间 [StartOffset, EndOffset)。
type PageRange struct {
	Page        int
	StartOffset int
	EndOffset   int
}

// ChunkMetadata 是检索结果中携带的来源信息。
type ChunkMetadata struct {
	DocID  string `json:"doc_id"`
	Page   *int   `json:"page"`
	Source string `json:"source"`
}

// RetrievedChunk 是检索客户端归一化之后的统一分块结构。
type RetrievedChunk struct {
	ChunkID  string        `json:"chunk_id"`
	Text     string        `json:"text"`
	Score    float64       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}

// SearchHit 是 /vector/search 返回的扁平结果项。
type SearchHit struct {
	ChunkID     string  `json:"chunk_id"`
	DocID       string  `json:"doc_id"`
	ChunkIndex  int     `json:"chunk_index"`
	Text        string  `json:"text"`
	Source      string  `json:"source"`
	Page        *int    `json:"page"`
	StartOffset int     `json:"start_offset"`
	EndOffset   int     `json:"end_offset"`
	Score       float64 `json:"score"`
	Distance    float64 `json:"distance"`
}

// IntPtr 返回 v 的指针，便于构造可空页码。
func IntPtr(v int) *int {
	return &v
}
