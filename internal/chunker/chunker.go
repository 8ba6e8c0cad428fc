// Package chunker 将抽取出的文档文本切分为带重叠的定长词窗口。
package chunker

import (
	"fmt"
	"strings"

	"rag-pipeline-go/internal/model"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Chunker 按词滑动窗口切分文本，窗口大小为 ChunkSize，相邻窗口重叠 Overlap 个词。
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option 配置 Chunker。
type Option func(*Chunker)

// WithChunkSize 设置窗口大小（词数）。
func WithChunkSize(n int) Option {
	return func(c *Chunker) { c.chunkSize = n }
}

// WithOverlap 设置相邻窗口的重叠词数。
func WithOverlap(n int) Option {
	return func(c *Chunker) { c.overlap = n }
}

// New 创建 Chunker，并校验 0 <= overlap < chunkSize。
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{chunkSize: DefaultChunkSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 检查窗口参数是否合法。
func (c *Chunker) Validate() error {
	if c.chunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.chunkSize)
	}
	if c.overlap < 0 || c.overlap >= c.chunkSize {
		return fmt.Errorf("overlap must satisfy 0 <= overlap < chunk size, got overlap=%d chunk_size=%d", c.overlap, c.chunkSize)
	}
	return nil
}

// ChunkSize 返回窗口大小。
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap 返回重叠词数。
func (c *Chunker) Overlap() int { return c.overlap }

// SplitWords 按空白切词。
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// BuildPageRanges 按每页词数累加，得到每页在全文中的词偏移区间。
// 空白页会产生长度为 0 的区间，不会匹配任何分块。
func BuildPageRanges(pages []model.PageText) []model.PageRange {
	ranges := make([]model.PageRange, 0, len(pages))
	offset := 0
	for _, p := range pages {
		n := len(SplitWords(p.Text))
		ranges = append(ranges, model.PageRange{
			Page:        p.Page,
			StartOffset: offset,
			EndOffset:   offset + n,
		})
		offset += n
	}
	return ranges
}

// Chunk 把 text 切分为覆盖全部词的有序分块。最后一个窗口不足 chunkSize 时仍然输出。
// 分块完全落在某一页区间内时记录该页码，否则 page 为空。
func (c *Chunker) Chunk(text, docID, source string, ranges []model.PageRange) []model.Chunk {
	words := SplitWords(text)
	if len(words) == 0 {
		return []model.Chunk{}
	}

	stride := c.chunkSize - c.overlap
	chunks := make([]model.Chunk, 0, len(words)/stride+1)
	for start := 0; start < len(words); start += stride {
		end := start + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		idx := len(chunks)
		chunks = append(chunks, model.Chunk{
			DocID:       docID,
			ChunkIndex:  idx,
			ChunkID:     model.ChunkIDFor(docID, idx),
			Text:        strings.Join(words[start:end], " "),
			Source:      source,
			Page:        pageFor(start, end, ranges),
			StartOffset: start,
			EndOffset:   end,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

func pageFor(start, end int, ranges []model.PageRange) *int {
	for _, r := range ranges {
		if start >= r.StartOffset && end <= r.EndOffset {
			return model.IntPtr(r.Page)
		}
	}
	return nil
}
