package retrieval

import (
	"context"
	"fmt"

	"rag-pipeline-go/internal/model"
)

type mockRetriever struct{}

// NewMockRetriever 返回固定三条分块的 Retriever，供离线演示与测试使用。
// 请求中给出 doc_ids 时，前两个 doc_id 会替换默认的 doc1 / doc2。
func NewMockRetriever() Retriever {
	return mockRetriever{}
}

func (mockRetriever) Retrieve(_ context.Context, query string, docIDs []string, k int) ([]model.RetrievedChunk, error) {
	first, second := "doc1", "doc2"
	if len(docIDs) > 0 && docIDs[0] != "" {
		first = docIDs[0]
	}
	if len(docIDs) > 1 && docIDs[1] != "" {
		second = docIDs[1]
	}

	chunks := []model.RetrievedChunk{
		{
			ChunkID:  "doc1_chunk1",
			Text:     fmt.Sprintf("This is a mock chunk related to '%s'. It contains relevant information about FDA 21 CFR 820 requirements for medical device quality systems, including design controls and documentation requirements.", query),
			Score:    0.95,
			Metadata: model.ChunkMetadata{DocID: first, Page: model.IntPtr(1), Source: "Introduction"},
		},
		{
			ChunkID:  "doc1_chunk2",
			Text:     fmt.Sprintf("Another mock chunk discussing %s in more detail. ISO 13485 provides additional context for quality management systems in medical device manufacturing, complementing FDA requirements.", query),
			Score:    0.87,
			Metadata: model.ChunkMetadata{DocID: first, Page: model.IntPtr(2), Source: "Main Content"},
		},
		{
			ChunkID:  "doc2_chunk1",
			Text:     fmt.Sprintf("A third mock chunk from a different document about %s. EU MDR offers a different perspective on medical device regulation, with emphasis on clinical evaluation and post-market surveillance.", query),
			Score:    0.82,
			Metadata: model.ChunkMetadata{DocID: second, Page: model.IntPtr(5), Source: "Analysis"},
		},
	}
	if k > 0 && k < len(chunks) {
		chunks = chunks[:k]
	}
	return chunks, nil
}
