package llm

import (
	"context"
	"encoding/json"
)

// MockResponse 是 mock 客户端返回内容对应的结构，符合输出解析器期望的格式。
var MockResponse = struct {
	Narrative string            `json:"narrative"`
	Checklist []string          `json:"checklist"`
	Citations map[string]string `json:"citations"`
}{
	Narrative: "This is a mock response generated for testing purposes. " +
		"In production, this would be replaced by actual model output. " +
		"The prompt was processed successfully and this narrative provides " +
		"a comprehensive answer based on the retrieved document chunks.",
	Checklist: []string{
		"First action item from the analysis",
		"Second recommended step",
		"Third verification task",
		"Final review and validation",
	},
	Citations: map[string]string{
		"doc1_chunk1": "Relevant excerpt from first chunk",
		"doc1_chunk2": "Important information from second chunk",
		"doc2_chunk1": "Supporting evidence from third chunk",
	},
}

type mockClient struct {
	body string
}

// NewMockClient 返回一个不访问网络、输出固定 JSON 的客户端。
func NewMockClient() Client {
	data, _ := json.MarshalIndent(MockResponse, "", "  ")
	return &mockClient{body: string(data)}
}

func (m *mockClient) Infer(_ context.Context, _ string, _ *GenerationParams) (string, error) {
	return m.body, nil
}
