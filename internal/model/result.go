package model

import "encoding/json"

// ParseStatusFailed 标记模型输出无法被结构化解析。
const ParseStatusFailed = "failed"

// RunMetadata 记录一次编排运行的输入与检索情况。
type RunMetadata struct {
	Query              string   `json:"query"`
	DocIDs             []string `json:"doc_ids"`
	TemplateType       string   `json:"template_type"`
	NumChunksRetrieved int      `json:"num_chunks_retrieved"`
	ChunksUsed         []string `json:"chunks_used"`
}

// ParsedResult 是模型输出解析后的统一结构。三个主字段任何情况下都存在。
type ParsedResult struct {
	Narrative   string            `json:"narrative"`
	Checklist   []string          `json:"checklist"`
	Citations   map[string]string `json:"citations"`
	Metadata    *RunMetadata      `json:"_metadata,omitempty"`
	RawOutput   string            `json:"_raw_output,omitempty"`
	ParseStatus string            `json:"_parse_status,omitempty"`
}

// Failed 判断该结果是否为解析失败的兜底记录。
func (r *ParsedResult) Failed() bool {
	return r.ParseStatus == ParseStatusFailed
}

// MarshalJSON 保证 checklist 与 citations 序列化为 [] 和 {}，而不是 null。
func (r ParsedResult) MarshalJSON() ([]byte, error) {
	type alias ParsedResult
	out := alias(r)
	if out.Checklist == nil {
		out.Checklist = []string{}
	}
	if out.Citations == nil {
		out.Citations = map[string]string{}
	}
	if out.Metadata != nil {
		meta := *out.Metadata
		if meta.DocIDs == nil {
			meta.DocIDs = []string{}
		}
		if meta.ChunksUsed == nil {
			meta.ChunksUsed = []string{}
		}
		out.Metadata = &meta
	}
	return json.Marshal(out)
}

// EmptyResult 返回一个三字段均为空形态的结果。
func EmptyResult(narrative string) *ParsedResult {
	return &ParsedResult{
		Narrative: narrative,
		Checklist: []string{},
		Citations: map[string]string{},
	}
}
