package retrieval

import (
	"encoding/json"
	"strconv"
	"strings"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/pkg/log"
)

const unknown = "unknown"

// envelope 是检索响应可能出现的两种顶层形态：{"results": [...]} 或 {"chunks": [...]}。
type envelope struct {
	Results *[]json.RawMessage `json:"results"`
	Chunks  *[]json.RawMessage `json:"chunks"`
}

// rawChunk 同时容纳扁平形态与带 metadata 子对象的形态。
// 字段全部按原始 JSON 保存，类型不符的字段只回退为默认值，不影响整个响应。
type rawChunk struct {
	ChunkID  json.RawMessage `json:"chunk_id"`
	ID       json.RawMessage `json:"id"`
	Text     json.RawMessage `json:"text"`
	Score    json.RawMessage `json:"score"`
	DocID    json.RawMessage `json:"doc_id"`
	Page     json.RawMessage `json:"page"`
	Source   json.RawMessage `json:"source"`
	Metadata json.RawMessage `json:"metadata"`
}

type rawMetadata struct {
	DocID  json.RawMessage `json:"doc_id"`
	Page   json.RawMessage `json:"page"`
	Source json.RawMessage `json:"source"`
}

// Normalize 把检索响应体解析为统一的 RetrievedChunk 列表。
// 顶层既没有 results 也没有 chunks 时返回 KindShape 错误；列表中不是对象的元素会被跳过。
func Normalize(body []byte) ([]model.RetrievedChunk, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, newError(KindShape, "response is not a JSON object with a chunk list", err)
	}

	var raw []json.RawMessage
	switch {
	case env.Results != nil:
		raw = *env.Results
	case env.Chunks != nil:
		raw = *env.Chunks
	default:
		return nil, newError(KindShape, "response has neither \"results\" nor \"chunks\"", nil)
	}

	out := make([]model.RetrievedChunk, 0, len(raw))
	for i, item := range raw {
		var rc rawChunk
		if err := json.Unmarshal(item, &rc); err != nil {
			log.Warnw("[RetrievalClient] 跳过无法识别的检索结果", "index", i, "error", err)
			continue
		}
		out = append(out, rc.normalize())
	}
	return out, nil
}

func (rc rawChunk) normalize() model.RetrievedChunk {
	chunkID := firstString(rc.ChunkID, rc.ID)
	if chunkID == "" {
		chunkID = unknown
	}

	meta := model.ChunkMetadata{DocID: unknown, Source: unknown}
	// 嵌套 metadata 优先，缺失的字段回退到扁平字段
	var nested rawMetadata
	if len(rc.Metadata) > 0 {
		if err := json.Unmarshal(rc.Metadata, &nested); err != nil {
			nested = rawMetadata{}
		}
	}
	if s := firstString(nested.DocID, rc.DocID); s != "" {
		meta.DocID = s
	}
	if p := parsePage(nested.Page); p != nil {
		meta.Page = p
	} else {
		meta.Page = parsePage(rc.Page)
	}
	if s := firstString(nested.Source, rc.Source); s != "" {
		meta.Source = s
	}

	return model.RetrievedChunk{
		ChunkID:  chunkID,
		Text:     firstString(rc.Text),
		Score:    parseScore(rc.Score),
		Metadata: meta,
	}
}

// firstString 返回第一个非空值的字符串形式，数字 ID 也接受。
func firstString(values ...json.RawMessage) string {
	for _, v := range values {
		if len(v) == 0 || string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			return n.String()
		}
		return string(v)
	}
	return ""
}

// parseScore 接受数字或数字字符串，其它情况为 0。
func parseScore(v json.RawMessage) float64 {
	if len(v) == 0 || string(v) == "null" {
		return 0
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}

func parsePage(v json.RawMessage) *int {
	if len(v) == 0 || string(v) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return model.IntPtr(int(n))
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if p, err := strconv.Atoi(s); err == nil {
			return model.IntPtr(p)
		}
	}
	return nil
}

// BuildFilter 取第一个 doc_id 作为过滤条件，"default" 或空列表表示不过滤。
func BuildFilter(docIDs []string) string {
	if len(docIDs) == 0 || docIDs[0] == "" || docIDs[0] == "default" {
		return ""
	}
	return docIDs[0]
}

// filterByDoc 在客户端再做一次 doc_id 过滤。
func filterByDoc(chunks []model.RetrievedChunk, docID string) []model.RetrievedChunk {
	if docID == "" {
		return chunks
	}
	out := make([]model.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Metadata.DocID == docID {
			out = append(out, c)
		}
	}
	return out
}

func hitsToChunks(hits []model.SearchHit) []model.RetrievedChunk {
	out := make([]model.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		source := h.Source
		if source == "" {
			source = unknown
		}
		docID := h.DocID
		if docID == "" {
			docID = unknown
		}
		out = append(out, model.RetrievedChunk{
			ChunkID:  h.ChunkID,
			Text:     h.Text,
			Score:    h.Score,
			Metadata: model.ChunkMetadata{DocID: docID, Page: h.Page, Source: source},
		})
	}
	return out
}
