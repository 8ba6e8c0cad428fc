// Package retrieval 向嵌入索引发起查询，并把异构的结果形态归一化为统一的分块结构。
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"rag-pipeline-go/internal/config"
	"rag-pipeline-go/internal/index"
	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/pkg/log"
)

// DefaultK 是未指定 k 时的检索数量。
const DefaultK = 5

// Retriever 定义了检索能力，mock 与真实实现在构造时选定。
type Retriever interface {
	Retrieve(ctx context.Context, query string, docIDs []string, k int) ([]model.RetrievedChunk, error)
}

// New 根据配置选择检索实现：mock 模式使用固定数据，否则按 retrieval.mode 选择本地或 HTTP。
func New(cfg *config.Config, idx *index.Index) (Retriever, error) {
	if cfg.MockMode {
		log.Info("[Retrieval] mock 模式, 使用固定检索结果")
		return NewMockRetriever(), nil
	}
	switch strings.ToLower(cfg.Retrieval.Mode) {
	case "", "local":
		if idx == nil {
			return nil, errors.New("local retrieval requires an index")
		}
		return NewLocalRetriever(idx), nil
	case "http":
		return NewHTTPRetriever(cfg.Retrieval), nil
	default:
		return nil, fmt.Errorf("unknown retrieval mode %q", cfg.Retrieval.Mode)
	}
}

// localRetriever 直接查询进程内索引。
type localRetriever struct {
	idx *index.Index
}

// NewLocalRetriever 创建一个查询进程内索引的 Retriever。
func NewLocalRetriever(idx *index.Index) Retriever {
	return &localRetriever{idx: idx}
}

func (r *localRetriever) Retrieve(ctx context.Context, query string, docIDs []string, k int) ([]model.RetrievedChunk, error) {
	if k <= 0 {
		k = DefaultK
	}
	filter := BuildFilter(docIDs)
	hits, err := r.idx.Search(ctx, query, k, index.Filters{DocID: filter})
	if err != nil {
		return nil, newError(KindIndex, "index search failed", err)
	}
	chunks := filterByDoc(hitsToChunks(hits), filter)
	log.Infof("[Retrieval] 本地检索完成, filter: %q, 命中: %d", filter, len(chunks))
	return chunks, nil
}

// httpRetriever 调用远端 /vector/search 接口。
type httpRetriever struct {
	url    string
	client *http.Client
}

// NewHTTPRetriever 创建一个通过 HTTP 调用向量检索服务的 Retriever。
func NewHTTPRetriever(cfg config.RetrievalConfig) Retriever {
	return &httpRetriever{
		url:    cfg.SearchURL,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

type searchRequest struct {
	Query   string        `json:"query"`
	K       int           `json:"k"`
	Filters index.Filters `json:"filters,omitempty"`
}

func (r *httpRetriever) Retrieve(ctx context.Context, query string, docIDs []string, k int) ([]model.RetrievedChunk, error) {
	if k <= 0 {
		k = DefaultK
	}
	filter := BuildFilter(docIDs)
	reqBytes, err := json.Marshal(searchRequest{Query: query, K: k, Filters: index.Filters{DocID: filter}})
	if err != nil {
		return nil, newError(KindTransport, "failed to marshal search request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, newError(KindTransport, "failed to create search request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Infof("[Retrieval] 调用向量检索服务: %s, k: %d, filter: %q", r.url, k, filter)
	resp, err := r.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, newError(KindTimeout, "vector search timed out", err)
		}
		return nil, newError(KindTransport, "vector search request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, newError(KindTimeout, "reading vector search response timed out", err)
		}
		return nil, newError(KindTransport, "failed to read vector search response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindStatus, fmt.Sprintf("vector search returned %s: %s", resp.Status, truncate(string(body), 200)), nil)
	}

	chunks, err := Normalize(body)
	if err != nil {
		return nil, err
	}
	chunks = filterByDoc(chunks, filter)
	log.Infof("[Retrieval] 远端检索完成, 命中: %d", len(chunks))
	return chunks, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
