// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-pipeline-go/internal/service"
)

// SystemHandler 提供服务描述与健康检查。
type SystemHandler struct {
	indexSvc service.IndexService
	mockMode bool
}

// NewSystemHandler 创建一个新的 SystemHandler 实例。
func NewSystemHandler(indexSvc service.IndexService, mockMode bool) *SystemHandler {
	return &SystemHandler{indexSvc: indexSvc, mockMode: mockMode}
}

// Root 返回服务描述与接口列表。
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "RAG Pipeline API",
		"version": "1.0.0",
		"endpoints": gin.H{
			"GET /health":         "Health check",
			"POST /vector/index":  "Rebuild the vector index from stored chunks",
			"POST /vector/search": "Vector search (body: {query, k?, filters?})",
			"POST /rag/query":     "Run RAG query (body: {query, doc_ids?, template_type?})",
			"POST /rag/upload":    "Upload and process files",
			"POST /rag/full":      "Full pipeline: upload files + run query",
			"GET /rag/documents":  "List ingested documents",
			"GET /rag/history":    "Recent query runs",
			"GET /rag/ws":         "WebSocket query channel",
			"GET /metrics":        "Prometheus metrics",
		},
	})
}

// Health 报告索引大小与加载状态。
func (h *SystemHandler) Health(c *gin.Context) {
	st := h.indexSvc.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"index_size":   st.Size,
		"index_loaded": st.Loaded,
		"mock_mode":    h.mockMode,
	})
}
