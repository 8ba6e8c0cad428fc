package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-pipeline-go/internal/index"
	"rag-pipeline-go/internal/service"
	"rag-pipeline-go/pkg/log"
)

// VectorHandler 负责向量索引的重建与检索接口。
type VectorHandler struct {
	indexSvc service.IndexService
}

// NewVectorHandler 创建一个新的 VectorHandler 实例。
func NewVectorHandler(indexSvc service.IndexService) *VectorHandler {
	return &VectorHandler{indexSvc: indexSvc}
}

// SearchRequest 定义了向量检索的请求体。
type SearchRequest struct {
	Query   string        `json:"query"`
	K       int           `json:"k"`
	Filters index.Filters `json:"filters"`
}

// Index 处理重建索引的请求。
func (h *VectorHandler) Index(c *gin.Context) {
	n, err := h.indexSvc.Reindex(c.Request.Context())
	if err != nil {
		if errors.Is(err, index.ErrNoChunks) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "No chunks found in storage",
				"message": "Upload documents before building the index",
			})
			return
		}
		log.Error("[VectorHandler] 重建索引失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"num_chunks": n,
		"index_size": h.indexSvc.Status().Size,
	})
}

// Search 处理向量检索请求。
func (h *VectorHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body is required"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query field is required"})
		return
	}
	if req.K <= 0 {
		req.K = index.DefaultTopK
	}
	log.Infof("[VectorHandler] 收到检索请求, query: %s, k: %d, doc_id: %q", req.Query, req.K, req.Filters.DocID)

	hits, err := h.indexSvc.Search(c.Request.Context(), req.Query, req.K, req.Filters)
	if err != nil {
		if errors.Is(err, index.ErrIndexNotLoaded) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Index not loaded or empty",
				"message": "Run POST /vector/index first to build the index",
			})
			return
		}
		log.Error("[VectorHandler] 检索失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": req.Query, "results": hits, "count": len(hits)})
}
