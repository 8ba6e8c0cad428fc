package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-pipeline-go/internal/repository"
	"rag-pipeline-go/internal/service"
	"rag-pipeline-go/pkg/log"
)

// DocumentHandler 负责处理文档登记表相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// List 返回所有已入库文档。
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docService.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, "获取文档列表失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    docs,
	})
}

// Get 返回单个文档及其下载链接。
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docService.Get(c.Request.Context(), c.Param("doc_id"))
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在", "data": nil})
			return
		}
		writeServiceError(c, "获取文档失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": doc})
}

// writeServiceError 把未配置的后端映射为 503，其余为 500。
func writeServiceError(c *gin.Context, msg string, err error) {
	if errors.Is(err, service.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": err.Error(), "data": nil})
		return
	}
	log.Error(msg, err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": msg, "data": nil})
}
