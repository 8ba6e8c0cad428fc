package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rag-pipeline-go/internal/service"
)

// HistoryHandler 处理查询历史相关的 API 请求。
type HistoryHandler struct {
	service service.HistoryService
}

// NewHistoryHandler 创建一个新的 HistoryHandler。
func NewHistoryHandler(service service.HistoryService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// Recent 返回最近的查询记录，limit 默认 20。
func (h *HistoryHandler) Recent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	records, err := h.service.Recent(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, "Failed to retrieve run history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    records,
	})
}
