package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rag-pipeline-go/internal/pipeline"
	"rag-pipeline-go/internal/service"
	"rag-pipeline-go/pkg/log"
)

// defaultDocIDs 在请求未指定文档时使用，不做文档过滤。
var defaultDocIDs = []string{"default"}

// RAGHandler 负责查询、上传以及上传加查询的组合接口。
type RAGHandler struct {
	orchestrator service.OrchestratorService
	ingestSvc    service.IngestService
}

// NewRAGHandler 创建一个新的 RAGHandler 实例。
func NewRAGHandler(orchestrator service.OrchestratorService, ingestSvc service.IngestService) *RAGHandler {
	return &RAGHandler{orchestrator: orchestrator, ingestSvc: ingestSvc}
}

// QueryRequest 定义了 RAG 查询的请求体。
type QueryRequest struct {
	Query        string   `json:"query"`
	DocIDs       []string `json:"doc_ids"`
	TemplateType string   `json:"template_type"`
}

// Query 处理 RAG 查询请求。
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	log.Infof("[RAGHandler] 收到查询请求, query: '%s', template: %s", truncate(req.Query, 50), req.TemplateType)

	result, err := h.orchestrator.Run(c.Request.Context(), req.Query, docIDsOrDefault(req.DocIDs), templateOrDefault(req.TemplateType))
	if err != nil {
		writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Upload 处理文件上传入库请求，支持 files 与 file 两个表单字段。
func (h *RAGHandler) Upload(c *gin.Context) {
	headers := formFiles(c)
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}

	report, err := h.ingest(c, headers)
	if err != nil {
		if errors.Is(err, service.ErrNoValidFiles) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No valid files to process"})
			return
		}
		log.Error("[RAGHandler] 上传处理失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Full 先处理可选的上传文件，再执行可选的查询。新上传文档的 id 会限定查询范围。
func (h *RAGHandler) Full(c *gin.Context) {
	var req QueryRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.Query = c.PostForm("query")
		req.TemplateType = c.PostForm("template_type")
	} else {
		_ = c.ShouldBindJSON(&req)
	}

	uploaded := []pipeline.IngestResult{}
	var docIDs []string
	if headers := formFiles(c); len(headers) > 0 {
		report, err := h.ingest(c, headers)
		switch {
		case err == nil:
			uploaded = report.Files
			docIDs = report.DocIDs()
		case errors.Is(err, service.ErrNoValidFiles):
			log.Warnf("[RAGHandler] 上传的文件均不受支持, 忽略")
		default:
			log.Error("[RAGHandler] 上传处理失败", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	if strings.TrimSpace(req.Query) == "" {
		if len(uploaded) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Either query or files must be provided"})
			return
		}
		log.Infof("[RAGHandler] 仅上传文件: %d 个", len(uploaded))
		c.JSON(http.StatusOK, gin.H{
			"uploaded_files": uploaded,
			"reindexed":      len(docIDs),
			"message":        "Files processed successfully. Send a query to analyze them.",
		})
		return
	}

	log.Infof("[RAGHandler] 完整流程查询: '%s', 新文档数: %d", truncate(req.Query, 50), len(docIDs))
	result, err := h.orchestrator.Run(c.Request.Context(), req.Query, docIDsOrDefault(docIDs), templateOrDefault(req.TemplateType))
	if err != nil {
		writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploaded_files": uploaded, "result": result})
}

func (h *RAGHandler) ingest(c *gin.Context, headers []*multipart.FileHeader) (*service.IngestReport, error) {
	files := make([]service.UploadedFile, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	defer func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		closers = append(closers, f)
		files = append(files, service.UploadedFile{FileName: fh.Filename, Size: fh.Size, Reader: f})
	}
	return h.ingestSvc.Ingest(c.Request.Context(), files)
}

// formFiles 收集 file 与 files 两个字段中的文件。
func formFiles(c *gin.Context) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	var out []*multipart.FileHeader
	for _, field := range []string{"file", "files"} {
		for _, fh := range form.File[field] {
			if fh != nil && fh.Filename != "" {
				out = append(out, fh)
			}
		}
	}
	return out
}

func writeOrchestratorError(c *gin.Context, err error) {
	var oe *service.OrchestratorError
	if errors.As(err, &oe) {
		log.Errorf("[RAGHandler] 编排失败, stage: %s, error: %v", oe.Stage, oe.Err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "stage": oe.Stage})
		return
	}
	log.Error("[RAGHandler] 未预期的错误", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func docIDsOrDefault(ids []string) []string {
	if len(ids) == 0 {
		return defaultDocIDs
	}
	return ids
}

func templateOrDefault(t string) string {
	if t == "" {
		return "qa"
	}
	return t
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
