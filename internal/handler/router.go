package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rag-pipeline-go/internal/middleware"
	"rag-pipeline-go/internal/service"
)

// Services 汇总路由需要的业务服务。
type Services struct {
	Index        service.IndexService
	Ingest       service.IngestService
	Orchestrator service.OrchestratorService
	Documents    service.DocumentService
	History      service.HistoryService
	MockMode     bool
}

// NewRouter 创建 Gin 引擎并注册所有路由。
func NewRouter(svc Services) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	system := NewSystemHandler(svc.Index, svc.MockMode)
	r.GET("/", system.Root)
	r.GET("/health", system.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	vector := r.Group("/vector")
	{
		h := NewVectorHandler(svc.Index)
		vector.POST("/index", h.Index)
		vector.POST("/search", h.Search)
	}

	rag := r.Group("/rag")
	{
		h := NewRAGHandler(svc.Orchestrator, svc.Ingest)
		rag.POST("/query", h.Query)
		rag.POST("/upload", h.Upload)
		rag.POST("/full", h.Full)

		docs := NewDocumentHandler(svc.Documents)
		rag.GET("/documents", docs.List)
		rag.GET("/documents/:doc_id", docs.Get)

		rag.GET("/history", NewHistoryHandler(svc.History).Recent)
		rag.GET("/ws", NewQueryStreamHandler(svc.Orchestrator).Handle)
	}
	return r
}
