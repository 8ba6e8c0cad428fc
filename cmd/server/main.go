// Package main 是 HTTP 服务的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"rag-pipeline-go/internal/app"
	"rag-pipeline-go/internal/config"
	"rag-pipeline-go/internal/handler"
	"rag-pipeline-go/pkg/log"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to config file")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Infof("日志记录器初始化成功, mock_mode: %v", cfg.MockMode)

	// 3. 组装依赖
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := app.New(rootCtx, &cfg)
	if err != nil {
		log.Fatal("初始化服务依赖失败", err)
	}
	defer a.Close()

	// 4. 恢复持久化索引
	if a.LoadIndex() {
		log.Infof("索引已就绪, 向量数: %d", a.Index.Size())
	} else {
		log.Warnf("索引尚未构建, 请调用 POST /vector/index 或上传文件")
	}

	// 5. 启动后台 Kafka 消费者
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		a.RunConsumer(rootCtx)
	}()

	// 6. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.Services{
		Index:        a.IndexSvc,
		Ingest:       a.IngestSvc,
		Orchestrator: a.Orchestrator,
		Documents:    a.DocumentSvc,
		History:      a.HistorySvc,
		MockMode:     cfg.MockMode,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止 Kafka 消费者并等待当前任务结束
	cancel()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}
	log.Info("服务已优雅关闭")
}
