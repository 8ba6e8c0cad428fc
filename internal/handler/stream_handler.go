package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"rag-pipeline-go/internal/service"
	"rag-pipeline-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// QueryStreamHandler 通过 WebSocket 接收查询，每条请求消息对应一条结果或错误消息。
type QueryStreamHandler struct {
	orchestrator service.OrchestratorService
}

// NewQueryStreamHandler 创建一个新的 QueryStreamHandler。
func NewQueryStreamHandler(orchestrator service.OrchestratorService) *QueryStreamHandler {
	return &QueryStreamHandler{orchestrator: orchestrator}
}

type streamMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Stage     string      `json:"stage,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *QueryStreamHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立, remote: %s", c.ClientIP())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var req QueryRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Query == "" {
			h.write(conn, streamMessage{Type: "error", Error: "query is required"})
			continue
		}

		result, err := h.orchestrator.Run(c.Request.Context(), req.Query, docIDsOrDefault(req.DocIDs), templateOrDefault(req.TemplateType))
		if err != nil {
			msg := streamMessage{Type: "error", Error: err.Error()}
			var oe *service.OrchestratorError
			if errors.As(err, &oe) {
				msg.Stage = string(oe.Stage)
			}
			log.Errorf("WebSocket 查询处理失败: %v", err)
			h.write(conn, msg)
			continue
		}
		h.write(conn, streamMessage{Type: "result", Data: result})
	}
}

func (h *QueryStreamHandler) write(conn *websocket.Conn, msg streamMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	b, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("序列化 WebSocket 消息失败: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("写入 WebSocket 消息失败: %v", err)
	}
}
