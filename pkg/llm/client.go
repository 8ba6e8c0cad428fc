// Package llm provides a client for interacting with Large Language Models.
package llm

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
	"rag-pipeline-go/pkg/log"
)

// Client defines the interface for an LLM client.
type Client interface {
	// Infer 发送一次非流式补全请求并返回模型的原始文本。gen 为 nil 时使用配置中的生成参数。
	Infer(ctx context.Context, prompt string, gen *GenerationParams) (string, error)
}

// NewClient creates an LLM client. In mock mode a deterministic client is returned.
func NewClient(cfg config.LLMConfig, mockMode bool) Client {
	if mockMode {
		log.Info("[LLMClient] mock 模式, 使用固定模型输出")
		return NewMockClient()
	}
	return &chatCompletionsClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

type chatCompletionsClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
}

// Infer calls the OpenAI-compatible chat completions endpoint.
func (c *chatCompletionsClient) Infer(ctx context.Context, prompt string, gen *GenerationParams) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", &CallError{Kind: KindCredential, Msg: "llm api key is not configured"}
	}

	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: []Message{{Role: "user", Content: prompt}},
		Stream:   false,
	}
	// 传参优先，其次使用配置中的非零值
	if c.cfg.Generation.Temperature != 0 {
		t := c.cfg.Generation.Temperature
		reqBody.Temperature = &t
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := c.cfg.Generation.MaxTokens
		reqBody.MaxTokens = &m
	}
	if gen != nil {
		if gen.Temperature != nil {
			reqBody.Temperature = gen.Temperature
		}
		if gen.MaxTokens != nil {
			reqBody.MaxTokens = gen.MaxTokens
		}
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", &CallError{Kind: KindTransport, Msg: "failed to marshal chat request", Err: err}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return "", &CallError{Kind: KindTransport, Msg: "failed to create chat request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	log.Infof("[LLMClient] 调用模型: %s, prompt 长度: %d", c.cfg.Model, len(prompt))
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", &CallError{Kind: KindTimeout, Msg: fmt.Sprintf("chat api timed out after %s", c.cfg.Timeout()), Err: err}
		}
		return "", &CallError{Kind: KindTransport, Msg: "failed to call chat api", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return "", &CallError{Kind: KindTimeout, Msg: "reading chat response timed out", Err: err}
		}
		return "", &CallError{Kind: KindTransport, Msg: "failed to read chat response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &CallError{Kind: KindStatus, StatusCode: resp.StatusCode, Msg: fmt.Sprintf("chat api returned non-200 status: %s, body: %s", resp.Status, truncate(string(body), 300))}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &CallError{Kind: KindEnvelope, Msg: "failed to decode chat response", Err: err}
	}
	if len(chatResp.Choices) == 0 {
		return "", &CallError{Kind: KindEnvelope, Msg: "chat response contains no choices"}
	}
	content := chatResp.Choices[0].Message.Content
	if content == nil {
		return "", &CallError{Kind: KindEnvelope, Msg: "chat response choice has no message content"}
	}

	log.Infof("[LLMClient] 模型返回成功, 输出长度: %d", len(*content))
	return *content, nil
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
