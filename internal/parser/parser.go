// Package parser 把模型返回的非可信文本转换为 narrative / checklist / citations 结构。
// 解析永远不会返回错误，最坏情况是一条标记为 failed 的兜底记录。
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/pkg/log"
	"rag-pipeline-go/pkg/metrics"
)

const (
	DefaultFailureMessage = "needs human review"
	rawOutputLimit        = 500
)

// Strategy 尝试从文本中得到一个结构化文档，失败时返回 false。
type Strategy struct {
	Name  string
	Apply func(text string) (map[string]any, bool)
}

// Strategies 按顺序执行，第一个成功的结果胜出。
var Strategies = []Strategy{
	{Name: "direct", Apply: parseDirect},
	{Name: "fenced", Apply: parseFenced},
	{Name: "heuristic", Apply: parseHeuristic},
}

// Parser 持有可配置的失败占位文本。
type Parser struct {
	FailureMessage string
}

// New 创建 Parser，failureMessage 为空时使用默认值。
func New(failureMessage string) *Parser {
	if strings.TrimSpace(failureMessage) == "" {
		failureMessage = DefaultFailureMessage
	}
	return &Parser{FailureMessage: failureMessage}
}

var defaultParser = New(DefaultFailureMessage)

// Parse 使用默认失败文本解析模型输出。
func Parse(text string) model.ParsedResult {
	return defaultParser.Parse(text)
}

// Parse 依次尝试直接解析、代码块提取、启发式重建，全部失败时返回兜底记录。
func (p *Parser) Parse(text string) model.ParsedResult {
	for _, s := range Strategies {
		if doc, ok := s.Apply(text); ok {
			log.Infof("[OutputParser] 使用 %s 策略解析成功", s.Name)
			metrics.ParseStrategy.WithLabelValues(s.Name).Inc()
			return Normalize(doc)
		}
	}
	log.Warnf("[OutputParser] 所有解析策略均失败, 输出长度: %d", len(text))
	metrics.ParseStrategy.WithLabelValues(model.ParseStatusFailed).Inc()
	return p.failure(text)
}

func (p *Parser) failure(text string) model.ParsedResult {
	return model.ParsedResult{
		Narrative: p.FailureMessage,
		Checklist: []string{
			"Manual review required",
			"Original output could not be parsed into structured format",
		},
		Citations:   map[string]string{},
		RawOutput:   truncateRunes(text, rawOutputLimit),
		ParseStatus: model.ParseStatusFailed,
	}
}

// parseDirect 把整段文本当作一个 JSON 对象解析。空对象视为失败。
func parseDirect(text string) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(text))))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || len(doc) == 0 {
		return nil, false
	}
	// 对象之后只允许空白，多余的 } 或 ] 也算失败
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return doc, true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
