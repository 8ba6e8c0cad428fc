// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"time"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/internal/parser"
	"rag-pipeline-go/internal/prompt"
	"rag-pipeline-go/internal/repository"
	"rag-pipeline-go/internal/retrieval"
	"rag-pipeline-go/pkg/llm"
	"rag-pipeline-go/pkg/log"
	"rag-pipeline-go/pkg/metrics"
)

// NoResultsNarrative 是检索结果为空时返回的固定 narrative。
const NoResultsNarrative = "No relevant information found in the specified documents."

// Stage 标识编排流程中出错的阶段。
type Stage string

const (
	StageRetrieval Stage = "retrieval"
	StagePrompt    Stage = "prompt"
	StageInference Stage = "inference"
	StageInternal  Stage = "internal"
)

// OrchestratorError 把各阶段的错误统一包装，并带上出错阶段。
type OrchestratorError struct {
	Stage Stage
	Err   error
}

func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *OrchestratorError) Unwrap() error { return e.Err }

// PromptComposer 是编排器依赖的提示词渲染能力。
type PromptComposer interface {
	Compose(t prompt.TemplateType, query string, chunks []model.RetrievedChunk) (string, error)
}

// OrchestratorService 依次执行 检索 → 提示词 → 推理 → 解析。
type OrchestratorService interface {
	Run(ctx context.Context, query string, docIDs []string, templateType string) (*model.ParsedResult, error)
}

type orchestratorService struct {
	retriever   retrieval.Retriever
	composer    PromptComposer
	llmClient   llm.Client
	parser      *parser.Parser
	historyRepo repository.RunHistoryRepository
	topK        int
}

// NewOrchestratorService 创建一个新的 OrchestratorService 实例。historyRepo 可以为 nil。
func NewOrchestratorService(
	retriever retrieval.Retriever,
	composer PromptComposer,
	llmClient llm.Client,
	p *parser.Parser,
	historyRepo repository.RunHistoryRepository,
	topK int,
) OrchestratorService {
	if p == nil {
		p = parser.New("")
	}
	if topK <= 0 {
		topK = retrieval.DefaultK
	}
	return &orchestratorService{
		retriever:   retriever,
		composer:    composer,
		llmClient:   llmClient,
		parser:      p,
		historyRepo: historyRepo,
		topK:        topK,
	}
}

// Run 执行一次完整的检索增强生成。检索为空时直接返回空结果，不调用模型。
func (s *orchestratorService) Run(ctx context.Context, query string, docIDs []string, templateType string) (result *model.ParsedResult, err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Orchestrator] 编排过程中发生未预期错误: %v", r)
			result, err = nil, &OrchestratorError{Stage: StageInternal, Err: fmt.Errorf("%v", r)}
		}
	}()

	tmpl, ok := prompt.ParseTemplateType(templateType)
	if !ok {
		log.Warnf("[Orchestrator] 未知的模板类型 %q, 使用默认模板 %q", templateType, prompt.DefaultTemplate)
		tmpl = prompt.DefaultTemplate
	}
	if docIDs == nil {
		docIDs = []string{}
	}
	log.Infof("[Orchestrator] 开始处理查询, template: %s, doc_ids: %v", tmpl, docIDs)

	// 1. 检索
	log.Info("[Orchestrator] 步骤1: 检索相关分块")
	stageStart := time.Now()
	chunks, err := s.retriever.Retrieve(ctx, query, docIDs, s.topK)
	metrics.ObserveStage(string(StageRetrieval), stageStart, err)
	if err != nil {
		log.Errorf("[Orchestrator] 检索失败: %v", err)
		return nil, &OrchestratorError{Stage: StageRetrieval, Err: err}
	}
	log.Infof("[Orchestrator] 步骤1: 检索到 %d 个分块", len(chunks))

	meta := &model.RunMetadata{
		Query:              query,
		DocIDs:             docIDs,
		TemplateType:       string(tmpl),
		NumChunksRetrieved: len(chunks),
		ChunksUsed:         chunkIDs(chunks),
	}

	if len(chunks) == 0 {
		log.Warnf("[Orchestrator] 未检索到任何分块, 跳过模型调用")
		result = model.EmptyResult(NoResultsNarrative)
		result.Metadata = meta
		s.recordRun(ctx, result, started)
		return result, nil
	}

	// 2. 提示词
	log.Info("[Orchestrator] 步骤2: 渲染提示词")
	stageStart = time.Now()
	promptText, err := s.composer.Compose(tmpl, query, chunks)
	metrics.ObserveStage(string(StagePrompt), stageStart, err)
	if err != nil {
		log.Errorf("[Orchestrator] 提示词渲染失败: %v", err)
		return nil, &OrchestratorError{Stage: StagePrompt, Err: err}
	}

	// 3. 推理
	log.Info("[Orchestrator] 步骤3: 调用模型")
	stageStart = time.Now()
	raw, err := s.llmClient.Infer(ctx, promptText, nil)
	metrics.ObserveStage(string(StageInference), stageStart, err)
	if err != nil {
		log.Errorf("[Orchestrator] 模型调用失败: %v", err)
		return nil, &OrchestratorError{Stage: StageInference, Err: err}
	}

	// 4. 解析
	log.Info("[Orchestrator] 步骤4: 解析模型输出")
	stageStart = time.Now()
	parsed := s.parser.Parse(raw)
	metrics.ObserveStage("parse", stageStart, nil)

	result = &parsed
	result.Metadata = meta
	s.recordRun(ctx, result, started)
	log.Infof("[Orchestrator] 查询处理完成, 耗时: %s, parse_status: %q", time.Since(started), result.ParseStatus)
	return result, nil
}

func (s *orchestratorService) recordRun(ctx context.Context, result *model.ParsedResult, started time.Time) {
	if s.historyRepo == nil || result.Metadata == nil {
		return
	}
	record := model.NewRunRecord(*result.Metadata, result.ParseStatus, time.Since(started))
	if err := s.historyRepo.Append(ctx, record); err != nil {
		// 历史记录失败不影响查询结果
		log.Warnf("[Orchestrator] 保存运行历史失败: %v", err)
	}
}

func chunkIDs(chunks []model.RetrievedChunk) []string {
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ChunkID)
	}
	return ids
}
