package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/internal/parser"
	"rag-pipeline-go/internal/prompt"
	"rag-pipeline-go/pkg/llm"
)

type fakeRetriever struct {
	chunks []model.RetrievedChunk
	err    error
	k      int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ []string, k int) ([]model.RetrievedChunk, error) {
	f.k = k
	return f.chunks, f.err
}

type fakeComposer struct {
	got prompt.TemplateType
	err error
}

func (f *fakeComposer) Compose(t prompt.TemplateType, query string, _ []model.RetrievedChunk) (string, error) {
	f.got = t
	return "PROMPT: " + query, f.err
}

type fakeLLM struct {
	calls  int
	output string
	err    error
}

func (f *fakeLLM) Infer(context.Context, string, *llm.GenerationParams) (string, error) {
	f.calls++
	return f.output, f.err
}

type fakeHistory struct {
	records []model.RunRecord
	err     error
}

func (f *fakeHistory) Append(_ context.Context, r model.RunRecord) error {
	f.records = append(f.records, r)
	return f.err
}

func (f *fakeHistory) Recent(context.Context, int) ([]model.RunRecord, error) {
	return f.records, nil
}

type panicRetriever struct{}

func (panicRetriever) Retrieve(context.Context, string, []string, int) ([]model.RetrievedChunk, error) {
	panic("unexpected nil map")
}

func twoChunks() []model.RetrievedChunk {
	return []model.RetrievedChunk{
		{ChunkID: "docA_0", Text: "alpha", Score: 0.9, Metadata: model.ChunkMetadata{DocID: "docA"}},
		{ChunkID: "docA_1", Text: "beta", Score: 0.5, Metadata: model.ChunkMetadata{DocID: "docA"}},
	}
}

func TestRunEmptyRetrievalSkipsModel(t *testing.T) {
	inferencer := &fakeLLM{}
	svc := NewOrchestratorService(&fakeRetriever{}, &fakeComposer{}, inferencer, nil, nil, 0)

	res, err := svc.Run(context.Background(), "anything", []string{"docA"}, "qa")
	require.NoError(t, err)
	assert.Equal(t, 0, inferencer.calls)
	assert.Equal(t, NoResultsNarrative, res.Narrative)
	assert.Empty(t, res.Checklist)
	assert.NotNil(t, res.Checklist)
	assert.Empty(t, res.Citations)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, 0, res.Metadata.NumChunksRetrieved)
}

func TestRunUnknownTemplateFallsBackToQA(t *testing.T) {
	composer := &fakeComposer{}
	svc := NewOrchestratorService(&fakeRetriever{chunks: twoChunks()}, composer, llm.NewMockClient(), nil, nil, 3)

	res, err := svc.Run(context.Background(), "q", []string{"docA"}, "bogus")
	require.NoError(t, err)
	assert.Equal(t, prompt.TemplateQA, composer.got)
	assert.Equal(t, "qa", res.Metadata.TemplateType)
}

func TestRunAttachesMetadata(t *testing.T) {
	retriever := &fakeRetriever{chunks: twoChunks()}
	svc := NewOrchestratorService(retriever, &fakeComposer{}, llm.NewMockClient(), parser.New(""), nil, 7)

	res, err := svc.Run(context.Background(), "what is alpha", []string{"docA", "docB"}, "gap")
	require.NoError(t, err)
	assert.Equal(t, 7, retriever.k)
	assert.Equal(t, llm.MockResponse.Narrative, res.Narrative)
	assert.Len(t, res.Checklist, 4)
	assert.Empty(t, res.ParseStatus)

	meta := res.Metadata
	require.NotNil(t, meta)
	assert.Equal(t, "what is alpha", meta.Query)
	assert.Equal(t, []string{"docA", "docB"}, meta.DocIDs)
	assert.Equal(t, "gap", meta.TemplateType)
	assert.Equal(t, 2, meta.NumChunksRetrieved)
	assert.Equal(t, []string{"docA_0", "docA_1"}, meta.ChunksUsed)
}

func TestRunUnparseableOutputIsNotAnError(t *testing.T) {
	svc := NewOrchestratorService(&fakeRetriever{chunks: twoChunks()}, &fakeComposer{}, &fakeLLM{output: "just some words"}, parser.New("check manually"), nil, 0)

	res, err := svc.Run(context.Background(), "q", nil, "qa")
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Equal(t, "check manually", res.Narrative)
	assert.Equal(t, []string{}, res.Metadata.DocIDs)
}

func TestRunWrapsStageErrors(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name      string
		retriever *fakeRetriever
		composer  *fakeComposer
		llm       *fakeLLM
		stage     Stage
	}{
		{"retrieval", &fakeRetriever{err: boom}, &fakeComposer{}, &fakeLLM{}, StageRetrieval},
		{"prompt", &fakeRetriever{chunks: twoChunks()}, &fakeComposer{err: boom}, &fakeLLM{}, StagePrompt},
		{"inference", &fakeRetriever{chunks: twoChunks()}, &fakeComposer{}, &fakeLLM{err: boom}, StageInference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewOrchestratorService(tc.retriever, tc.composer, tc.llm, nil, nil, 0)
			res, err := svc.Run(context.Background(), "q", nil, "qa")
			assert.Nil(t, res)

			var oe *OrchestratorError
			require.ErrorAs(t, err, &oe)
			assert.Equal(t, tc.stage, oe.Stage)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), string(tc.stage))
		})
	}
}

func TestRunRecoversPanicAsInternal(t *testing.T) {
	svc := NewOrchestratorService(panicRetriever{}, &fakeComposer{}, &fakeLLM{}, nil, nil, 0)
	_, err := svc.Run(context.Background(), "q", nil, "qa")

	var oe *OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, StageInternal, oe.Stage)
}

func TestRunRecordsHistory(t *testing.T) {
	history := &fakeHistory{}
	svc := NewOrchestratorService(&fakeRetriever{chunks: twoChunks()}, &fakeComposer{}, llm.NewMockClient(), nil, history, 0)

	_, err := svc.Run(context.Background(), "q", []string{"docA"}, "checklist")
	require.NoError(t, err)
	require.Len(t, history.records, 1)
	assert.Equal(t, "checklist", history.records[0].TemplateType)
	assert.Equal(t, "ok", history.records[0].ParseStatus)
	assert.Equal(t, 2, history.records[0].NumChunks)
}

func TestRunHistoryFailureDoesNotFailRun(t *testing.T) {
	history := &fakeHistory{err: errors.New("redis down")}
	svc := NewOrchestratorService(&fakeRetriever{}, &fakeComposer{}, &fakeLLM{}, nil, history, 0)

	res, err := svc.Run(context.Background(), "q", nil, "qa")
	require.NoError(t, err)
	assert.Equal(t, NoResultsNarrative, res.Narrative)
	assert.Len(t, history.records, 1)
}
