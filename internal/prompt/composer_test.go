package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipeline-go/internal/config"
	"rag-pipeline-go/internal/model"
)

func shippedConfig() config.PromptConfig {
	return config.PromptConfig{
		Dir:               filepath.Join("..", "..", "prompts"),
		QATemplate:        "qa_prompt.tmpl",
		GapTemplate:       "gap_prompt.tmpl",
		ChecklistTemplate: "checklist_prompt.tmpl",
	}
}

var sampleChunks = []model.RetrievedChunk{
	{ChunkID: "doc1_chunk1", Text: "Sample text content", Score: 0.95, Metadata: model.ChunkMetadata{DocID: "doc1", Page: model.IntPtr(1)}},
	{ChunkID: "doc1_chunk2", Text: "More sample content", Score: 0.87, Metadata: model.ChunkMetadata{DocID: "doc1", Page: model.IntPtr(2)}},
}

func TestComposeAllShippedTemplates(t *testing.T) {
	c, err := NewComposer(shippedConfig())
	require.NoError(t, err)

	for _, tt := range TemplateTypes {
		t.Run(string(tt), func(t *testing.T) {
			out, err := c.Compose(tt, "What are the security requirements?", sampleChunks)
			require.NoError(t, err)
			assert.Contains(t, out, "What are the security requirements?")
			assert.Contains(t, out, "doc1_chunk1")
			assert.Contains(t, out, "Sample text content")
			assert.Contains(t, out, "2 chunks")
		})
	}
}

func TestChecklistTruncatesLongChunksOnRuneBoundary(t *testing.T) {
	c, err := NewComposer(shippedConfig())
	require.NoError(t, err)

	long := strings.Repeat("数据", 1500) // 3000 runes, 3 bytes each
	out, err := c.Compose(TemplateChecklist, "q", []model.RetrievedChunk{{ChunkID: "d_0", Text: long}})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, strings.Repeat("数据", 1000))
	assert.NotContains(t, out, strings.Repeat("数据", 1001))
}

func TestTruncRunes(t *testing.T) {
	assert.Equal(t, "héll", truncRunes(4, "héllo"))
	assert.Equal(t, "abc", truncRunes(10, "abc"))
	assert.Equal(t, "abc", truncRunes(-1, "abc"))
}

func TestComposeEmptyChunks(t *testing.T) {
	c, err := NewComposer(shippedConfig())
	require.NoError(t, err)

	for _, tt := range TemplateTypes {
		out, err := c.Compose(tt, "anything", nil)
		require.NoError(t, err)
		assert.Contains(t, out, "0 chunks")
	}
}

func TestNewComposerMissingTemplate(t *testing.T) {
	cfg := shippedConfig()
	cfg.GapTemplate = "missing.tmpl"
	_, err := NewComposer(cfg)

	var berr *BuildError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "missing.tmpl", berr.Template)
}

func TestComposeCustomTemplateDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"q.tmpl", "g.tmpl", "c.tmpl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{{ .Query | upper }}:{{ .NumChunks }}`), 0o644))
	}
	c, err := NewComposer(config.PromptConfig{Dir: dir, QATemplate: "q.tmpl", GapTemplate: "g.tmpl", ChecklistTemplate: "c.tmpl"})
	require.NoError(t, err)

	out, err := c.Compose(TemplateGap, "gaps", sampleChunks)
	require.NoError(t, err)
	assert.Equal(t, "GAPS:2", out)

	_, err = c.Compose(TemplateType("bogus"), "q", nil)
	var berr *BuildError
	assert.True(t, errors.As(err, &berr))
}

func TestParseTemplateType(t *testing.T) {
	tt, ok := ParseTemplateType(" Checklist ")
	assert.True(t, ok)
	assert.Equal(t, TemplateChecklist, tt)

	_, ok = ParseTemplateType("bogus")
	assert.False(t, ok)
}
