// Package prompt 将查询与检索到的分块渲染为指定类型的提示词。
package prompt

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"rag-pipeline-go/internal/config"
	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/pkg/log"
)

// TemplateType 是提示词模板的枚举。
type TemplateType string

const (
	TemplateQA        TemplateType = "qa"
	TemplateGap       TemplateType = "gap"
	TemplateChecklist TemplateType = "checklist"

	DefaultTemplate = TemplateQA
)

// TemplateTypes 列出所有支持的模板类型。
var TemplateTypes = []TemplateType{TemplateQA, TemplateGap, TemplateChecklist}

// ParseTemplateType 识别模板类型，忽略大小写与首尾空白。
func ParseTemplateType(s string) (TemplateType, bool) {
	t := TemplateType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range TemplateTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// BuildError 表示模板缺失或渲染失败。
type BuildError struct {
	Template string
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("prompt template %q: %v", e.Template, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Data 是模板可访问的数据。
type Data struct {
	Query     string
	Chunks    []model.RetrievedChunk
	NumChunks int
}

// Composer 在构造时解析全部模板文件，之后按类型渲染。
type Composer struct {
	templates map[TemplateType]*template.Template
}

// NewComposer 从 cfg.Dir 读取三种模板。任一文件缺失或语法错误都会返回 BuildError。
func NewComposer(cfg config.PromptConfig) (*Composer, error) {
	files := map[TemplateType]string{
		TemplateQA:        cfg.QATemplate,
		TemplateGap:       cfg.GapTemplate,
		TemplateChecklist: cfg.ChecklistTemplate,
	}

	c := &Composer{templates: make(map[TemplateType]*template.Template, len(files))}
	for t, name := range files {
		if name == "" {
			return nil, &BuildError{Template: string(t), Err: fmt.Errorf("no template file configured")}
		}
		path := filepath.Join(cfg.Dir, name)
		tmpl, err := template.New(name).Funcs(funcMap()).Option("missingkey=error").ParseFiles(path)
		if err != nil {
			return nil, &BuildError{Template: name, Err: err}
		}
		c.templates[t] = tmpl
	}
	log.Infof("[PromptComposer] 模板加载完成, dir: %s", cfg.Dir)
	return c, nil
}

// funcMap 是 sprig 函数加上按字符截断的 truncRunes。sprig 的 trunc 按字节截断，会切开多字节字符。
func funcMap() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["truncRunes"] = truncRunes
	return funcs
}

func truncRunes(n int, s string) string {
	if n < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Compose 渲染指定类型的模板。chunks 为空也是合法输入。
func (c *Composer) Compose(t TemplateType, query string, chunks []model.RetrievedChunk) (string, error) {
	tmpl, ok := c.templates[t]
	if !ok {
		return "", &BuildError{Template: string(t), Err: fmt.Errorf("unknown template type")}
	}
	if chunks == nil {
		chunks = []model.RetrievedChunk{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, Data{Query: query, Chunks: chunks, NumChunks: len(chunks)}); err != nil {
		return "", &BuildError{Template: tmpl.Name(), Err: err}
	}
	log.Debugf("[PromptComposer] 提示词渲染完成, template: %s, 长度: %d", t, buf.Len())
	return buf.String(), nil
}
