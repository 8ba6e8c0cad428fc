// Package extract 从上传文件中抽取全文与逐页文本。
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/pkg/log"
	"rag-pipeline-go/pkg/tika"
)

// 支持的文件类型
const (
	TypePDF   = "pdf"
	TypeDOCX  = "docx"
	TypeTXT   = "txt"
	TypeImage = "image"
)

var (
	// ErrUnsupportedType 表示文件类型不受支持。
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrUnreadable 表示文件无法读取或没有可抽取的文本。
	ErrUnreadable = errors.New("unreadable file content")
)

// AllowedExtensions 是上传接口接受的扩展名。
var AllowedExtensions = map[string]string{
	".pdf":  TypePDF,
	".docx": TypeDOCX,
	".txt":  TypeTXT,
	".png":  TypeImage,
	".jpg":  TypeImage,
	".jpeg": TypeImage,
}

// DetectFileType 根据扩展名返回文件类型，不支持时返回空字符串。
func DetectFileType(fileName string) string {
	return AllowedExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// Extractor 按文件类型分派到具体的抽取实现。图片需要配置 Tika。
type Extractor struct {
	tika *tika.Client
}

// New 创建 Extractor，tikaClient 可以为 nil。
func New(tikaClient *tika.Client) *Extractor {
	return &Extractor{tika: tikaClient}
}

// Extract 返回清洗后的全文与逐页文本，页码从 1 开始。
func (e *Extractor) Extract(ctx context.Context, path string) (string, []model.PageText, error) {
	fileType := DetectFileType(path)
	log.Infof("[Extractor] 开始抽取文本, file: %s, type: %s", filepath.Base(path), fileType)

	var pages []model.PageText
	var err error
	switch fileType {
	case TypePDF:
		pages, err = extractPDF(path)
	case TypeDOCX:
		pages, err = extractDOCX(path)
	case TypeTXT:
		pages, err = extractTXT(path)
	case TypeImage:
		pages, err = e.extractWithTika(ctx, path)
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
	if err != nil {
		return "", nil, err
	}

	texts := make([]string, 0, len(pages))
	for i := range pages {
		pages[i].Text = CleanText(pages[i].Text)
		if pages[i].Text != "" {
			texts = append(texts, pages[i].Text)
		}
	}
	full := strings.Join(texts, "\n\n")
	if strings.TrimSpace(full) == "" {
		return "", nil, fmt.Errorf("%w: no text extracted from %s", ErrUnreadable, filepath.Base(path))
	}
	log.Infof("[Extractor] 抽取完成, 页数: %d, 字符数: %d", len(pages), len(full))
	return full, pages, nil
}

func extractTXT(path string) ([]model.PageText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return []model.PageText{{Page: 1, Text: string(data)}}, nil
}

func (e *Extractor) extractWithTika(ctx context.Context, path string) ([]model.PageText, error) {
	if e.tika == nil {
		return nil, fmt.Errorf("%w: image extraction requires a tika server", ErrUnsupportedType)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	text, err := e.tika.ExtractText(ctx, f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return []model.PageText{{Page: 1, Text: text}}, nil
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// CleanText 合并连续空白、去掉行首尾空白，并把多余空行压缩为一个。
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = horizontalSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}
