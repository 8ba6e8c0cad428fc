package extract

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"rag-pipeline-go/internal/model"
	"rag-pipeline-go/pkg/log"
)

// extractPDF 逐页读取 PDF 纯文本，单页失败时记为空页继续。
func extractPDF(path string) (pages []model.PageText, err error) {
	// pdf 库在遇到损坏文件时可能 panic
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("%w: pdf parser panic: %v", ErrUnreadable, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", ErrUnreadable, err)
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]model.PageText, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, model.PageText{Page: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			log.Warnf("[Extractor] PDF 第 %d 页抽取失败: %v", i, err)
			text = ""
		}
		pages = append(pages, model.PageText{Page: i, Text: text})
	}
	return pages, nil
}
