package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/ledongthuc/pdf"
)

// MetaPage is the document metadata key holding the 1-based page number.
const MetaPage = "page"

// PDFParser is an eino document parser producing one document per PDF page.
type PDFParser struct{}

var _ parser.Parser = PDFParser{}

// Parse reads the whole PDF from reader. Pages without text yield empty documents.
func (PDFParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) (docs []*schema.Document, err error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	common := parser.GetCommonOptions(&parser.Options{}, opts...)

	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	docs = make([]*schema.Document, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		meta := map[string]any{MetaPage: i}
		for k, v := range common.ExtraMeta {
			meta[k] = v
		}
		docs = append(docs, &schema.Document{
			ID:       fmt.Sprintf("%s#%d", common.URI, i),
			Content:  strings.TrimSpace(text),
			MetaData: meta,
		})
	}
	return docs, nil
}
