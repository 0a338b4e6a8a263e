package extract

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"evalsum/internal/models"
)

// TruncationMarker is appended to text cut by Truncate.
const TruncationMarker = "\n\n[Text truncated due to length...]"

// Document is the plain text of a PDF with all pages joined.
type Document struct {
	Text  string
	Pages int
}

// Extractor turns uploaded PDFs into plain text.
type Extractor struct {
	loader *file.FileLoader
	parser parser.Parser
	logger *zap.Logger
}

// NewExtractor wires the PDF parser into an eino file loader.
func NewExtractor(ctx context.Context, logger *zap.Logger) (*Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pdfParser := PDFParser{}
	ext, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".pdf": pdfParser,
			".PDF": pdfParser,
		},
		FallbackParser: pdfParser,
	})
	if err != nil {
		return nil, err
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      ext,
	})
	if err != nil {
		return nil, err
	}
	return &Extractor{loader: loader, parser: pdfParser, logger: logger.Named("extract")}, nil
}

// ExtractFile loads the PDF at path and returns its text.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Document, error) {
	docs, err := e.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		e.logger.Warn("pdf extraction failed", zap.String("path", path), zap.Error(err))
		return nil, models.NewError(models.KindExtractionFailed, "Failed to extract text from PDF", err)
	}
	return join(docs), nil
}

// ExtractBytes parses an in-memory PDF and returns its text.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte) (*Document, error) {
	docs, err := e.parser.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		e.logger.Warn("pdf extraction failed", zap.Int("bytes", len(data)), zap.Error(err))
		return nil, models.NewError(models.KindExtractionFailed, "Failed to extract text from PDF", err)
	}
	return join(docs), nil
}

func join(docs []*schema.Document) *Document {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil || d.Content == "" {
			continue
		}
		parts = append(parts, d.Content)
	}
	return &Document{
		Text:  strings.TrimSpace(strings.Join(parts, "\n")),
		Pages: len(docs),
	}
}

// Truncate caps text at max characters. When it cuts, the result ends with
// TruncationMarker and is exactly max characters long, so applying Truncate
// again leaves it unchanged.
func Truncate(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	markerLen := utf8.RuneCountInString(TruncationMarker)
	if max <= markerLen {
		return string([]rune(text)[:max]), true
	}
	keep := []rune(text)[:max-markerLen]
	return string(keep) + TruncationMarker, true
}
