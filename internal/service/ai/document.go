package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
)

// ErrEmptyDocument is returned when a context file has no readable text.
var ErrEmptyDocument = errors.New("document has no readable text content")

// DocumentLoader reads local files into plain text for use as conversation context.
type DocumentLoader struct {
	loader *file.FileLoader
}

// NewDocumentLoader picks a parser by file extension and falls back to plain text.
func NewDocumentLoader(ctx context.Context) (*DocumentLoader, error) {
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init document parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &DocumentLoader{loader: loader}, nil
}

// Load returns the trimmed text of path, documents joined by blank lines.
func (l *DocumentLoader) Load(ctx context.Context, path string) (string, error) {
	docs, err := l.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", fmt.Errorf("load file: %w", err)
	}
	var builder strings.Builder
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n\n")
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyDocument)
	}
	return text, nil
}
