// Package local parses documents without a remote service: PDF text layers and UTF-8 text files.
package local

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	if bytes.HasPrefix(raw, pdfMagic) {
		return parsePDF(ctx, raw)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported binary format: %s", filepath.Base(path))
	}
	return strings.TrimSpace(string(raw)), nil
}

func parsePDF(ctx context.Context, raw []byte) (string, error) {
	reader := bytes.NewReader(raw)
	doc, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdf page %d text: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
