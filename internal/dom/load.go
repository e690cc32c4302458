package dom

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
)

// SupportedExtensions lists file extensions this service can enrich.
var SupportedExtensions = map[string]bool{
	".html":     true,
	".htm":      true,
	".md":       true,
	".markdown": true,
}

// IsSupported checks whether a filename has an enrichable extension.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Load reads a document from r, dispatching on the file extension.
// Markdown is rendered to HTML first; enrichment always operates on an
// HTML tree because the outputs (ARIA attributes, note elements) only
// exist there.
func Load(r io.Reader, filename string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		doc, err := Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		doc.SetName(filename)
		return doc, nil
	case ".md", ".markdown":
		src, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := goldmark.Convert(src, &buf); err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		doc, err := Parse(&buf)
		if err != nil {
			return nil, fmt.Errorf("parse rendered markdown: %w", err)
		}
		doc.SetName(filename)
		return doc, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}
