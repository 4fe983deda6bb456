// Package loader extracts plain text and page boundaries from uploaded
// document files.
//
// Plain-text formats (txt, md) and HTML are handled natively. Binary office
// formats and PDF are dispatched to pluggable Extractor implementations
// registered per extension; without a registered extractor those files fail
// with a LoadError so the document surfaces a clear extraction failure
// instead of silently producing garbage.
package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Page is one extracted page of a document, in reading order.
// Index is zero-based.
type Page struct {
	Content string
	Index   int
}

// Extractor extracts pages from a binary document format (pdf, docx, ...).
// Implementations are external collaborators registered at wiring time.
type Extractor interface {
	Extract(path string) ([]Page, error)
}

// supportedExtensions is the fixed allow-list of ingestable file types.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".pptx": true,
	".ppt":  true,
	".xlsx": true,
	".xls":  true,
	".md":   true,
	".txt":  true,
	".html": true,
	".htm":  true,
}

// textExtensions are handled natively by reading the file as text.
var textExtensions = map[string]bool{
	".md":  true,
	".txt": true,
}

// Loader reads supported document files and returns their pages.
type Loader struct {
	extractors map[string]Extractor
	logger     *slog.Logger
}

// New creates a Loader. logger may be nil.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		extractors: make(map[string]Extractor),
		logger:     logger,
	}
}

// RegisterExtractor installs an extractor for a binary extension
// (e.g. ".pdf"). Registration for unsupported extensions is ignored.
func (l *Loader) RegisterExtractor(ext string, e Extractor) {
	ext = strings.ToLower(ext)
	if !supportedExtensions[ext] {
		l.logger.Warn("ignoring extractor for unsupported extension", "ext", ext)
		return
	}
	l.extractors[ext] = e
}

// Supported reports whether the file's extension is in the allow-list.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Load extracts the ordered pages of the file at path.
//
// Returns UnsupportedTypeError for extensions outside the allow-list and
// LoadError when extraction fails or yields no content.
func (l *Loader) Load(path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return nil, &UnsupportedTypeError{Ext: ext}
	}

	var (
		pages []Page
		err   error
	)
	switch {
	case textExtensions[ext]:
		pages, err = l.loadText(path)
	case ext == ".html" || ext == ".htm":
		pages, err = l.loadHTML(path)
	default:
		extractor, ok := l.extractors[ext]
		if !ok {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("no extractor registered for %s", ext)}
		}
		pages, err = extractor.Extract(path)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
	}
	if err != nil {
		return nil, err
	}

	pages = normalizePages(pages)
	if len(pages) == 0 {
		return nil, &LoadError{Path: path, Err: ErrNoContent}
	}

	l.logger.Debug("loaded document", "path", path, "pages", len(pages))
	return pages, nil
}

// loadText reads a plain-text file. Form feeds mark page breaks, matching
// the convention of text dumps produced by PDF extractors.
func (l *Loader) loadText(path string) ([]Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	parts := strings.Split(string(raw), "\f")
	pages := make([]Page, 0, len(parts))
	for _, part := range parts {
		pages = append(pages, Page{Content: part})
	}
	return pages, nil
}

// normalizePages normalizes line endings, strips BOMs, drops empty pages,
// and renumbers indices.
func normalizePages(pages []Page) []Page {
	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		content := normalizeText(p.Content)
		if content == "" {
			continue
		}
		out = append(out, Page{Content: content, Index: len(out)})
	}
	return out
}

func normalizeText(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
