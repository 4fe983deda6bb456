package loader

import (
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// loadHTML extracts the readable text of an HTML file as a single page.
// Readability extraction is tried first to strip navigation and boilerplate;
// if the document has no identifiable article body the whole-document text
// is used instead.
func (l *Loader) loadHTML(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()

	pageURL := &url.URL{Scheme: "file", Path: path}
	article, err := readability.FromReader(f, pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return []Page{{Content: article.TextContent}}, nil
	}

	// Readability found nothing usable; fall back to full document text.
	if _, err := f.Seek(0, 0); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	doc.Find("script, style, noscript").Remove()
	text := strings.TrimSpace(doc.Text())

	return []Page{{Content: text}}, nil
}
