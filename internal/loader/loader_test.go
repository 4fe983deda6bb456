package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docbase/docbase/internal/log"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadPlainText(t *testing.T) {
	l := New(log.NewNop())
	path := writeFile(t, "doc.txt", "first page\f second page\fthird page")

	pages, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.Index != i {
			t.Errorf("page %d has index %d", i, p.Index)
		}
	}
	if pages[0].Content != "first page" {
		t.Errorf("unexpected first page: %q", pages[0].Content)
	}
}

func TestLoadNormalizesLineEndings(t *testing.T) {
	l := New(log.NewNop())
	path := writeFile(t, "doc.md", "line one\r\nline two\rline three")

	pages, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if want := "line one\nline two\nline three"; pages[0].Content != want {
		t.Errorf("got %q, want %q", pages[0].Content, want)
	}
}

func TestLoadStripsByteOrderMark(t *testing.T) {
	l := New(log.NewNop())
	path := writeFile(t, "doc.txt", "\uFEFFleading content")

	pages, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if pages[0].Content != "leading content" {
		t.Errorf("BOM not stripped: %q", pages[0].Content)
	}
}

func TestLoadDropsEmptyPages(t *testing.T) {
	l := New(log.NewNop())
	path := writeFile(t, "doc.txt", "content\f   \n\f more")

	pages, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected blank page dropped, got %d pages", len(pages))
	}
	if pages[1].Index != 1 {
		t.Errorf("pages not renumbered: %+v", pages[1])
	}
}

func TestLoadUnsupportedType(t *testing.T) {
	l := New(log.NewNop())
	path := writeFile(t, "doc.exe", "binary")

	_, err := l.Load(path)
	var unsupported *UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}
	if unsupported.Ext != ".exe" {
		t.Errorf("Ext = %q, want .exe", unsupported.Ext)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	l := New(log.NewNop())
	path := writeFile(t, "doc.txt", "   \n ")

	_, err := l.Load(path)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError for empty content, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	l := New(log.NewNop())

	_, err := l.Load(filepath.Join(t.TempDir(), "absent.txt"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestLoadPDFWithoutExtractor(t *testing.T) {
	l := New(log.NewNop())
	path := writeFile(t, "doc.pdf", "%PDF-1.4")

	_, err := l.Load(path)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError when no extractor is registered, got %v", err)
	}
	if !strings.Contains(err.Error(), "no extractor") {
		t.Errorf("unexpected message: %v", err)
	}
}

type fakeExtractor struct {
	pages []Page
	err   error
}

func (f *fakeExtractor) Extract(string) ([]Page, error) { return f.pages, f.err }

func TestLoadDispatchesToExtractor(t *testing.T) {
	l := New(log.NewNop())
	l.RegisterExtractor(".pdf", &fakeExtractor{pages: []Page{{Content: "page one"}, {Content: "page two"}}})
	path := writeFile(t, "doc.pdf", "%PDF-1.4")

	pages, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(pages) != 2 || pages[1].Content != "page two" {
		t.Errorf("unexpected pages: %+v", pages)
	}
}

func TestLoadExtractorFailure(t *testing.T) {
	l := New(log.NewNop())
	l.RegisterExtractor(".docx", &fakeExtractor{err: errors.New("corrupt container")})
	path := writeFile(t, "doc.docx", "PK")

	_, err := l.Load(path)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestLoadHTML(t *testing.T) {
	l := New(log.NewNop())
	html := `<html><head><title>T</title><style>body{}</style></head>` +
		`<body><script>var x;</script><p>Visible paragraph text for the reader.</p></body></html>`
	path := writeFile(t, "doc.html", html)

	pages, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected single page, got %d", len(pages))
	}
	if !strings.Contains(pages[0].Content, "Visible paragraph text") {
		t.Errorf("paragraph text missing: %q", pages[0].Content)
	}
	if strings.Contains(pages[0].Content, "var x") {
		t.Errorf("script content leaked: %q", pages[0].Content)
	}
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{"a.pdf", "b.DOCX", "c.md", "d.txt", "e.html"} {
		if !Supported(ext) {
			t.Errorf("Supported(%q) = false, want true", ext)
		}
	}
	for _, ext := range []string{"a.exe", "b.png", "c"} {
		if Supported(ext) {
			t.Errorf("Supported(%q) = true, want false", ext)
		}
	}
}
