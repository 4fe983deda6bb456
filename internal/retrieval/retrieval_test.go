package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/docbase/docbase/internal/vectorstore"
)

// stubSearcher returns canned matches and records the requested limit.
type stubSearcher struct {
	matches   []vectorstore.Match
	err       error
	lastLimit int
	lastDocs  []string
}

func (s *stubSearcher) Query(_ context.Context, _, _ string, limit int, documentIDs []string) ([]vectorstore.Match, error) {
	s.lastLimit = limit
	s.lastDocs = documentIDs
	if s.err != nil {
		return nil, s.err
	}
	if len(s.matches) > limit {
		return s.matches[:limit], nil
	}
	return s.matches, nil
}

func match(chunkID, docID string, score float64, embedding []float32) vectorstore.Match {
	return vectorstore.Match{
		Entry: vectorstore.Entry{
			ChunkID:    chunkID,
			DocumentID: docID,
			Content:    "content of " + chunkID,
			Embedding:  embedding,
		},
		Score: score,
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"similarity", StrategySimilarity, false},
		{"", StrategySimilarity, false},
		{"mmr", StrategyMMR, false},
		{"hybrid", StrategyHybrid, false},
		{"cosine", 0, true},
		{"MMR", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseStrategy(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStrategy(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRetrieveSimilarity(t *testing.T) {
	searcher := &stubSearcher{matches: []vectorstore.Match{
		match("doc-a:0000", "doc-a", 0.9, nil),
		match("doc-a:0001", "doc-a", 0.8, nil),
		match("doc-b:0000", "doc-b", 0.7, nil),
	}}
	engine := NewEngine(searcher, nil)

	chunks, err := engine.Retrieve(context.Background(), "proj", "q", Options{TopK: 2})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if searcher.lastLimit != 2 {
		t.Errorf("similarity over-fetched: limit = %d, want 2", searcher.lastLimit)
	}
	for i, c := range chunks {
		if c.Rank != i {
			t.Errorf("chunk %d has rank %d", i, c.Rank)
		}
	}
	if chunks[0].ChunkID != "doc-a:0000" || chunks[1].ChunkID != "doc-a:0001" {
		t.Errorf("unexpected order: %s, %s", chunks[0].ChunkID, chunks[1].ChunkID)
	}
}

func TestRetrieveEmptyNamespace(t *testing.T) {
	engine := NewEngine(&stubSearcher{}, nil)

	chunks, err := engine.Retrieve(context.Background(), "proj", "q", Options{})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if chunks == nil || len(chunks) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", chunks)
	}
}

func TestRetrieveInvalidStrategy(t *testing.T) {
	engine := NewEngine(&stubSearcher{}, nil)

	_, err := engine.Retrieve(context.Background(), "proj", "q", Options{Strategy: Strategy(42)})
	if err == nil {
		t.Fatal("expected error for invalid strategy")
	}
}

func TestRetrieveSearchError(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("connection refused")}
	engine := NewEngine(searcher, nil)

	_, err := engine.Retrieve(context.Background(), "proj", "q", Options{})
	if err == nil {
		t.Fatal("expected search error to propagate")
	}
}

func TestRetrieveOverFetch(t *testing.T) {
	tests := []struct {
		name      string
		strategy  Strategy
		topK      int
		wantLimit int
	}{
		{"mmr widens pool", StrategyMMR, 5, 20},
		{"hybrid widens pool", StrategyHybrid, 5, 20},
		{"pool is capped", StrategyMMR, 20, 50},
		{"similarity fetches exactly", StrategySimilarity, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &stubSearcher{}
			engine := NewEngine(searcher, nil)
			if _, err := engine.Retrieve(context.Background(), "proj", "q", Options{
				Strategy: tt.strategy, TopK: tt.topK,
			}); err != nil {
				t.Fatalf("Retrieve() error: %v", err)
			}
			if searcher.lastLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", searcher.lastLimit, tt.wantLimit)
			}
		})
	}
}

func TestRetrieveDocumentFilterPassedThrough(t *testing.T) {
	searcher := &stubSearcher{}
	engine := NewEngine(searcher, nil)

	_, err := engine.Retrieve(context.Background(), "proj", "q", Options{
		DocumentIDs: []string{"doc-a", "doc-b"},
	})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(searcher.lastDocs) != 2 {
		t.Errorf("document filter not forwarded: %v", searcher.lastDocs)
	}
}

func TestMMRPrefersDiversity(t *testing.T) {
	// Two near-identical top candidates and one distinct lower-scored
	// candidate. MMR must pick the distinct one second.
	e1 := []float32{1, 0, 0}
	e1dup := []float32{0.99, 0.01, 0}
	e2 := []float32{0, 1, 0}

	searcher := &stubSearcher{matches: []vectorstore.Match{
		match("doc-a:0000", "doc-a", 0.95, e1),
		match("doc-a:0001", "doc-a", 0.94, e1dup),
		match("doc-b:0000", "doc-b", 0.80, e2),
	}}
	engine := NewEngine(searcher, nil)

	chunks, err := engine.Retrieve(context.Background(), "proj", "q", Options{
		Strategy: StrategyMMR, TopK: 2, MMRLambda: 0.5,
	})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].ChunkID != "doc-a:0000" {
		t.Errorf("first pick = %s, want the most relevant chunk", chunks[0].ChunkID)
	}
	if chunks[1].ChunkID != "doc-b:0000" {
		t.Errorf("second pick = %s, want the diverse chunk", chunks[1].ChunkID)
	}
}

func TestMMRFullRelevanceKeepsOrder(t *testing.T) {
	// lambda 1 disables the diversity penalty entirely.
	e := []float32{1, 0, 0}
	searcher := &stubSearcher{matches: []vectorstore.Match{
		match("doc-a:0000", "doc-a", 0.9, e),
		match("doc-a:0001", "doc-a", 0.8, e),
		match("doc-a:0002", "doc-a", 0.7, e),
	}}
	engine := NewEngine(searcher, nil)

	chunks, err := engine.Retrieve(context.Background(), "proj", "q", Options{
		Strategy: StrategyMMR, TopK: 3, MMRLambda: 1,
	})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	want := []string{"doc-a:0000", "doc-a:0001", "doc-a:0002"}
	for i, c := range chunks {
		if c.ChunkID != want[i] {
			t.Errorf("position %d = %s, want %s", i, c.ChunkID, want[i])
		}
	}
}

func TestHybridBoostsLexicalMatch(t *testing.T) {
	dense := match("doc-a:0000", "doc-a", 0.80, nil)
	dense.Content = "unrelated wording entirely"
	lexical := match("doc-b:0000", "doc-b", 0.70, nil)
	lexical.Content = "postgres connection pooling guide"

	searcher := &stubSearcher{matches: []vectorstore.Match{dense, lexical}}
	engine := NewEngine(searcher, nil)

	chunks, err := engine.Retrieve(context.Background(), "proj", "postgres connection pooling", Options{
		Strategy: StrategyHybrid, TopK: 2, HybridAlpha: 0.5,
	})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	// 0.5*0.70 + 0.5*1.0 = 0.85 beats 0.5*0.80 + 0.5*0 = 0.40.
	if chunks[0].ChunkID != "doc-b:0000" {
		t.Errorf("lexical match not boosted: top = %s", chunks[0].ChunkID)
	}
}

func TestTermOverlap(t *testing.T) {
	tests := []struct {
		query   string
		content string
		want    float64
	}{
		{"postgres pooling", "postgres connection pooling guide", 1},
		{"postgres pooling", "postgres only", 0.5},
		{"Postgres, POOLING!", "postgres pooling", 1},
		{"missing terms", "nothing in common", 0},
		{"", "anything", 0},
	}
	for _, tt := range tests {
		got := termOverlap(tokenize(tt.query), tokenize(tt.content))
		if got != tt.want {
			t.Errorf("termOverlap(%q, %q) = %v, want %v", tt.query, tt.content, got, tt.want)
		}
	}
}
