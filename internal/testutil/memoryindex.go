package testutil

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/docbase/docbase/internal/vectorstore"
)

// MemoryIndex is an in-memory vectorstore.Index for tests. It mirrors the
// PostgreSQL index's ordering contract: descending cosine similarity, ties
// broken by ascending chunk ID.
//
// Thread-safe for concurrent use.
type MemoryIndex struct {
	mu      sync.Mutex
	entries map[string]vectorstore.Entry
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]vectorstore.Entry)}
}

// Upsert implements vectorstore.Index.
func (m *MemoryIndex) Upsert(_ context.Context, entries []vectorstore.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[e.ChunkID] = e
	}
	return nil
}

// Search implements vectorstore.Index.
func (m *MemoryIndex) Search(_ context.Context, namespace string, vector []float32, limit int, documentIDs []string) ([]vectorstore.Match, error) {
	allowed := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		allowed[id] = true
	}

	m.mu.Lock()
	var matches []vectorstore.Match
	for _, e := range m.entries {
		if e.Namespace != namespace {
			continue
		}
		if len(allowed) > 0 && !allowed[e.DocumentID] {
			continue
		}
		matches = append(matches, vectorstore.Match{
			Entry: e,
			Score: CosineSimilarity(vector, e.Embedding),
		})
	}
	m.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// DeleteByDocument implements vectorstore.Index.
func (m *MemoryIndex) DeleteByDocument(_ context.Context, namespace, documentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.entries {
		if e.Namespace == namespace && e.DocumentID == documentID {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// DeleteNamespace implements vectorstore.Index.
func (m *MemoryIndex) DeleteNamespace(_ context.Context, namespace string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.entries {
		if e.Namespace == namespace {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries.
func (m *MemoryIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector is zero or lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
