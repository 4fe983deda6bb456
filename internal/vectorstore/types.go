// Package vectorstore embeds chunk text and persists the vectors for
// similarity search. The Store pairs a Genkit embedder with an Index
// backend; all operations are scoped to a namespace so projects never see
// each other's chunks.
package vectorstore

import "context"

// Dimension is the embedding width of the vector schema. Embedders must
// be configured to emit vectors of this size.
const Dimension = 768

// Entry is one chunk held by the store. ChunkID is globally unique
// (document ID plus chunk index). Embedding is populated by the store
// during Add and carried back on search results so rerankers can reuse
// stored vectors without re-embedding.
type Entry struct {
	ChunkID    string
	DocumentID string
	Namespace  string
	Content    string
	Metadata   map[string]any
	Embedding  []float32
}

// Match is an entry returned by a similarity search. Score is cosine
// similarity in [-1, 1], higher is more similar.
type Match struct {
	Entry
	Score float64
}

// Index is the persistence backend for embedded chunks.
//
// Search returns up to limit matches in the namespace ordered by
// descending score, ties broken by ascending ChunkID. A non-empty
// documentIDs slice restricts results to those documents. Delete methods
// return the number of entries removed.
type Index interface {
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, namespace string, vector []float32, limit int, documentIDs []string) ([]Match, error)
	DeleteByDocument(ctx context.Context, namespace, documentID string) (int64, error)
	DeleteNamespace(ctx context.Context, namespace string) (int64, error)
}

// Error reports a failed store operation. Op identifies the stage
// ("embed", "upsert", "search", "delete") so callers can classify the
// failure without string matching.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "vector store: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
