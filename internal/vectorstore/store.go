package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// embedBatchSize caps how many chunks go into a single embedding request.
const embedBatchSize = 64

// Store embeds chunk text and delegates persistence to an Index.
type Store struct {
	embedder ai.Embedder
	index    Index
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates a Store. requestsPerSecond throttles embedding calls;
// pass 0 to disable throttling. logger may be nil.
func New(embedder ai.Embedder, index Index, requestsPerSecond float64, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Store{
		embedder: embedder,
		index:    index,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Add embeds the entries' content and upserts them into the index under
// namespace. Entries are batched; a failure in any batch aborts the call
// with no attempt to undo earlier batches, so callers re-running an
// ingestion overwrite the partial state via the chunk ID upsert key.
func (s *Store) Add(ctx context.Context, namespace string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	for start := 0; start < len(entries); start += embedBatchSize {
		end := min(start+embedBatchSize, len(entries))

		// Annotate a copy; the caller's entries stay untouched.
		batch := make([]Entry, end-start)
		copy(batch, entries[start:end])

		vectors, err := s.embedBatch(ctx, batch)
		if err != nil {
			return err
		}
		for i := range batch {
			batch[i].Namespace = namespace
			batch[i].Embedding = vectors[i]
		}
		if err := s.index.Upsert(ctx, batch); err != nil {
			return &Error{Op: "upsert", Err: err}
		}
	}

	s.logger.Debug("added entries to vector store",
		"namespace", namespace, "count", len(entries))
	return nil
}

// Query embeds queryText and returns the closest matches in namespace.
// documentIDs, when non-empty, restricts the search to those documents.
func (s *Store) Query(ctx context.Context, namespace, queryText string, limit int, documentIDs []string) ([]Match, error) {
	vector, err := s.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.Search(ctx, namespace, vector, limit, documentIDs)
	if err != nil {
		return nil, &Error{Op: "search", Err: err}
	}
	return matches, nil
}

// Embed returns the embedding vector for a single text.
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &Error{Op: "embed", Err: err}
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: embedOptions(),
	})
	if err != nil {
		return nil, &Error{Op: "embed", Err: err}
	}
	if len(resp.Embeddings) == 0 {
		return nil, &Error{Op: "embed", Err: fmt.Errorf("no embeddings returned")}
	}
	return resp.Embeddings[0].Embedding, nil
}

// DeleteByDocument removes all entries of one document from namespace and
// reports how many were removed.
func (s *Store) DeleteByDocument(ctx context.Context, namespace, documentID string) (int64, error) {
	n, err := s.index.DeleteByDocument(ctx, namespace, documentID)
	if err != nil {
		return 0, &Error{Op: "delete", Err: err}
	}
	return n, nil
}

// DeleteNamespace removes every entry in namespace.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) (int64, error) {
	n, err := s.index.DeleteNamespace(ctx, namespace)
	if err != nil {
		return 0, &Error{Op: "delete", Err: err}
	}
	return n, nil
}

// embedOptions truncates embeddings to the schema's vector width.
func embedOptions() *genai.EmbedContentConfig {
	dim := int32(Dimension)
	return &genai.EmbedContentConfig{OutputDimensionality: &dim}
}

func (s *Store) embedBatch(ctx context.Context, batch []Entry) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &Error{Op: "embed", Err: err}
	}

	docs := make([]*ai.Document, len(batch))
	for i, e := range batch {
		docs[i] = ai.DocumentFromText(e.Content, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs, Options: embedOptions()})
	if err != nil {
		return nil, &Error{Op: "embed", Err: err}
	}
	if len(resp.Embeddings) != len(batch) {
		return nil, &Error{Op: "embed", Err: fmt.Errorf(
			"embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(batch))}
	}

	vectors := make([][]float32, len(batch))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}
