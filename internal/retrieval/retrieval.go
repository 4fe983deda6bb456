// Package retrieval ranks stored chunks against a query using one of
// three strategies: plain cosine similarity, maximal marginal relevance,
// or a hybrid of dense and lexical scores.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/docbase/docbase/internal/vectorstore"
)

const (
	// DefaultTopK is the result count used when the caller passes 0.
	DefaultTopK = 5
	// MaxTopK caps the result count for a single retrieval.
	MaxTopK = 20
	// DefaultMMRLambda balances relevance against diversity.
	DefaultMMRLambda = 0.5
	// DefaultHybridAlpha weights the dense score in hybrid ranking.
	DefaultHybridAlpha = 0.7

	// overFetchFactor widens the candidate pool for re-ranking
	// strategies; overFetchCap bounds it.
	overFetchFactor = 4
	overFetchCap    = 50
)

// Chunk is one ranked retrieval result. Score semantics depend on the
// strategy; Rank is the zero-based final position.
type Chunk struct {
	ChunkID    string
	DocumentID string
	Content    string
	Metadata   map[string]any
	Score      float64
	Rank       int
}

// Options control a single retrieval.
//
// Zero values select the defaults. DocumentIDs, when non-empty, restricts
// retrieval to those documents within the namespace.
type Options struct {
	Strategy    Strategy
	TopK        int
	DocumentIDs []string
	MMRLambda   float64
	HybridAlpha float64
}

// Searcher performs a namespace-scoped nearest-neighbor query.
// *vectorstore.Store satisfies this interface.
type Searcher interface {
	Query(ctx context.Context, namespace, queryText string, limit int, documentIDs []string) ([]vectorstore.Match, error)
}

// Engine ranks chunks for queries.
type Engine struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewEngine creates an Engine. logger may be nil.
func NewEngine(searcher Searcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{searcher: searcher, logger: logger}
}

// Retrieve returns the top chunks for query in namespace. An empty result
// is not an error: a namespace with no matching chunks yields an empty
// slice.
func (e *Engine) Retrieve(ctx context.Context, namespace, query string, opts Options) ([]Chunk, error) {
	if !opts.Strategy.Valid() {
		return nil, fmt.Errorf("invalid retrieval strategy: %v", opts.Strategy)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	fetchLimit := topK
	if opts.Strategy != StrategySimilarity {
		fetchLimit = min(topK*overFetchFactor, overFetchCap)
		if fetchLimit < topK {
			fetchLimit = topK
		}
	}

	matches, err := e.searcher.Query(ctx, namespace, query, fetchLimit, opts.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("searching namespace %s: %w", namespace, err)
	}
	if len(matches) == 0 {
		return []Chunk{}, nil
	}

	var selected []vectorstore.Match
	switch opts.Strategy {
	case StrategyMMR:
		lambda := opts.MMRLambda
		if lambda <= 0 || lambda > 1 {
			lambda = DefaultMMRLambda
		}
		selected = mmrSelect(matches, topK, lambda)
	case StrategyHybrid:
		alpha := opts.HybridAlpha
		if alpha <= 0 || alpha > 1 {
			alpha = DefaultHybridAlpha
		}
		selected = hybridRerank(matches, query, topK, alpha)
	default:
		selected = matches
		if len(selected) > topK {
			selected = selected[:topK]
		}
	}

	chunks := make([]Chunk, len(selected))
	for i, m := range selected {
		chunks[i] = Chunk{
			ChunkID:    m.ChunkID,
			DocumentID: m.DocumentID,
			Content:    m.Content,
			Metadata:   m.Metadata,
			Score:      m.Score,
			Rank:       i,
		}
	}

	e.logger.Debug("retrieved chunks",
		"namespace", namespace, "strategy", opts.Strategy.String(),
		"candidates", len(matches), "returned", len(chunks))
	return chunks, nil
}

// mmrSelect greedily picks topK matches maximizing
// lambda*relevance - (1-lambda)*redundancy, where redundancy is the
// highest cosine similarity to any already-selected match. The returned
// matches carry their MMR score.
func mmrSelect(candidates []vectorstore.Match, topK int, lambda float64) []vectorstore.Match {
	if topK > len(candidates) {
		topK = len(candidates)
	}

	remaining := make([]vectorstore.Match, len(candidates))
	copy(remaining, candidates)
	selected := make([]vectorstore.Match, 0, topK)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		for i, cand := range remaining {
			redundancy := 0.0
			for _, s := range selected {
				if sim := cosine(cand.Embedding, s.Embedding); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*cand.Score - (1-lambda)*redundancy
			if bestIdx < 0 || score > bestScore ||
				(score == bestScore && cand.ChunkID < remaining[bestIdx].ChunkID) {
				bestIdx = i
				bestScore = score
			}
		}
		pick := remaining[bestIdx]
		pick.Score = bestScore
		selected = append(selected, pick)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// hybridRerank blends the dense similarity with lexical term overlap:
// alpha*dense + (1-alpha)*overlap. Ties order by ascending chunk ID.
func hybridRerank(candidates []vectorstore.Match, query string, topK int, alpha float64) []vectorstore.Match {
	queryTerms := tokenize(query)

	rescored := make([]vectorstore.Match, len(candidates))
	copy(rescored, candidates)
	for i := range rescored {
		lexical := termOverlap(queryTerms, tokenize(rescored[i].Content))
		rescored[i].Score = alpha*rescored[i].Score + (1-alpha)*lexical
	}

	sort.Slice(rescored, func(i, j int) bool {
		if rescored[i].Score != rescored[j].Score {
			return rescored[i].Score > rescored[j].Score
		}
		return rescored[i].ChunkID < rescored[j].ChunkID
	})
	if len(rescored) > topK {
		rescored = rescored[:topK]
	}
	return rescored
}

// termOverlap is the fraction of query terms present in the content
// terms.
func termOverlap(queryTerms, contentTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	content := make(map[string]bool, len(contentTerms))
	for _, t := range contentTerms {
		content[t] = true
	}
	hits := 0
	for _, t := range queryTerms {
		if content[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

// tokenize lowercases and splits text on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

func cosine(a, b []float32) float64 {
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
	return dot / math.Sqrt(normA*normB)
}
