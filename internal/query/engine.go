// Package query answers questions over a project's ingested documents:
// validate the project is queryable, retrieve relevant chunks, generate a
// grounded answer, and extract the inline chunk citations.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docbase/docbase/internal/retrieval"
)

// snippetLength caps the citation preview text.
const snippetLength = 300

// generationTemperature pins answers to deterministic decoding.
const generationTemperature float32 = 0

// citationPattern matches inline chunk references like [doc-id:0003].
var citationPattern = regexp.MustCompile(`\[([0-9A-Za-z_\-:]+)\]`)

// Error reports a failed query, tagged with the pipeline stage
// ("validate", "retrieve", "generate") so callers can map it to a
// response without message matching.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return "query " + e.Stage + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Citation points an answer back to a stored chunk.
type Citation struct {
	ChunkID        string
	DocumentID     string
	SourceFile     string
	Page           int
	CharStart      int
	CharEnd        int
	TextSnippet    string
	RelevanceScore float64
}

// Result is a completed query. Metadata carries retrieval diagnostics
// (strategy, counts) for the caller's response envelope.
type Result struct {
	QueryID   string
	Answer    string
	Citations []Citation
	Metadata  map[string]any
}

// Options control a single query. MMRLambda and HybridAlpha are passed
// through to retrieval; zero values select the retrieval defaults.
type Options struct {
	Strategy    retrieval.Strategy
	TopK        int
	DocumentIDs []string
	MMRLambda   float64
	HybridAlpha float64
	// IncludeAllSources appends retrieved-but-uncited chunks after the
	// cited ones.
	IncludeAllSources bool
}

// Retriever ranks chunks for a question. *retrieval.Engine satisfies this
// interface.
type Retriever interface {
	Retrieve(ctx context.Context, namespace, query string, opts retrieval.Options) ([]retrieval.Chunk, error)
}

// Generator produces an answer for a prompt. Temperature 0 is always
// requested.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Gate reports whether a project has any completed documents to query.
// *store.Store satisfies this interface.
type Gate interface {
	HasQueryableDocuments(ctx context.Context, projectID string) (bool, error)
}

// Engine runs the question-answering pipeline.
type Engine struct {
	retriever Retriever
	generator Generator
	gate      Gate
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewEngine creates an Engine. logger may be nil.
func NewEngine(retriever Retriever, generator Generator, gate Gate, logger *slog.Logger) (*Engine, error) {
	if retriever == nil || generator == nil || gate == nil {
		return nil, fmt.Errorf("retriever, generator, and gate are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		retriever: retriever,
		generator: generator,
		gate:      gate,
		logger:    logger,
		tracer:    otel.Tracer("docbase/query"),
	}, nil
}

// Ask answers question over the project's documents.
func (e *Engine) Ask(ctx context.Context, projectID, question string, opts Options) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "query.ask",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	if strings.TrimSpace(question) == "" {
		return Result{}, &Error{Stage: "validate", Err: fmt.Errorf("question is empty")}
	}
	queryable, err := e.gate.HasQueryableDocuments(ctx, projectID)
	if err != nil {
		return Result{}, &Error{Stage: "validate", Err: err}
	}
	if !queryable {
		return Result{}, &Error{Stage: "validate", Err: fmt.Errorf("project %s has no completed documents", projectID)}
	}

	chunks, err := e.retriever.Retrieve(ctx, projectID, question, retrieval.Options{
		Strategy:    opts.Strategy,
		TopK:        opts.TopK,
		DocumentIDs: opts.DocumentIDs,
		MMRLambda:   opts.MMRLambda,
		HybridAlpha: opts.HybridAlpha,
	})
	if err != nil {
		return Result{}, &Error{Stage: "retrieve", Err: err}
	}

	prompt := buildPrompt(question, chunks)
	answer, err := e.generator.Generate(ctx, prompt, generationTemperature)
	if err != nil {
		return Result{}, &Error{Stage: "generate", Err: err}
	}

	citations := extractCitations(answer, chunks, opts.IncludeAllSources)

	span.SetAttributes(
		attribute.Int("query.chunks_retrieved", len(chunks)),
		attribute.Int("query.citations", len(citations)))
	e.logger.Debug("query answered",
		"project_id", projectID, "strategy", opts.Strategy.String(),
		"chunks_retrieved", len(chunks), "citations", len(citations))

	return Result{
		QueryID:   uuid.New().String(),
		Answer:    answer,
		Citations: citations,
		Metadata: map[string]any{
			"strategy":            opts.Strategy.String(),
			"chunks_retrieved":    len(chunks),
			"chunks_cited":        len(citations),
			"include_all_sources": opts.IncludeAllSources,
		},
	}, nil
}

// buildPrompt renders the grounding prompt. Each context block opens with
// its chunk ID tag so the model can cite it inline. With no chunks the
// prompt says so explicitly instead of leaving the model to guess.
func buildPrompt(question string, chunks []retrieval.Chunk) string {
	var sb strings.Builder
	sb.WriteString("You are a documentation assistant. Answer the question using only the ")
	sb.WriteString("context below. Cite the chunk IDs you relied on inline, for example [doc:0003]. ")
	sb.WriteString("If the context does not contain the answer, say that you cannot answer from the available documents.\n\n")

	if len(chunks) == 0 {
		sb.WriteString("Context: no relevant content was found in the project documents.\n")
	} else {
		sb.WriteString("Context:\n")
		for _, c := range chunks {
			sb.WriteString("[")
			sb.WriteString(c.ChunkID)
			sb.WriteString("]\n")
			sb.WriteString(c.Content)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")
	return sb.String()
}

// extractCitations resolves inline chunk references against the retrieved
// set, keeping first-appearance order without duplicates. References to
// chunks that were not retrieved are ignored. includeAll appends the
// remaining retrieved chunks after the cited ones.
func extractCitations(answer string, chunks []retrieval.Chunk, includeAll bool) []Citation {
	byID := make(map[string]retrieval.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ChunkID] = c
	}

	seen := make(map[string]bool)
	var citations []Citation
	for _, m := range citationPattern.FindAllStringSubmatch(answer, -1) {
		id := m[1]
		chunk, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		citations = append(citations, toCitation(chunk))
	}

	if includeAll {
		for _, c := range chunks {
			if !seen[c.ChunkID] {
				citations = append(citations, toCitation(c))
			}
		}
	}
	return citations
}

func toCitation(c retrieval.Chunk) Citation {
	snippet := c.Content
	if len(snippet) > snippetLength {
		cut := snippetLength
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut] + "..."
	}
	return Citation{
		ChunkID:        c.ChunkID,
		DocumentID:     c.DocumentID,
		SourceFile:     metaString(c.Metadata, "source_file"),
		Page:           metaInt(c.Metadata, "page"),
		CharStart:      metaInt(c.Metadata, "char_start"),
		CharEnd:        metaInt(c.Metadata, "char_end"),
		TextSnippet:    snippet,
		RelevanceScore: c.Score,
	}
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// metaInt reads an integer metadata value. JSONB round-trips numbers as
// float64, so both forms are accepted.
func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
