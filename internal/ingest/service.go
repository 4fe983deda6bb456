// Package ingest runs the document ingestion pipeline: load the file,
// chunk the text, embed and store the chunks, and track the document's
// status through the lifecycle. Each document processes under its own
// lock so concurrent runs for the same document serialize instead of
// racing.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docbase/docbase/internal/chunker"
	"github.com/docbase/docbase/internal/loader"
	"github.com/docbase/docbase/internal/store"
	"github.com/docbase/docbase/internal/vectorstore"
)

// Status messages surfaced on the document record.
const (
	msgProcessing = "Processing document..."
	msgNoContent  = "No content extracted from document"
	msgNoChunks   = "No chunks created from document"
	msgCompleted  = "Document processed successfully"
)

// Documents is the slice of the document store the pipeline needs.
type Documents interface {
	GetDocument(ctx context.Context, id string) (store.Document, error)
	GetProject(ctx context.Context, id string) (store.Project, error)
	UpdateStatus(ctx context.Context, id string, next store.DocumentStatus, message string) error
	SetCounters(ctx context.Context, id string, chunkCount, pageCount, characterCount int) error
}

// Vectors is the slice of the vector store the pipeline needs.
type Vectors interface {
	Add(ctx context.Context, namespace string, entries []vectorstore.Entry) error
	DeleteByDocument(ctx context.Context, namespace, documentID string) (int64, error)
}

// FileLoader extracts pages from a document file.
type FileLoader interface {
	Load(path string) ([]loader.Page, error)
}

// Result is the outcome of one ingestion run.
type Result struct {
	OK         bool
	Category   Category
	Message    string
	ChunkCount int
}

// Service orchestrates the ingestion pipeline.
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	docs    Documents
	vectors Vectors
	loader  FileLoader
	logger  *slog.Logger
	tracer  trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a Service. logger may be nil.
func NewService(docs Documents, vectors Vectors, fileLoader FileLoader, logger *slog.Logger) (*Service, error) {
	if docs == nil || vectors == nil || fileLoader == nil {
		return nil, fmt.Errorf("docs, vectors, and loader are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:    docs,
		vectors: vectors,
		loader:  fileLoader,
		logger:  logger,
		tracer:  otel.Tracer("docbase/ingest"),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Ingest processes a pending document end to end. On failure the document
// moves to failed with a classified message; the returned Result mirrors
// the recorded outcome. The error return is reserved for infrastructure
// faults where even the status could not be recorded.
func (s *Service) Ingest(ctx context.Context, documentID string) (Result, error) {
	lock := s.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()
	return s.ingest(ctx, documentID)
}

// ingest runs the pipeline. The caller holds the document's lock.
func (s *Service) ingest(ctx context.Context, documentID string) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.document",
		trace.WithAttributes(attribute.String("document.id", documentID)))
	defer span.End()

	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return Result{}, fmt.Errorf("fetching document: %w", err)
	}
	if doc.Status != store.StatusPending {
		return Result{}, fmt.Errorf("document %s is %s, want %s", documentID, doc.Status, store.StatusPending)
	}
	project, err := s.docs.GetProject(ctx, doc.ProjectID)
	if err != nil {
		return Result{}, fmt.Errorf("fetching project: %w", err)
	}

	if err := s.docs.UpdateStatus(ctx, documentID, store.StatusProcessing, msgProcessing); err != nil {
		return Result{}, fmt.Errorf("marking document processing: %w", err)
	}

	result, err := s.run(ctx, doc, project)
	if err != nil {
		category := Classify(err)
		message := failureMessage(category, err)
		span.SetAttributes(attribute.String("ingest.category", string(category)))
		s.logger.Error("ingestion failed",
			"document_id", documentID, "category", string(category), "error", err)
		if stErr := s.docs.UpdateStatus(ctx, documentID, store.StatusFailed, message); stErr != nil {
			return Result{}, fmt.Errorf("recording failure (%v): %w", err, stErr)
		}
		return Result{OK: false, Category: category, Message: message}, nil
	}

	if err := s.docs.SetCounters(ctx, documentID, result.chunkCount, result.pageCount, result.characterCount); err != nil {
		return Result{}, fmt.Errorf("recording counters: %w", err)
	}
	if err := s.docs.UpdateStatus(ctx, documentID, store.StatusCompleted, msgCompleted); err != nil {
		return Result{}, fmt.Errorf("marking document completed: %w", err)
	}

	s.logger.Info("document ingested",
		"document_id", documentID, "project_id", doc.ProjectID,
		"chunks", result.chunkCount, "pages", result.pageCount,
		"characters", result.characterCount)
	return Result{OK: true, Message: msgCompleted, ChunkCount: result.chunkCount}, nil
}

// Reingest deletes a document's chunks, resets it to pending, and runs the
// pipeline again. A completed document requires force; a failed document
// re-ingests freely. The document's lock is held from the status check
// through the pipeline so a concurrent re-ingest cannot delete the chunks
// of a run in progress.
func (s *Service) Reingest(ctx context.Context, documentID string, force bool) (Result, error) {
	lock := s.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return Result{}, fmt.Errorf("fetching document: %w", err)
	}
	switch doc.Status {
	case store.StatusCompleted:
		if !force {
			return Result{}, fmt.Errorf("document %s is completed; re-ingestion requires force", documentID)
		}
	case store.StatusFailed:
	default:
		return Result{}, fmt.Errorf("document %s is %s; only terminal documents re-ingest", documentID, doc.Status)
	}

	if _, err := s.vectors.DeleteByDocument(ctx, doc.ProjectID, documentID); err != nil {
		return Result{}, fmt.Errorf("clearing old chunks: %w", err)
	}
	if err := s.docs.UpdateStatus(ctx, documentID, store.StatusPending, ""); err != nil {
		return Result{}, fmt.Errorf("resetting document: %w", err)
	}
	return s.ingest(ctx, documentID)
}

type runStats struct {
	chunkCount     int
	pageCount      int
	characterCount int
}

// run executes the load, chunk, and embed stages.
func (s *Service) run(ctx context.Context, doc store.Document, project store.Project) (runStats, error) {
	pages, err := s.loader.Load(doc.FilePath)
	if err != nil {
		return runStats{}, err
	}
	if len(pages) == 0 {
		return runStats{}, &loader.LoadError{Path: doc.FilePath, Err: loader.ErrNoContent}
	}

	// Pages concatenate without separators so character offsets stay
	// exact and the character count equals the sum of page lengths.
	fullText := ""
	pageOffsets := make([]int, len(pages))
	for i, p := range pages {
		pageOffsets[i] = len(fullText)
		fullText += p.Content
	}

	chunks, err := chunker.Split(fullText, pageOffsets, project.ChunkSize, project.ChunkOverlap)
	if err != nil {
		return runStats{}, err
	}
	if len(chunks) == 0 {
		return runStats{}, &chunker.Error{Reason: "no chunks produced"}
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vectorstore.Entry{
			ChunkID:    fmt.Sprintf("%s:%04d", doc.ID, c.Index),
			DocumentID: doc.ID,
			Content:    c.Text,
			Metadata: map[string]any{
				"source_file": doc.Filename,
				"page":        c.Page,
				"char_start":  c.CharStart,
				"char_end":    c.CharEnd,
			},
		}
	}
	if err := s.vectors.Add(ctx, doc.ProjectID, entries); err != nil {
		return runStats{}, err
	}

	return runStats{
		chunkCount:     len(chunks),
		pageCount:      len(pages),
		characterCount: len(fullText),
	}, nil
}

// failureMessage renders the user-facing message for a failed run.
func failureMessage(category Category, err error) string {
	switch category {
	case CategoryUnsupportedType:
		return err.Error()
	case CategoryLoadFailed:
		if errors.Is(err, loader.ErrNoContent) {
			return msgNoContent
		}
		return fmt.Sprintf("Failed to load document: %v", err)
	case CategoryChunkFailed:
		return msgNoChunks
	case CategoryVectorFailed:
		return fmt.Sprintf("Failed to store document chunks: %v", err)
	default:
		return fmt.Sprintf("Unexpected error during ingestion: %v", err)
	}
}

func (s *Service) lockFor(documentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[documentID] = lock
	}
	return lock
}
