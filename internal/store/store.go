// Package store persists projects and document ingestion state in
// PostgreSQL. It owns the document status machine: every status change
// goes through UpdateStatus, which rejects transitions the lifecycle does
// not allow.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a project or document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned for a status change the document
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Project is a namespace for documents and queries.
type Project struct {
	ID           string
	Name         string
	Description  string
	ChunkSize    int
	ChunkOverlap int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Document tracks one uploaded file through the ingestion lifecycle.
// StatusMessage carries the human-readable outcome of the last run;
// ProcessedAt is set when a run reaches a terminal status.
type Document struct {
	ID             string
	ProjectID      string
	Filename       string
	FilePath       string
	FileType       string
	Status         DocumentStatus
	StatusMessage  string
	ChunkCount     int
	PageCount      int
	CharacterCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ProcessedAt    *time.Time
}

// Store reads and writes projects and documents.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store. logger may be nil.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

const projectCols = `id, name, description, chunk_size, chunk_overlap, created_at, updated_at`

// CreateProject inserts a project. chunkSize and chunkOverlap of 0 take
// the column defaults.
func (s *Store) CreateProject(ctx context.Context, name, description string, chunkSize, chunkOverlap int) (Project, error) {
	if strings.TrimSpace(name) == "" {
		return Project{}, fmt.Errorf("project name is required")
	}
	if chunkSize == 0 {
		chunkSize = 1000
	}
	if chunkOverlap == 0 {
		chunkOverlap = 200
	}
	if chunkOverlap >= chunkSize {
		return Project{}, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO projects (id, name, description, chunk_size, chunk_overlap)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+projectCols,
		uuid.New().String(), name, description, chunkSize, chunkOverlap,
	)
	return scanProject(row)
}

// GetProject fetches a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return p, err
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectCols+` FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and, via cascade, its documents.
// Chunk cleanup in the vector store is the caller's responsibility.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

const documentCols = `id, project_id, filename, file_path, file_type, status, status_message,
	chunk_count, page_count, character_count, created_at, updated_at, processed_at`

// CreateDocument registers an uploaded file in pending state.
func (s *Store) CreateDocument(ctx context.Context, projectID, filename, filePath string) (Document, error) {
	if strings.TrimSpace(filename) == "" {
		return Document{}, fmt.Errorf("filename is required")
	}
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	row := s.pool.QueryRow(ctx,
		`INSERT INTO documents (id, project_id, filename, file_path, file_type, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+documentCols,
		uuid.New().String(), projectID, filename, filePath, fileType, StatusPending,
	)
	return scanDocument(row)
}

// GetDocument fetches a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return d, err
}

// ListDocuments returns a project's documents ordered by creation time.
func (s *Store) ListDocuments(ctx context.Context, projectID string) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents WHERE project_id = $1 ORDER BY created_at, id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateStatus moves a document to next, enforcing the lifecycle inside a
// transaction with a row lock.
//
// Terminal statuses stamp processed_at. Returning to pending clears the
// counters, the message, and processed_at so a re-ingestion starts from a
// clean slate.
func (s *Store) UpdateStatus(ctx context.Context, id string, next DocumentStatus, message string) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("status transaction rollback", "error", rbErr)
		}
	}()

	var current DocumentStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM documents WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading document status: %w", err)
	}
	if !current.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	switch {
	case next.Terminal():
		_, err = tx.Exec(ctx,
			`UPDATE documents
			 SET status = $2, status_message = $3, processed_at = now(), updated_at = now()
			 WHERE id = $1`,
			id, next, message)
	case next == StatusPending:
		_, err = tx.Exec(ctx,
			`UPDATE documents
			 SET status = $2, status_message = '', chunk_count = 0, page_count = 0,
			     character_count = 0, processed_at = NULL, updated_at = now()
			 WHERE id = $1`,
			id, next)
	default:
		_, err = tx.Exec(ctx,
			`UPDATE documents
			 SET status = $2, status_message = $3, updated_at = now()
			 WHERE id = $1`,
			id, next, message)
	}
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing status update: %w", err)
	}
	return nil
}

// SetCounters records the chunk, page, and character counts of a
// successful ingestion run.
func (s *Store) SetCounters(ctx context.Context, id string, chunkCount, pageCount, characterCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET chunk_count = $2, page_count = $3, character_count = $4, updated_at = now()
		 WHERE id = $1`,
		id, chunkCount, pageCount, characterCount)
	if err != nil {
		return fmt.Errorf("updating document counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDocument removes a document row. Chunk cleanup in the vector
// store is the caller's responsibility.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountCompletedDocuments reports how many documents in the project are
// queryable.
func (s *Store) CountCompletedDocuments(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE project_id = $1 AND status = $2`,
		projectID, StatusCompleted).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting completed documents: %w", err)
	}
	return count, nil
}

// HasQueryableDocuments reports whether the project has at least one
// completed document.
func (s *Store) HasQueryableDocuments(ctx context.Context, projectID string) (bool, error) {
	count, err := s.CountCompletedDocuments(ctx, projectID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.ChunkSize, &p.ChunkOverlap,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.ProjectID, &d.Filename, &d.FilePath, &d.FileType,
		&d.Status, &d.StatusMessage, &d.ChunkCount, &d.PageCount, &d.CharacterCount,
		&d.CreatedAt, &d.UpdatedAt, &d.ProcessedAt)
	if err != nil {
		return Document{}, err
	}
	return d, nil
}
