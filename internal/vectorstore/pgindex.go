package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgIndex stores embedded chunks in PostgreSQL with the pgvector extension.
// Rows live in the chunks table created by the schema migrations; vector
// distance is cosine.
//
// PgIndex is safe for concurrent use by multiple goroutines.
type PgIndex struct {
	pool *pgxpool.Pool
}

// NewPgIndex creates a PgIndex over an existing connection pool.
func NewPgIndex(pool *pgxpool.Pool) (*PgIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PgIndex{pool: pool}, nil
}

// Upsert inserts the entries, replacing any existing rows with the same
// chunk ID. All entries go into one batch on a single connection.
func (idx *PgIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", e.ChunkID, err)
		}
		batch.Queue(
			`INSERT INTO chunks (id, namespace, document_id, content, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE
			 SET namespace = EXCLUDED.namespace,
			     document_id = EXCLUDED.document_id,
			     content = EXCLUDED.content,
			     embedding = EXCLUDED.embedding,
			     metadata = EXCLUDED.metadata`,
			e.ChunkID, e.Namespace, e.DocumentID, e.Content,
			pgvector.NewVector(e.Embedding), metadata,
		)
	}

	results := idx.pool.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close()
	}()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upserting chunks: %w", err)
		}
	}
	return nil
}

// Search returns the limit nearest entries in namespace by cosine
// similarity. Equal scores are ordered by ascending chunk ID so results
// are stable across runs.
func (idx *PgIndex) Search(ctx context.Context, namespace string, vector []float32, limit int, documentIDs []string) ([]Match, error) {
	if documentIDs == nil {
		documentIDs = []string{}
	}

	rows, err := idx.pool.Query(ctx,
		`SELECT id, document_id, content, metadata, embedding,
		        1 - (embedding <=> $2) AS score
		 FROM chunks
		 WHERE namespace = $1
		   AND (cardinality($3::text[]) = 0 OR document_id = ANY($3))
		 ORDER BY embedding <=> $2, id
		 LIMIT $4`,
		namespace, pgvector.NewVector(vector), documentIDs, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m        Match
			raw      []byte
			embedded pgvector.Vector
		)
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Content, &raw, &embedded, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &m.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %s: %w", m.ChunkID, err)
			}
		}
		m.Namespace = namespace
		m.Embedding = embedded.Slice()
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}
	return matches, nil
}

// DeleteByDocument removes all chunks of one document from namespace.
func (idx *PgIndex) DeleteByDocument(ctx context.Context, namespace, documentID string) (int64, error) {
	tag, err := idx.pool.Exec(ctx,
		`DELETE FROM chunks WHERE namespace = $1 AND document_id = $2`,
		namespace, documentID,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting document chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteNamespace removes every chunk in namespace.
func (idx *PgIndex) DeleteNamespace(ctx context.Context, namespace string) (int64, error) {
	tag, err := idx.pool.Exec(ctx,
		`DELETE FROM chunks WHERE namespace = $1`,
		namespace,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting namespace chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}
