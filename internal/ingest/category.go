package ingest

import (
	"errors"

	"github.com/docbase/docbase/internal/chunker"
	"github.com/docbase/docbase/internal/loader"
	"github.com/docbase/docbase/internal/vectorstore"
)

// Category classifies an ingestion failure by its pipeline stage.
// Classification is structural, via errors.As on the stage error types,
// never by message matching.
type Category string

const (
	CategoryUnsupportedType Category = "unsupported_type"
	CategoryLoadFailed      Category = "load_failed"
	CategoryChunkFailed     Category = "chunk_failed"
	CategoryVectorFailed    Category = "vector_failed"
	CategoryUnexpected      Category = "unexpected"
)

// Classify maps a pipeline error to its failure category.
func Classify(err error) Category {
	var (
		unsupported *loader.UnsupportedTypeError
		loadErr     *loader.LoadError
		chunkErr    *chunker.Error
		storeErr    *vectorstore.Error
	)
	switch {
	case errors.As(err, &unsupported):
		return CategoryUnsupportedType
	case errors.As(err, &loadErr):
		return CategoryLoadFailed
	case errors.As(err, &chunkErr):
		return CategoryChunkFailed
	case errors.As(err, &storeErr):
		return CategoryVectorFailed
	default:
		return CategoryUnexpected
	}
}

// Retryable reports whether re-running ingestion without changing the
// document can succeed. Unsupported types and chunking failures are
// permanent; load, vector, and unknown failures may be transient.
func (c Category) Retryable() bool {
	switch c {
	case CategoryUnsupportedType, CategoryChunkFailed:
		return false
	default:
		return true
	}
}
