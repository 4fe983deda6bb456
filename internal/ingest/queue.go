package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Queue runs ingestion jobs on a fixed worker pool so uploads return
// immediately while processing happens in the background.
type Queue struct {
	service *Service
	jobs    chan string
	wg      sync.WaitGroup
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewQueue starts workers goroutines draining a buffered job channel of
// the given size. logger may be nil.
func NewQueue(service *Service, workers, size int, logger *slog.Logger) (*Queue, error) {
	if service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if workers < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", workers)
	}
	if size < 1 {
		return nil, fmt.Errorf("queue size must be positive, got %d", size)
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		service: service,
		jobs:    make(chan string, size),
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q, nil
}

// Submit enqueues a document for ingestion. Returns an error when the
// queue is full or closed; the caller decides whether to retry or run
// synchronously.
func (q *Queue) Submit(documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("ingestion queue is closed")
	}
	select {
	case q.jobs <- documentID:
		return nil
	default:
		return fmt.Errorf("ingestion queue is full")
	}
}

// Close stops accepting jobs and waits for in-flight work to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for documentID := range q.jobs {
		result, err := q.service.Ingest(context.Background(), documentID)
		switch {
		case err != nil:
			q.logger.Error("background ingestion aborted",
				"document_id", documentID, "error", err)
		case !result.OK:
			q.logger.Warn("background ingestion failed",
				"document_id", documentID,
				"category", string(result.Category), "message", result.Message)
		}
	}
}
