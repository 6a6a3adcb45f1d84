package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

// StaleDocumentStore flips documents stuck in the processing state to error.
type StaleDocumentStore interface {
	MarkStaleProcessing(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Janitor recovers documents abandoned mid-ingestion, usually after a crash
// or deploy. Runs as a Worker's JobProcessor.
type Janitor struct {
	documents StaleDocumentStore
	maxAge    time.Duration
}

func NewJanitor(documents StaleDocumentStore, maxAge time.Duration) *Janitor {
	return &Janitor{documents: documents, maxAge: maxAge}
}

// ProcessJobs marks documents stuck in processing longer than maxAge as
// errored.
func (j *Janitor) ProcessJobs(ctx context.Context) error {
	count, err := j.documents.MarkStaleProcessing(ctx, j.maxAge)
	if err != nil {
		return fmt.Errorf("failed to sweep stale documents: %w", err)
	}
	if count > 0 {
		log.Printf("janitor: marked %d stale processing document(s) as errored", count)
	}
	return nil
}
