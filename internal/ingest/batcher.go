package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mybrainlabs/recall/internal/chunker"
	"github.com/mybrainlabs/recall/internal/store"
)

// ProgressFunc reports batch progress after each finished document.
type ProgressFunc func(done, total int, documentID string)

// Job pairs a document with its transcript for batch ingestion.
type Job struct {
	Document   store.Document
	Transcript chunker.Transcript
}

// BatchResult collects per-document outcomes. Errors are scoped to their
// document; the batch itself always runs to completion unless the context
// is cancelled.
type BatchResult struct {
	Results []Result
	Errors  []error
}

// Batcher ingests documents concurrently with bounded parallelism.
type Batcher struct {
	concurrency int
	pipeline    *Pipeline
	onProgress  ProgressFunc
}

// NewBatcher creates a Batcher with the given concurrency limit.
func NewBatcher(concurrency int, pipeline *Pipeline, onProgress ProgressFunc) *Batcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batcher{
		concurrency: concurrency,
		pipeline:    pipeline,
		onProgress:  onProgress,
	}
}

// Process ingests all jobs. A failing document is recorded and skipped;
// the rest of the batch continues.
func (b *Batcher) Process(ctx context.Context, jobs []Job) *BatchResult {
	total := len(jobs)
	if total == 0 {
		return &BatchResult{}
	}

	sem := make(chan struct{}, b.concurrency)
	var mu sync.Mutex
	var done int64
	result := &BatchResult{}

	var wg sync.WaitGroup
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			mu.Lock()
			result.Errors = append(result.Errors, fmt.Errorf("ingest %s: %w", job.Document.ID, ctx.Err()))
			mu.Unlock()
			count := atomic.AddInt64(&done, 1)
			if b.onProgress != nil {
				b.onProgress(int(count), total, job.Document.ID)
			}
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := b.pipeline.Ingest(ctx, j.Document, j.Transcript)
			mu.Lock()
			if err != nil {
				result.Errors = append(result.Errors, err)
			} else {
				result.Results = append(result.Results, *res)
			}
			mu.Unlock()

			count := atomic.AddInt64(&done, 1)
			if b.onProgress != nil {
				b.onProgress(int(count), total, j.Document.ID)
			}
		}(job)
	}

	wg.Wait()
	return result
}
