// Package processor classifies batches of analysis records in parallel.
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/milkmob/internal/classifier"
	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
)

const defaultConcurrency = 4

// Classifier assigns one record to a category.
type Classifier interface {
	Classify(ctx context.Context, record *domain.AnalysisRecord, opts classifier.Options) *domain.ClassificationResult
}

// Item is one record to classify.
type Item struct {
	Record   *domain.AnalysisRecord `json:"record"`
	Title    string                 `json:"title,omitempty"`
	Location *domain.Location       `json:"location,omitempty"`
}

// ProcessResult holds the result of processing a single item
type ProcessResult struct {
	Index          int                          `json:"index"`
	VideoID        string                       `json:"video_id"`
	Classification *domain.ClassificationResult `json:"classification,omitempty"`
	Error          string                       `json:"error,omitempty"`
}

// BatchProcessor processes multiple records in parallel using a worker pool.
// Each item is classified and persisted independently.
type BatchProcessor struct {
	classifier  Classifier
	concurrency int
	logger      logger.Logger
}

type job struct {
	index int
	item  Item
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(c Classifier, concurrency int, log logger.Logger) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &BatchProcessor{classifier: c, concurrency: concurrency, logger: log}
}

// Concurrency returns the worker count.
func (b *BatchProcessor) Concurrency() int {
	return b.concurrency
}

// Process classifies items and returns one result per item, in input order.
// Items not reached before ctx is done carry the context error.
func (b *BatchProcessor) Process(ctx context.Context, items []Item) []*ProcessResult {
	results := make([]*ProcessResult, len(items))
	if len(items) == 0 {
		return results
	}

	b.logger.Info("Starting batch processing",
		logger.Int("batch_size", len(items)),
		logger.Int("concurrency", b.concurrency),
	)
	startTime := time.Now()

	jobs := make(chan job, len(items))
	for i, item := range items {
		jobs <- job{index: i, item: item}
	}
	close(jobs)

	workers := min(b.concurrency, len(items))
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go b.worker(ctx, i, jobs, results, &wg)
	}
	wg.Wait()

	errorCount := 0
	for i, result := range results {
		if result == nil {
			result = &ProcessResult{Index: i, VideoID: videoID(items[i].Record), Error: context.Cause(ctx).Error()}
			results[i] = result
		}
		if result.Error != "" {
			errorCount++
		}
	}

	b.logger.Info("Batch processing complete",
		logger.Int("total", len(items)),
		logger.Int("success", len(items)-errorCount),
		logger.Int("errors", errorCount),
		logger.Int64("duration_ms", time.Since(startTime).Milliseconds()),
	)
	return results
}

// worker writes only to the result slots of the jobs it takes.
func (b *BatchProcessor) worker(
	ctx context.Context,
	id int,
	jobs <-chan job,
	results []*ProcessResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for j := range jobs {
		select {
		case <-ctx.Done():
			b.logger.Warn("Worker stopping due to context cancellation", logger.Int("worker_id", id))
			return
		default:
		}
		results[j.index] = b.processItem(ctx, j)
	}
}

func (b *BatchProcessor) processItem(ctx context.Context, j job) *ProcessResult {
	classification := b.classifier.Classify(ctx, j.item.Record, classifier.Options{
		Location: j.item.Location,
		Title:    j.item.Title,
	})
	return &ProcessResult{
		Index:          j.index,
		VideoID:        videoID(j.item.Record),
		Classification: classification,
		Error:          classification.Error,
	}
}

func videoID(record *domain.AnalysisRecord) string {
	if record == nil {
		return ""
	}
	return record.VideoID
}
