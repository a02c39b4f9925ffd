package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/ratelimit"
)

// ExtractionJob is one pending extraction run for a saved narrative answer.
type ExtractionJob struct {
	UserID     uuid.UUID
	Text       string
	ChapterID  *uuid.UUID
	QuestionID *uuid.UUID
	StoryID    *uuid.UUID
}

// ExtractionQueue runs extraction in the background with a bounded backlog
// and a fixed worker pool. Savers enqueue and return immediately; a full
// backlog drops the job, since extraction is best-effort enrichment and must
// never block or fail the save path.
type ExtractionQueue struct {
	jobs       chan ExtractionJob
	extraction ExtractionService
	graph      GraphService
	limiter    *ratelimit.Limiter
	logger     *zap.Logger

	wg sync.WaitGroup

	// mu serializes sends with Close. Close closes q.jobs to release the
	// workers, so an unguarded send racing it would panic.
	mu     sync.Mutex
	closed bool
}

// NewExtractionQueue creates the queue and starts its workers.
func NewExtractionQueue(
	extraction ExtractionService,
	graph GraphService,
	limiter *ratelimit.Limiter,
	workers, queueSize int,
	logger *zap.Logger,
) *ExtractionQueue {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	q := &ExtractionQueue{
		jobs:       make(chan ExtractionJob, queueSize),
		extraction: extraction,
		graph:      graph,
		limiter:    limiter,
		logger:     logger.Named("extraction-queue"),
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}

	return q
}

// Enqueue submits a job without blocking. Returns false when the job was
// dropped: not eligible (too short, service unconfigured), queue closed, or
// backlog full.
func (q *ExtractionQueue) Enqueue(job ExtractionJob) bool {
	if !q.extraction.Eligible(job.Text) {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}

	select {
	case q.jobs <- job:
		return true
	default:
		q.logger.Warn("Extraction backlog full, dropping job",
			zap.String("user_id", job.UserID.String()))
		return false
	}
}

// Backlog reports how many jobs are waiting.
func (q *ExtractionQueue) Backlog() int {
	return len(q.jobs)
}

// Close stops intake and waits for in-flight jobs to finish.
func (q *ExtractionQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *ExtractionQueue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.run(job)
	}
}

// run executes one extraction job. Every failure is logged and swallowed:
// nothing here may propagate back to the save path that enqueued the job.
func (q *ExtractionQueue) run(job ExtractionJob) {
	decision := q.limiter.CheckAndConsume(job.UserID)
	if !decision.Allowed {
		// Detached from any response cycle, so there is nobody to hand
		// a retry hint to; log and drop.
		q.logger.Info("Extraction rate limited, dropping run",
			zap.String("user_id", job.UserID.String()),
			zap.Duration("reset_in", decision.ResetIn))
		return
	}

	start := time.Now()
	sanitized := q.extraction.Sanitize(job.Text)

	result, err := q.extraction.Extract(context.Background(), sanitized)
	if err != nil {
		q.logger.Warn("Extraction run failed",
			zap.String("user_id", job.UserID.String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	if result.TotalEntities() == 0 {
		return
	}

	stats := q.graph.CommitExtraction(context.Background(), job.UserID, result,
		job.ChapterID, job.QuestionID, job.StoryID)

	q.logger.Info("Extraction run committed",
		zap.String("user_id", job.UserID.String()),
		zap.Int("entities", len(stats.Entities)),
		zap.Int("relationships", stats.Relationships),
		zap.Int("failures", stats.Failures),
		zap.Duration("elapsed", time.Since(start)))
}
