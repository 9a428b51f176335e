package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/unitshift/internal/async"
	"github.com/joseph-ayodele/unitshift/internal/core"
)

// BatchProcessor is the part of core.Processor the queue drives.
type BatchProcessor interface {
	ProcessAll(ctx context.Context, files []string, outDir string) (core.Results, error)
}

// ResultHook observes every finished job.
type ResultHook func(job async.Job, res core.FileResult, err error)

// ProcessorQueue feeds jobs to a processor from a single worker. A processor owns live
// application sessions, so jobs never run concurrently.
type ProcessorQueue struct {
	proc    BatchProcessor
	logger  *slog.Logger
	outDir  string
	timeout time.Duration
	hook    ResultHook

	ch   chan async.Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ async.Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan async.Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithResultHook(h ResultHook) Option {
	return func(q *ProcessorQueue) { q.hook = h }
}

func NewProcessorQueue(proc BatchProcessor, outDir string, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		outDir:  outDir,
		timeout: 10 * time.Minute,
		ch:      make(chan async.Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.logger.Info("worker started")
			for job := range q.ch {
				q.run(job)
			}
			q.logger.Info("worker stopped")
		}()
	})
}

func (q *ProcessorQueue) run(job async.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	res, err := q.proc.ProcessAll(ctx, []string{job.Path}, q.outDir)
	var fr core.FileResult
	if len(res.Files) > 0 {
		fr = res.Files[0]
	}
	switch {
	case err != nil:
		q.logger.Error("processing aborted", "path", job.Path, "trace_id", job.TraceID, "error", err)
	case !fr.Succeeded():
		q.logger.Warn("processing failed", "path", job.Path, "trace_id", job.TraceID, "error", fr.Err)
	default:
		q.logger.Info("processed file successfully", "path", job.Path, "output", fr.Output,
			"queued_for", time.Since(job.SubmittedAt).Round(time.Millisecond))
	}
	if q.hook != nil {
		q.hook(job, fr, err)
	}
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job async.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return async.ErrClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued file for processing", "path", job.Path)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for ctx.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
