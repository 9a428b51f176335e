package async

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Enqueue once the queue is shutting down.
var ErrClosed = errors.New("queue is shutting down")

// Job is one input file waiting to be processed.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
