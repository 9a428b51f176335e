package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/unitshift/constants"
	"github.com/joseph-ayodele/unitshift/internal/async"
	"github.com/joseph-ayodele/unitshift/internal/core"
)

type recorder struct {
	mu      sync.Mutex
	calls   []string
	active  int
	overlap bool
	fail    map[string]error
}

func (r *recorder) ProcessAll(ctx context.Context, files []string, outDir string) (core.Results, error) {
	r.mu.Lock()
	r.active++
	if r.active > 1 {
		r.overlap = true
	}
	r.calls = append(r.calls, files...)
	err := r.fail[files[0]]
	r.mu.Unlock()

	time.Sleep(time.Millisecond)

	r.mu.Lock()
	r.active--
	r.mu.Unlock()

	status := constants.JobStatusSucceeded
	if err != nil {
		status = constants.JobStatusFailed
	}
	return core.Results{Files: []core.FileResult{{Source: files[0], Status: status}}}, err
}

func TestQueueRunsJobsInOrderOnOneWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{fail: map[string]error{"b.dwg": errors.New("boom")}}
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		errs int
	)
	q := NewProcessorQueue(rec, t.TempDir(), nil, WithQueueSize(1), WithResultHook(func(job async.Job, res core.FileResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		seen[job.Path] = res.Succeeded()
		if err != nil {
			errs++
		}
	}))

	ctx := context.Background()
	for _, p := range []string{"a.dwg", "b.dwg", "c.xlsx"} {
		require.NoError(t, q.Enqueue(ctx, async.Job{Path: p}))
	}
	q.Shutdown(ctx)

	assert.Equal(t, []string{"a.dwg", "b.dwg", "c.xlsx"}, rec.calls)
	assert.False(t, rec.overlap)
	assert.Equal(t, map[string]bool{"a.dwg": true, "b.dwg": false, "c.xlsx": true}, seen)
	assert.Equal(t, 1, errs)

	assert.ErrorIs(t, q.Enqueue(ctx, async.Job{Path: "late.dwg"}), async.ErrClosed)
	// A second shutdown is a no-op.
	q.Shutdown(ctx)
}
