package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/unitshift/constants"
	"github.com/joseph-ayodele/unitshift/internal/common"
	"github.com/joseph-ayodele/unitshift/internal/core/retry"
	"github.com/joseph-ayodele/unitshift/internal/entity"
)

// ErrBatchAborted marks files that were never attempted because an earlier file of the
// same kind hit a fatal fault, or the batch was cancelled.
var ErrBatchAborted = errors.New("batch aborted")

// Ledger records runs and file jobs. A nil Ledger disables recording.
type Ledger interface {
	StartRun(ctx context.Context, run entity.Run) (entity.Run, error)
	FinishRun(ctx context.Context, run entity.Run) error
	StartFile(ctx context.Context, job entity.FileJob) (entity.FileJob, error)
	FinishFile(ctx context.Context, job entity.FileJob) error
}

// ProgressFunc receives one call per finished file.
type ProgressFunc func(done, total int, r FileResult)

// FileResult is the outcome of one input file.
type FileResult struct {
	Source       string
	Output       string // empty when nothing was written
	Kind         constants.DocKind
	Status       constants.JobStatus
	Attempts     int
	Replacements int
	Deletions    int
	Err          error
	Duration     time.Duration
}

// Succeeded reports whether the file was processed.
func (r FileResult) Succeeded() bool { return r.Status == constants.JobStatusSucceeded }

// Results collects the file results of a batch in input order.
type Results struct {
	RunID uuid.UUID
	Files []FileResult
}

// Succeeded counts the processed files.
func (r Results) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.Succeeded() {
			n++
		}
	}
	return n
}

// Map reports success per source path.
func (r Results) Map() map[string]bool {
	out := make(map[string]bool, len(r.Files))
	for _, f := range r.Files {
		out[f.Source] = f.Succeeded()
	}
	return out
}

// Processor runs a batch of files through the handler for their kind.
type Processor struct {
	logger   *slog.Logger
	digit    string
	handlers map[constants.DocKind]Handler
	policy   retry.Policy
	ledger   Ledger
	progress ProgressFunc
}

type Option func(*Processor)

// WithLedger records the run and every file job.
func WithLedger(l Ledger) Option {
	return func(p *Processor) { p.ledger = l }
}

// WithProgress registers a per-file callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Processor) { p.progress = fn }
}

// NewProcessor validates digit and returns a processor over handlers. Kinds without a
// handler are skipped.
func NewProcessor(logger *slog.Logger, digit string, handlers map[constants.DocKind]Handler, opts ...Option) (*Processor, error) {
	if err := common.ValidateDigit(digit); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:   logger,
		digit:    digit,
		handlers: handlers,
		policy:   retry.File,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ProcessAll processes files in order, writing outputs into outDir. Each file ends up
// succeeded or failed. A fatal fault fails the current file and every remaining file of
// the same kind; other kinds carry on and the first fatal fault is returned. A cancelled
// ctx fails every remaining file. The sessions used by the batch are shut down on every path.
func (p *Processor) ProcessAll(ctx context.Context, files []string, outDir string) (Results, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Results{}, common.ConfigFault("create output dir "+outDir, err)
	}

	used := make(map[constants.DocKind]bool)
	defer p.shutdown(context.WithoutCancel(ctx), used)

	run := p.startRun(ctx, files, outDir)
	ctx = common.WithRunID(ctx, run.ID.String())
	res := Results{RunID: run.ID, Files: make([]FileResult, 0, len(files))}
	p.logger.Info("processing started", "run_id", run.ID, "files", len(files), "digit", p.digit, "output_dir", outDir)

	var (
		fatal     error
		cancelled error
		aborted   = make(map[constants.DocKind]error)
	)
	for i, src := range files {
		if cancelled == nil {
			cancelled = ctx.Err()
		}
		kind := constants.MapExtToKind(filepath.Ext(src))

		var fr FileResult
		switch {
		case cancelled != nil:
			fr = p.aborted(src, cancelled)
		case aborted[kind] != nil:
			fr = p.aborted(src, aborted[kind])
		default:
			job := p.startFile(ctx, run.ID, src, outDir)
			fctx := ctx
			if job != nil {
				fctx = common.WithJobID(ctx, job.ID.String())
			}
			fr = p.processFile(fctx, src, outDir, used)
			p.finishFile(ctx, job, fr)
			if common.KindOf(fr.Err) == common.FaultFatal {
				aborted[kind] = fr.Err
				if fatal == nil {
					fatal = fr.Err
				}
				p.logger.Error("batch aborted for kind", "kind", string(kind), "path", src, "error", fr.Err)
			}
		}

		res.Files = append(res.Files, fr)
		if p.progress != nil {
			p.progress(i+1, len(files), fr)
		}
	}
	if fatal == nil {
		fatal = cancelled
	}

	ok := res.Succeeded()
	p.finishRun(context.WithoutCancel(ctx), run, ok, len(files)-ok, fatal != nil)
	p.logger.Info("processing finished", "run_id", run.ID, "processed", fmt.Sprintf("%d/%d", ok, len(files)), "output_dir", outDir)
	return res, fatal
}

func (p *Processor) processFile(ctx context.Context, src, outDir string, used map[constants.DocKind]bool) (fr FileResult) {
	start := time.Now()
	ext := filepath.Ext(src)
	fr = FileResult{
		Source: src,
		Output: OutputPath(src, outDir, p.digit),
		Kind:   constants.MapExtToKind(ext),
		Status: constants.JobStatusFailed,
	}
	defer func() { fr.Duration = time.Since(start) }()

	info, err := os.Stat(src)
	switch {
	case err != nil:
		fr.Err = common.Structural("stat "+src, err)
	case info.IsDir():
		fr.Err = common.Structural(src+" is a directory", common.ErrInvalidInput)
	}
	if fr.Err != nil {
		p.logger.Warn("file rejected", "path", src, "error", fr.Err)
		fr.Output = ""
		return fr
	}

	h, ok := p.handlers[fr.Kind]
	if !ok {
		fr.Status = constants.JobStatusSkipped
		fr.Err = common.ConfigFault("unsupported format "+ext, common.ErrInvalidInput)
		fr.Output = ""
		p.logger.Info("file skipped", "path", src, "ext", ext)
		return fr
	}
	used[fr.Kind] = true

	output := fr.Output
	err = retry.Do(ctx, p.policy, func(attempt int) error {
		fr.Attempts = attempt
		if attempt > 1 {
			p.logger.Info("retrying file", "path", src, "attempt", attempt)
			if err := h.Recover(ctx); err != nil {
				return err
			}
		}
		out, err := h.Process(ctx, src, output)
		fr.Replacements, fr.Deletions = out.Replacements, out.Deletions
		if err == nil && !out.Saved {
			fr.Output = ""
		}
		return err
	})
	if err != nil {
		fr.Err = err
		fr.Output = ""
		p.logger.Warn("file failed", "path", src, "attempts", fr.Attempts, "error", err)
		// Leave a fresh session behind for the next file.
		if k := common.KindOf(err); k != common.FaultFatal && k != common.FaultConfig && ctx.Err() == nil {
			if rerr := h.Recover(ctx); rerr != nil {
				p.logger.Warn("recover after failure failed", "path", src, "error", rerr)
				if common.KindOf(rerr) == common.FaultFatal {
					fr.Err = rerr
				}
			}
		}
		return fr
	}

	fr.Status = constants.JobStatusSucceeded
	p.logger.Info("file processed", "path", filepath.Base(src), "output", fr.Output,
		"replacements", fr.Replacements, "deletions", fr.Deletions, "attempts", fr.Attempts)
	return fr
}

func (p *Processor) aborted(src string, cause error) FileResult {
	return FileResult{
		Source: src,
		Kind:   constants.MapExtToKind(filepath.Ext(src)),
		Status: constants.JobStatusFailed,
		Err:    fmt.Errorf("%w: %v", ErrBatchAborted, cause),
	}
}

func (p *Processor) shutdown(ctx context.Context, used map[constants.DocKind]bool) {
	for kind := range used {
		if err := p.handlers[kind].Shutdown(ctx); err != nil {
			p.logger.Warn("handler shutdown failed", "kind", string(kind), "error", err)
		}
	}
}

func (p *Processor) startRun(ctx context.Context, files []string, outDir string) entity.Run {
	run := entity.Run{
		ID:               uuid.New(),
		StartedAt:        time.Now().UTC(),
		ReplacementDigit: p.digit,
		OutputDir:        outDir,
		Status:           string(constants.RunStatusRunning),
	}
	if len(files) > 0 {
		run.InputDir = filepath.Dir(files[0])
	}
	if p.ledger == nil {
		return run
	}
	stored, err := p.ledger.StartRun(ctx, run)
	if err != nil {
		p.logger.Warn("ledger: start run failed", "error", err)
		return run
	}
	return stored
}

func (p *Processor) finishRun(ctx context.Context, run entity.Run, succeeded, failed int, aborted bool) {
	if p.ledger == nil {
		return
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Succeeded = succeeded
	run.Failed = failed
	run.Status = string(constants.RunStatusFinished)
	if aborted {
		run.Status = string(constants.RunStatusAborted)
	}
	if err := p.ledger.FinishRun(ctx, run); err != nil {
		p.logger.Warn("ledger: finish run failed", "run_id", run.ID, "error", err)
	}
}

func (p *Processor) startFile(ctx context.Context, runID uuid.UUID, src, outDir string) *entity.FileJob {
	if p.ledger == nil {
		return nil
	}
	job, err := p.ledger.StartFile(ctx, entity.FileJob{
		ID:         uuid.New(),
		RunID:      runID,
		SourcePath: src,
		OutputPath: OutputPath(src, outDir, p.digit),
		Kind:       string(constants.MapExtToKind(filepath.Ext(src))),
		Status:     string(constants.JobStatusRunning),
		StartedAt:  time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn("ledger: start file failed", "path", src, "error", err)
		return nil
	}
	return &job
}

func (p *Processor) finishFile(ctx context.Context, job *entity.FileJob, fr FileResult) {
	if job == nil {
		return
	}
	now := time.Now().UTC()
	job.FinishedAt = &now
	job.OutputPath = fr.Output
	job.Status = string(fr.Status)
	job.Attempts = fr.Attempts
	job.Replacements = fr.Replacements
	job.Deletions = fr.Deletions
	if fr.Err != nil {
		msg := fr.Err.Error()
		job.ErrorMessage = &msg
	}
	if err := p.ledger.FinishFile(context.WithoutCancel(ctx), *job); err != nil {
		p.logger.Warn("ledger: finish file failed", "path", fr.Source, "error", err)
	}
}
