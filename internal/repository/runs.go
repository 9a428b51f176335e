package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/unitshift/internal/common"
	"github.com/joseph-ayodele/unitshift/internal/entity"
)

type RunRepository interface {
	Start(ctx context.Context, run entity.Run) (entity.Run, error)
	Finish(ctx context.Context, run entity.Run) error
	Get(ctx context.Context, id uuid.UUID) (entity.Run, error)
	Latest(ctx context.Context) (entity.Run, error)
	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]entity.Run, error)
}

type runRepo struct {
	drv *entsql.Driver
	log *slog.Logger
}

func NewRunRepository(drv *entsql.Driver, log *slog.Logger) RunRepository {
	return &runRepo{drv: drv, log: log}
}

func (r *runRepo) Start(ctx context.Context, run entity.Run) (entity.Run, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	query, args := entsql.Dialect(r.drv.Dialect()).
		Insert(runsTable).
		Columns(runColumns...).
		Values(run.ID.String(), run.StartedAt, nullTime(run.FinishedAt), run.ReplacementDigit,
			run.InputDir, run.OutputDir, run.Succeeded, run.Failed, run.Status).
		Query()
	if _, err := r.drv.DB().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("run start failed", "run_id", run.ID, "err", err)
		return entity.Run{}, err
	}
	r.log.Info("run started", "run_id", run.ID, "digit", run.ReplacementDigit)
	return run, nil
}

func (r *runRepo) Finish(ctx context.Context, run entity.Run) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	query, args := entsql.Dialect(r.drv.Dialect()).
		Update(runsTable).
		Set("finished_at", finished).
		Set("succeeded", run.Succeeded).
		Set("failed", run.Failed).
		Set("status", run.Status).
		Where(entsql.EQ("id", run.ID.String())).
		Query()
	if _, err := r.drv.DB().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("run finish failed", "run_id", run.ID, "err", err)
		return err
	}
	r.log.Info("run finished", "run_id", run.ID, "status", run.Status, "succeeded", run.Succeeded, "failed", run.Failed)
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (entity.Run, error) {
	return r.one(ctx, entsql.Dialect(r.drv.Dialect()).
		Select(runColumns...).
		From(entsql.Table(runsTable)).
		Where(entsql.EQ("id", id.String())), id.String())
}

func (r *runRepo) Latest(ctx context.Context) (entity.Run, error) {
	return r.one(ctx, entsql.Dialect(r.drv.Dialect()).
		Select(runColumns...).
		From(entsql.Table(runsTable)).
		OrderBy(entsql.Desc("started_at")).
		Limit(1), "latest")
}

func (r *runRepo) List(ctx context.Context, limit int) ([]entity.Run, error) {
	sel := entsql.Dialect(r.drv.Dialect()).
		Select(runColumns...).
		From(entsql.Table(runsTable)).
		OrderBy(entsql.Desc("started_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()
	rows, err := r.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("run list failed", "err", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *runRepo) one(ctx context.Context, sel *entsql.Selector, label string) (entity.Run, error) {
	query, args := sel.Query()
	row := r.drv.DB().QueryRowContext(ctx, query, args...)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Run{}, fmt.Errorf("run %s: %w", label, common.ErrNotFound)
	}
	if err != nil {
		r.log.Error("run lookup failed", "run", label, "err", err)
		return entity.Run{}, err
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (entity.Run, error) {
	var (
		run      entity.Run
		id       string
		finished sql.NullTime
	)
	if err := s.Scan(&id, &run.StartedAt, &finished, &run.ReplacementDigit, &run.InputDir, &run.OutputDir,
		&run.Succeeded, &run.Failed, &run.Status); err != nil {
		return entity.Run{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return entity.Run{}, fmt.Errorf("run id %q: %w", id, err)
	}
	run.ID = parsed
	run.FinishedAt = timePtr(finished)
	return run, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
