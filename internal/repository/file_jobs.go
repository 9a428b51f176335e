package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/unitshift/internal/entity"
)

type FileJobRepository interface {
	Start(ctx context.Context, job entity.FileJob) (entity.FileJob, error)
	Finish(ctx context.Context, job entity.FileJob) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]entity.FileJob, error)
}

type fileJobRepo struct {
	drv *entsql.Driver
	log *slog.Logger
}

func NewFileJobRepository(drv *entsql.Driver, log *slog.Logger) FileJobRepository {
	return &fileJobRepo{drv: drv, log: log}
}

func (r *fileJobRepo) Start(ctx context.Context, job entity.FileJob) (entity.FileJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	query, args := entsql.Dialect(r.drv.Dialect()).
		Insert(fileJobsTable).
		Columns(fileJobColumns...).
		Values(job.ID.String(), job.RunID.String(), job.SourcePath, job.OutputPath, job.Kind, job.Status,
			job.Attempts, job.Replacements, job.Deletions, nullString(job.ErrorMessage), job.StartedAt,
			nullTime(job.FinishedAt)).
		Query()
	if _, err := r.drv.DB().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("file_job start failed", "run_id", job.RunID, "path", job.SourcePath, "err", err)
		return entity.FileJob{}, err
	}
	r.log.Debug("file_job started", "job_id", job.ID, "path", job.SourcePath)
	return job, nil
}

func (r *fileJobRepo) Finish(ctx context.Context, job entity.FileJob) error {
	finished := time.Now().UTC()
	if job.FinishedAt != nil {
		finished = *job.FinishedAt
	}
	query, args := entsql.Dialect(r.drv.Dialect()).
		Update(fileJobsTable).
		Set("output_path", job.OutputPath).
		Set("status", job.Status).
		Set("attempts", job.Attempts).
		Set("replacements", job.Replacements).
		Set("deletions", job.Deletions).
		Set("error_message", nullString(job.ErrorMessage)).
		Set("finished_at", finished).
		Where(entsql.EQ("id", job.ID.String())).
		Query()
	res, err := r.drv.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("file_job finish failed", "job_id", job.ID, "err", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("file_job %s not found", job.ID)
	}
	r.log.Debug("file_job finished", "job_id", job.ID, "status", job.Status)
	return nil
}

func (r *fileJobRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]entity.FileJob, error) {
	query, args := entsql.Dialect(r.drv.Dialect()).
		Select(fileJobColumns...).
		From(entsql.Table(fileJobsTable)).
		Where(entsql.EQ("run_id", runID.String())).
		OrderBy("started_at", "source_path").
		Query()
	rows, err := r.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("file_job list failed", "run_id", runID, "err", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.FileJob
	for rows.Next() {
		job, err := scanFileJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanFileJob(s scanner) (entity.FileJob, error) {
	var (
		job       entity.FileJob
		id, runID string
		errMsg    sql.NullString
		finished  sql.NullTime
	)
	if err := s.Scan(&id, &runID, &job.SourcePath, &job.OutputPath, &job.Kind, &job.Status, &job.Attempts,
		&job.Replacements, &job.Deletions, &errMsg, &job.StartedAt, &finished); err != nil {
		return entity.FileJob{}, err
	}
	var err error
	if job.ID, err = uuid.Parse(id); err != nil {
		return entity.FileJob{}, fmt.Errorf("file_job id %q: %w", id, err)
	}
	if job.RunID, err = uuid.Parse(runID); err != nil {
		return entity.FileJob{}, fmt.Errorf("file_job run id %q: %w", runID, err)
	}
	if errMsg.Valid {
		job.ErrorMessage = &errMsg.String
	}
	job.FinishedAt = timePtr(finished)
	return job, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
