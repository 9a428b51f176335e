package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/unitshift/constants"
)

const (
	runsTable     = "runs"
	fileJobsTable = "file_jobs"
)

var (
	runColumns = []string{
		"id", "started_at", "finished_at", "replacement_digit", "input_dir", "output_dir",
		"succeeded", "failed", "status",
	}
	fileJobColumns = []string{
		"id", "run_id", "source_path", "output_path", "kind", "status", "attempts",
		"replacements", "deletions", "error_message", "started_at", "finished_at",
	}
)

func quoted(values ...string) string {
	q := make([]string, len(values))
	for i, v := range values {
		q[i] = "'" + v + "'"
	}
	return strings.Join(q, ", ")
}

func schemaDDL(d string) []string {
	ts := "TIMESTAMP"
	if d == dialect.Postgres {
		ts = "TIMESTAMPTZ"
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	started_at %[2]s NOT NULL,
	finished_at %[2]s,
	replacement_digit TEXT NOT NULL,
	input_dir TEXT NOT NULL DEFAULT '',
	output_dir TEXT NOT NULL DEFAULT '',
	succeeded INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL CHECK (status IN (%[3]s))
)`, runsTable, ts, quoted(string(constants.RunStatusRunning), string(constants.RunStatusFinished), string(constants.RunStatusAborted))),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES %s (id),
	source_path TEXT NOT NULL,
	output_path TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL CHECK (status IN (%s)),
	attempts INTEGER NOT NULL DEFAULT 0,
	replacements INTEGER NOT NULL DEFAULT 0,
	deletions INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	started_at %s NOT NULL,
	finished_at %[4]s
)`, fileJobsTable, runsTable, quoted(string(constants.JobStatusRunning), string(constants.JobStatusSucceeded),
			string(constants.JobStatusFailed), string(constants.JobStatusSkipped)), ts),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS file_jobs_run_id ON %s (run_id, started_at)`, fileJobsTable),
	}
}

// Migrate creates the ledger tables when they do not exist.
func Migrate(ctx context.Context, drv *entsql.Driver, logger *slog.Logger) error {
	for _, stmt := range schemaDDL(drv.Dialect()) {
		if _, err := drv.DB().ExecContext(ctx, stmt); err != nil {
			logger.Error("ledger migration failed", "error", err)
			return err
		}
	}
	logger.Debug("ledger schema ready", "dialect", drv.Dialect())
	return nil
}
