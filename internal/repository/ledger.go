package repository

import (
	"context"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/unitshift/internal/common"
	"github.com/joseph-ayodele/unitshift/internal/entity"
)

// Ledger records batch runs and their file jobs.
type Ledger struct {
	Runs  RunRepository
	Files FileJobRepository
}

func NewLedger(drv *entsql.Driver, logger *slog.Logger) *Ledger {
	return &Ledger{
		Runs:  NewRunRepository(drv, logger),
		Files: NewFileJobRepository(drv, logger),
	}
}

// InitLedger opens the configured database, migrates it and returns a ledger with its
// cleanup func.
func InitLedger(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*Ledger, *entsql.Driver, func(), error) {
	drv, pool, err := Open(ctx, ConfigFrom(cfg), logger)
	if err != nil {
		return nil, nil, nil, common.ConfigFault("open ledger", err)
	}
	cleanup := func() { Close(drv, pool, logger) }

	if err := HealthCheck(ctx, drv, cfg.DialTimeout, logger); err != nil {
		cleanup()
		return nil, nil, nil, common.ConfigFault("ledger unreachable", err)
	}
	if err := Migrate(ctx, drv, logger); err != nil {
		cleanup()
		return nil, nil, nil, common.WrapError(err, "migrate ledger")
	}
	return NewLedger(drv, logger), drv, cleanup, nil
}

func (l *Ledger) StartRun(ctx context.Context, run entity.Run) (entity.Run, error) {
	return l.Runs.Start(ctx, run)
}

func (l *Ledger) FinishRun(ctx context.Context, run entity.Run) error {
	return l.Runs.Finish(ctx, run)
}

func (l *Ledger) StartFile(ctx context.Context, job entity.FileJob) (entity.FileJob, error) {
	return l.Files.Start(ctx, job)
}

func (l *Ledger) FinishFile(ctx context.Context, job entity.FileJob) error {
	return l.Files.Finish(ctx, job)
}
