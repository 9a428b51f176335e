package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/unitshift/internal/common"
	"github.com/joseph-ayodele/unitshift/internal/core"
	"github.com/joseph-ayodele/unitshift/internal/export"
	"github.com/joseph-ayodele/unitshift/internal/ingest"
	"github.com/joseph-ayodele/unitshift/internal/repository"
)

const (
	runLogName    = "log.txt"
	reportName    = "report.xlsx"
	logFilePerms  = 0o644
	outputDirPerm = 0o755
)

// loadConfig layers defaults, the config file, the environment and finally the flags
// the user actually set.
func loadConfig(cmd *cobra.Command) (*common.Config, error) {
	cfg := common.LoadConfig()
	if configPath != "" {
		var err error
		if cfg, err = common.LoadConfigFile(configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	setString := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			if v, err := flags.GetString(name); err == nil {
				*dst = v
			}
		}
	}
	setString("digit", &cfg.Run.ReplacementDigit)
	setString("in", &cfg.Run.InputDir)
	setString("out", &cfg.Run.OutputDir)
	setString("report", &cfg.Run.ReportPath)
	if flags.Lookup("formats") != nil && flags.Changed("formats") {
		if v, err := flags.GetStringSlice("formats"); err == nil {
			cfg.Run.Formats = v
		}
	}
	if debug {
		cfg.Run.Debug = true
	}
	if logFormat != "" {
		cfg.Run.LogFormat = logFormat
	}
	if inmem {
		cfg.Database.InMemory = true
	}
	return cfg, nil
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	kinds, err := cfg.Kinds()
	if err != nil {
		return err
	}

	outDir := cfg.Run.OutputDir
	if err := os.MkdirAll(outDir, outputDirPerm); err != nil {
		return common.ConfigFault("create output dir", err)
	}
	logFile, err := os.OpenFile(filepath.Join(outDir, runLogName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerms)
	if err != nil {
		return common.ConfigFault("open run log", err)
	}
	defer logFile.Close()

	logger := common.NewLogger(os.Stdout, cfg.Run.LogFormat, cfg.Run.Debug, logFile)
	slog.SetDefault(logger)

	files, err := ingest.SelectFiles(cfg.Run.InputDir, kinds)
	if err != nil {
		return common.ConfigFault("select input files", err)
	}
	logger.Info("files selected", "input_dir", cfg.Run.InputDir, "count", len(files))
	if len(files) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no supported files in %s\n", cfg.Run.InputDir)
		return nil
	}

	ledger, _, cleanup, err := repository.InitLedger(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	handlers, err := core.DefaultHandlers(cfg.Automation, cfg.Run.ReplacementDigit, logger)
	if err != nil {
		return err
	}
	errOut := cmd.ErrOrStderr()
	processor, err := core.NewProcessor(logger, cfg.Run.ReplacementDigit, handlers,
		core.WithLedger(ledger),
		core.WithProgress(func(done, total int, r core.FileResult) {
			fmt.Fprintf(errOut, "[%d/%d] %-9s %s\n", done, total, r.Status, filepath.Base(r.Source))
		}),
	)
	if err != nil {
		return err
	}

	res, runErr := processor.ProcessAll(ctx, files, outDir)

	reportPath := cfg.Run.ReportPath
	if reportPath == "" {
		reportPath = filepath.Join(outDir, reportName)
	}
	if err := writeReport(cmd, export.NewService(ledger.Runs, ledger.Files, logger), res.RunID, reportPath); err != nil {
		logger.Warn("report not written", "path", reportPath, "error", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "processed %d/%d\n", res.Succeeded(), len(res.Files))
	for _, f := range res.Files {
		if !f.Succeeded() {
			fmt.Fprintf(out, "- %s: %v\n", filepath.Base(f.Source), f.Err)
		}
	}
	fmt.Fprintf(out, "results: %s\n", outDir)
	return runErr
}

func exportReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := common.NewLogger(os.Stderr, cfg.Run.LogFormat, cfg.Run.Debug)

	runID := uuid.Nil
	if s, _ := cmd.Flags().GetString("run"); s != "" {
		if err := common.NewValidator().Field("run", s, common.UUID).Error(); err != nil {
			return err
		}
		runID = uuid.MustParse(s)
	}
	path, _ := cmd.Flags().GetString("out")

	ledger, _, cleanup, err := repository.InitLedger(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return writeReport(cmd, export.NewService(ledger.Runs, ledger.Files, logger), runID, path)
}

func writeReport(cmd *cobra.Command, svc *export.Service, runID uuid.UUID, path string) error {
	// An interrupted run is still reported.
	xlsx, err := svc.RunReportXLSX(context.WithoutCancel(cmd.Context()), runID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, xlsx, logFilePerms); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report: %s\n", path)
	return nil
}
