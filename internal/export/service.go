package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/unitshift/internal/entity"
	"github.com/joseph-ayodele/unitshift/internal/repository"
)

const (
	summarySheet = "Summary"
	filesSheet   = "Files"
)

// Service is a tiny façade over the ledger repositories that produces XLSX run reports.
type Service struct {
	runs   repository.RunRepository
	files  repository.FileJobRepository
	logger *slog.Logger
}

func NewService(runs repository.RunRepository, files repository.FileJobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, files: files, logger: logger}
}

// RunReportXLSX returns a workbook (as bytes) with a summary sheet and one row per file
// job of the run. uuid.Nil selects the most recent run.
func (s *Service) RunReportXLSX(ctx context.Context, runID uuid.UUID) ([]byte, error) {
	start := time.Now()

	var (
		run entity.Run
		err error
	)
	if runID == uuid.Nil {
		run, err = s.runs.Latest(ctx)
	} else {
		run, err = s.runs.Get(ctx, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	jobs, err := s.files.ListByRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query file jobs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(filesSheet); err != nil {
		return nil, err
	}

	writeSummary(f, run)
	writeFiles(f, jobs)

	if idx, err := f.GetSheetIndex(filesSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"run_id", run.ID.String(),
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, run entity.Run) {
	rows := [][2]any{
		{"Run ID", run.ID.String()},
		{"Replacement digit", run.ReplacementDigit},
		{"Input directory", run.InputDir},
		{"Output directory", run.OutputDir},
		{"Started", stamp(&run.StartedAt)},
		{"Finished", stamp(run.FinishedAt)},
		{"Processed", fmt.Sprintf("%d/%d", run.Succeeded, run.Succeeded+run.Failed)},
		{"Status", run.Status},
	}
	for i, r := range rows {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), r[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), r[1])
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)
	_ = f.SetColWidth(summarySheet, "B", "B", 60)
}

func writeFiles(f *excelize.File, jobs []entity.FileJob) {
	headers := []string{
		"File",
		"Output",
		"Kind",
		"Status",
		"Attempts",
		"Replacements",
		"Deletions",
		"Error",
		"Started",
		"Finished",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(filesSheet, cell, h)
	}

	for n, j := range jobs {
		row := n + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(filesSheet, cell, v)
		}
		write(1, filepath.Base(j.SourcePath))
		out := ""
		if j.OutputPath != "" {
			out = filepath.Base(j.OutputPath)
		}
		write(2, out)
		write(3, j.Kind)
		write(4, j.Status)
		write(5, j.Attempts)
		write(6, j.Replacements)
		write(7, j.Deletions)
		msg := ""
		if j.ErrorMessage != nil {
			msg = truncate(*j.ErrorMessage, 200)
		}
		write(8, msg)
		write(9, stamp(&j.StartedAt))
		write(10, stamp(j.FinishedAt))
	}

	_ = f.SetColWidth(filesSheet, "A", "B", 40) // names
	_ = f.SetColWidth(filesSheet, "C", "D", 14)
	_ = f.SetColWidth(filesSheet, "E", "G", 12) // counters
	_ = f.SetColWidth(filesSheet, "H", "H", 60)
	_ = f.SetColWidth(filesSheet, "I", "J", 20)
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
