package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	debug      bool
	logFormat  string
	inmem      bool
)

var rootCmd = &cobra.Command{
	Use:   "unitshift",
	Short: "Renumber unit digits in engineering documents",
	Long: `unitshift rewrites the unit digit in drawings, sketches, workbooks and word documents
and deletes the stale tag clusters left behind in drawings.

Drawings and sketches are edited through their desktop applications; workbooks and word
documents are rewritten as packages. Every run is recorded in a ledger that the report
command can export.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every supported file of an input directory",
	Long: `Selects *.xls*, *.do*, *.dwg and *.sha files from --in, rewrites them with the new digit
and writes the results to --out together with log.txt and report.xlsx.

Example:
  unitshift run --digit 2 --in ./drawings --out ./drawings/out`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a recorded run as an XLSX workbook",
	Long: `Reads a run and its file jobs from the ledger and writes the report workbook.
Without --run the most recent run is exported.`,
	Args: cobra.NoArgs,
	RunE: exportReport,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML or JSON config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug-only messages")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "json or text (default json)")
	rootCmd.PersistentFlags().BoolVar(&inmem, "inmem", false, "keep the ledger in memory")

	runCmd.Flags().String("digit", "", "replacement digit 0-9")
	runCmd.Flags().String("in", "", "input directory")
	runCmd.Flags().String("out", "", "output directory")
	runCmd.Flags().String("report", "", "report workbook path (default <out>/report.xlsx)")
	runCmd.Flags().StringSlice("formats", nil, "only process these formats (dwg, excel, word, sha)")

	reportCmd.Flags().String("run", "", "run ID (default latest)")
	reportCmd.Flags().String("out", "report.xlsx", "report workbook path")

	rootCmd.AddCommand(runCmd, reportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if _, werr := fmt.Fprintln(os.Stderr, "Error:", err); werr != nil {
			fmt.Println("Error:", err)
		}
		os.Exit(1)
	}
}
