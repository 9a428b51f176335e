package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFlagsOverrideFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unitshift.yaml")
	require.NoError(t, os.WriteFile(path, []byte("replacement_digit: \"3\"\ninput_dir: /from/file\noutput_dir: /from/file/out\n"), 0o644))
	t.Setenv("OUTPUT_DIR", "/from/env")

	configPath = path
	inmem = true
	t.Cleanup(func() {
		configPath, inmem = "", false
		resetFlags("digit", "formats")
	})
	require.NoError(t, runCmd.Flags().Set("digit", "8"))
	require.NoError(t, runCmd.Flags().Set("formats", "dwg,sha"))

	cfg, err := loadConfig(runCmd)
	require.NoError(t, err)
	assert.Equal(t, "8", cfg.Run.ReplacementDigit)
	assert.Equal(t, "/from/file", cfg.Run.InputDir)
	assert.Equal(t, "/from/env", cfg.Run.OutputDir)
	assert.Equal(t, []string{"dwg", "sha"}, cfg.Run.Formats)
	assert.True(t, cfg.Database.InMemory)
}

func TestRunWithoutSupportedFiles(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, runLogName), []byte("earlier run\n"), 0o644))

	prev := slog.Default()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"run", "--digit", "2", "--in", in, "--out", out, "--inmem"})
	t.Cleanup(func() {
		slog.SetDefault(prev)
		rootCmd.SetArgs(nil)
		inmem = false
		resetFlags("digit", "in", "out")
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "no supported files")

	// The run log accumulates across runs.
	log, err := os.ReadFile(filepath.Join(out, runLogName))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(log), "earlier run\n"), "%s", log)
	assert.Contains(t, string(log), "files selected")
}

func resetFlags(names ...string) {
	for _, name := range names {
		f := runCmd.Flags().Lookup(name)
		if f.Value.Type() != "stringSlice" {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
}

func TestLedgerCommandListsRuns(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ledger", "--limit", "5"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "ledger health: OK")
	assert.Contains(t, buf.String(), "runs: 0")
}
