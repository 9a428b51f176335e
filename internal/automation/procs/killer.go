package procs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Killer force-stops processes through the platform's kill command.
type Killer struct {
	runner Runner
	goos   string
	settle time.Duration
	logger *slog.Logger
}

// NewKiller returns a killer for the running platform. A nil runner runs real commands.
func NewKiller(runner Runner, logger *slog.Logger) *Killer {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Killer{runner: runner, goos: runtime.GOOS, settle: time.Second, logger: logger}
}

// exitCoder is satisfied by *exec.ExitError.
type exitCoder interface {
	ExitCode() int
}

// noMatchCode is the exit status of the kill command when no process matched.
func noMatchCode(goos string) int {
	if goos == "windows" {
		return 128
	}
	return 1
}

// Command returns the kill invocation for prefix on goos.
func Command(goos, prefix string) (string, []string) {
	if goos == "windows" {
		return "taskkill", []string{"/F", "/T", "/IM", prefix + "*"}
	}
	return "pkill", []string{"-f", "^" + prefix}
}

// KillByName stops every process whose name starts with prefix. Finding nothing
// to stop is not an error.
func (k *Killer) KillByName(ctx context.Context, prefix string) error {
	name, args := Command(k.goos, prefix)
	_, _, err := k.runner.Run(ctx, name, k.logger, args...)
	if err != nil {
		var exitErr exitCoder
		if errors.As(err, &exitErr) && exitErr.ExitCode() == noMatchCode(k.goos) {
			k.logger.Debug("no stray processes", "prefix", prefix)
			return nil
		}
		return fmt.Errorf("%s %s: %w", name, prefix, err)
	}
	k.logger.Info("stray processes stopped", "prefix", prefix)
	if k.settle > 0 {
		t := time.NewTimer(k.settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
