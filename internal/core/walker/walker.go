// Package walker traverses live application object graphs, rewriting identifier text
// and collecting stale stamps for deletion.
package walker

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/unitshift/internal/automation"
	"github.com/joseph-ayodele/unitshift/internal/core/retry"
	"github.com/joseph-ayodele/unitshift/internal/core/rules"
)

// Result counts what a walk did to one document.
type Result struct {
	Nodes        int
	Replacements int
	Skipped      int
	Ignored      int
	Deleted      int
	DeleteFailed int
}

// Changed reports whether the document was modified.
func (r Result) Changed() bool {
	return r.Replacements > 0 || r.Deleted > 0
}

type base struct {
	engine *rules.Engine
	policy retry.Policy
	logger *slog.Logger
}

func newBase(engine *rules.Engine, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{engine: engine, policy: retry.Node, logger: logger}
}

// rewrite applies the rules to text and writes the result back when it changed.
func (b base) rewrite(ctx context.Context, slot automation.TextValue, text, location string, res *Result) {
	out, changed := b.engine.Changed(text)
	if !changed {
		return
	}
	err := retry.Do(ctx, b.policy, func(int) error { return slot.SetText(out) })
	if err != nil {
		b.logger.Warn("text write failed", "location", location, "text", text, "error", err)
		res.Skipped++
		return
	}
	res.Replacements++
	b.logger.Debug("replaced", "location", location, "from", text, "to", out)
}

func (b base) readText(ctx context.Context, slot automation.TextValue) (string, error) {
	return retry.Value(ctx, b.policy, func(int) (string, error) { return slot.Text() })
}
