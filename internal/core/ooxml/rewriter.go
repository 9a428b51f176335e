package ooxml

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/unitshift/constants"
	"github.com/joseph-ayodele/unitshift/internal/common"
	"github.com/joseph-ayodele/unitshift/internal/core/rules"
)

// Stats counts what a rewrite did to one package.
type Stats struct {
	Parts         int
	ChangedParts  int
	SkippedParts  int
	Replacements  int
	MergedRuns    int
	RevisionTable int
	Blanked       int
}

// Changed reports whether anything in the package was modified.
func (s Stats) Changed() bool { return s.ChangedParts > 0 }

// Rewriter applies a rule set to the text-bearing parts of a spreadsheet or word package.
type Rewriter struct {
	kind   constants.DocKind
	engine *rules.Engine
	logger *slog.Logger
}

// NewRewriter accepts Spreadsheet and Word kinds only.
func NewRewriter(kind constants.DocKind, engine *rules.Engine, logger *slog.Logger) (*Rewriter, error) {
	if kind != constants.Spreadsheet && kind != constants.Word {
		return nil, common.ConfigFault(fmt.Sprintf("no package rewriter for %s", kind), common.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{kind: kind, engine: engine, logger: logger.With("kind", string(kind))}, nil
}

// Targets selects the parts to rewrite, fixed names first, then matches in archive order.
func (r *Rewriter) Targets(names []string) []string {
	var fixed, prefixes []string
	switch r.kind {
	case constants.Spreadsheet:
		fixed = []string{"xl/sharedStrings.xml"}
		prefixes = []string{"xl/worksheets/sheet"}
	case constants.Word:
		fixed = []string{"word/document.xml", "docProps/core.xml"}
		prefixes = []string{"word/header", "word/footer"}
	}
	seen := map[string]bool{}
	out := append([]string(nil), fixed...)
	for _, f := range fixed {
		seen[f] = true
	}
	for _, n := range names {
		if seen[n] {
			continue
		}
		for _, p := range prefixes {
			if strings.HasPrefix(n, p) {
				out = append(out, n)
				seen[n] = true
				break
			}
		}
	}
	return out
}

// Rewrite edits the targeted parts of p in place. Missing, empty and malformed parts
// are logged and left alone.
func (r *Rewriter) Rewrite(p *Package) Stats {
	var st Stats
	for _, name := range r.Targets(p.Names()) {
		data, err := p.Read(name)
		if err != nil || len(data) == 0 {
			r.logger.Debug("part skipped (missing or empty)", "part", name)
			st.SkippedParts++
			continue
		}
		st.Parts++
		tree, err := Parse(data)
		if err != nil {
			r.logger.Warn("part left unchanged (malformed xml)", "part", name,
				"error", common.Structural("parse "+name, err))
			st.SkippedParts++
			continue
		}

		st.Replacements += rewriteSegments(tree, r.engine)
		if r.kind == constants.Word {
			st.MergedRuns += mergeRuns(tree, r.engine)
			tables, blanked := blankRevisionTables(tree)
			if tables > 0 {
				r.logger.Info("revision history table cleared", "part", name, "runs", blanked)
			}
			st.RevisionTable += tables
			st.Blanked += blanked
		}

		if !tree.Changed() {
			continue
		}
		if err := p.Replace(name, tree.Bytes()); err != nil {
			r.logger.Warn("part replace failed", "part", name, "error", err)
			continue
		}
		st.ChangedParts++
		r.logger.Debug("part changed", "part", name)
	}
	return st
}

// RewriteFile reads in, rewrites it and writes the result to out. Workbooks are
// reopened after writing to make sure they still load; one that does not is removed.
func (r *Rewriter) RewriteFile(ctx context.Context, in, out string) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	p, err := OpenPackage(in)
	if err != nil {
		return Stats{}, common.Structural("read package "+in, err)
	}
	st := r.Rewrite(p)
	if err := p.Save(out); err != nil {
		return st, common.Transient("write package "+out, err)
	}
	if r.kind == constants.Spreadsheet {
		if err := VerifyWorkbook(out); err != nil {
			if rerr := os.Remove(out); rerr != nil {
				r.logger.Warn("remove unreadable output failed", "path", out, "error", rerr)
			}
			return st, common.Structural("verify "+out, err)
		}
	}
	return st, nil
}
