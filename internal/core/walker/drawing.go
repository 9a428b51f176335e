package walker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/unitshift/internal/automation"
	"github.com/joseph-ayodele/unitshift/internal/core/cluster"
	"github.com/joseph-ayodele/unitshift/internal/core/retry"
	"github.com/joseph-ayodele/unitshift/internal/core/rules"
)

// DrawingWalker visits model space, plain block definitions and paper layouts.
type DrawingWalker struct {
	base
	tolerance float64
	minGroup  int
}

// NewDrawing returns a walker using the default cluster policy.
func NewDrawing(engine *rules.Engine, logger *slog.Logger) *DrawingWalker {
	return &DrawingWalker{
		base:      newBase(engine, logger),
		tolerance: cluster.DefaultTolerance,
		minGroup:  cluster.DefaultMinGroupSize,
	}
}

// Walk rewrites every reachable text node of doc and deletes co-lined stale stamps.
// Only a failure to enumerate the scopes fails the walk; node and scope failures are
// logged and skipped.
func (w *DrawingWalker) Walk(ctx context.Context, doc automation.Drawing) (Result, error) {
	var res Result
	scopes, err := retry.Value(ctx, w.policy, func(int) ([]automation.Scope, error) { return doc.Scopes() })
	if err != nil {
		return res, fmt.Errorf("enumerate scopes: %w", err)
	}

	agg := cluster.New(w.tolerance, w.minGroup, w.logger)
	for _, s := range ordered(scopes) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		w.walkScope(ctx, s, agg, &res)
	}

	rep := agg.Finalize()
	res.Deleted = len(rep.Deleted)
	res.DeleteFailed = len(rep.Failed)
	return res, nil
}

// ordered keeps model space first, then blocks, then layouts, dropping the scopes
// that are never edited.
func ordered(scopes []automation.Scope) []automation.Scope {
	var model, blocks, layouts []automation.Scope
	for _, s := range scopes {
		switch s.Kind() {
		case automation.ScopeModelSpace:
			model = append(model, s)
		case automation.ScopeBlock:
			if s.IsLayout() || s.IsXRef() {
				continue
			}
			blocks = append(blocks, s)
		case automation.ScopeLayout:
			if automation.IsModelLayout(s.Name()) {
				continue
			}
			layouts = append(layouts, s)
		}
	}
	out := append(model, blocks...)
	return append(out, layouts...)
}

func (w *DrawingWalker) walkScope(ctx context.Context, s automation.Scope, agg *cluster.Aggregator, res *Result) {
	location := string(s.Kind()) + " " + s.Name()
	nodes, err := retry.Value(ctx, w.policy, func(int) ([]automation.Node, error) { return s.Nodes() })
	if err != nil {
		w.logger.Warn("scope skipped", "location", location, "error", err)
		return
	}
	w.logger.Debug("walking scope", "location", location, "nodes", len(nodes))
	for _, n := range nodes {
		res.Nodes++
		w.visit(ctx, n, location, agg, res)
	}
}

func (w *DrawingWalker) visit(ctx context.Context, n automation.Node, location string, agg *cluster.Aggregator, res *Result) {
	kind, err := retry.Value(ctx, w.policy, func(int) (automation.NodeKind, error) { return automation.Classify(n) })
	if err != nil {
		w.logger.Warn("node without object name skipped", "location", location, "error", err)
		res.Skipped++
		return
	}

	switch kind {
	case automation.KindText:
		w.visitText(ctx, n.(automation.TextNode), location, agg, res)
	case automation.KindLeader:
		leader := n.(automation.LeaderNode)
		text, err := w.readText(ctx, leader)
		if err != nil {
			w.logger.Warn("leader skipped", "location", location, "error", err)
			res.Skipped++
			return
		}
		w.rewrite(ctx, leader, text, location+" (leader)", res)
	case automation.KindAttributeHost:
		w.visitAttributes(ctx, n.(automation.AttributeHostNode), location, res)
	default:
		res.Ignored++
	}
}

func (w *DrawingWalker) visitText(ctx context.Context, n automation.TextNode, location string, agg *cluster.Aggregator, res *Result) {
	text, err := w.readText(ctx, n)
	if err != nil {
		w.logger.Warn("text node skipped", "location", location, "error", err)
		res.Skipped++
		return
	}
	pos, err := retry.Value(ctx, w.policy, func(int) (automation.Point, error) { return n.Position() })
	if err != nil {
		w.logger.Warn("text node without position skipped", "location", location, "error", err)
		res.Skipped++
		return
	}
	// Classification sees the text as read, before any rewrite.
	if rules.IsDeleteCandidate(text) {
		agg.Register(cluster.Candidate{Node: n, Text: text, X: pos.X, Y: pos.Y})
	}
	w.rewrite(ctx, n, text, location, res)
}

func (w *DrawingWalker) visitAttributes(ctx context.Context, n automation.AttributeHostNode, location string, res *Result) {
	attrs, err := retry.Value(ctx, w.policy, func(int) ([]automation.TextValue, error) { return n.Attributes() })
	if err != nil {
		w.logger.Warn("block attributes skipped", "location", location, "error", err)
		res.Skipped++
		return
	}
	for i, a := range attrs {
		text, err := w.readText(ctx, a)
		if err != nil {
			w.logger.Warn("attribute skipped", "location", location, "index", i, "error", err)
			res.Skipped++
			continue
		}
		w.rewrite(ctx, a, text, fmt.Sprintf("%s attribute %d", location, i), res)
	}
}
