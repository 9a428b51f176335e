package walker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/unitshift/internal/automation"
	"github.com/joseph-ayodele/unitshift/internal/core/retry"
	"github.com/joseph-ayodele/unitshift/internal/core/rules"
)

// maxGroupDepth bounds group recursion on sketch sheets.
const maxGroupDepth = 3

// SketchWalker rewrites text boxes and grouped items on every sheet.
// Sketch items are never delete candidates.
type SketchWalker struct {
	base
}

func NewSketch(engine *rules.Engine, logger *slog.Logger) *SketchWalker {
	return &SketchWalker{base: newBase(engine, logger)}
}

func (w *SketchWalker) Walk(ctx context.Context, doc automation.Sketch) (Result, error) {
	var res Result
	sheets, err := retry.Value(ctx, w.policy, func(int) ([]automation.Sheet, error) { return doc.Sheets() })
	if err != nil {
		return res, fmt.Errorf("enumerate sheets: %w", err)
	}
	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		location := fmt.Sprintf("sheet %d/%d %s", i+1, len(sheets), sheet.Name())
		w.logger.Debug("walking sheet", "location", location)

		boxes, err := sheet.TextBoxes()
		if err != nil {
			w.logger.Warn("text boxes skipped", "location", location, "error", err)
		}
		for j, box := range boxes {
			res.Nodes++
			w.rewriteProps(ctx, box, automation.SketchTextBox, fmt.Sprintf("%s text box %d", location, j+1), &res)
		}

		groups, err := sheet.Groups()
		if err != nil {
			w.logger.Warn("groups skipped", "location", location, "error", err)
		}
		for j, g := range groups {
			w.walkGroup(ctx, g, fmt.Sprintf("%s group %d", location, j+1), 0, &res)
		}
	}
	return res, nil
}

func (w *SketchWalker) walkGroup(ctx context.Context, g automation.GenericPropertyNode, location string, depth int, res *Result) {
	if depth > maxGroupDepth {
		return
	}
	items, err := g.Items()
	if err != nil {
		w.logger.Debug("group items unreadable", "location", location, "error", err)
		return
	}
	for i, item := range items {
		itemLoc := fmt.Sprintf("%s item %d", location, i+1)
		res.Nodes++
		w.rewriteProps(ctx, item, automation.SketchGroupItem, itemLoc, res)
		w.walkGroup(ctx, item, itemLoc, depth+1, res)
	}
}

// rewriteProps rewrites each text-bearing property the item shape is known to carry.
func (w *SketchWalker) rewriteProps(ctx context.Context, n automation.GenericPropertyNode, shape automation.SketchItem, location string, res *Result) {
	for _, prop := range automation.TextProperties[shape] {
		var present bool
		val, err := retry.Value(ctx, w.policy, func(int) (string, error) {
			v, ok, err := n.Property(prop)
			present = ok
			return v, err
		})
		if err != nil {
			w.logger.Debug("property unreadable", "location", location, "property", prop, "error", err)
			continue
		}
		if !present || strings.TrimSpace(val) == "" {
			continue
		}
		w.rewrite(ctx, propertySlot{n, prop}, val, location+"."+prop, res)
	}
}

// propertySlot adapts one named property to a TextValue.
type propertySlot struct {
	node automation.GenericPropertyNode
	name string
}

func (p propertySlot) Text() (string, error) {
	v, _, err := p.node.Property(p.name)
	return v, err
}

func (p propertySlot) SetText(v string) error { return p.node.SetProperty(p.name, v) }
