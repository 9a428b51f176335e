// Package cluster groups stale-stamp candidates by horizontal line and deletes the
// lines that carry more than one of them.
package cluster

import (
	"log/slog"
	"math"
	"sort"
)

const (
	// DefaultTolerance is the y-distance, in drawing units, folded into one line.
	DefaultTolerance = 0.1
	// DefaultMinGroupSize is the smallest group that gets deleted. Singletons survive.
	DefaultMinGroupSize = 2
)

// Deletable is anything that can remove itself from its document.
type Deletable interface {
	Delete() error
}

// Candidate is a text node flagged on its pre-rewrite text.
type Candidate struct {
	Node Deletable
	Text string
	X, Y float64
}

// Key is the rounded line coordinate shared by a group.
type Key float64

// Group is the candidates on one line, ordered by ascending x.
type Group struct {
	Key        Key
	Candidates []Candidate
}

// Report summarises one Finalize call.
type Report struct {
	Deleted  []Candidate
	Retained []Candidate
	Failed   []Candidate
}

// Aggregator collects candidates for one document. Build a fresh one per document.
type Aggregator struct {
	tolerance float64
	minGroup  int
	buckets   map[int64][]Candidate
	done      bool
	logger    *slog.Logger
}

// New returns an aggregator. Non-positive arguments fall back to the defaults.
func New(tolerance float64, minGroupSize int, logger *slog.Logger) *Aggregator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if minGroupSize <= 0 {
		minGroupSize = DefaultMinGroupSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		tolerance: tolerance,
		minGroup:  minGroupSize,
		buckets:   make(map[int64][]Candidate),
		logger:    logger,
	}
}

// NewDefault uses DefaultTolerance and DefaultMinGroupSize.
func NewDefault(logger *slog.Logger) *Aggregator {
	return New(DefaultTolerance, DefaultMinGroupSize, logger)
}

// bucket rounds half to even, like the line grouping always has.
func (a *Aggregator) bucket(y float64) int64 {
	return int64(math.RoundToEven(y / a.tolerance))
}

// KeyFor returns the line key y falls on.
func (a *Aggregator) KeyFor(y float64) Key {
	return Key(float64(a.bucket(y)) * a.tolerance)
}

// Register adds a candidate. Candidates registered after Finalize are ignored.
func (a *Aggregator) Register(c Candidate) {
	if a.done {
		a.logger.Warn("cluster candidate after finalize ignored", "text", c.Text)
		return
	}
	b := a.bucket(c.Y)
	a.buckets[b] = append(a.buckets[b], c)
	a.logger.Debug("delete candidate", "text", c.Text, "x", c.X, "y", c.Y, "key", float64(b)*a.tolerance)
}

// Len is the number of registered candidates.
func (a *Aggregator) Len() int {
	n := 0
	for _, cs := range a.buckets {
		n += len(cs)
	}
	return n
}

// Groups returns the current groups ordered by key, members by ascending x.
func (a *Aggregator) Groups() []Group {
	keys := make([]int64, 0, len(a.buckets))
	for k := range a.buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	groups := make([]Group, 0, len(keys))
	for _, k := range keys {
		cs := append([]Candidate(nil), a.buckets[k]...)
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].X < cs[j].X })
		groups = append(groups, Group{Key: Key(float64(k) * a.tolerance), Candidates: cs})
	}
	return groups
}

// Finalize deletes every group of at least the minimum size and clears the state.
// A failed delete is logged and the rest of the group still goes. Calling Finalize
// twice returns an empty report the second time.
func (a *Aggregator) Finalize() Report {
	var rep Report
	if a.done {
		return rep
	}
	for _, g := range a.Groups() {
		if len(g.Candidates) < a.minGroup {
			a.logger.Debug("single stamp on line retained", "key", float64(g.Key), "text", g.Candidates[0].Text)
			rep.Retained = append(rep.Retained, g.Candidates...)
			continue
		}
		texts := make([]string, len(g.Candidates))
		for i, c := range g.Candidates {
			texts[i] = c.Text
		}
		a.logger.Info("deleting stamp group", "key", float64(g.Key), "texts", texts)
		for _, c := range g.Candidates {
			if err := c.Node.Delete(); err != nil {
				a.logger.Warn("stamp delete failed", "text", c.Text, "x", c.X, "y", c.Y, "error", err)
				rep.Failed = append(rep.Failed, c)
				continue
			}
			rep.Deleted = append(rep.Deleted, c)
		}
	}
	a.buckets = nil
	a.done = true
	return rep
}
