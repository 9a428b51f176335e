// Package fake provides in-memory automation doubles for tests.
package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/joseph-ayodele/unitshift/internal/automation"
)

// ErrCOM stands in for an automation call failure.
var ErrCOM = errors.New("fake: automation call failed")

// Launcher hands out Apps in order; once exhausted it keeps returning the last one.
// Errs, when set, is consumed first: each non-nil entry fails one launch.
type Launcher struct {
	mu       sync.Mutex
	Apps     []*Application
	Errs     []error
	Launches int
}

func (l *Launcher) Launch(ctx context.Context) (automation.Application, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Launches++
	if len(l.Errs) > 0 {
		err := l.Errs[0]
		l.Errs = l.Errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(l.Apps) == 0 {
		return nil, errors.New("fake: no application configured")
	}
	app := l.Apps[0]
	if len(l.Apps) > 1 {
		l.Apps = l.Apps[1:]
	}
	app.Launched++
	return app, nil
}

// Killer records force-stop requests.
type Killer struct {
	mu    sync.Mutex
	Calls []string
	Err   error
}

func (k *Killer) KillByName(ctx context.Context, prefix string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Calls = append(k.Calls, prefix)
	return k.Err
}

// Application serves documents by path.
type Application struct {
	// VersionFailures makes the first n readiness probes fail; -1 fails forever.
	VersionFailures int
	Docs            map[string]automation.Document
	// OpenErrs is consumed one entry per Open call.
	OpenErrs []error
	QuitErr  error

	Launched int
	Opened   []string
	Quits    int
	probes   int
}

func (a *Application) Version() (string, error) {
	a.probes++
	if a.VersionFailures < 0 || a.probes <= a.VersionFailures {
		return "", ErrCOM
	}
	return "24.1", nil
}

func (a *Application) Open(path string) (automation.Document, error) {
	a.Opened = append(a.Opened, path)
	if len(a.OpenErrs) > 0 {
		err := a.OpenErrs[0]
		a.OpenErrs = a.OpenErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	doc, ok := a.Docs[path]
	if !ok {
		return nil, errors.New("fake: no document at " + path)
	}
	return doc, nil
}

func (a *Application) Quit() error {
	a.Quits++
	return a.QuitErr
}

// Doc carries the bookkeeping shared by Drawing and Sketch.
type Doc struct {
	DocName string
	// NameFailures makes the first n readiness probes fail; -1 fails forever.
	NameFailures int
	SaveErr      error
	CloseErr     error

	SavedTo    []string
	Closes     int
	Discarded  bool
	Prepared   int
	PrepareErr error
	probes     int
}

func (d *Doc) Name() (string, error) {
	d.probes++
	if d.NameFailures < 0 || d.probes <= d.NameFailures {
		return "", ErrCOM
	}
	return d.DocName, nil
}

func (d *Doc) SaveAs(path string) error {
	if d.SaveErr != nil {
		return d.SaveErr
	}
	d.SavedTo = append(d.SavedTo, path)
	return nil
}

func (d *Doc) Close(discard bool) error {
	d.Closes++
	d.Discarded = discard
	return d.CloseErr
}

func (d *Doc) Prepare() error {
	d.Prepared++
	return d.PrepareErr
}

// Drawing is a CAD document double.
type Drawing struct {
	Doc
	ScopeList []automation.Scope
	// ScopesErr fails every enumeration; ScopesFailures fails only the first n.
	ScopesErr      error
	ScopesFailures int
	scopeCalls     int
}

func (d *Drawing) Scopes() ([]automation.Scope, error) {
	d.scopeCalls++
	if d.ScopesErr != nil {
		return nil, d.ScopesErr
	}
	if d.scopeCalls <= d.ScopesFailures {
		return nil, ErrCOM
	}
	return d.ScopeList, nil
}

// Scope is a drawing container double.
type Scope struct {
	ScopeName string
	ScopeKind automation.ScopeKind
	Layout    bool
	XRef      bool
	NodeList  []automation.Node
	NodesErr  error
	Visits    int
}

func (s *Scope) Name() string               { return s.ScopeName }
func (s *Scope) Kind() automation.ScopeKind { return s.ScopeKind }
func (s *Scope) IsLayout() bool             { return s.Layout }
func (s *Scope) IsXRef() bool               { return s.XRef }

func (s *Scope) Nodes() ([]automation.Node, error) {
	s.Visits++
	if s.NodesErr != nil {
		return nil, s.NodesErr
	}
	return s.NodeList, nil
}

// Text is a text entity double. ReadErr fails every text read.
type Text struct {
	Object    string
	Value     string
	At        automation.Point
	ReadErr   error
	PosErr    error
	WriteErr  error
	DeleteErr error

	Reads   int
	Writes  []string
	Deleted bool
}

// NewText builds a single-line text entity at (x, y).
func NewText(value string, x, y float64) *Text {
	return &Text{Object: "AcDbText", Value: value, At: automation.Point{X: x, Y: y}}
}

func (t *Text) ObjectName() (string, error) { return t.Object, nil }

func (t *Text) Text() (string, error) {
	t.Reads++
	if t.ReadErr != nil {
		return "", t.ReadErr
	}
	return t.Value, nil
}

func (t *Text) SetText(v string) error {
	if t.WriteErr != nil {
		return t.WriteErr
	}
	t.Value = v
	t.Writes = append(t.Writes, v)
	return nil
}

func (t *Text) Position() (automation.Point, error) {
	if t.PosErr != nil {
		return automation.Point{}, t.PosErr
	}
	return t.At, nil
}

func (t *Text) Delete() error {
	if t.DeleteErr != nil {
		return t.DeleteErr
	}
	t.Deleted = true
	return nil
}

// Leader is a leader text double.
type Leader struct {
	Value string
}

func (l *Leader) ObjectName() (string, error) { return "AcDbMLeader", nil }
func (l *Leader) Text() (string, error)       { return l.Value, nil }
func (l *Leader) SetText(v string) error      { l.Value = v; return nil }

// Attribute is one block attribute value.
type Attribute struct {
	Value   string
	ReadErr error
}

func (a *Attribute) Text() (string, error) {
	if a.ReadErr != nil {
		return "", a.ReadErr
	}
	return a.Value, nil
}

func (a *Attribute) SetText(v string) error { a.Value = v; return nil }

// BlockRef is a block reference double.
type BlockRef struct {
	Attrs    []*Attribute
	AttrsErr error
}

func (b *BlockRef) ObjectName() (string, error) { return "AcDbBlockReference", nil }

func (b *BlockRef) Attributes() ([]automation.TextValue, error) {
	if b.AttrsErr != nil {
		return nil, b.AttrsErr
	}
	out := make([]automation.TextValue, len(b.Attrs))
	for i, a := range b.Attrs {
		out[i] = a
	}
	return out, nil
}

// Opaque is a node the walkers do not understand.
type Opaque struct {
	Object  string
	NameErr error
}

func (o *Opaque) ObjectName() (string, error) { return o.Object, o.NameErr }

// Sketch is a drafting document double.
type Sketch struct {
	Doc
	SheetList []automation.Sheet
	SheetsErr error
}

func (s *Sketch) Sheets() ([]automation.Sheet, error) {
	return s.SheetList, s.SheetsErr
}

// Sheet is a sketch sheet double.
type Sheet struct {
	SheetName string
	Boxes     []automation.GenericPropertyNode
	GroupList []automation.GenericPropertyNode
}

func (s *Sheet) Name() string { return s.SheetName }
func (s *Sheet) TextBoxes() ([]automation.GenericPropertyNode, error) {
	return s.Boxes, nil
}
func (s *Sheet) Groups() ([]automation.GenericPropertyNode, error) {
	return s.GroupList, nil
}

// Item is a sketch item double with named string properties.
type Item struct {
	Props    map[string]string
	Children []automation.GenericPropertyNode
	SetErr   error
}

// NewItem builds an item from alternating name/value pairs.
func NewItem(kv ...string) *Item {
	it := &Item{Props: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		it.Props[kv[i]] = kv[i+1]
	}
	return it
}

func (i *Item) ObjectName() (string, error) { return "SketchItem", nil }

func (i *Item) Property(name string) (string, bool, error) {
	v, ok := i.Props[name]
	return v, ok, nil
}

func (i *Item) SetProperty(name, value string) error {
	if i.SetErr != nil {
		return i.SetErr
	}
	i.Props[name] = value
	return nil
}

func (i *Item) Items() ([]automation.GenericPropertyNode, error) {
	return i.Children, nil
}
