// Package automation declares the boundary between the mutation engine and the external
// editing applications it drives. Implementations live in comauto (Windows COM) and fake
// (tests); the core never talks to a live application except through these interfaces.
package automation

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupportedPlatform is returned by launchers on hosts without COM automation.
var ErrUnsupportedPlatform = errors.New("automation: COM automation is only available on windows")

// Launcher starts a fresh application instance.
type Launcher interface {
	Launch(ctx context.Context) (Application, error)
}

// ProcessKiller force-stops every process whose image name starts with prefix.
type ProcessKiller interface {
	KillByName(ctx context.Context, prefix string) error
}

// Application is a live editing application.
type Application interface {
	// Version is the lightweight readiness probe.
	Version() (string, error)
	Open(path string) (Document, error)
	Quit() error
}

// Document is an open document. Name doubles as the document readiness probe.
type Document interface {
	Name() (string, error)
	SaveAs(path string) error
	Close(discard bool) error
}

// Preparer is implemented by documents that accept session tuning after open
// (hidden window, dialogs and autosave off, structural recover).
type Preparer interface {
	Prepare() error
}

// Drawing is a CAD document exposing its structural containers.
type Drawing interface {
	Document
	Scopes() ([]Scope, error)
}

// Sketch is a drafting document exposing its sheets.
type Sketch interface {
	Document
	Sheets() ([]Sheet, error)
}

// ScopeKind tags the top-level container collections of a drawing.
type ScopeKind string

const (
	ScopeModelSpace ScopeKind = "model_space"
	ScopeBlock      ScopeKind = "block"
	ScopeLayout     ScopeKind = "layout"
)

// Scope is one container of drawing entities.
type Scope interface {
	Name() string
	Kind() ScopeKind
	// IsLayout reports a block definition that backs a layout sheet.
	IsLayout() bool
	IsXRef() bool
	Nodes() ([]Node, error)
}

// Sheet is one page of a sketch document.
type Sheet interface {
	Name() string
	TextBoxes() ([]GenericPropertyNode, error)
	Groups() ([]GenericPropertyNode, error)
}

// Point is a 2D insertion coordinate in drawing units.
type Point struct {
	X, Y float64
}

// Node is any entity in a live document graph.
type Node interface {
	ObjectName() (string, error)
}

// TextValue is a readable and writable string slot.
type TextValue interface {
	Text() (string, error)
	SetText(text string) error
}

// TextNode is plain or multiline text with an insertion point.
type TextNode interface {
	Node
	TextValue
	Position() (Point, error)
	Delete() error
}

// LeaderNode is leader text. It has no usable position and is never deleted.
type LeaderNode interface {
	Node
	TextValue
}

// AttributeHostNode is a block reference carrying a flat attribute collection.
type AttributeHostNode interface {
	Node
	Attributes() ([]TextValue, error)
}

// GenericPropertyNode exposes named string properties. ok is false when the node
// has no such property.
type GenericPropertyNode interface {
	Node
	Property(name string) (value string, ok bool, err error)
	SetProperty(name, value string) error
	Items() ([]GenericPropertyNode, error)
}

// NodeKind is the closed set of node variants the walkers understand.
type NodeKind string

const (
	KindUnknown       NodeKind = ""
	KindText          NodeKind = "text"
	KindLeader        NodeKind = "leader"
	KindAttributeHost NodeKind = "attribute_host"
	KindGeneric       NodeKind = "generic"
)

var objectNameKinds = map[string]NodeKind{
	"AcDbText":           KindText,
	"AcDbMText":          KindText,
	"AcDbMLeader":        KindLeader,
	"AcDbBlockReference": KindAttributeHost,
}

// KindForObjectName maps an automation object name to its variant.
func KindForObjectName(name string) NodeKind {
	return objectNameKinds[name]
}

// Classify resolves the variant of n. A node whose object name maps to a variant it
// does not implement is reported as unknown.
func Classify(n Node) (NodeKind, error) {
	name, err := n.ObjectName()
	if err != nil {
		return KindUnknown, err
	}
	kind := KindForObjectName(name)
	var ok bool
	switch kind {
	case KindText:
		_, ok = n.(TextNode)
	case KindLeader:
		_, ok = n.(LeaderNode)
	case KindAttributeHost:
		_, ok = n.(AttributeHostNode)
	default:
		_, ok = n.(GenericPropertyNode)
		if ok {
			kind = KindGeneric
		}
	}
	if !ok {
		return KindUnknown, nil
	}
	return kind, nil
}

// SketchItem tags the two item shapes found on a sketch sheet.
type SketchItem string

const (
	SketchTextBox   SketchItem = "text_box"
	SketchGroupItem SketchItem = "group_item"
)

// TextProperties lists, per sketch item shape, the properties that may carry text.
// Lookups go through this table; nothing is discovered by reflection.
var TextProperties = map[SketchItem][]string{
	SketchTextBox:   {"Text"},
	SketchGroupItem: {"Text", "TextString", "Caption", "Value", "String", "Content", "Name", "Label", "Description"},
}

// IsModelLayout reports the layout that mirrors model space, in either supported language.
func IsModelLayout(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "model", "модель":
		return true
	}
	return false
}

// WorkbookConverter turns a legacy binary workbook into a macro-enabled package.
type WorkbookConverter interface {
	ConvertWorkbook(ctx context.Context, src, dst string) error
}
