//go:build windows

package comauto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/joseph-ayodele/unitshift/constants"
	"github.com/joseph-ayodele/unitshift/internal/automation"
)

const sFalse = 1

// comInit pins the calling goroutine to its thread and joins the STA.
func comInit() error {
	runtime.LockOSThread()
	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if errors.As(err, &oleErr) && oleErr.Code() == sFalse {
			return nil
		}
		runtime.UnlockOSThread()
		return err
	}
	return nil
}

func comDone() {
	ole.CoUninitialize()
	runtime.UnlockOSThread()
}

func create(progID string) (*ole.IDispatch, error) {
	unk, err := oleutil.CreateObject(progID)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", progID, err)
	}
	defer unk.Release()
	disp, err := unk.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", progID, err)
	}
	return disp, nil
}

func getString(d *ole.IDispatch, prop string) (string, error) {
	v, err := oleutil.GetProperty(d, prop)
	if err != nil {
		return "", err
	}
	defer v.Clear()
	return v.ToString(), nil
}

func getBool(d *ole.IDispatch, prop string) (bool, error) {
	v, err := oleutil.GetProperty(d, prop)
	if err != nil {
		return false, err
	}
	defer v.Clear()
	b, _ := v.Value().(bool)
	return b, nil
}

func getDispatch(d *ole.IDispatch, prop string) (*ole.IDispatch, error) {
	v, err := oleutil.GetProperty(d, prop)
	if err != nil {
		return nil, err
	}
	disp := v.ToIDispatch()
	if disp == nil {
		return nil, fmt.Errorf("property %s is not an object", prop)
	}
	return disp, nil
}

// items collects a collection's members through its enumerator.
func items(coll *ole.IDispatch) ([]*ole.IDispatch, error) {
	var out []*ole.IDispatch
	err := oleutil.ForEach(coll, func(v *ole.VARIANT) error {
		if d := v.ToIDispatch(); d != nil {
			d.AddRef()
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

// indexed collects Item(1..Count); used where no enumerator is exposed.
func indexed(coll *ole.IDispatch) ([]*ole.IDispatch, error) {
	v, err := oleutil.GetProperty(coll, "Count")
	if err != nil {
		return nil, nil
	}
	n := toInt(v.Value())
	v.Clear()
	out := make([]*ole.IDispatch, 0, n)
	for i := 1; i <= n; i++ {
		iv, err := oleutil.CallMethod(coll, "Item", i)
		if err != nil {
			return out, err
		}
		if d := iv.ToIDispatch(); d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint32:
		return int(n)
	case int:
		return n
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	}
	return 0
}

// Launch starts a new application instance on the calling goroutine's thread.
func (l *Launcher) Launch(ctx context.Context) (automation.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := comInit(); err != nil {
		return nil, fmt.Errorf("com init: %w", err)
	}
	if l.kind == constants.Sketch && l.licensePath != "" {
		if err := os.Setenv("INGR_LICENSE_PATH", l.licensePath); err != nil {
			l.logger.Warn("license path not exported", "error", err)
		}
	}
	disp, err := create(l.progID)
	if err != nil {
		comDone()
		return nil, err
	}
	l.logger.Debug("application created")
	return &application{kind: l.kind, disp: disp, logger: l.logger}, nil
}

type application struct {
	kind   constants.DocKind
	disp   *ole.IDispatch
	logger *slog.Logger
}

func (a *application) Version() (string, error) {
	return getString(a.disp, "Version")
}

func (a *application) Open(path string) (automation.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	docs, err := getDispatch(a.disp, "Documents")
	if err != nil {
		return nil, err
	}
	defer docs.Release()
	v, err := oleutil.CallMethod(docs, "Open", abs)
	if err != nil {
		return nil, err
	}
	d := v.ToIDispatch()
	if d == nil {
		return nil, errors.New("open returned no document")
	}
	base := document{app: a.disp, disp: d}
	if a.kind == constants.Sketch {
		return &sketchDoc{document: base}, nil
	}
	return &drawingDoc{document: base, logger: a.logger}, nil
}

func (a *application) Quit() error {
	_, err := oleutil.CallMethod(a.disp, "Quit")
	a.disp.Release()
	comDone()
	return err
}

type document struct {
	app  *ole.IDispatch
	disp *ole.IDispatch
}

func (d *document) Name() (string, error) { return getString(d.disp, "Name") }

func (d *document) SaveAs(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	_, err = oleutil.CallMethod(d.disp, "SaveAs", abs)
	return err
}

func (d *document) Close(discard bool) error {
	_, err := oleutil.CallMethod(d.disp, "Close", !discard)
	d.disp.Release()
	return err
}

type drawingDoc struct {
	document
	logger *slog.Logger
}

// Prepare hides the window, silences file and command dialogs, turns autosave
// off and audits the drawing. Every step is best effort.
func (d *drawingDoc) Prepare() error {
	var errs []error
	if _, err := oleutil.PutProperty(d.app, "Visible", false); err != nil {
		errs = append(errs, fmt.Errorf("hide window: %w", err))
	}
	for _, cmd := range []string{
		"(setvar \"FILEDIA\" 0)\n",
		"(setvar \"CMDDIA\" 0)\n",
		"(setvar \"SAVETIME\" 0)\n",
		"_.AUDIT _Y\n",
	} {
		if _, err := oleutil.CallMethod(d.disp, "SendCommand", cmd); err != nil {
			errs = append(errs, fmt.Errorf("send %q: %w", cmd, err))
		}
	}
	return errors.Join(errs...)
}

func (d *drawingDoc) Scopes() ([]automation.Scope, error) {
	var out []automation.Scope

	ms, err := getDispatch(d.disp, "ModelSpace")
	if err != nil {
		return nil, fmt.Errorf("model space: %w", err)
	}
	out = append(out, &scope{name: "*Model_Space", kind: automation.ScopeModelSpace, coll: ms})

	blocks, err := getDispatch(d.disp, "Blocks")
	if err != nil {
		return nil, fmt.Errorf("blocks: %w", err)
	}
	defer blocks.Release()
	bl, err := items(blocks)
	if err != nil {
		return nil, fmt.Errorf("blocks: %w", err)
	}
	for _, b := range bl {
		name, _ := getString(b, "Name")
		isLayout, _ := getBool(b, "IsLayout")
		isXRef, _ := getBool(b, "IsXRef")
		out = append(out, &scope{name: name, kind: automation.ScopeBlock, layout: isLayout, xref: isXRef, coll: b})
	}

	layouts, err := getDispatch(d.disp, "Layouts")
	if err != nil {
		return nil, fmt.Errorf("layouts: %w", err)
	}
	defer layouts.Release()
	ll, err := items(layouts)
	if err != nil {
		return nil, fmt.Errorf("layouts: %w", err)
	}
	for _, l := range ll {
		name, _ := getString(l, "Name")
		blk, err := getDispatch(l, "Block")
		l.Release()
		if err != nil {
			continue
		}
		out = append(out, &scope{name: name, kind: automation.ScopeLayout, coll: blk})
	}
	return out, nil
}

type scope struct {
	name   string
	kind   automation.ScopeKind
	layout bool
	xref   bool
	coll   *ole.IDispatch
}

func (s *scope) Name() string               { return s.name }
func (s *scope) Kind() automation.ScopeKind { return s.kind }
func (s *scope) IsLayout() bool             { return s.layout }
func (s *scope) IsXRef() bool               { return s.xref }

func (s *scope) Nodes() ([]automation.Node, error) {
	ds, err := items(s.coll)
	if err != nil {
		return nil, err
	}
	out := make([]automation.Node, len(ds))
	for i, d := range ds {
		out[i] = &entity{disp: d}
	}
	return out, nil
}

// entity wraps any drawing entity; Classify decides which variant applies.
type entity struct {
	disp *ole.IDispatch
}

func (e *entity) ObjectName() (string, error) { return getString(e.disp, "ObjectName") }
func (e *entity) Text() (string, error)       { return getString(e.disp, "TextString") }

func (e *entity) SetText(s string) error {
	_, err := oleutil.PutProperty(e.disp, "TextString", s)
	return err
}

func (e *entity) Position() (automation.Point, error) {
	v, err := oleutil.GetProperty(e.disp, "InsertionPoint")
	if err != nil {
		return automation.Point{}, err
	}
	defer v.Clear()
	arr := v.ToArray()
	if arr == nil {
		return automation.Point{}, errors.New("insertion point is not an array")
	}
	vals := arr.ToValueArray()
	if len(vals) < 2 {
		return automation.Point{}, errors.New("insertion point has fewer than two coordinates")
	}
	return automation.Point{X: toFloat(vals[0]), Y: toFloat(vals[1])}, nil
}

func (e *entity) Delete() error {
	_, err := oleutil.CallMethod(e.disp, "Delete")
	return err
}

func (e *entity) Attributes() ([]automation.TextValue, error) {
	v, err := oleutil.CallMethod(e.disp, "GetAttributes")
	if err != nil {
		return nil, err
	}
	arr := v.ToArray()
	if arr == nil {
		return nil, nil
	}
	var out []automation.TextValue
	for _, x := range arr.ToValueArray() {
		if d, ok := x.(*ole.IDispatch); ok && d != nil {
			out = append(out, &entity{disp: d})
		}
	}
	return out, nil
}

type sketchDoc struct {
	document
}

func (d *sketchDoc) Sheets() ([]automation.Sheet, error) {
	coll, err := getDispatch(d.disp, "Sheets")
	if err != nil {
		return nil, err
	}
	defer coll.Release()
	ds, err := items(coll)
	if err != nil {
		return nil, err
	}
	out := make([]automation.Sheet, len(ds))
	for i, s := range ds {
		out[i] = &sheet{disp: s}
	}
	return out, nil
}

type sheet struct {
	disp *ole.IDispatch
}

func (s *sheet) Name() string {
	n, _ := getString(s.disp, "Name")
	return n
}

func (s *sheet) collection(prop string) ([]automation.GenericPropertyNode, error) {
	coll, err := getDispatch(s.disp, prop)
	if err != nil {
		// Sheets without the collection simply have nothing to rewrite.
		return nil, nil
	}
	defer coll.Release()
	ds, err := items(coll)
	if err != nil {
		return nil, err
	}
	out := make([]automation.GenericPropertyNode, len(ds))
	for i, d := range ds {
		out[i] = &item{disp: d}
	}
	return out, nil
}

func (s *sheet) TextBoxes() ([]automation.GenericPropertyNode, error) { return s.collection("TextBoxes") }
func (s *sheet) Groups() ([]automation.GenericPropertyNode, error)    { return s.collection("Groups") }

// item is a sketch object accessed by property name.
type item struct {
	disp *ole.IDispatch
}

func (i *item) ObjectName() (string, error) { return "SketchItem", nil }

func (i *item) Property(name string) (string, bool, error) {
	if _, err := i.disp.GetSingleIDOfName(name); err != nil {
		return "", false, nil
	}
	v, err := oleutil.GetProperty(i.disp, name)
	if err != nil {
		return "", true, err
	}
	defer v.Clear()
	if v.VT != ole.VT_BSTR {
		return "", false, nil
	}
	return v.ToString(), true, nil
}

func (i *item) SetProperty(name, value string) error {
	_, err := oleutil.PutProperty(i.disp, name, value)
	return err
}

func (i *item) Items() ([]automation.GenericPropertyNode, error) {
	ds, err := indexed(i.disp)
	out := make([]automation.GenericPropertyNode, len(ds))
	for j, d := range ds {
		out[j] = &item{disp: d}
	}
	return out, err
}

// ConvertWorkbook opens src in the spreadsheet application and saves it as an .xlsm at dst.
func (c *WorkbookConverter) ConvertWorkbook(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := comInit(); err != nil {
		return fmt.Errorf("com init: %w", err)
	}
	defer comDone()

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}

	excel, err := create(c.progID)
	if err != nil {
		return err
	}
	defer func() {
		if _, err := oleutil.CallMethod(excel, "Quit"); err != nil {
			c.logger.Warn("spreadsheet application quit failed", "error", err)
		}
		excel.Release()
	}()
	_, _ = oleutil.PutProperty(excel, "Visible", false)
	_, _ = oleutil.PutProperty(excel, "DisplayAlerts", false)

	books, err := getDispatch(excel, "Workbooks")
	if err != nil {
		return err
	}
	defer books.Release()
	v, err := oleutil.CallMethod(books, "Open", absSrc)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	wb := v.ToIDispatch()
	if wb == nil {
		return errors.New("open returned no workbook")
	}
	defer wb.Release()
	if _, err := oleutil.CallMethod(wb, "SaveAs", absDst, xlOpenXMLWorkbookMacroEnabled); err != nil {
		_, _ = oleutil.CallMethod(wb, "Close", false)
		return fmt.Errorf("save %s: %w", dst, err)
	}
	if _, err := oleutil.CallMethod(wb, "Close", false); err != nil {
		c.logger.Debug("workbook close failed", "error", err)
	}
	c.logger.Info("legacy workbook converted", "src", src, "dst", dst)
	return nil
}
