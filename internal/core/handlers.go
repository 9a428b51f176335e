package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/unitshift/constants"
	"github.com/joseph-ayodele/unitshift/internal/automation"
	"github.com/joseph-ayodele/unitshift/internal/automation/comauto"
	"github.com/joseph-ayodele/unitshift/internal/automation/procs"
	"github.com/joseph-ayodele/unitshift/internal/common"
	"github.com/joseph-ayodele/unitshift/internal/core/ooxml"
	"github.com/joseph-ayodele/unitshift/internal/core/rules"
	"github.com/joseph-ayodele/unitshift/internal/core/session"
	"github.com/joseph-ayodele/unitshift/internal/core/walker"
)

// Outcome is what one successful pass over a file did.
type Outcome struct {
	Replacements int
	Deletions    int
	// Saved is false when nothing changed and the handler does not write unchanged copies.
	Saved bool
}

// Handler processes the files of one document kind.
type Handler interface {
	Process(ctx context.Context, src, dst string) (Outcome, error)
	// Recover resets the handler between attempts on the same file.
	Recover(ctx context.Context) error
	// Shutdown releases any live application. It is safe to call on an idle handler.
	Shutdown(ctx context.Context) error
}

type walkFunc func(ctx context.Context, doc automation.Document) (walker.Result, error)

// sessionHandler runs open, walk, save, close against a live application session.
type sessionHandler struct {
	session       *session.Manager
	walk          walkFunc
	saveUnchanged bool
	logger        *slog.Logger
}

// NewDrawingHandler walks CAD drawings. Drawings are always saved.
func NewDrawingHandler(s *session.Manager, w *walker.DrawingWalker, logger *slog.Logger) Handler {
	return newSessionHandler(s, true, logger, func(ctx context.Context, doc automation.Document) (walker.Result, error) {
		d, ok := doc.(automation.Drawing)
		if !ok {
			return walker.Result{}, common.Structural("document is not a drawing", common.ErrInvalidInput)
		}
		return w.Walk(ctx, d)
	})
}

// NewSketchHandler walks sketch documents. A sketch is saved only when something changed.
func NewSketchHandler(s *session.Manager, w *walker.SketchWalker, logger *slog.Logger) Handler {
	return newSessionHandler(s, false, logger, func(ctx context.Context, doc automation.Document) (walker.Result, error) {
		d, ok := doc.(automation.Sketch)
		if !ok {
			return walker.Result{}, common.Structural("document is not a sketch", common.ErrInvalidInput)
		}
		return w.Walk(ctx, d)
	})
}

func newSessionHandler(s *session.Manager, saveUnchanged bool, logger *slog.Logger, walk walkFunc) *sessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionHandler{session: s, walk: walk, saveUnchanged: saveUnchanged, logger: logger}
}

func (h *sessionHandler) Process(ctx context.Context, src, dst string) (Outcome, error) {
	if err := h.session.EnsureReady(ctx); err != nil {
		return Outcome{}, err
	}
	doc, err := h.session.OpenDocument(ctx, src)
	if err != nil {
		return Outcome{}, err
	}

	res, err := h.walk(ctx, doc)
	if err != nil {
		h.discard()
		return Outcome{}, err
	}
	out := Outcome{Replacements: res.Replacements, Deletions: res.Deleted}

	if res.Changed() || h.saveUnchanged {
		if err := doc.SaveAs(dst); err != nil {
			h.discard()
			return out, common.Transient("save "+dst, err)
		}
		out.Saved = true
	} else {
		h.logger.Info("no changes, output not written", "path", src,
			"run_id", common.RunIDFromContext(ctx), "job_id", common.JobIDFromContext(ctx))
	}

	// The output is on disk at this point; a failed close only costs the session.
	if err := h.session.CloseDocument(true); err != nil {
		h.logger.Warn("close after save failed", "path", src, "error", err)
	}
	return out, nil
}

func (h *sessionHandler) discard() {
	if err := h.session.CloseDocument(true); err != nil {
		h.logger.Debug("discard failed", "error", err)
	}
}

func (h *sessionHandler) Recover(ctx context.Context) error {
	return h.session.Recover(ctx)
}

func (h *sessionHandler) Shutdown(ctx context.Context) error {
	return h.session.Shutdown(ctx)
}

// packageHandler rewrites spreadsheet and word packages directly, without a live
// application. Legacy workbooks go through converter first.
type packageHandler struct {
	rewriter  *ooxml.Rewriter
	converter automation.WorkbookConverter
	logger    *slog.Logger
}

// NewPackageHandler wraps a rewriter. converter may be nil when legacy workbooks are
// not expected; they then fail with a config fault.
func NewPackageHandler(rw *ooxml.Rewriter, converter automation.WorkbookConverter, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &packageHandler{rewriter: rw, converter: converter, logger: logger}
}

func (h *packageHandler) Process(ctx context.Context, src, dst string) (Outcome, error) {
	in := src
	if constants.NormalizeExt(filepath.Ext(src)) == constants.LegacySpreadsheetExt {
		tmp, err := os.MkdirTemp("", "unitshift-xls-")
		if err != nil {
			return Outcome{}, common.Transient("temp dir", err)
		}
		defer os.RemoveAll(tmp)

		in = filepath.Join(tmp, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+"."+constants.OutputLegacySpreadsheetExt)
		if err := h.convert(ctx, src, in); err != nil {
			return Outcome{}, err
		}
		h.logger.Debug("legacy workbook converted", "from", src, "to", in)
	}

	st, err := h.rewriter.RewriteFile(ctx, in, dst)
	out := Outcome{Replacements: st.Replacements + st.MergedRuns, Deletions: st.Blanked}
	if err != nil {
		h.logger.Debug("package rewrite failed", "path", src, "job_id", common.JobIDFromContext(ctx), "error", err)
		return out, err
	}
	out.Saved = true
	return out, nil
}

func (h *packageHandler) convert(ctx context.Context, src, dst string) error {
	if h.converter == nil {
		return common.ConfigFault("no converter for legacy workbook "+src, common.ErrInvalidInput)
	}
	err := h.converter.ConvertWorkbook(ctx, src, dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, automation.ErrUnsupportedPlatform):
		return common.ConfigFault("convert "+src, err)
	default:
		return common.Transient("convert "+src, err)
	}
}

// Package rewrites hold no live state.
func (h *packageHandler) Recover(context.Context) error  { return nil }
func (h *packageHandler) Shutdown(context.Context) error { return nil }

// DefaultHandlers wires the production handlers for every supported kind: COM sessions
// for drawings and sketches, direct package rewrites for spreadsheets and word documents.
func DefaultHandlers(cfg common.AutomationConfig, digit string, logger *slog.Logger) (map[constants.DocKind]Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	killer := procs.NewKiller(procs.ExecRunner{}, logger)
	handlers := make(map[constants.DocKind]Handler, 4)

	for _, kind := range []constants.DocKind{constants.Spreadsheet, constants.Word} {
		engine, err := rules.For(kind, digit)
		if err != nil {
			return nil, err
		}
		rw, err := ooxml.NewRewriter(kind, engine, logger)
		if err != nil {
			return nil, err
		}
		var conv automation.WorkbookConverter
		if kind == constants.Spreadsheet {
			conv = comauto.NewWorkbookConverter(cfg.SpreadsheetProgID, logger)
		}
		handlers[kind] = NewPackageHandler(rw, conv, logger.With("kind", string(kind)))
	}

	drawingRules, err := rules.Drawing(digit)
	if err != nil {
		return nil, err
	}
	dlog := logger.With("kind", string(constants.Drawing))
	handlers[constants.Drawing] = NewDrawingHandler(
		session.New(dlog, comauto.NewLauncher(constants.Drawing, cfg.DrawingProgID, "", dlog), killer, cfg.DrawingProcess),
		walker.NewDrawing(drawingRules, dlog),
		dlog,
	)

	sketchRules, err := rules.Sketch(digit)
	if err != nil {
		return nil, err
	}
	slg := logger.With("kind", string(constants.Sketch))
	handlers[constants.Sketch] = NewSketchHandler(
		session.New(slg, comauto.NewLauncher(constants.Sketch, cfg.SketchProgID, cfg.LicensePath, slg), killer, cfg.SketchProcess),
		walker.NewSketch(sketchRules, slg),
		slg,
	)
	return handlers, nil
}
