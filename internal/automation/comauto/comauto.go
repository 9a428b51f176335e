// Package comauto drives the desktop editing applications over COM automation.
// Only Windows hosts can launch anything; elsewhere the launcher and converter
// report automation.ErrUnsupportedPlatform.
package comauto

import (
	"log/slog"

	"github.com/joseph-ayodele/unitshift/constants"
)

// Launcher creates application instances for one document kind.
type Launcher struct {
	kind        constants.DocKind
	progID      string
	licensePath string
	logger      *slog.Logger
}

// NewLauncher returns a launcher for constants.Drawing or constants.Sketch.
// licensePath, when set, is exported as INGR_LICENSE_PATH before a sketch launch.
func NewLauncher(kind constants.DocKind, progID, licensePath string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{kind: kind, progID: progID, licensePath: licensePath, logger: logger.With("prog_id", progID)}
}

// WorkbookConverter saves legacy workbooks as macro-enabled packages through the
// spreadsheet application.
type WorkbookConverter struct {
	progID string
	logger *slog.Logger
}

func NewWorkbookConverter(progID string, logger *slog.Logger) *WorkbookConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookConverter{progID: progID, logger: logger}
}

// xlOpenXMLWorkbookMacroEnabled is the SaveAs file format for .xlsm.
const xlOpenXMLWorkbookMacroEnabled = 52
