package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/unitshift/constants"
)

// AllowedExt checks if a file extension belongs to a supported document kind.
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden reports dot files and office lock files ("~$report.docx").
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$")
}
