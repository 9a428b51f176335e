package constants

import "strings"

// DocKind identifies which handler family a file belongs to.
type DocKind string

const (
	Drawing     DocKind = "DRAWING"
	Spreadsheet DocKind = "SPREADSHEET"
	Word        DocKind = "WORD"
	Sketch      DocKind = "SKETCH"
)

// DocKinds holds the kinds accepted in the file_jobs.kind column.
var DocKinds = []string{string(Drawing), string(Spreadsheet), string(Word), string(Sketch)}

// AllowedExtensions maps lowercased extensions (without '.') to their document kind.
var AllowedExtensions = map[string]DocKind{
	"dwg":  Drawing,
	"xls":  Spreadsheet,
	"xlsx": Spreadsheet,
	"xlsm": Spreadsheet,
	"doc":  Word,
	"docx": Word,
	"dotx": Word,
	"sha":  Sketch,
}

// LegacySpreadsheetExt is converted to OutputLegacySpreadsheetExt before rewriting.
const (
	LegacySpreadsheetExt       = "xls"
	OutputLegacySpreadsheetExt = "xlsm"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToKind returns the document kind for an extension, or "" when unsupported.
func MapExtToKind(ext string) DocKind {
	return AllowedExtensions[NormalizeExt(ext)]
}

// IsAllowedExt reports whether ext belongs to a supported document kind.
func IsAllowedExt(ext string) bool {
	return MapExtToKind(ext) != ""
}
