package constants

import (
	"strings"
)

var allKinds = []DocKind{
	Drawing,
	Spreadsheet,
	Word,
	Sketch,
}

// AsStringSlice lists every document kind.
func AsStringSlice() []string {
	result := make([]string, len(allKinds))
	for i, k := range allKinds {
		result[i] = string(k)
	}
	return result
}

// Canonicalize maps a user-supplied format filter ("excel", "dwg", "Word") to a DocKind.
func Canonicalize(input string) (DocKind, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]DocKind{
		"autocad":     Drawing,
		"cad":         Drawing,
		"excel":       Spreadsheet,
		"xls":         Spreadsheet,
		"workbook":    Spreadsheet,
		"docx":        Word,
		"document":    Word,
		"smartsketch": Sketch,
		"sha":         Sketch,
	}

	if k, ok := synonyms[normalized]; ok {
		return k, true
	}
	if k := MapExtToKind(normalized); k != "" {
		return k, true
	}

	// check if it matches any kind string
	for _, k := range allKinds {
		if normalized == strings.ToLower(string(k)) {
			return k, true
		}
	}

	return "", false
}
