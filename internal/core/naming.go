package core

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/unitshift/constants"
)

var structuredName = regexp.MustCompile(`(ED\.D\.[A-Z]\d{3}\.)(\d)`)

// OutputName derives the output file name for src:
//   - a name starting with a digit gets that digit replaced
//   - an ED.D. document number gets its trailing revision digit replaced
//   - anything else is prefixed with "processed_"
//
// Legacy .xls workbooks come out as .xlsm.
func OutputName(src, digit string) string {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	if r, size := utf8.DecodeRuneInString(stem); size > 0 && unicode.IsDigit(r) {
		stem = digit + stem[size:]
	} else if strings.HasPrefix(stem, "ED.D.") {
		stem = structuredName.ReplaceAllString(stem, "${1}"+digit)
	} else {
		stem = "processed_" + stem
	}

	if constants.NormalizeExt(ext) == constants.LegacySpreadsheetExt {
		ext = "." + constants.OutputLegacySpreadsheetExt
	}
	return stem + ext
}

// OutputPath joins OutputName onto outDir.
func OutputPath(src, outDir, digit string) string {
	return filepath.Join(outDir, OutputName(src, digit))
}
