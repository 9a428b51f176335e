package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/unitshift/constants"
	"github.com/joseph-ayodele/unitshift/internal/common"
)

// Report placeholder used by sketch title blocks. Only the record index changes.
const (
	revisionPlaceholderOld = `<?xml version="1.0"?><body><intstgxml stream="Revision" select="/Revision/RevisionRecord[last()-0]/MajorRev_ForRevise" alt="C01"/><intstgxml stream="Revision" select="/Revision/RevisionRecord[last()-0]/MinorRev_ForRevise" alt=""/></body>`
	revisionPlaceholderNew = `<?xml version="1.0"?><body><intstgxml stream="Revision" select="/Revision/RevisionRecord[last()-10]/MajorRev_ForRevise" alt="C01"/><intstgxml stream="Revision" select="/Revision/RevisionRecord[last()-10]/MinorRev_ForRevise" alt=""/></body>`
)

const (
	unicodeDigit = `\p{Nd}`
	unicodeSpace = `[\s\x0b\x1c-\x1f\x85\p{Z}]`
)

// rule compiles a table entry. \d, \s and \b keep their Unicode meaning; \b may only
// appear at either end of expr (after an optional (?i)).
func rule(name, expr string, rw Rewrite) Rule {
	flags := ""
	if strings.HasPrefix(expr, "(?i)") {
		flags, expr = "(?i)", strings.TrimPrefix(expr, "(?i)")
	}
	var bounds Boundary
	if strings.HasPrefix(expr, `\b`) {
		bounds |= BoundLeft
		expr = strings.TrimPrefix(expr, `\b`)
	}
	if strings.HasSuffix(expr, `\b`) && !strings.HasSuffix(expr, `\\b`) {
		bounds |= BoundRight
		expr = strings.TrimSuffix(expr, `\b`)
	}
	expr = strings.NewReplacer(`\d`, unicodeDigit, `\s`, unicodeSpace).Replace(expr)
	return Rule{Name: name, Pattern: regexp.MustCompile(flags + expr), Rewrite: rw, Bounds: bounds}
}

// dropFirstRune: s without its leading character.
func dropFirstRune(s string) string {
	_, size := utf8.DecodeRuneInString(s)
	return s[size:]
}

// keepGroupThenDigit: "<group 1><digit>".
func keepGroupThenDigit(d string) Rewrite {
	return func(g []string) string { return g[1] + d }
}

// digitThenGroup: "<digit><group n>".
func digitThenGroup(d string, n int) Rewrite {
	return func(g []string) string { return d + g[n] }
}

// replaceLeadingDigit swaps the first character of the whole match.
func replaceLeadingDigit(d string) Rewrite {
	return func(g []string) string { return d + dropFirstRune(g[0]) }
}

// Drawing builds the rule set for CAD drawings.
func Drawing(digit string) (*Engine, error) {
	if err := common.ValidateDigit(digit); err != nil {
		return nil, err
	}
	return NewEngine(
		rule("structured-code", `\b(ED\.D\.[A-Z]\d{3}\.)\d\b`, keepGroupThenDigit(digit)),
		rule("kks-full", `\b\d\d[A-Z]{3}\d\d[A-Z]{1,2}\d{3,4}\b`, replaceLeadingDigit(digit)),
		rule("kks-parenthesised", `\((\d{2}[A-Z]{3,})\)`, func(g []string) string {
			return "(" + digit + dropFirstRune(g[1]) + ")"
		}),
		rule("kks-short", `\b\d\d[A-Z]{3}\d\d\b`, replaceLeadingDigit(digit)),
		rule("unit-system", `(?i)\b([0-9])0([A-Z]{3})\b`, func(g []string) string {
			return digit + "0" + g[2]
		}),
		rule("revision", `C0[2-9]\b`, Literal("C01")),
		rule("unit-label", `(?i)(Unit )\d\b`, keepGroupThenDigit(digit)),
		rule("unit-label-ru", `(?i)(Блок )\d\b`, keepGroupThenDigit(digit)),
	), nil
}

// Spreadsheet builds the rule set for workbook cells, shared strings and header/footer codes.
func Spreadsheet(digit string) (*Engine, error) {
	if err := common.ValidateDigit(digit); err != nil {
		return nil, err
	}
	return NewEngine(
		rule("structured-code", `\b(ED\.D\.[A-Z]\d\d\d\.)\d`, keepGroupThenDigit(digit)),
		rule("unit-system", `(?i)\b([0-9])(0[A-Z]{3})`, digitThenGroup(digit, 2)),
		rule("header-revision-sized", `&R&11C0[2-9]\b`, Literal("&R&11C01")),
		rule("header-revision", `&RC0[2-9]\b`, Literal("&RC01")),
		rule("footer-code", `((?:&[LCR](?:&\d{2})?)?ED\.D\.[A-Z]\d\d\d\.)\d`, keepGroupThenDigit(digit)),
	), nil
}

// Word builds the rule set for word-processor parts.
func Word(digit string) (*Engine, error) {
	if err := common.ValidateDigit(digit); err != nil {
		return nil, err
	}
	set := []Rule{
		rule("structured-code", `\b(ED\.D\.[A-Z]\d\d\d\.)\d\b`, keepGroupThenDigit(digit)),
		rule("unit-system", `(?i)\b([0-9])0([A-Z]{3})\b`, func(g []string) string {
			return digit + "0" + g[2]
		}),
		rule("revision", `C0[2-9]\b`, Literal("C01")),
		rule("unit-label", `(?i)(Unit\s*)\d\b`, keepGroupThenDigit(digit)),
		rule("unit-label-ru", `(?i)(блока №\s*)\d\b`, keepGroupThenDigit(digit)),
	}
	// Units 3 and 4 share the W-series building code.
	if digit == "3" || digit == "4" {
		set = append(set, rule("building-series", `\bED\.B\.P000\.S\b`, Literal("ED.B.P000.W")))
	}
	return NewEngine(set...), nil
}

// Sketch builds the rule set for drafting sheets.
func Sketch(digit string) (*Engine, error) {
	if err := common.ValidateDigit(digit); err != nil {
		return nil, err
	}
	return NewEngine(
		rule("structured-code", `(ED\.D\.[A-Z]\d{3}\.)(\d)`, keepGroupThenDigit(digit)),
		rule("masked-kks", `([1-9])(0&&&&&[A-Z]{2}\d{4})`, digitThenGroup(digit, 2)),
		rule("unit-system", `([1-9])(0[A-Z]{3})`, digitThenGroup(digit, 2)),
		Rule{Name: "revision-placeholder", Pattern: regexp.MustCompile(regexp.QuoteMeta(revisionPlaceholderOld)), Rewrite: Literal(revisionPlaceholderNew)},
		rule("revision", `\bC0[2-9]\b`, Literal("C01")),
	), nil
}

// For returns the rule set for a document kind.
func For(kind constants.DocKind, digit string) (*Engine, error) {
	switch kind {
	case constants.Drawing:
		return Drawing(digit)
	case constants.Spreadsheet:
		return Spreadsheet(digit)
	case constants.Word:
		return Word(digit)
	case constants.Sketch:
		return Sketch(digit)
	default:
		return nil, common.ConfigFault(fmt.Sprintf("no rule set for kind %q", kind), common.ErrInvalidInput)
	}
}
