package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/unitshift/constants"
	"github.com/joseph-ayodele/unitshift/internal/common"
)

func mustEngine(t *testing.T, kind constants.DocKind, digit string) *Engine {
	t.Helper()
	e, err := For(kind, digit)
	require.NoError(t, err)
	return e
}

func TestDrawingRules(t *testing.T) {
	cases := []struct {
		name  string
		digit string
		in    string
		want  string
	}{
		{"structured code keeps prefix", "7", "ED.D.A123.4", "ED.D.A123.7"},
		{"full kks replaces leading digit only", "3", "10UKD12A345", "30UKD12A345"},
		{"short kks", "4", "10UKD12", "40UKD12"},
		{"parenthesised kks", "2", "(10UKD)", "(20UKD)"},
		{"unit system code", "5", "see 10KTC here", "see 50KTC here"},
		{"revision C05", "1", "C05", "C01"},
		{"revision C09", "1", "C09", "C01"},
		{"revision C01 untouched", "9", "C01", "C01"},
		{"revision needs trailing boundary", "1", "C020", "C020"},
		{"unit label", "2", "Unit 1", "Unit 2"},
		{"unit label keeps case", "2", "UNIT 3", "UNIT 2"},
		{"localized unit label", "2", "Блок 1", "Блок 2"},
		{"localized unit label lower case", "4", "блок 1", "блок 4"},
		{"no match", "3", "GENERAL NOTES", "GENERAL NOTES"},
		{"empty", "3", "", ""},
		{"several rules on one string", "2", "ED.D.P010.1 C03 Unit 1", "ED.D.P010.2 C01 Unit 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := mustEngine(t, constants.Drawing, tc.digit)
			assert.Equal(t, tc.want, e.Apply(tc.in))
		})
	}
}

func TestSpreadsheetRules(t *testing.T) {
	e := mustEngine(t, constants.Spreadsheet, "2")
	assert.Equal(t, "&R&11C01", e.Apply("&R&11C03"))
	assert.Equal(t, "&RC01", e.Apply("&RC05"))
	assert.Equal(t, "&L&08ED.D.P000.2", e.Apply("&L&08ED.D.P000.1"))
	assert.Equal(t, "ED.D.P000.2", e.Apply("ED.D.P000.1"))
	assert.Equal(t, "20UKD", e.Apply("10UKD"))
	// Bare revision codes in cells are left alone in workbooks.
	assert.Equal(t, "C05", e.Apply("C05"))
}

func TestWordRules(t *testing.T) {
	e3 := mustEngine(t, constants.Word, "3")
	assert.Equal(t, "ED.B.P000.W", e3.Apply("ED.B.P000.S"))
	assert.Equal(t, "Unit3", e3.Apply("Unit1"))
	assert.Equal(t, "блока № 3", e3.Apply("блока № 2"))
	assert.Equal(t, "C01", e3.Apply("C04"))

	e1 := mustEngine(t, constants.Word, "1")
	assert.Equal(t, "ED.B.P000.S", e1.Apply("ED.B.P000.S"))
}

func TestSketchRules(t *testing.T) {
	e := mustEngine(t, constants.Sketch, "3")
	assert.Equal(t, "30&&&&&BQ2200", e.Apply("10&&&&&BQ2200"))
	assert.Equal(t, "ED.D.P000.3", e.Apply("ED.D.P000.1"))
	assert.Equal(t, "30KTC", e.Apply("20KTC"))
	assert.Equal(t, "C01", e.Apply("C07"))
	assert.Equal(t, revisionPlaceholderNew, e.Apply(revisionPlaceholderOld))
	// The placeholder migration does not depend on the digit.
	assert.Equal(t, revisionPlaceholderNew, mustEngine(t, constants.Sketch, "1").Apply(revisionPlaceholderOld))
}

func TestApplyIsIdempotent(t *testing.T) {
	inputs := []string{
		"ED.D.A123.4", "10UKD12A345", "(10UKD)", "C05", "Unit 1", "Блок 2",
		"ED.D.P010.1 C03 Unit 1", "&R&11C03", "10&&&&&BQ2200",
	}
	for _, kind := range []constants.DocKind{constants.Drawing, constants.Spreadsheet, constants.Word, constants.Sketch} {
		e := mustEngine(t, kind, "6")
		for _, in := range inputs {
			once := e.Apply(in)
			assert.Equal(t, once, e.Apply(once), "kind=%s input=%q", kind, in)
		}
	}
}

func TestInvalidDigitRejected(t *testing.T) {
	for _, d := range []string{"", "10", "a", "-1", " 1"} {
		_, err := Drawing(d)
		require.Error(t, err, "digit %q", d)
		assert.Equal(t, common.FaultConfig, common.KindOf(err))
	}
	_, err := For("PDF", "1")
	require.Error(t, err)
}

func TestNilEnginePassesThrough(t *testing.T) {
	var e *Engine
	assert.Equal(t, "C05", e.Apply("C05"))
}

func TestIsDeleteCandidate(t *testing.T) {
	yes := []string{"C00", "C02", "C09", "-", "-----", "Repl.", "Зам.", "12345-67", "1234-56", "12.34", "12.3456", "C02\n", "１２.３４", "１２３４-５６"}
	no := []string{"", "C10", "C02 ", "Repl", "Зам", "123-45", "1.23", "12.34567", "NOTE", "C0"}
	for _, s := range yes {
		assert.True(t, IsDeleteCandidate(s), "%q", s)
	}
	for _, s := range no {
		assert.False(t, IsDeleteCandidate(s), "%q", s)
	}
}

func TestWordBoundariesAreUnicodeAware(t *testing.T) {
	cases := []struct {
		name string
		kind constants.DocKind
		in   string
		want string
	}{
		{"cyrillic letter after unit digit", constants.Drawing, "Блок 3А", "Блок 3А"},
		{"lowercase cyrillic after unit digit", constants.Drawing, "Unit 3б", "Unit 3б"},
		{"kks glued to cyrillic word", constants.Drawing, "шифр10UKD12A345", "шифр10UKD12A345"},
		{"system code glued to cyrillic letter", constants.Drawing, "ы10KTC", "ы10KTC"},
		{"cyrillic unit label still rewritten", constants.Drawing, "Блок 3", "Блок 7"},
		{"system code after space", constants.Drawing, "ы 10KTC", "ы 70KTC"},
		{"kks after punctuation", constants.Drawing, "«10UKD12A345»", "«70UKD12A345»"},
		{"full-width digits in parenthesised kks", constants.Drawing, "(１０UKD)", "(7０UKD)"},
		{"no-break space in unit label", constants.Word, "Unit\u00a01", "Unit\u00a07"},
		{"full-width unit digit", constants.Word, "Unit ３", "Unit 7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mustEngine(t, tc.kind, "7").Apply(tc.in))
		})
	}
}

func TestBoundedRuleRetriesPastRejectedStart(t *testing.T) {
	e := NewEngine(rule("pair", `\b\d\d\b`, Literal("##")))
	assert.Equal(t, "ж12 ## ##", e.Apply("ж12 34 56"))
	assert.Equal(t, "ж12", e.Apply("ж12"))
}
