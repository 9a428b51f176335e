package ooxml

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/unitshift/constants"
	"github.com/joseph-ayodele/unitshift/internal/core/rules"
)

var revPattern = regexp.MustCompile(`C0[2-9]\b`)

type member struct {
	name string
	body string
}

func buildZip(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		method := zip.Deflate
		if strings.HasSuffix(m.name, ".bin") {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: m.name, Method: method})
		require.NoError(t, err)
		_, err = w.Write([]byte(m.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func wordEngine(t *testing.T, digit string) *rules.Engine {
	t.Helper()
	e, err := rules.Word(digit)
	require.NoError(t, err)
	return e
}

func wdoc(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
}

func TestMergeRunsJoinsSplitRevision(t *testing.T) {
	tree, err := Parse([]byte(wdoc(`<w:p><w:r><w:t>Rev C0</w:t></w:r><w:r><w:t>5</w:t></w:r></w:p>`)))
	require.NoError(t, err)
	e := wordEngine(t, "1")

	assert.Zero(t, rewriteSegments(tree, e))
	assert.Equal(t, 1, mergeRuns(tree, e))
	ts := tree.Root().Find(nsWord, "t")
	assert.Equal(t, "Rev C0", ts[0].Text())
	assert.Equal(t, "1", ts[1].Text())
}

func TestMergeRunsOverflowGoesToLastRun(t *testing.T) {
	tree, err := Parse([]byte(wdoc(`<w:p><w:r><w:t>xa</w:t></w:r><w:r><w:t>by</w:t></w:r><w:r><w:t>z</w:t></w:r></w:p>`)))
	require.NoError(t, err)
	e := rules.NewEngine(rules.Rule{Name: "grow", Pattern: regexp.MustCompile(`ab`), Rewrite: rules.Literal("ABCD")})

	assert.Equal(t, 1, mergeRuns(tree, e))
	ts := tree.Root().Find(nsWord, "t")
	// "xABCDyz" cut at 2 and 2 runes, remainder to the last run.
	assert.Equal(t, "xA", ts[0].Text())
	assert.Equal(t, "BC", ts[1].Text())
	assert.Equal(t, "Dyz", ts[2].Text())
}

func TestMergeRunsCountsRunes(t *testing.T) {
	tree, err := Parse([]byte(wdoc(`<w:p><w:r><w:t>Блок </w:t></w:r><w:r><w:t>C0</w:t></w:r><w:r><w:t>7 ок</w:t></w:r></w:p>`)))
	require.NoError(t, err)
	mergeRuns(tree, wordEngine(t, "2"))
	ts := tree.Root().Find(nsWord, "t")
	assert.Equal(t, "Блок ", ts[0].Text())
	assert.Equal(t, "C0", ts[1].Text())
	assert.Equal(t, "1 ок", ts[2].Text())
}

func revisionTable(rows ...string) string {
	var b strings.Builder
	b.WriteString(`<w:tbl><w:tblPr/>`)
	for _, r := range rows {
		b.WriteString(`<w:tr><w:tc><w:p><w:r><w:t>` + r + `</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t> </w:t></w:r></w:p></w:tc></w:tr>`)
	}
	b.WriteString(`</w:tbl>`)
	return b.String()
}

func TestBlankRevisionTables(t *testing.T) {
	body := `<w:p><w:r><w:t>Record  of</w:t></w:r><w:r><w:t> Revisions</w:t></w:r></w:p>` +
		`<w:p/>` +
		revisionTable("Rev", "No.", "C02", "C03") +
		`<w:p><w:r><w:t>other</w:t></w:r></w:p>` +
		revisionTable("keep", "keep", "keep")
	tree, err := Parse([]byte(wdoc(body)))
	require.NoError(t, err)

	tables, blanked := blankRevisionTables(tree)
	assert.Equal(t, 1, tables)
	assert.Equal(t, 2, blanked)

	tbls := tree.Root().Find(nsWord, "tbl")
	first := tbls[0].Find(nsWord, "t")
	assert.Equal(t, "Rev", first[0].Text())
	assert.Equal(t, "No.", first[2].Text())
	assert.Equal(t, "", first[4].Text())
	assert.Equal(t, "", first[6].Text())
	// Blank cells stay as they were.
	assert.Equal(t, " ", first[5].Text())
	for _, r := range tbls[1].Find(nsWord, "t") {
		assert.NotEqual(t, "", r.Text())
	}
}

func TestBlankRevisionTablesLocalizedHeading(t *testing.T) {
	body := `<w:p><w:r><w:t>ЛИСТ РЕГИСТРАЦИИ ИЗМЕНЕНИЙ</w:t></w:r></w:p>` + revisionTable("h1", "h2", "x")
	tree, err := Parse([]byte(wdoc(body)))
	require.NoError(t, err)
	tables, blanked := blankRevisionTables(tree)
	assert.Equal(t, 1, tables)
	assert.Equal(t, 1, blanked)
}

func TestRewriterWordPackage(t *testing.T) {
	raw := buildZip(t,
		member{"[Content_Types].xml", `<?xml version="1.0"?><Types xmlns="urn:ct"/>`},
		member{"word/document.xml", wdoc(`<w:p><w:r><w:t>ED.D.P010.1 Unit 1</w:t></w:r></w:p>`)},
		member{"word/media/image1.bin", "\x00\x01binary"},
		member{"word/header1.xml", `<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t>C04</w:t></w:r></w:p></w:hdr>`},
		member{"word/footer1.xml", `<w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t>broken</w:p></w:ftr>`},
		member{"word/styles.xml", `<w:styles xmlns:w="urn:w"><w:t>C05</w:t></w:styles>`},
	)
	p, err := ReadPackage(raw)
	require.NoError(t, err)
	r, err := NewRewriter(constants.Word, wordEngine(t, "3"), nil)
	require.NoError(t, err)

	st := r.Rewrite(p)
	assert.Equal(t, 2, st.ChangedParts)
	// docProps/core.xml is absent, the footer is malformed.
	assert.Equal(t, 2, st.SkippedParts)

	var out bytes.Buffer
	require.NoError(t, p.Write(&out))
	back, err := ReadPackage(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, p.Names(), back.Names())

	doc, err := back.Read("word/document.xml")
	require.NoError(t, err)
	assert.Contains(t, string(doc), "ED.D.P010.3 Unit 3")
	hdr, _ := back.Read("word/header1.xml")
	assert.Contains(t, string(hdr), "<w:t>C01</w:t>")
	ftr, _ := back.Read("word/footer1.xml")
	assert.Contains(t, string(ftr), "broken")
	styles, _ := back.Read("word/styles.xml")
	assert.Contains(t, string(styles), "C05")
	bin, _ := back.Read("word/media/image1.bin")
	assert.Equal(t, "\x00\x01binary", string(bin))

	f := back.index["word/media/image1.bin"]
	assert.Equal(t, zip.Store, f.Method)
}

func TestRewriterTargets(t *testing.T) {
	r, err := NewRewriter(constants.Spreadsheet, nil, nil)
	require.NoError(t, err)
	got := r.Targets([]string{"xl/workbook.xml", "xl/worksheets/sheet2.xml", "xl/sharedStrings.xml", "xl/worksheets/_rels/sheet2.xml.rels", "xl/worksheets/sheet1.xml"})
	assert.Equal(t, []string{"xl/sharedStrings.xml", "xl/worksheets/sheet2.xml", "xl/worksheets/sheet1.xml"}, got)

	_, err = NewRewriter(constants.Drawing, nil, nil)
	assert.Error(t, err)
}

func TestRewriteWorkbookFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "10UKD.xlsx")
	out := filepath.Join(dir, "20UKD.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "ED.D.A123.4"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "10UKD pump"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "C05"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", 42))
	require.NoError(t, f.SetHeaderFooter("Sheet1", &excelize.HeaderFooterOptions{
		OddHeader: "&R&11C03",
		OddFooter: "&L&08ED.D.P000.1",
	}))
	require.NoError(t, f.SaveAs(in))
	require.NoError(t, f.Close())

	e, err := rules.Spreadsheet("2")
	require.NoError(t, err)
	r, err := NewRewriter(constants.Spreadsheet, e, nil)
	require.NoError(t, err)
	st, err := r.RewriteFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.True(t, st.Changed())

	got, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer got.Close()
	v, _ := got.GetCellValue("Sheet1", "A1")
	assert.Equal(t, "ED.D.A123.2", v)
	v, _ = got.GetCellValue("Sheet1", "A2")
	assert.Equal(t, "20UKD pump", v)
	v, _ = got.GetCellValue("Sheet1", "A3")
	assert.Equal(t, "C05", v)
	v, _ = got.GetCellValue("Sheet1", "B1")
	assert.Equal(t, "42", v)

	p, err := OpenPackage(out)
	require.NoError(t, err)
	sheet, err := p.Read("xl/worksheets/sheet1.xml")
	require.NoError(t, err)
	assert.Contains(t, string(sheet), "&amp;R&amp;11C01")
	assert.Contains(t, string(sheet), "&amp;L&amp;08ED.D.P000.2")

	// The input is never touched.
	orig, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.NotEmpty(t, orig)
}

func TestRewriteFileRejectsNonPackage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "legacy.doc")
	require.NoError(t, os.WriteFile(in, []byte("\xd0\xcf\x11\xe0 not a zip"), 0o644))
	r, err := NewRewriter(constants.Word, wordEngine(t, "1"), nil)
	require.NoError(t, err)
	_, err = r.RewriteFile(context.Background(), in, filepath.Join(dir, "out.doc"))
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "out.doc"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRewriteFileRemovesUnreadableWorkbook(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "book.xlsx")
	out := filepath.Join(dir, "out.xlsx")
	// A valid zip with no workbook part.
	require.NoError(t, os.WriteFile(in, buildZip(t, member{"docProps/app.xml", "<Properties/>"}), 0o644))

	e, err := rules.Spreadsheet("2")
	require.NoError(t, err)
	r, err := NewRewriter(constants.Spreadsheet, e, nil)
	require.NoError(t, err)
	_, err = r.RewriteFile(context.Background(), in, out)
	require.Error(t, err)
	assert.NoFileExists(t, out)
	assert.FileExists(t, in)
}
