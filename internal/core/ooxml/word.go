package ooxml

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/unitshift/internal/core/rules"
)

const nsWord = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

var revisionHeading = regexp.MustCompile(`(?i)Лист\s+регистрации\s+изменений|Record\s+of\s+revisions`)

// rewriteSegments applies the rules to every character-data run and returns how many changed.
func rewriteSegments(t *Tree, engine *rules.Engine) int {
	n := 0
	for _, seg := range t.Segments() {
		if out, changed := engine.Changed(seg.Text()); changed {
			seg.Set(out)
			n++
		}
	}
	return n
}

// mergeRuns catches identifiers split across text runs. For every paragraph and
// content-control body with two or more w:t, the run texts are joined, rewritten, and
// cut back to the original run lengths; any growth lands in the last run.
func mergeRuns(t *Tree, engine *rules.Engine) int {
	root := t.Root()
	containers := append(root.Find(nsWord, "p"), root.Find(nsWord, "sdtContent")...)
	n := 0
	for _, c := range containers {
		runs := c.Descendants(nsWord, "t")
		if len(runs) < 2 {
			continue
		}
		texts := make([]string, len(runs))
		for i, r := range runs {
			texts[i] = r.Text()
		}
		joined := strings.Join(texts, "")
		out, changed := engine.Changed(joined)
		if !changed {
			continue
		}
		merged := []rune(out)
		at := 0
		for i, r := range runs {
			if i == len(runs)-1 {
				r.SetText(string(merged[at:]))
				break
			}
			end := at + len([]rune(texts[i]))
			if end > len(merged) {
				end = len(merged)
			}
			r.SetText(string(merged[at:end]))
			at = end
		}
		n++
	}
	return n
}

// blankRevisionTables empties the data rows (third row onward) of the table that
// follows a revision-history heading. It returns the number of runs blanked.
func blankRevisionTables(t *Tree) (tables, blanked int) {
	for _, p := range t.Root().Find(nsWord, "p") {
		var b strings.Builder
		for _, r := range p.Descendants(nsWord, "t") {
			b.WriteString(r.Text())
		}
		if !revisionHeading.MatchString(strings.TrimSpace(b.String())) {
			continue
		}
		tbl := p.NextSibling()
		for tbl != nil && !tbl.Is(nsWord, "tbl") {
			tbl = tbl.NextSibling()
		}
		if tbl == nil {
			continue
		}
		tables++
		rows := tbl.ChildrenNamed(nsWord, "tr")
		if len(rows) <= 2 {
			continue
		}
		for _, row := range rows[2:] {
			for _, cell := range row.ChildrenNamed(nsWord, "tc") {
				for _, r := range cell.Descendants(nsWord, "t") {
					if strings.TrimSpace(r.Text()) != "" {
						r.SetText("")
						blanked++
					}
				}
			}
		}
	}
	return tables, blanked
}
