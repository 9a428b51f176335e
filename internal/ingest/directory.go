package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/unitshift/constants"
)

// family is one extension group picked up from an input folder.
type family struct {
	kind   constants.DocKind
	prefix string // extension prefix, lowercase
	exact  bool
}

// Families are listed in processing order: workbooks, word documents, drawings, sketches.
// Prefix families also pick up near relatives (".docm", ".xlsb"); those are reported
// as skipped by the processor rather than silently ignored here.
var families = []family{
	{kind: constants.Spreadsheet, prefix: "xls"},
	{kind: constants.Word, prefix: "do"},
	{kind: constants.Drawing, prefix: "dwg", exact: true},
	{kind: constants.Sketch, prefix: "sha", exact: true},
}

func (f family) match(ext string) bool {
	if f.exact {
		return ext == f.prefix
	}
	return strings.HasPrefix(ext, f.prefix)
}

// SelectFiles lists the candidate files directly inside root, grouped by family and
// sorted by name within each family. kinds filters the families; nil selects all.
// Hidden and lock files are left out.
func SelectFiles(root string, kinds map[constants.DocKind]bool) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("input directory is required")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	groups := make([][]string, len(families))
	for _, e := range entries {
		if e.IsDir() || IsHidden(e.Name()) {
			continue
		}
		ext := constants.NormalizeExt(filepath.Ext(e.Name()))
		for i, f := range families {
			if f.match(ext) {
				if kinds == nil || kinds[f.kind] {
					groups[i] = append(groups[i], filepath.Join(root, e.Name()))
				}
				break
			}
		}
	}

	var out []string
	for _, g := range groups {
		sort.Strings(g)
		out = append(out, g...)
	}
	return out, nil
}
