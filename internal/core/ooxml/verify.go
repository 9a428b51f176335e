package ooxml

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// VerifyWorkbook reopens a written workbook and reads every sheet, so a broken
// rewrite is caught before the file is reported as done.
func VerifyWorkbook(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("reopen workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("workbook %s has no sheets", path)
	}
	for _, s := range sheets {
		if _, err := f.GetRows(s); err != nil {
			return fmt.Errorf("read sheet %q: %w", s, err)
		}
	}
	return nil
}
