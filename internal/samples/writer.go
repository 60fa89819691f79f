package samples

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"plan20-extraction-service/internal/models"
)

// SheetBuilder appends rows to a sheet, numbering them from 1.
type SheetBuilder struct {
	sheet *models.Sheet
}

// NewSheetBuilder starts an empty sheet.
func NewSheetBuilder(name string) *SheetBuilder {
	return &SheetBuilder{sheet: &models.Sheet{Name: name}}
}

// Row appends a row with the given cells.
func (b *SheetBuilder) Row(cells ...string) *SheetBuilder {
	b.sheet.Rows = append(b.sheet.Rows, models.Row{
		Index: len(b.sheet.Rows) + 1,
		Cells: append([]string(nil), cells...),
	})
	return b
}

// Blank appends an empty row.
func (b *SheetBuilder) Blank() *SheetBuilder {
	return b.Row()
}

// Build returns the sheet.
func (b *SheetBuilder) Build() *models.Sheet {
	return b.sheet
}

// WriteWorkbook saves wb as an .xlsx file, one worksheet per sheet and every
// cell written as text at its row index.
func WriteWorkbook(path string, wb *models.Workbook) error {
	if len(wb.Sheets) == 0 {
		return fmt.Errorf("workbook has no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range wb.Sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.Name, err)
		}

		for _, r := range s.Rows {
			if len(r.Cells) == 0 {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, r.Index)
			if err != nil {
				return fmt.Errorf("invalid row %d in sheet %s: %w", r.Index, s.Name, err)
			}
			values := make([]interface{}, len(r.Cells))
			for j, c := range r.Cells {
				values[j] = c
			}
			if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d of sheet %s: %w", r.Index, s.Name, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}
