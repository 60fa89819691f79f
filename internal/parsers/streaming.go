package parsers

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/pkg/errors"
)

// readXLSX streams each sheet with the excelize row iterator so large plans
// are never held twice in memory.
func (r *WorkbookReader) readXLSX(ctx context.Context, path string) (*models.Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.WorkbookError(errors.CodeMalformedWorkbook, path, err)
	}
	defer f.Close()

	wb := &models.Workbook{Path: path}
	for i, name := range f.GetSheetList() {
		if !r.config.wants(name) {
			continue
		}
		sheet, err := r.streamSheet(ctx, f, name, i)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			return nil, errors.WorkbookError(errors.CodeMalformedWorkbook, path, err).
				WithContext("sheet", name)
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func (r *WorkbookReader) streamSheet(ctx context.Context, f *excelize.File, name string, index int) (*models.Sheet, error) {
	rows, err := f.Rows(name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c := r.newCollector(name, index)
	n := 0
	for rows.Next() {
		if cancelled(ctx) {
			return nil, ctx.Err()
		}
		n++
		cells, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		if c.add(n, cells) {
			break
		}
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}
	return c.done(), nil
}
