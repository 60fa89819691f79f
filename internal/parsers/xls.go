package parsers

import (
	"context"
	"fmt"

	"github.com/extrame/xls"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/pkg/errors"
)

// readXLS loads a legacy BIFF workbook. The decoder panics on some damaged
// files; those panics become malformed workbook errors.
func (r *WorkbookReader) readXLS(ctx context.Context, path string) (wb *models.Workbook, err error) {
	defer func() {
		if p := recover(); p != nil {
			wb = nil
			err = errors.WorkbookError(errors.CodeMalformedWorkbook, path, fmt.Errorf("xls decoder: %v", p))
		}
	}()

	book, err := xls.Open(path, r.config.XLSCharset)
	if err != nil {
		return nil, errors.WorkbookError(errors.CodeMalformedWorkbook, path, err)
	}

	wb = &models.Workbook{Path: path}
	for i := 0; i < book.NumSheets(); i++ {
		ws := book.GetSheet(i)
		if ws == nil || !r.config.wants(ws.Name) {
			continue
		}
		c := r.newCollector(ws.Name, i)
		for n := 0; n <= int(ws.MaxRow); n++ {
			if cancelled(ctx) {
				return nil, ctx.Err()
			}
			var cells []string
			if row := ws.Row(n); row != nil {
				cells = make([]string, row.LastCol())
				for j := row.FirstCol(); j < row.LastCol(); j++ {
					cells[j] = row.Col(j)
				}
			}
			if c.add(n+1, cells) {
				break
			}
		}
		wb.Sheets = append(wb.Sheets, c.done())
	}
	return wb, nil
}
