// Package parsers reads Plan20 input workbooks into the in-memory
// models.Workbook the extraction pipeline works on.
//
// Supported formats:
//   - .xlsx and .xlsm through excelize, rows streamed sheet by sheet
//   - .xls (BIFF) through extrame/xls
//
// Every row keeps its 1-based position inside the sheet, blank rows included,
// so identifiers and debug output point at the row numbers a user sees in a
// spreadsheet application. Trailing empty cells are dropped.
//
// Example usage:
//
//	reader, err := NewWorkbookReader(DefaultConfig(), log)
//	wb, err := reader.Read(ctx, "plan20.xlsx")
//	for _, sheet := range wb.Sheets {
//		fmt.Println(sheet.Name, len(sheet.Rows))
//	}
package parsers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

// Format identifies the container format of an input workbook.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DetectFormat maps a file extension to a supported format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	}
	return "", errors.WorkbookError(errors.CodeUnsupportedFormat, path, nil).
		WithContext("extension", filepath.Ext(path))
}

// ProgressReport describes how far a read has got.
type ProgressReport struct {
	Sheet       string
	SheetIndex  int
	RowsRead    int
	ElapsedTime time.Duration
}

// ProgressCallback is called every Config.ProgressInterval rows and once at
// the end of each sheet.
type ProgressCallback func(*ProgressReport)

// Reader loads a whole workbook.
type Reader interface {
	Read(ctx context.Context, path string) (*models.Workbook, error)
}

// ProgressReader is a Reader that reports progress to a callback given per
// call.
type ProgressReader interface {
	Reader
	ReadWithProgress(ctx context.Context, path string, cb ProgressCallback) (*models.Workbook, error)
}

// WorkbookReader is the Reader for every supported format.
type WorkbookReader struct {
	config   *Config
	logger   logger.Logger
	progress ProgressCallback
	now      func() time.Time
}

// NewWorkbookReader creates a reader. A nil config uses DefaultConfig.
func NewWorkbookReader(config *Config, log logger.Logger) (*WorkbookReader, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reader", config, err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	r := &WorkbookReader{
		config: config,
		logger: log.WithComponent("workbook_reader"),
		now:    time.Now,
	}
	r.logger.WithFields(logger.Fields{
		"xls_charset":        config.XLSCharset,
		"max_rows_per_sheet": config.MaxRowsPerSheet,
		"sheets":             config.Sheets,
	}).Debug("Created workbook reader")
	return r, nil
}

// SetProgressCallback installs the progress callback used by Read. It must
// not be called while a Read is running; use ReadWithProgress for that.
func (r *WorkbookReader) SetProgressCallback(cb ProgressCallback) {
	r.progress = cb
}

// Read opens path and returns every selected sheet in file order.
func (r *WorkbookReader) Read(ctx context.Context, path string) (*models.Workbook, error) {
	return r.ReadWithProgress(ctx, path, r.progress)
}

// ReadWithProgress is Read reporting to cb instead of the installed callback.
// Concurrent calls never share a callback.
func (r *WorkbookReader) ReadWithProgress(ctx context.Context, path string, cb ProgressCallback) (*models.Workbook, error) {
	call := *r
	call.progress = cb
	return call.read(ctx, path)
}

func (r *WorkbookReader) read(ctx context.Context, path string) (*models.Workbook, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if err := checkFile(path); err != nil {
		return nil, err
	}

	start := r.now()
	var wb *models.Workbook
	switch format {
	case FormatXLSX:
		wb, err = r.readXLSX(ctx, path)
	case FormatXLS:
		wb, err = r.readXLS(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logger.Fields{
		"file":     path,
		"format":   string(format),
		"sheets":   len(wb.Sheets),
		"rows":     wb.RowCount(),
		"max_cols": wb.MaxCols(),
		"duration": r.now().Sub(start).String(),
	}).Info("Workbook loaded")
	return wb, nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return errors.FileError(errors.CodeFileNotFound, path, err)
	case os.IsPermission(err):
		return errors.FileError(errors.CodeFilePermission, path, err)
	case err != nil:
		return errors.FileError(errors.CodeFileNotFound, path, err)
	case info.IsDir():
		return errors.FileError(errors.CodeDirectoryError, path, fmt.Errorf("%s is a directory", path))
	}
	return nil
}

// sheetCollector accumulates the rows of one sheet and reports progress.
type sheetCollector struct {
	reader *WorkbookReader
	sheet  *models.Sheet
	index  int
	start  time.Time
}

func (r *WorkbookReader) newCollector(name string, index int) *sheetCollector {
	return &sheetCollector{
		reader: r,
		sheet:  &models.Sheet{Name: name, Rows: make([]models.Row, 0, 128)},
		index:  index,
		start:  r.now(),
	}
}

// add appends the row found at the 1-based position n. It returns true, and
// marks the sheet truncated, when the row falls past the per-sheet limit.
func (c *sheetCollector) add(n int, cells []string) bool {
	if limit := c.reader.config.MaxRowsPerSheet; limit > 0 && len(c.sheet.Rows) >= limit {
		c.sheet.Truncated = true
		return true
	}
	c.sheet.Rows = append(c.sheet.Rows, models.Row{Index: n, Cells: trimTrailing(cells)})
	if iv := c.reader.config.ProgressInterval; iv > 0 && len(c.sheet.Rows)%iv == 0 {
		c.report()
	}
	return false
}

func (c *sheetCollector) report() {
	if c.reader.progress == nil {
		return
	}
	c.reader.progress(&ProgressReport{
		Sheet:       c.sheet.Name,
		SheetIndex:  c.index,
		RowsRead:    len(c.sheet.Rows),
		ElapsedTime: c.reader.now().Sub(c.start),
	})
}

func (c *sheetCollector) done() *models.Sheet {
	c.report()
	if c.sheet.Truncated {
		c.reader.logger.WithFields(logger.Fields{
			"sheet": c.sheet.Name,
			"limit": c.reader.config.MaxRowsPerSheet,
		}).Warn("Sheet truncated at the row limit")
	}
	c.reader.logger.WithFields(logger.Fields{
		"sheet": c.sheet.Name,
		"rows":  len(c.sheet.Rows),
	}).Debug("Sheet loaded")
	return c.sheet
}

func trimTrailing(cells []string) []string {
	n := len(cells)
	for n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		n--
	}
	out := make([]string, n)
	copy(out, cells[:n])
	return out
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
