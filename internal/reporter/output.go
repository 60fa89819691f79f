package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

// Sheet names of the output workbook, in order.
const (
	SheetRaw     = "Identificadores_Raw"
	SheetExtract = "Extrair_dados"
	SheetPlan    = "Plan20_SEDUC"
	SheetDebug   = "Debug_Log"
)

// DebugHeaders are the columns of the debug log sheet and CSV.
var DebugHeaders = []string{"timestamp", "local", "mensagem"}

const debugTimeLayout = "2006-01-02 15:04:05"

// OutputConfig controls where and how the run artifacts are written.
type OutputConfig struct {
	Dir        string  `json:"dir" mapstructure:"output_dir"`
	Prefix     string  `json:"prefix" mapstructure:"output_prefix"`
	DebugCSV   bool    `json:"debug_csv" mapstructure:"debug_csv"`
	FontFamily string  `json:"font_family" mapstructure:"font_family"`
	FontSize   float64 `json:"font_size" mapstructure:"font_size"`
}

// DefaultOutputConfig writes plan20_<timestamp>.xlsx and plan20_debug.csv
// into the working directory.
func DefaultOutputConfig() *OutputConfig {
	return &OutputConfig{
		Dir:        ".",
		Prefix:     "plan20",
		DebugCSV:   true,
		FontFamily: "Helvetica",
		FontSize:   8,
	}
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	if strings.TrimSpace(c.Dir) == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if strings.TrimSpace(c.Prefix) == "" {
		return fmt.Errorf("output prefix cannot be empty")
	}
	if strings.ContainsAny(c.Prefix, `/\`) {
		return fmt.Errorf("output prefix cannot contain path separators: %s", c.Prefix)
	}
	if c.FontSize <= 0 {
		return fmt.Errorf("font size must be positive, got %v", c.FontSize)
	}
	return nil
}

// Output is everything a run writes.
type Output struct {
	Tags    []models.RowTag
	MaxCols int
	Records []*models.DenormalizedRecord
	Plan    []*models.PlanRecord
	Trail   []logger.TrailEntry
}

// Artifacts are the paths of the written files. DebugCSV is empty when the
// CSV is disabled.
type Artifacts struct {
	Workbook string `json:"workbook"`
	DebugCSV string `json:"debug_csv,omitempty"`
}

// WorkbookWriter writes the output workbook and the debug CSV.
type WorkbookWriter struct {
	config *OutputConfig
	logger logger.Logger
	now    func() time.Time
}

// NewWorkbookWriter creates a writer. A nil config uses the defaults.
func NewWorkbookWriter(config *OutputConfig, log logger.Logger) (*WorkbookWriter, error) {
	if config == nil {
		config = DefaultOutputConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output", config, err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &WorkbookWriter{
		config: config,
		logger: log.WithComponent("workbook_writer"),
		now:    time.Now,
	}, nil
}

// SetClock replaces the clock used for the file name timestamp.
func (w *WorkbookWriter) SetClock(now func() time.Time) {
	if now != nil {
		w.now = now
	}
}

// WorkbookPath returns the path the next workbook is written to.
func (w *WorkbookWriter) WorkbookPath() string {
	ts := w.now().UTC().Format("20060102_150405")
	return filepath.Join(w.config.Dir, fmt.Sprintf("%s_%s.xlsx", w.config.Prefix, ts))
}

// DebugCSVPath returns the path of the debug CSV.
func (w *WorkbookWriter) DebugCSVPath() string {
	return filepath.Join(w.config.Dir, w.config.Prefix+"_debug.csv")
}

// Write saves the output workbook and, when enabled, the debug CSV.
func (w *WorkbookWriter) Write(out *Output) (*Artifacts, error) {
	if out == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "write_output", fmt.Errorf("output cannot be nil"))
	}
	if err := os.MkdirAll(w.config.Dir, 0o755); err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, w.config.Dir, err)
	}

	artifacts := &Artifacts{Workbook: w.WorkbookPath()}
	if err := w.writeWorkbook(artifacts.Workbook, out); err != nil {
		return nil, errors.OutputError(errors.CodeWriteFailed, artifacts.Workbook, err)
	}

	if w.config.DebugCSV {
		path := w.DebugCSVPath()
		if err := w.writeDebugFile(path, out.Trail); err != nil {
			// The workbook already carries the debug log.
			w.logger.WithError(err).WithField("path", path).Warn("Debug CSV not written")
		} else {
			artifacts.DebugCSV = path
		}
	}

	w.logger.WithFields(logger.Fields{
		"workbook":  artifacts.Workbook,
		"debug_csv": artifacts.DebugCSV,
		"raw_rows":  len(out.Tags),
		"records":   len(out.Records),
		"plan_rows": len(out.Plan),
		"trail":     len(out.Trail),
	}).Info("Output written")
	return artifacts, nil
}

func (w *WorkbookWriter) writeWorkbook(path string, out *Output) error {
	f := excelize.NewFile()
	defer f.Close()

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Family: w.config.FontFamily, Size: w.config.FontSize},
	})
	if err != nil {
		return fmt.Errorf("failed to create font style: %w", err)
	}

	sheets := []struct {
		name string
		fill func(*sheetStream) error
	}{
		{SheetRaw, func(s *sheetStream) error { return writeRaw(s, out.Tags, out.MaxCols) }},
		{SheetExtract, func(s *sheetStream) error { return writeRecords(s, out.Records) }},
		{SheetPlan, func(s *sheetStream) error { return writePlan(s, out.Plan) }},
		{SheetDebug, func(s *sheetStream) error { return writeTrail(s, out.Trail) }},
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", sh.name, err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sh.name, err)
		}

		sw, err := f.NewStreamWriter(sh.name)
		if err != nil {
			return fmt.Errorf("failed to open sheet %s: %w", sh.name, err)
		}
		s := &sheetStream{sw: sw, style: style}
		if err := sh.fill(s); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", sh.name, err)
		}
		if err := sw.Flush(); err != nil {
			return fmt.Errorf("failed to flush sheet %s: %w", sh.name, err)
		}
	}

	return f.SaveAs(path)
}

// sheetStream appends styled text rows to one worksheet.
type sheetStream struct {
	sw    *excelize.StreamWriter
	style int
	row   int
}

func (s *sheetStream) add(values []string) error {
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = excelize.Cell{StyleID: s.style, Value: v}
	}
	return s.sw.SetRow(cell, row)
}

// RawHeaders returns the audit sheet columns: id, sub-id, col_1..col_n.
func RawHeaders(maxCols int) []string {
	out := make([]string, 0, maxCols+2)
	out = append(out, "id", "sub-id")
	for i := 1; i <= maxCols; i++ {
		out = append(out, "col_"+strconv.Itoa(i))
	}
	return out
}

// RawValues returns the audit row of a tag padded to maxCols cells. Cell
// text is written as read, surrounding whitespace included.
func RawValues(t *models.RowTag, maxCols int) []string {
	out := make([]string, 2, maxCols+2)
	out[0] = string(t.Identifier)
	out[1] = t.SubSeqString()
	for i := 0; i < maxCols; i++ {
		v := ""
		if i < len(t.Row.Cells) {
			v = t.Row.Cells[i]
		}
		out = append(out, v)
	}
	return out
}

func writeRaw(s *sheetStream, tags []models.RowTag, maxCols int) error {
	if err := s.add(RawHeaders(maxCols)); err != nil {
		return err
	}
	for i := range tags {
		if err := s.add(RawValues(&tags[i], maxCols)); err != nil {
			return err
		}
	}
	return nil
}

func writeRecords(s *sheetStream, records []*models.DenormalizedRecord) error {
	if err := s.add(models.ExtractHeaders); err != nil {
		return err
	}
	for _, r := range records {
		if err := s.add(r.Values()); err != nil {
			return err
		}
	}
	return nil
}

func writePlan(s *sheetStream, plan []*models.PlanRecord) error {
	if err := s.add(models.PlanHeaders()); err != nil {
		return err
	}
	for _, p := range plan {
		if err := s.add(p.Values()); err != nil {
			return err
		}
	}
	return nil
}

func writeTrail(s *sheetStream, entries []logger.TrailEntry) error {
	if err := s.add(DebugHeaders); err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.add(trailValues(e)); err != nil {
			return err
		}
	}
	return nil
}

func trailValues(e logger.TrailEntry) []string {
	return []string{e.Time.Format(debugTimeLayout), e.Location, e.Message}
}

func (w *WorkbookWriter) writeDebugFile(path string, entries []logger.TrailEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteDebugCSV(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteDebugCSV writes the trail as ";" separated rows with a header.
func WriteDebugCSV(writer io.Writer, entries []logger.TrailEntry) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = ';'

	if err := csvWriter.Write(DebugHeaders); err != nil {
		return fmt.Errorf("failed to write debug CSV header: %w", err)
	}
	for _, e := range entries {
		if err := csvWriter.Write(trailValues(e)); err != nil {
			return fmt.Errorf("failed to write debug CSV row: %w", err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
