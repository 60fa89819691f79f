// Package reporter writes the artifacts of an extraction run.
//
// Two kinds of output are produced:
//   - the output workbook with the raw audit rows, the extracted table, the
//     Plan20 table and the debug log, plus an optional debug CSV
//   - a run summary for the operator, rendered for the console, as JSON or
//     as YAML
//
// Example usage:
//
//	w, err := reporter.NewWorkbookWriter(reporter.DefaultOutputConfig(), log)
//	artifacts, err := w.Write(output)
//
//	gen, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatYAML})
//	err = gen.GenerateReport(summary, os.Stdout)
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"plan20-extraction-service/internal/models"
)

// OutputFormat is a run summary rendering.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatYAML:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for the run summary.
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// IncludeSheets lists per-sheet counts in the console rendering.
	IncludeSheets bool `json:"include_sheets" mapstructure:"include_sheets"`

	// MaxIssueSamples bounds the issue samples printed on the console.
	MaxIssueSamples int `json:"max_issue_samples" mapstructure:"max_issue_samples"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:          FormatConsole,
		IncludeSheets:   true,
		MaxIssueSamples: 10,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxIssueSamples < 0 {
		return fmt.Errorf("max issue samples cannot be negative, got %d", c.MaxIssueSamples)
	}
	return nil
}

// ReportGenerator renders run summaries.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport renders the summary to writer in the configured format.
func (rg *ReportGenerator) GenerateReport(summary *models.RunSummary, writer io.Writer) error {
	if summary == nil {
		return fmt.Errorf("run summary cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(summary, writer)
	case FormatJSON:
		return rg.generateJSONReport(summary, writer)
	case FormatYAML:
		return rg.generateYAMLReport(summary, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(s *models.RunSummary, writer io.Writer) error {
	b := &strings.Builder{}

	fmt.Fprintf(b, "PLAN20 EXTRACTION SUMMARY\n")
	fmt.Fprintf(b, "Run:       %s\n", s.RunID)
	fmt.Fprintf(b, "Started:   %s\n", s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(b, "Duration:  %v\n", s.Duration)
	fmt.Fprintf(b, "Input:     %s\n", s.Input)
	if s.OutputWorkbook != "" {
		fmt.Fprintf(b, "Workbook:  %s\n", s.OutputWorkbook)
	}
	if s.DebugCSV != "" {
		fmt.Fprintf(b, "Debug CSV: %s\n", s.DebugCSV)
	}
	fmt.Fprintf(b, "\n")

	fmt.Fprintf(b, "=== ROWS ===\n")
	fmt.Fprintf(b, "  Read:     %d\n", s.RowsRead)
	fmt.Fprintf(b, "  Tagged:   %d (%.1f%%)\n", s.RowsTagged, rg.calculatePercentage(s.RowsTagged, s.RowsTagged+s.RowsUntagged))
	fmt.Fprintf(b, "  Untagged: %d\n", s.RowsUntagged)
	fmt.Fprintf(b, "\n")

	if rg.config.IncludeSheets && len(s.Sheets) > 0 {
		fmt.Fprintf(b, "=== SHEETS ===\n")
		for _, sh := range s.Sheets {
			fmt.Fprintf(b, "  %-20s %-6s rows=%d tagged=%d untagged=%d discarded=%d\n",
				sh.Name, sh.Block, sh.Rows, sh.Tagged, sh.Untagged, sh.Discarded)
		}
		fmt.Fprintf(b, "\n")
	}

	fmt.Fprintf(b, "=== OUTPUT ===\n")
	fmt.Fprintf(b, "  Extracted records: %d\n", s.Records)
	fmt.Fprintf(b, "  Plan20 rows:       %d\n", s.PlanRows)
	fmt.Fprintf(b, "  Plan20 total:      %s\n", s.PlanTotal)
	fmt.Fprintf(b, "\n")

	fmt.Fprintf(b, "=== ISSUES ===\n")
	if len(s.Issues) == 0 {
		fmt.Fprintf(b, "  none\n")
	}
	codes := make([]string, 0, len(s.Issues))
	for code := range s.Issues {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(b, "  %-24s %d\n", code, s.Issues[code])
	}
	for i, sample := range s.IssueSamples {
		if i >= rg.config.MaxIssueSamples {
			fmt.Fprintf(b, "  ... and %d more\n", len(s.IssueSamples)-i)
			break
		}
		fmt.Fprintf(b, "  - %s\n", sample)
	}

	_, err := io.WriteString(writer, b.String())
	return err
}

func (rg *ReportGenerator) generateJSONReport(s *models.RunSummary, writer io.Writer) error {
	view := struct {
		*models.RunSummary
		Duration string `json:"duration"`
	}{s, s.Duration.String()}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}

func (rg *ReportGenerator) generateYAMLReport(s *models.RunSummary, writer io.Writer) error {
	view := struct {
		models.RunSummary `yaml:",inline"`
		Duration          string `yaml:"duration"`
	}{*s, s.Duration.String()}

	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(view); err != nil {
		return err
	}
	return encoder.Close()
}

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// ParseAmount reads a Brazilian formatted amount such as "1.234,56".
// Thousands dots are dropped and the decimal comma becomes a point.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == models.DefaultText {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SumTotalValue adds the total value column of the plan rows, skipping
// values that are not amounts.
func SumTotalValue(plan []*models.PlanRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range plan {
		if d, ok := ParseAmount(p.Record.TotalValue); ok {
			sum = sum.Add(d)
		}
	}
	return sum
}
