package models

import "time"

// SheetSummary is the per-sheet part of a run summary.
type SheetSummary struct {
	Name      string `json:"name" yaml:"name"`
	Block     string `json:"block" yaml:"block"`
	Rows      int    `json:"rows" yaml:"rows"`
	Tagged    int    `json:"tagged" yaml:"tagged"`
	Untagged  int    `json:"untagged" yaml:"untagged"`
	Discarded int    `json:"discarded" yaml:"discarded"`
}

// RunSummary describes one extraction run.
type RunSummary struct {
	RunID          string         `json:"run_id" yaml:"run_id"`
	Input          string         `json:"input" yaml:"input"`
	OutputWorkbook string         `json:"output_workbook,omitempty" yaml:"output_workbook,omitempty"`
	DebugCSV       string         `json:"debug_csv,omitempty" yaml:"debug_csv,omitempty"`
	StartedAt      time.Time      `json:"started_at" yaml:"started_at"`
	Duration       time.Duration  `json:"duration" yaml:"-"`
	Sheets         []SheetSummary `json:"sheets" yaml:"sheets"`
	RowsRead       int            `json:"rows_read" yaml:"rows_read"`
	RowsTagged     int            `json:"rows_tagged" yaml:"rows_tagged"`
	RowsUntagged   int            `json:"rows_untagged" yaml:"rows_untagged"`
	Records        int            `json:"records" yaml:"records"`
	PlanRows       int            `json:"plan_rows" yaml:"plan_rows"`
	PlanTotal      string         `json:"plan_total" yaml:"plan_total"`
	Issues         map[string]int `json:"issues" yaml:"issues"`
	IssueSamples   []string       `json:"issue_samples,omitempty" yaml:"issue_samples,omitempty"`
}

// IssueCount returns the total number of issues over all codes.
func (s *RunSummary) IssueCount() int {
	n := 0
	for _, c := range s.Issues {
		n += c
	}
	return n
}
