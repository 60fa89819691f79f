package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/internal/reporter"
	"plan20-extraction-service/internal/samples"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

var fixedNow = time.Date(2025, 3, 4, 8, 6, 7, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(nil, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.SetClock(fixedClock)
	return e
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(nil, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	s.SetClock(fixedClock)
	s.newID = func() string { return "run-test" }
	return s
}

func nonBlankRows(wb *models.Workbook) int {
	n := 0
	for _, s := range wb.Sheets {
		for _, r := range s.Rows {
			if !r.IsBlank() {
				n++
			}
		}
	}
	return n
}

func TestProcessReferencePlan(t *testing.T) {
	e := newTestEngine(t)
	wb := samples.DefaultPlan().Workbook()

	res, err := e.Process(wb)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(res.Records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(res.Records))
	}
	if len(res.Plan) != 3 {
		t.Errorf("Expected 3 plan rows, got %d", len(res.Plan))
	}
	if res.Issues.Total != 0 {
		t.Errorf("Expected no issues, got %s", res.Issues.Error())
	}
	if got, want := len(res.Tagging.Tags), nonBlankRows(wb); got != want {
		t.Errorf("Expected one audit row per non-blank row (%d), got %d", want, got)
	}
	if res.Counts.Items != 2 || res.JoinStats.Records != 3 || res.PlanStats.Kept != 3 {
		t.Errorf("Unexpected stats: %+v %+v %+v", res.Counts, res.JoinStats, res.PlanStats)
	}
	if len(res.Trail) == 0 {
		t.Error("Expected a non-empty decision trail")
	}
	for _, entry := range res.Trail {
		if !entry.Time.Equal(fixedNow) {
			t.Errorf("Expected trail time from the injected clock, got %v", entry.Time)
			break
		}
	}
	if got := reporter.SumTotalValue(res.Plan).StringFixed(2); got != "1300.00" {
		t.Errorf("Expected plan total 1300.00, got %s", got)
	}
}

func TestProcessIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	wb := samples.Generate(4).Workbook("Plan A", "Plan B")

	first, err := e.Process(wb)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	second, err := e.Process(wb)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if diff := cmp.Diff(first.Tagging.Tags, second.Tagging.Tags); diff != "" {
		t.Errorf("Tags differ between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Records, second.Records); diff != "" {
		t.Errorf("Records differ between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Plan, second.Plan); diff != "" {
		t.Errorf("Plan rows differ between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Trail, second.Trail); diff != "" {
		t.Errorf("Trail differs between runs (-first +second):\n%s", diff)
	}
}

func TestProcessFiltersOtherUnits(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Process(samples.Generate(3).Workbook())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(res.Records) != 9 {
		t.Errorf("Expected 9 records for 3 programs, got %d", len(res.Records))
	}
	if len(res.Plan) != 6 {
		t.Errorf("Expected 6 plan rows, got %d", len(res.Plan))
	}
	if res.PlanStats.OtherUnit != 3 {
		t.Errorf("Expected 3 rows of another unit, got %d", res.PlanStats.OtherUnit)
	}
	for _, p := range res.Plan {
		if p.Record.OrgUnit != samples.TargetOrgUnit {
			t.Errorf("Unexpected unit in plan: %s", p.Record.OrgUnit)
		}
	}
}

func TestProcessSecondActionOfOneProgram(t *testing.T) {
	e := newTestEngine(t)
	wb := &models.Workbook{Sheets: []*models.Sheet{samples.SecondActionSheet("Plan20")}}

	res, err := e.Process(wb)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}
	if len(res.Plan) != 2 {
		t.Fatalf("Expected both actions in the plan, got %d rows", len(res.Plan))
	}
	byAction := make(map[string]models.DenormalizedRecord)
	for _, p := range res.Plan {
		byAction[p.Record.Action] = p.Record
	}
	first, ok := byAction["2009 - Manutenção do Ensino"]
	if !ok {
		t.Fatalf("Expected a plan row for action 2009, got %v", byAction)
	}
	second, ok := byAction["2010 - Transporte Escolar"]
	if !ok {
		t.Fatalf("Expected a plan row for action 2010, got %v", byAction)
	}
	if first.Program != second.Program || first.Function != second.Function || first.OrgUnit != second.OrgUnit {
		t.Errorf("Expected shared program header, got %q/%q/%q and %q/%q/%q",
			first.Program, first.Function, first.OrgUnit, second.Program, second.Function, second.OrgUnit)
	}
	if second.Program != "501 - Educação Básica" || second.Function != "12 - Educação" {
		t.Errorf("Expected program 501 and function 12, got %q %q", second.Program, second.Function)
	}
	if second.Product != "Kits" {
		t.Errorf("Expected product Kits under action 2010, got %q", second.Product)
	}
}

func TestProcessReportsTruncatedSheet(t *testing.T) {
	e := newTestEngine(t)
	wb := samples.DefaultPlan().Workbook()
	wb.Sheets[0].Truncated = true

	res, err := e.Process(wb)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if !res.Issues.HasCode(errors.CodeSheetTruncated) {
		t.Errorf("Expected a truncation issue, got %s", res.Issues.Error())
	}
	if res.Issues.Total != 1 {
		t.Errorf("Expected only the truncation issue, got %d", res.Issues.Total)
	}
}

func TestProcessWorkbookWithoutPrograms(t *testing.T) {
	e := newTestEngine(t)
	wb := &models.Workbook{Sheets: []*models.Sheet{
		samples.NewSheetBuilder("Notas").Row("texto livre").Blank().Row("", "outra linha").Build(),
	}}

	res, err := e.Process(wb)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(res.Tagging.Tags) != 2 {
		t.Errorf("Expected both non-blank rows in the audit, got %d", len(res.Tagging.Tags))
	}
	if len(res.Records) != 0 || len(res.Plan) != 0 {
		t.Errorf("Expected no records, got %d records and %d plan rows", len(res.Records), len(res.Plan))
	}
	if !res.Issues.HasCode(errors.CodeMissingRequiredBlock) {
		t.Errorf("Expected a missing block issue, got %s", res.Issues.Error())
	}
}

func TestProcessNilWorkbook(t *testing.T) {
	if _, err := newTestEngine(t).Process(nil); err == nil {
		t.Error("Expected error for nil workbook")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"missing planner", func(c *Config) { c.Planner = nil }, true},
		{"invalid extractor", func(c *Config) { c.Extractor.MaxProgramFieldRows = 1 }, true},
		{"invalid output", func(c *Config) { c.Output.Prefix = "" }, true},
		{"negative issues", func(c *Config) { c.MaxIssues = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %t, got %v", tt.wantErr, err)
			}
		})
	}

	c := DefaultConfig()
	c.Reader = nil
	_, err := New(c, logger.NewNopLogger())
	if ee, ok := errors.AsEngineError(err); !ok || ee.Category != errors.CategoryConfiguration {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestServiceRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "plan20.xlsx")
	if err := samples.WriteWorkbook(input, samples.DefaultPlan().Workbook()); err != nil {
		t.Fatalf("WriteWorkbook failed: %v", err)
	}
	outDir := filepath.Join(dir, "out")

	s := newTestService(t)
	var seen []string
	var last Progress
	s.AddProgressCallback(func(p *Progress) {
		if len(seen) == 0 || seen[len(seen)-1] != p.CurrentStep {
			seen = append(seen, p.CurrentStep)
		}
		last = *p
	})

	run, err := s.Run(context.Background(), input, outDir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantSteps := []string{StepReading, StepTagging, StepValidating, StepExtracting, StepJoining, StepPlanning, StepWriting, StepCompleted}
	if diff := cmp.Diff(wantSteps, seen); diff != "" {
		t.Errorf("Step sequence mismatch (-want +got):\n%s", diff)
	}
	if last.PercentComplete != 100 || last.RunID != "run-test" {
		t.Errorf("Unexpected final progress %+v", last)
	}

	wantWorkbook := filepath.Join(outDir, "plan20_20250304_080607.xlsx")
	if run.Artifacts.Workbook != wantWorkbook {
		t.Errorf("Expected workbook %s, got %s", wantWorkbook, run.Artifacts.Workbook)
	}

	sum := run.Summary
	if sum.RunID != "run-test" || sum.Input != input || sum.OutputWorkbook != wantWorkbook {
		t.Errorf("Unexpected summary header %+v", sum)
	}
	if sum.RowsRead != len(run.Workbook.Sheets[0].Rows) || sum.RowsTagged+sum.RowsUntagged != len(run.Tagging.Tags) {
		t.Errorf("Unexpected row counts %+v", sum)
	}
	if sum.Records != 3 || sum.PlanRows != 3 || sum.PlanTotal != "1300.00" {
		t.Errorf("Unexpected output counts %+v", sum)
	}
	if len(sum.Sheets) != 1 || sum.Sheets[0].Name != "Plan20" {
		t.Errorf("Unexpected sheet summaries %+v", sum.Sheets)
	}
	if sum.IssueCount() != 0 {
		t.Errorf("Expected no issues, got %v", sum.Issues)
	}

	f, err := excelize.OpenFile(run.Artifacts.Workbook)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer f.Close()
	plan, err := f.GetRows(reporter.SheetPlan)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(plan) != 4 {
		t.Errorf("Expected header and 3 plan rows, got %d rows", len(plan))
	}
	raw, _ := f.GetRows(reporter.SheetRaw)
	if len(raw) != len(run.Tagging.Tags)+1 {
		t.Errorf("Expected %d raw rows, got %d", len(run.Tagging.Tags)+1, len(raw))
	}
}

func TestServiceRunConcurrent(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "plan20.xlsx")
	if err := samples.WriteWorkbook(input, samples.Generate(4).Workbook()); err != nil {
		t.Fatalf("WriteWorkbook failed: %v", err)
	}

	s := newTestService(t)
	var mu sync.Mutex
	rowsByRun := make(map[string]int)
	s.AddProgressCallback(func(p *Progress) {
		mu.Lock()
		defer mu.Unlock()
		if p.RowsRead > rowsByRun[p.RunID] {
			rowsByRun[p.RunID] = p.RowsRead
		}
	})
	var ids atomic.Int64
	s.newID = func() string { return fmt.Sprintf("run-%d", ids.Add(1)) }

	const runs = 4
	var wg sync.WaitGroup
	errs := make([]error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Run(context.Background(), input, filepath.Join(dir, fmt.Sprintf("out%d", i)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Run %d failed: %v", i, err)
		}
	}
	if len(rowsByRun) != runs {
		t.Fatalf("Expected reading progress from %d runs, got %d", runs, len(rowsByRun))
	}
	for id, rows := range rowsByRun {
		if rows == 0 {
			t.Errorf("Expected rows read for %s", id)
		}
	}
}

func TestServiceRunMissingInput(t *testing.T) {
	s := newTestService(t)
	var steps []string
	s.AddProgressCallback(func(p *Progress) { steps = append(steps, p.CurrentStep) })

	_, err := s.Run(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"), "")
	ee, ok := errors.AsEngineError(err)
	if !ok || ee.Code != errors.CodeFileNotFound {
		t.Fatalf("Expected file_not_found, got %v", err)
	}
	for _, st := range steps {
		if st != StepReading {
			t.Errorf("Expected the run to stop while reading, saw step %s", st)
		}
	}
}

func TestServiceRunCancelled(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "plan20.xlsx")
	if err := samples.WriteWorkbook(input, samples.DefaultPlan().Workbook()); err != nil {
		t.Fatalf("WriteWorkbook failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestService(t).Run(ctx, input, dir); err == nil {
		t.Error("Expected cancelled run to fail")
	}
}

func TestBuildSummaryWithoutArtifacts(t *testing.T) {
	res, err := newTestEngine(t).Process(samples.DefaultPlan().Workbook())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	sum := BuildSummary(res, "id", "in.xlsx", fixedNow, time.Second, nil)
	if sum.OutputWorkbook != "" || sum.DebugCSV != "" {
		t.Errorf("Expected no artifact paths, got %+v", sum)
	}
	if sum.RowsRead != res.Workbook.RowCount() {
		t.Errorf("Expected %d rows read, got %d", res.Workbook.RowCount(), sum.RowsRead)
	}
}
