package engine

import (
	"time"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/internal/reporter"
)

// maxIssueSamples bounds the issue messages copied into a summary.
const maxIssueSamples = 20

// BuildSummary assembles the run summary of a result. artifacts may be nil
// when nothing was written.
func BuildSummary(res *Result, runID, input string, started time.Time, duration time.Duration, artifacts *reporter.Artifacts) *models.RunSummary {
	s := &models.RunSummary{
		RunID:     runID,
		Input:     input,
		StartedAt: started,
		Duration:  duration,
		Records:   len(res.Records),
		PlanRows:  len(res.Plan),
		PlanTotal: reporter.SumTotalValue(res.Plan).StringFixed(2),
		Issues:    make(map[string]int),
	}
	if artifacts != nil {
		s.OutputWorkbook = artifacts.Workbook
		s.DebugCSV = artifacts.DebugCSV
	}
	if res.Workbook != nil {
		s.RowsRead = res.Workbook.RowCount()
	}

	if res.Tagging != nil {
		s.RowsTagged = res.Tagging.TaggedCount()
		s.RowsUntagged = len(res.Tagging.Tags) - s.RowsTagged
		for _, sh := range res.Tagging.Sheets {
			s.Sheets = append(s.Sheets, models.SheetSummary{
				Name:      sh.Name,
				Block:     string(sh.Block),
				Rows:      sh.Rows,
				Tagged:    sh.Tagged,
				Untagged:  sh.Untagged,
				Discarded: sh.Discarded,
			})
		}
	}

	if res.Issues != nil {
		for code, n := range res.Issues.ByCode {
			s.Issues[string(code)] = n
		}
		for i, e := range res.Issues.Errors {
			if i >= maxIssueSamples {
				break
			}
			s.IssueSamples = append(s.IssueSamples, e.Message)
		}
	}
	return s
}
