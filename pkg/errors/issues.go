package errors

import (
	"fmt"
	"strings"
	"sync"
)

// SheetContext locates an issue inside the input workbook.
type SheetContext struct {
	Sheet      string `json:"sheet"`
	Row        int    `json:"row,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

// String renders the location as used in log and trail entries.
func (c SheetContext) String() string {
	var parts []string
	if c.Sheet != "" {
		parts = append(parts, c.Sheet)
	}
	if c.Row > 0 {
		parts = append(parts, fmt.Sprintf("row %d", c.Row))
	}
	if c.Identifier != "" {
		parts = append(parts, c.Identifier)
	}
	if len(parts) == 0 {
		return "workbook"
	}
	return strings.Join(parts, " ")
}

// Issue is a non-fatal extraction problem. The engine resolves it locally and
// keeps going; issues only surface in the debug log and the run summary.
type Issue struct {
	*EngineError
	Where SheetContext `json:"where"`
}

// NewIssue creates an issue for the given location.
func NewIssue(code ErrorCode, where SheetContext, detail string) *Issue {
	base := ExtractionIssue(code, where.String(), detail)
	if code == CodeUnexpectedError {
		base.Category = CategoryInternal
	}
	if where.Sheet != "" {
		base.WithContext("sheet", where.Sheet)
	}
	if where.Row > 0 {
		base.WithContext("row", where.Row)
	}
	if where.Identifier != "" {
		base.WithContext("identifier", where.Identifier)
	}
	return &Issue{EngineError: base, Where: where}
}

// IssueCollector accumulates issues up to a limit. Issues past the limit are
// counted but not retained.
type IssueCollector struct {
	mu        sync.Mutex
	issues    []*Issue
	maxIssues int
	dropped   int
	byCode    map[ErrorCode]int
	byCat     map[ErrorCategory]int
}

// NewIssueCollector creates a collector. A non-positive limit keeps every issue.
func NewIssueCollector(maxIssues int) *IssueCollector {
	return &IssueCollector{
		issues:    make([]*Issue, 0),
		maxIssues: maxIssues,
		byCode:    make(map[ErrorCode]int),
		byCat:     make(map[ErrorCategory]int),
	}
}

// Add records an issue. It reports whether the issue was retained.
func (c *IssueCollector) Add(issue *Issue) bool {
	if issue == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.byCode[issue.Code]++
	c.byCat[issue.Category]++
	if c.maxIssues > 0 && len(c.issues) >= c.maxIssues {
		c.dropped++
		return false
	}
	c.issues = append(c.issues, issue)
	return true
}

// Count returns the number of issues added, including dropped ones.
func (c *IssueCollector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issues) + c.dropped
}

// CountByCode returns how many issues with the given code were added.
func (c *IssueCollector) CountByCode(code ErrorCode) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byCode[code]
}

// Issues returns a copy of the retained issues.
func (c *IssueCollector) Issues() []*Issue {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Issue, len(c.issues))
	copy(out, c.issues)
	return out
}

// Summary returns an error summary of the retained issues with totals that
// include dropped ones.
func (c *IssueCollector) Summary() *ErrorSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := make([]*EngineError, len(c.issues))
	for i, issue := range c.issues {
		base[i] = issue.EngineError
	}
	summary := NewErrorSummary(base)
	summary.Total = len(c.issues) + c.dropped
	for code, n := range c.byCode {
		summary.ByCode[code] = n
	}
	for cat, n := range c.byCat {
		summary.ByCategory[cat] = n
	}
	return summary
}
