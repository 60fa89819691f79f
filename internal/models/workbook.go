package models

import (
	"strings"
)

// Row is one worksheet row as read from the input file. Index is the 1-based
// row number inside its sheet.
type Row struct {
	Index int      `json:"index"`
	Cells []string `json:"cells"`
}

// Cell returns the trimmed value of the 1-based column, or "" when the row is
// shorter than that.
func (r Row) Cell(col int) string {
	if col < 1 || col > len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[col-1])
}

// IsBlank reports whether every cell is empty or whitespace.
func (r Row) IsBlank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Joined concatenates every cell, empty ones included, with single spaces.
// This is the text the classifier normalizes.
func (r Row) Joined() string {
	return strings.Join(r.Cells, " ")
}

// NonEmpty returns the trimmed non-empty cells in column order.
func (r Row) NonEmpty() []string {
	out := make([]string, 0, len(r.Cells))
	for _, c := range r.Cells {
		if s := strings.TrimSpace(c); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Trimmed returns every cell trimmed, keeping positions.
func (r Row) Trimmed() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// Sheet is one worksheet of the input workbook.
type Sheet struct {
	Name string `json:"name"`
	Rows []Row  `json:"rows"`

	// Truncated is set when the reader stopped at its row limit with rows
	// still left in the sheet.
	Truncated bool `json:"truncated,omitempty"`
}

// MaxCols returns the width of the widest row.
func (s *Sheet) MaxCols() int {
	max := 0
	for _, r := range s.Rows {
		if len(r.Cells) > max {
			max = len(r.Cells)
		}
	}
	return max
}

// Workbook is the whole input file, sheets kept in file order.
type Workbook struct {
	Path   string   `json:"path"`
	Sheets []*Sheet `json:"sheets"`
}

// RowCount returns the number of rows over all sheets.
func (w *Workbook) RowCount() int {
	n := 0
	for _, s := range w.Sheets {
		n += len(s.Rows)
	}
	return n
}

// MaxCols returns the width of the widest row over all sheets.
func (w *Workbook) MaxCols() int {
	max := 0
	for _, s := range w.Sheets {
		if c := s.MaxCols(); c > max {
			max = c
		}
	}
	return max
}
