package hierarchy

import (
	"fmt"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/pkg/errors"
)

// Validate checks the structural guarantees of a tagging result: every
// identifier follows the segment grammar, its parent was opened no later than
// the row, and sub-sequences either restart at 1 or keep increasing. Any
// violation is a defect of the builder and is reported as an internal issue.
func Validate(res *Result) []*errors.Issue {
	var issues []*errors.Issue

	openedAt := make(map[models.Identifier]int, len(res.Openings))
	for _, o := range res.Openings {
		if _, ok := openedAt[o.ID]; !ok {
			openedAt[o.ID] = o.Tag
		}
	}

	lastSub := make(map[models.Identifier]int)
	for k := range res.Tags {
		t := &res.Tags[k]
		if !t.Tagged() {
			continue
		}
		where := errors.SheetContext{Sheet: t.Sheet, Row: t.Row.Index, Identifier: string(t.Identifier)}

		if !t.Identifier.IsWellFormed() {
			issues = append(issues, errors.NewIssue(errors.CodeUnexpectedError, where, "malformed identifier"))
			continue
		}

		if parent := t.Identifier.Parent(); parent != "" {
			at, ok := openedAt[parent]
			if !ok || at > k {
				issues = append(issues, errors.NewIssue(errors.CodeUnexpectedError, where,
					fmt.Sprintf("parent %s not open at this row", parent)))
			}
		}

		prev, seen := lastSub[t.Identifier]
		if t.SubSeq != 1 && (!seen || t.SubSeq <= prev) {
			issues = append(issues, errors.NewIssue(errors.CodeUnexpectedError, where,
				fmt.Sprintf("sub-sequence %d does not follow %d", t.SubSeq, prev)))
		}
		lastSub[t.Identifier] = t.SubSeq
	}
	return issues
}
