package models

import (
	"fmt"
	"strconv"
)

// RowTag records the identifier and sub-sequence assigned to one non-blank
// input row. Untagged rows keep an empty identifier and a zero sub-sequence.
type RowTag struct {
	Sheet      string     `json:"sheet"`
	SheetIndex int        `json:"sheet_index"`
	Row        Row        `json:"row"`
	Identifier Identifier `json:"identifier"`
	SubSeq     int        `json:"sub_seq"`
}

// Tagged reports whether the row received an identifier.
func (t *RowTag) Tagged() bool {
	return t.Identifier != ""
}

// SubSeqString renders the sub-sequence, "" for untagged rows.
func (t *RowTag) SubSeqString() string {
	if t.SubSeq == 0 {
		return ""
	}
	return strconv.Itoa(t.SubSeq)
}

// String returns a short location such as "Plan row 12 A1.B1.C1.2009#3".
func (t *RowTag) String() string {
	if !t.Tagged() {
		return fmt.Sprintf("%s row %d (untagged)", t.Sheet, t.Row.Index)
	}
	return fmt.Sprintf("%s row %d %s#%d", t.Sheet, t.Row.Index, t.Identifier, t.SubSeq)
}

// ProgramFields are the header values of a program block, read from its first
// tagged sub-rows.
type ProgramFields struct {
	Program     string `json:"program"`
	Function    string `json:"function"`
	OrgUnit     string `json:"org_unit"`
	SubFunction string `json:"sub_function"`
	Objective   string `json:"objective"`
	Sphere      string `json:"sphere"`
	ActionOwner string `json:"action_owner"`
}

// ProgramContext is one C identifier with everything extracted beneath it.
type ProgramContext struct {
	ID        Identifier      `json:"id"`
	Block     Identifier      `json:"block"`
	Exercise  string          `json:"exercise"`
	Fields    ProgramFields   `json:"fields"`
	Actions   []*ActionBucket `json:"actions"`
	Synthetic bool            `json:"synthetic,omitempty"`
}

// Action returns the bucket with the given code, creating it when missing.
func (p *ProgramContext) Action(code string) *ActionBucket {
	for _, a := range p.Actions {
		if a.Code == code {
			return a
		}
	}
	a := &ActionBucket{Code: code}
	p.Actions = append(p.Actions, a)
	return a
}

// ActionBucket groups the action texts sharing one action code together with
// the products, public targets and sub-actions of the owning program node.
type ActionBucket struct {
	Code          string              `json:"code"`
	Texts         []string            `json:"texts"`
	Products      []*ProductCandidate `json:"products"`
	PublicTargets []string            `json:"public_targets"`
	SubActions    []*SubActionEntry   `json:"sub_actions"`
}

// Text returns the first action text, or "".
func (b *ActionBucket) Text() string {
	if len(b.Texts) == 0 {
		return ""
	}
	return b.Texts[0]
}

// ProductCandidate is one product line of a D block.
type ProductCandidate struct {
	DIndex    int    `json:"d_index"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Region    string `json:"region"`
	Target    string `json:"target"`
	Remaining string `json:"remaining"`
}

// RegionRow is one region-specific line of a sub-action block.
type RegionRow struct {
	Region         string `json:"region"`
	Code           string `json:"code"`
	Municipalities string `json:"municipalities"`
	Target         string `json:"target"`
}

// SubActionEntry is one G block. A block closed by its product detail line and
// reopened by later rows of the same G yields a second entry.
type SubActionEntry struct {
	ID           Identifier  `json:"id"`
	Plan         Identifier  `json:"plan"`
	Program      Identifier  `json:"program"`
	DIndex       int         `json:"d_index"`
	PlanProduct  string      `json:"plan_product"`
	Delivery     string      `json:"delivery"`
	Owner        string      `json:"owner"`
	Deadline     string      `json:"deadline"`
	ManagingUnit string      `json:"managing_unit"`
	PlanningUnit string      `json:"planning_unit"`
	Product      string      `json:"product"`
	Unit         string      `json:"unit"`
	Detail       string      `json:"detail"`
	Regions      []RegionRow `json:"regions"`
}

// Expand returns one flattened copy per region row, or the entry alone when it
// has none.
func (s *SubActionEntry) Expand() []SubActionLine {
	if len(s.Regions) == 0 {
		return []SubActionLine{{Entry: s}}
	}
	out := make([]SubActionLine, len(s.Regions))
	for i := range s.Regions {
		out[i] = SubActionLine{Entry: s, Region: s.Regions[i]}
	}
	return out
}

// SubActionLine is a sub-action paired with one of its region rows.
type SubActionLine struct {
	Entry  *SubActionEntry
	Region RegionRow
}

// StageEntry is one H block with its region and expense item children.
type StageEntry struct {
	ID         Identifier          `json:"id"`
	SubAction  Identifier          `json:"sub_action"`
	Name       string              `json:"name"`
	Owner      string              `json:"owner"`
	Deadline   string              `json:"deadline"`
	SearchText string              `json:"search_text"`
	Regions    []string            `json:"regions"`
	Items      []*ExpenseItemEntry `json:"items"`
	Implicit   bool                `json:"implicit,omitempty"`
}

// ExpenseItemEntry is one expense line of an I block.
type ExpenseItemEntry struct {
	Region      string `json:"region"`
	Nature      string `json:"nature"`
	Source      string `json:"source"`
	Purpose     string `json:"purpose"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Quantity    string `json:"quantity"`
	UnitValue   string `json:"unit_value"`
	TotalValue  string `json:"total_value"`
}
