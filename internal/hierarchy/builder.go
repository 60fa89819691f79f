// Package hierarchy rebuilds the implicit plan hierarchy of a workbook.
//
// The builder walks every sheet once, keeping one open identifier per level in
// a State value, and tags each non-blank row with an identifier and a
// sub-sequence number. Transitions are evaluated in a fixed priority order;
// the first one whose predicate matches is applied. Program header rows are
// buffered until the action row that supplies their code shows up.
package hierarchy

import (
	"fmt"
	"time"

	"plan20-extraction-service/internal/classifier"
	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/internal/textnorm"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

// Config holds builder settings.
type Config struct {
	// WorkbookCounter is the counter of the workbook scope (A<n>).
	WorkbookCounter int `json:"workbook_counter" mapstructure:"workbook_counter"`

	// ProgressInterval controls how often row progress is logged per sheet.
	ProgressInterval time.Duration `json:"progress_interval" mapstructure:"progress_interval"`
}

// DefaultConfig returns the default builder configuration.
func DefaultConfig() *Config {
	return &Config{
		WorkbookCounter:  1,
		ProgressInterval: 2 * time.Second,
	}
}

// Validate validates the builder configuration.
func (c *Config) Validate() error {
	if c.WorkbookCounter < 1 {
		return fmt.Errorf("workbook counter must be at least 1, got %d", c.WorkbookCounter)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress interval cannot be negative")
	}
	return nil
}

// Opening records that an identifier was opened while the tag at index Tag
// was being processed.
type Opening struct {
	ID  models.Identifier `json:"id"`
	Tag int               `json:"tag"`
}

// SheetStats summarizes one sheet walk.
type SheetStats struct {
	Name      string            `json:"name"`
	Block     models.Identifier `json:"block"`
	Rows      int               `json:"rows"`
	Blank     int               `json:"blank"`
	Tagged    int               `json:"tagged"`
	Untagged  int               `json:"untagged"`
	Discarded int               `json:"discarded"`
}

// Result is the outcome of one workbook walk. Tags holds every non-blank row
// in sheet then row order.
type Result struct {
	Workbook models.Identifier `json:"workbook"`
	Tags     []models.RowTag   `json:"tags"`
	Openings []Opening         `json:"openings"`
	Sheets   []SheetStats      `json:"sheets"`
	MaxCols  int               `json:"max_cols"`
}

// TaggedCount returns the number of rows that received an identifier.
func (r *Result) TaggedCount() int {
	n := 0
	for i := range r.Tags {
		if r.Tags[i].Tagged() {
			n++
		}
	}
	return n
}

// Builder tags workbook rows with hierarchical identifiers.
type Builder struct {
	config      *Config
	classifier  *classifier.Classifier
	logger      logger.Logger
	trail       *logger.Trail
	issues      *errors.IssueCollector
	transitions []transition
}

// NewBuilder creates a builder. A nil config uses the defaults.
func NewBuilder(config *Config, c *classifier.Classifier, log logger.Logger, trail *logger.Trail, issues *errors.IssueCollector) *Builder {
	if config == nil {
		config = DefaultConfig()
	}
	if c == nil {
		c = classifier.New()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if trail == nil {
		trail = logger.NewTrail(nil, log)
	}
	if issues == nil {
		issues = errors.NewIssueCollector(0)
	}
	return &Builder{
		config:      config,
		classifier:  c,
		logger:      log.WithComponent("hierarchy"),
		trail:       trail,
		issues:      issues,
		transitions: defaultTransitions(),
	}
}

// Build walks every sheet of the workbook in order.
func (b *Builder) Build(wb *models.Workbook) *Result {
	res := &Result{
		Workbook: models.Identifier("").Child(models.LevelA, b.config.WorkbookCounter),
		Tags:     make([]models.RowTag, 0, wb.RowCount()),
		MaxCols:  wb.MaxCols(),
	}
	res.Openings = append(res.Openings, Opening{ID: res.Workbook, Tag: 0})

	for i, sheet := range wb.Sheets {
		res.Sheets = append(res.Sheets, b.buildSheet(res, i+1, sheet))
	}
	return res
}

// sheetRun is the per-sheet walk: state plus the shared result.
type sheetRun struct {
	b     *Builder
	res   *Result
	state *State
	sheet *models.Sheet
	index int
	stats *SheetStats
}

// rowContext is the classified view of one non-blank row.
type rowContext struct {
	tag    int
	row    models.Row
	norm   string
	labels classifier.LabelSet
}

func (b *Builder) buildSheet(res *Result, index int, sheet *models.Sheet) SheetStats {
	run := &sheetRun{
		b:     b,
		res:   res,
		state: newState(res.Workbook, index),
		sheet: sheet,
		index: index,
	}
	run.stats = &SheetStats{Name: sheet.Name, Block: run.state.block, Rows: len(sheet.Rows)}
	res.Openings = append(res.Openings, Opening{ID: run.state.block, Tag: len(res.Tags)})
	b.trail.Record("sheet", "%s (%s)", sheet.Name, run.state.block)

	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "tag sheet " + sheet.Name,
		Total:       int64(len(sheet.Rows)),
		LogInterval: b.config.ProgressInterval,
		Logger:      b.logger,
	})

	first := len(res.Tags)
	for _, row := range sheet.Rows {
		progress.Increment()
		if row.IsBlank() {
			run.stats.Blank++
			run.blank(row)
			continue
		}

		norm := textnorm.Normalize(row.Joined())
		res.Tags = append(res.Tags, models.RowTag{
			Sheet:      sheet.Name,
			SheetIndex: index,
			Row:        row,
		})
		rc := &rowContext{
			tag:    len(res.Tags) - 1,
			row:    row,
			norm:   norm,
			labels: b.classifier.Classify(norm),
		}
		run.step(rc)
	}
	run.discardPending("end of sheet")
	progress.Complete()

	hasProgram := false
	for i := first; i < len(res.Tags); i++ {
		t := &res.Tags[i]
		if t.Tagged() {
			run.stats.Tagged++
			if t.Identifier.Ancestor(models.LevelC) != "" {
				hasProgram = true
			}
		} else {
			run.stats.Untagged++
		}
	}
	if !hasProgram {
		b.issues.Add(errors.NewIssue(errors.CodeMissingRequiredBlock,
			errors.SheetContext{Sheet: sheet.Name},
			"no program or action rows found; sheet contributes no records"))
		b.trail.Record(sheet.Name, "no program/action skeleton found")
	}

	b.logger.WithFields(logger.Fields{
		"sheet":    sheet.Name,
		"block":    string(run.state.block),
		"rows":     run.stats.Rows,
		"tagged":   run.stats.Tagged,
		"untagged": run.stats.Untagged,
	}).Info("Sheet tagged")

	return *run.stats
}

func (r *sheetRun) step(rc *rowContext) {
	for _, tr := range r.b.transitions {
		if !tr.match(r, rc) {
			continue
		}
		tr.apply(r, rc)
		if !tr.continues {
			return
		}
	}
}

func (r *sheetRun) where(rc *rowContext) errors.SheetContext {
	return errors.SheetContext{Sheet: r.sheet.Name, Row: rc.row.Index}
}

func (r *sheetRun) location(rc *rowContext) string {
	return r.where(rc).String()
}

// assign tags the row with id, continuing its sub-sequence.
func (r *sheetRun) assign(tag int, id models.Identifier) {
	r.state.sub[id]++
	r.res.Tags[tag].Identifier = id
	r.res.Tags[tag].SubSeq = r.state.sub[id]
}

// open starts id at sub-sequence 1 on the row and records the opening.
func (r *sheetRun) open(rc *rowContext, id models.Identifier) {
	r.opened(rc, id)
	r.state.sub[id] = 0
	r.assign(rc.tag, id)
}

func (r *sheetRun) opened(rc *rowContext, id models.Identifier) {
	r.res.Openings = append(r.res.Openings, Opening{ID: id, Tag: rc.tag})
}

// blank closes the row-local scopes: region, stage, product total, the
// exercise block and any pending program buffer.
func (r *sheetRun) blank(row models.Row) {
	s := r.state
	s.i, s.h = "", ""
	s.clearKeyH()
	s.closeTotal()
	s.blockActive = false
	if len(s.pending) > 0 {
		r.discardPending(fmt.Sprintf("blank row %d", row.Index))
	}
	s.pending = nil
	s.pendingBase = ""
	s.pendingActive = false
}

// discardPending drops a program buffer that never met its action row. The
// rows stay in the audit table without an identifier.
func (r *sheetRun) discardPending(reason string) {
	s := r.state
	if !s.pendingActive || len(s.pending) == 0 {
		return
	}
	first := r.res.Tags[s.pending[0]].Row.Index
	r.stats.Discarded += len(s.pending)
	r.b.trail.Record(r.sheet.Name,
		"program rows from row %d discarded without action (%d rows, %s)", first, len(s.pending), reason)
	r.b.issues.Add(errors.NewIssue(errors.CodeStructuralAmbiguity,
		errors.SheetContext{Sheet: r.sheet.Name, Row: first, Identifier: string(s.pendingBase)},
		fmt.Sprintf("program block closed by %s before its action row", reason)))
	s.pending = nil
	s.pendingBase = ""
	s.pendingActive = false
}

// newProgramBase allocates the next program counter of the sheet.
func (r *sheetRun) newProgramBase() models.Identifier {
	s := r.state
	s.countC++
	return s.block.Child(models.LevelC, s.countC)
}

// ensureAction opens a synthetic action scope when a lower level shows up
// with no action open.
func (r *sheetRun) ensureAction(rc *rowContext) {
	s := r.state
	if s.action != "" {
		return
	}
	if s.programBase == "" {
		s.programBase = r.newProgramBase()
	}
	if s.code == "" {
		s.code = "0"
	}
	s.action = s.programBase.WithCode(s.code)
	s.actionDone = false
	r.opened(rc, s.action)
	r.b.trail.Record(r.location(rc), "synthetic action %s opened for %s row", s.action, rc.labels)
	r.b.issues.Add(errors.NewIssue(errors.CodeStructuralAmbiguity,
		errors.SheetContext{Sheet: r.sheet.Name, Row: rc.row.Index, Identifier: string(s.action)},
		"level found with no open action; synthetic action created"))
}

// ensureProduct opens a synthetic product scope under the current action.
func (r *sheetRun) ensureProduct(rc *rowContext) bool {
	s := r.state
	if s.d != "" {
		return false
	}
	r.ensureAction(rc)
	s.countD++
	s.d = s.action.Child(models.LevelD, s.countD)
	s.actionDone = true
	r.opened(rc, s.d)
	r.b.trail.Record(r.location(rc), "synthetic product %s opened for %s row", s.d, rc.labels)
	return true
}

// ensureSubAction opens an implicit sub-action under the open delivery plan.
func (r *sheetRun) ensureSubAction(rc *rowContext) {
	s := r.state
	if s.g != "" {
		return
	}
	s.countG++
	s.g = s.f.Child(models.LevelG, s.countG)
	s.setKeyG(implicitKey)
	s.h, s.i = "", ""
	s.countH, s.countI = 0, 0
	s.clearKeyH()
	s.sub[s.g] = 0
	r.opened(rc, s.g)
	r.b.trail.Record(r.location(rc), "implicit sub-action %s opened", s.g)
}

const implicitKey = "<IMPLICITO>"
