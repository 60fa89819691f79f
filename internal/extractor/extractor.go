// Package extractor turns tagged rows into typed plan entities.
//
// Fields are read positionally: the sub-sequence a row reached inside its
// identifier decides which field it carries, and the column decides the
// value. Rows are grouped by identifier in order of first appearance, so the
// result never depends on map iteration.
//
// Example usage:
//
//	ext := extractor.New(nil, log, trail, issues)
//	extraction := ext.Extract(result.Tags)
//	for _, p := range extraction.Programs {
//		fmt.Println(p.ID, p.Fields.Program)
//	}
package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"plan20-extraction-service/internal/classifier"
	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/internal/textnorm"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

// Config holds extractor settings.
type Config struct {
	// DefaultPlanProduct is used when a delivery plan block names no product.
	DefaultPlanProduct string `json:"default_plan_product" mapstructure:"default_plan_product"`

	// MaxProgramFieldRows is the last program sub-row read for fields.
	MaxProgramFieldRows int `json:"max_program_field_rows" mapstructure:"max_program_field_rows"`
}

// DefaultConfig returns the default extractor configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultPlanProduct:  models.DefaultProduct,
		MaxProgramFieldRows: 8,
	}
}

// Validate validates the extractor configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DefaultPlanProduct) == "" {
		return fmt.Errorf("default plan product cannot be empty")
	}
	if c.MaxProgramFieldRows < 4 {
		return fmt.Errorf("max program field rows must be at least 4, got %d", c.MaxProgramFieldRows)
	}
	return nil
}

// Extraction is the typed content of one workbook.
type Extraction struct {
	// Programs in order of first appearance of their C identifier.
	Programs []*models.ProgramContext `json:"programs"`

	// Stages by sub-action identifier, each list in order of appearance.
	Stages map[models.Identifier][]*models.StageEntry `json:"stages"`

	// Exercises by block identifier.
	Exercises map[models.Identifier]string `json:"exercises"`
}

// StagesOf returns the stages of a sub-action.
func (e *Extraction) StagesOf(g models.Identifier) []*models.StageEntry {
	return e.Stages[g]
}

// Counts summarizes the extraction.
type Counts struct {
	Programs   int `json:"programs"`
	Buckets    int `json:"buckets"`
	Products   int `json:"products"`
	SubActions int `json:"sub_actions"`
	Stages     int `json:"stages"`
	Items      int `json:"items"`
}

// Counts returns entity totals. Products and sub-actions shared by several
// buckets of one program are counted once.
func (e *Extraction) Counts() Counts {
	var c Counts
	c.Programs = len(e.Programs)
	for _, p := range e.Programs {
		c.Buckets += len(p.Actions)
		if len(p.Actions) > 0 {
			c.Products += len(p.Actions[0].Products)
			c.SubActions += len(p.Actions[0].SubActions)
		}
	}
	for _, stages := range e.Stages {
		c.Stages += len(stages)
		for _, s := range stages {
			c.Items += len(s.Items)
		}
	}
	return c
}

// Extractor reads typed fields out of tagged rows.
type Extractor struct {
	config     *Config
	logger     logger.Logger
	trail      *logger.Trail
	issues     *errors.IssueCollector
	classifier *classifier.Classifier
}

// New creates an extractor. Nil arguments fall back to defaults.
func New(config *Config, log logger.Logger, trail *logger.Trail, issues *errors.IssueCollector) *Extractor {
	if config == nil {
		config = DefaultConfig()
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
	return &Extractor{
		config:     config,
		logger:     log.WithComponent("extractor"),
		trail:      trail,
		issues:     issues,
		classifier: classifier.New(),
	}
}

// SetClassifier replaces the classifier used to recognize action rows.
func (x *Extractor) SetClassifier(c *classifier.Classifier) {
	if c != nil {
		x.classifier = c
	}
}

// group is every row of one identifier, in tag order.
type group struct {
	id   models.Identifier
	rows []models.RowTag
}

func groupByIdentifier(tags []models.RowTag) []*group {
	index := make(map[models.Identifier]*group)
	var out []*group
	for _, t := range tags {
		if !t.Tagged() {
			continue
		}
		g, ok := index[t.Identifier]
		if !ok {
			g = &group{id: t.Identifier}
			index[t.Identifier] = g
			out = append(out, g)
		}
		g.rows = append(g.rows, t)
	}
	return out
}

// Extract builds the typed view of the tagged rows.
func (x *Extractor) Extract(tags []models.RowTag) *Extraction {
	groups := groupByIdentifier(tags)

	ex := &Extraction{
		Stages:    make(map[models.Identifier][]*models.StageEntry),
		Exercises: make(map[models.Identifier]string),
	}

	programs := make(map[models.Identifier]*models.ProgramContext)
	continued := make(map[models.Identifier]bool)
	buckets := make(map[models.Identifier][]*models.ActionBucket)
	products := make(map[models.Identifier][]*models.ProductCandidate)
	publics := make(map[models.Identifier][]string)
	planProducts := make(map[models.Identifier]string)
	subActions := make(map[models.Identifier][]*models.SubActionEntry)
	stages := make(map[models.Identifier]*models.StageEntry)
	seenG := make(map[models.Identifier]bool)
	var stageParents []models.Identifier
	addStage := func(st *models.StageEntry) {
		if _, ok := ex.Stages[st.SubAction]; !ok {
			stageParents = append(stageParents, st.SubAction)
		}
		ex.Stages[st.SubAction] = append(ex.Stages[st.SubAction], st)
	}

	program := func(cid models.Identifier) *models.ProgramContext {
		if p, ok := programs[cid]; ok {
			return p
		}
		p := &models.ProgramContext{ID: cid, Block: cid.Ancestor(models.LevelB)}
		programs[cid] = p
		ex.Programs = append(ex.Programs, p)
		return p
	}

	// Programs are ordered by the first row under them, at any depth.
	for _, g := range groups {
		if cid := g.id.Ancestor(models.LevelC); cid != "" {
			program(cid)
		}
	}

	for _, g := range groups {
		switch g.id.Level() {
		case models.LevelB:
			x.readExercise(ex, g)
		case models.LevelC:
			buckets[g.id], continued[g.id] = x.readProgram(program(g.id), g)
		case models.LevelD:
			cid := g.id.Ancestor(models.LevelC)
			products[cid] = append(products[cid], x.readProducts(g)...)
		case models.LevelE:
			cid := g.id.Ancestor(models.LevelC)
			publics[cid] = x.readPublicTargets(publics[cid], g)
		case models.LevelF:
			planProducts[g.id] = x.readPlanProduct(g)
		}
	}

	// Sub-actions and stages need the delivery plan products above.
	for _, g := range groups {
		switch g.id.Level() {
		case models.LevelG:
			cid := g.id.Ancestor(models.LevelC)
			subActions[cid] = append(subActions[cid], x.readSubAction(g, planProducts)...)
			seenG[g.id] = true
		case models.LevelH:
			st := x.readStage(g)
			stages[g.id] = st
			addStage(st)
		}
	}

	for _, g := range groups {
		if g.id.Level() != models.LevelI {
			continue
		}
		hid := g.id.Parent()
		st, ok := stages[hid]
		if !ok {
			st = &models.StageEntry{ID: hid, SubAction: hid.Parent(), Implicit: true}
			stages[hid] = st
			addStage(st)
			x.trail.Record(x.location(g), "region rows under %s with no stage rows; implicit stage created", hid)
			x.issues.Add(errors.NewIssue(errors.CodeStructuralAmbiguity, x.where(g),
				"region of planning found with no stage header"))
		}
		x.readRegion(st, g)
	}

	// An implicit sub-action has stages but no rows of its own.
	for _, gid := range stageParents {
		if seenG[gid] {
			continue
		}
		cid := gid.Ancestor(models.LevelC)
		fid := gid.Parent()
		planProduct, ok := planProducts[fid]
		if !ok {
			planProduct = x.config.DefaultPlanProduct
		}
		subActions[cid] = append(subActions[cid], &models.SubActionEntry{
			ID:          gid,
			Plan:        fid,
			Program:     cid,
			DIndex:      gid.Ancestor(models.LevelD).Index(),
			PlanProduct: planProduct,
		})
		x.trail.Record(string(gid), "stages with no sub-action rows; implicit sub-action created")
	}

	for _, p := range ex.Programs {
		if continued[p.ID] {
			x.inheritProgram(ex.Programs, continued, p)
		}
	}

	for _, p := range ex.Programs {
		p.Exercise = ex.Exercises[p.Block]
		p.Actions = buckets[p.ID]
		prods, subs := products[p.ID], subActions[p.ID]
		if len(p.Actions) == 0 {
			if len(prods) == 0 && len(subs) == 0 {
				continue
			}
			code := p.ID.Code()
			p.Synthetic = true
			p.Actions = []*models.ActionBucket{{Code: code}}
			x.trail.Record(string(p.ID), "no action text; synthetic bucket %s created", code)
			x.issues.Add(errors.NewIssue(errors.CodeStructuralAmbiguity,
				errors.SheetContext{Identifier: string(p.ID)},
				"program block without an action row; products attached to a synthetic action"))
		}
		for _, b := range p.Actions {
			b.Products = prods
			b.PublicTargets = publics[p.ID]
			b.SubActions = subs
		}
	}

	c := ex.Counts()
	x.logger.WithFields(logger.Fields{
		"programs":    c.Programs,
		"buckets":     c.Buckets,
		"products":    c.Products,
		"sub_actions": c.SubActions,
		"stages":      c.Stages,
		"items":       c.Items,
	}).Info("Fields extracted")

	return ex
}

func (x *Extractor) where(g *group) errors.SheetContext {
	first := g.rows[0]
	return errors.SheetContext{Sheet: first.Sheet, Row: first.Row.Index, Identifier: string(g.id)}
}

func (x *Extractor) location(g *group) string {
	return x.where(g).String()
}

// readExercise takes the year from the first block row.
func (x *Extractor) readExercise(ex *Extraction, g *group) {
	for _, t := range g.rows {
		if t.SubSeq != 1 {
			continue
		}
		if year := textnorm.FirstFourDigits(t.Row.Cell(1)); year != "" {
			ex.Exercises[g.id] = year
		}
	}
}

// readProgram maps program sub-rows 1..8 to fields; sub-row 4 carries the
// action text and yields the bucket code. A group that opens on an action row
// is a further action of an earlier program header: its rows are read from
// slot 4 on and the second result is true.
func (x *Extractor) readProgram(p *models.ProgramContext, g *group) ([]*models.ActionBucket, bool) {
	var actions []*models.ActionBucket
	bucket := func(code string) *models.ActionBucket {
		for _, b := range actions {
			if b.Code == code {
				return b
			}
		}
		b := &models.ActionBucket{Code: code}
		actions = append(actions, b)
		return b
	}

	shift := 0
	if x.opensOnAction(g) {
		shift = 3
	}

	for _, t := range g.rows {
		seq := t.SubSeq + shift
		if t.SubSeq < 1 || seq > x.config.MaxProgramFieldRows {
			continue
		}
		val := t.Row.Cell(4)
		if val == "" {
			val = t.Row.Cell(1)
		}
		switch seq {
		case 1:
			p.Fields.Program = val
		case 2:
			p.Fields.Function = val
		case 3:
			p.Fields.OrgUnit = val
		case 4:
			if val != "" {
				b := bucket(BucketCode(val))
				b.Texts = append(b.Texts, val)
			}
		case 5:
			p.Fields.SubFunction = val
		case 6:
			p.Fields.Objective = val
		case 7:
			p.Fields.Sphere = val
		case 8:
			p.Fields.ActionOwner = val
		}
	}
	return actions, shift > 0
}

func (x *Extractor) opensOnAction(g *group) bool {
	for _, t := range g.rows {
		if t.SubSeq != 1 {
			continue
		}
		labels := x.classifier.Classify(textnorm.Normalize(t.Row.Joined()))
		return labels.Has(classifier.Action) && !labels.Has(classifier.Program)
	}
	return false
}

// inheritProgram fills the empty fields of a continued action from the first
// program header read under the same base.
func (x *Extractor) inheritProgram(all []*models.ProgramContext, continued map[models.Identifier]bool, p *models.ProgramContext) {
	base := p.ID.Base()
	for _, q := range all {
		if q == p || continued[q.ID] || q.ID.Base() != base {
			continue
		}
		fillFields(&p.Fields, q.Fields)
		x.trail.Record(string(p.ID), "action continues program %s; header fields inherited", q.ID)
		return
	}
	x.trail.Record(string(p.ID), "action with no program header under %s", base)
}

func fillFields(dst *models.ProgramFields, src models.ProgramFields) {
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&dst.Program, src.Program},
		{&dst.Function, src.Function},
		{&dst.OrgUnit, src.OrgUnit},
		{&dst.SubFunction, src.SubFunction},
		{&dst.Objective, src.Objective},
		{&dst.Sphere, src.Sphere},
		{&dst.ActionOwner, src.ActionOwner},
	} {
		if *f.dst == "" {
			*f.dst = f.src
		}
	}
}

// BucketCode picks the action code of an action text: the first digit run of
// at least three digits, else the last digit run, else the text itself.
func BucketCode(text string) string {
	runs := textnorm.DigitRuns(text)
	for _, r := range runs {
		if len(r) >= 3 {
			return r
		}
	}
	if len(runs) > 0 {
		return runs[len(runs)-1]
	}
	return strings.TrimSpace(text)
}

func (x *Extractor) readProducts(g *group) []*models.ProductCandidate {
	var out []*models.ProductCandidate
	for _, t := range g.rows {
		if t.SubSeq == 1 {
			continue
		}
		name, unit := SplitProductUnit(t.Row.Cell(4))
		region, target, remaining := t.Row.Cell(6), t.Row.Cell(7), t.Row.Cell(8)
		if name == "" && unit == "" && region == "" && target == "" && remaining == "" {
			continue
		}
		out = append(out, &models.ProductCandidate{
			DIndex:    g.id.Index(),
			Name:      name,
			Unit:      unit,
			Region:    region,
			Target:    target,
			Remaining: remaining,
		})
	}
	return out
}

// SplitProductUnit splits "Name (Unit)". Text ending in "))" uses the first
// opening parenthesis so nested units survive; otherwise the last pair wins.
func SplitProductUnit(text string) (string, string) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", ""
	}
	if strings.HasSuffix(s, "))") {
		first, last := strings.Index(s, "("), strings.LastIndex(s, ")")
		if first != -1 && last > first {
			return strings.TrimSpace(s[:first]), strings.TrimSpace(s[first+1 : last])
		}
	}
	start, end := strings.LastIndex(s, "("), strings.LastIndex(s, ")")
	if start != -1 && end > start {
		return strings.TrimSpace(s[:start]), strings.TrimSpace(s[start+1 : end])
	}
	return s, ""
}

func (x *Extractor) readPublicTargets(list []string, g *group) []string {
	for _, t := range g.rows {
		v := t.Row.Cell(4)
		if v == "" {
			continue
		}
		dup := false
		for _, seen := range list {
			if seen == v {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, v)
		}
	}
	return list
}

var productLabel = regexp.MustCompile(`(?i)^\s*produto\(s\)?:\s*`)

func (x *Extractor) readPlanProduct(g *group) string {
	for _, t := range g.rows {
		if p := strings.TrimSpace(productLabel.ReplaceAllString(t.Row.Cell(5), "")); p != "" {
			return p
		}
	}
	return x.config.DefaultPlanProduct
}

// readSubAction walks the rows of one G. A product detail line closes the
// entry; rows of the same G after it start a new one.
func (x *Extractor) readSubAction(g *group, planProducts map[models.Identifier]string) []*models.SubActionEntry {
	fid := g.id.Parent()
	planProduct, ok := planProducts[fid]
	if !ok {
		planProduct = x.config.DefaultPlanProduct
	}

	var out []*models.SubActionEntry
	var cur *models.SubActionEntry
	open := func() *models.SubActionEntry {
		return &models.SubActionEntry{
			ID:          g.id,
			Plan:        fid,
			Program:     g.id.Ancestor(models.LevelC),
			DIndex:      g.id.Ancestor(models.LevelD).Index(),
			PlanProduct: planProduct,
		}
	}
	closeEntry := func() {
		if cur != nil {
			out = append(out, cur)
			cur = nil
		}
	}

	for _, t := range g.rows {
		if cur == nil {
			cur = open()
		}
		r := t.Row
		c1, c2, c4, c5, c7 := r.Cell(1), r.Cell(2), r.Cell(4), r.Cell(5), r.Cell(7)

		switch {
		case t.SubSeq == 1:
			cur.Delivery = textnorm.AfterColon(c1)
		case t.SubSeq == 2:
			cur.Owner = textnorm.AfterColon(c1)
			if _, after, found := strings.Cut(c5, "Prazo"); found {
				cur.Deadline = strings.TrimSpace(strings.Trim(after, ": "))
			}
		case t.SubSeq == 3:
			cur.ManagingUnit = textnorm.AfterColon(c1)
			cur.PlanningUnit = textnorm.AfterColon(c4)
			if strings.Contains(c5, ":") {
				cur.Product = textnorm.AfterColon(c5)
			}
			if strings.Contains(c7, ":") {
				cur.Unit = textnorm.AfterColon(c7)
			}
		case t.SubSeq == 4:
			// column header row
		case strings.HasPrefix(strings.ToLower(c1), "detalhamento do produto"):
			cur.Detail = textnorm.AfterColon(c1)
			closeEntry()
		case c2 != "" || c4 != "" || c5 != "" || c7 != "":
			cur.Regions = append(cur.Regions, models.RegionRow{
				Region:         c2,
				Code:           c4,
				Municipalities: c5,
				Target:         c7,
			})
		}
	}
	closeEntry()

	if len(out) > 1 {
		x.trail.Record(x.location(g), "sub-action %s reopened after its detail line (%d entries)", g.id, len(out))
	}
	return out
}

func searchText(r models.Row) string {
	parts := make([]string, 0, 8)
	for col := 1; col <= 8; col++ {
		if v := r.Cell(col); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func (x *Extractor) readStage(g *group) *models.StageEntry {
	st := &models.StageEntry{ID: g.id, SubAction: g.id.Parent()}
	for _, t := range g.rows {
		switch t.SubSeq {
		case 1:
			st.Name = t.Row.Cell(4)
		case 2:
			st.Owner = t.Row.Cell(3)
			st.Deadline = t.Row.Cell(6)
			if strings.Contains(st.Deadline, ":") {
				st.Deadline = textnorm.AfterColon(st.Deadline)
			}
		}
		st.SearchText += " " + searchText(t.Row)
	}
	return st
}

// readRegion records the region of one I block and its expense items. The
// second row is the column header.
func (x *Extractor) readRegion(st *models.StageEntry, g *group) {
	region := ""
	for _, t := range g.rows {
		r := t.Row
		switch {
		case t.SubSeq == 1:
			region = r.Cell(4)
			st.Regions = append(st.Regions, region)
		case t.SubSeq == 2:
		default:
			if searchText(r) == "" {
				continue
			}
			st.Items = append(st.Items, &models.ExpenseItemEntry{
				Region:      region,
				Nature:      r.Cell(1),
				Source:      r.Cell(2),
				Purpose:     r.Cell(3),
				Description: r.Cell(4),
				Unit:        r.Cell(5),
				Quantity:    r.Cell(6),
				UnitValue:   r.Cell(7),
				TotalValue:  r.Cell(8),
			})
		}
	}
}
