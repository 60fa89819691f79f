// Package denormalizer flattens an extraction into one record per leaf.
//
// Base lines are built per action bucket: one per sub-action line with the
// product chosen by the matcher, plus one per product no sub-action used. The
// lines of each sub-action are then expanded with its stages and expense
// items, joined to the sub-action's region groups by numeric region code.
// Every field left empty ends with a neutral default.
package denormalizer

import (
	"fmt"
	"strings"

	"plan20-extraction-service/internal/extractor"
	"plan20-extraction-service/internal/matcher"
	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

// Config holds joiner settings.
type Config struct {
	Matching *matcher.MatchingConfig `json:"matching" mapstructure:"matching"`

	// Defaults by column header. Columns missing here get FallbackDefault.
	Defaults map[string]string `json:"defaults" mapstructure:"defaults"`

	FallbackDefault string `json:"fallback_default" mapstructure:"fallback_default"`

	// PublicTargetSeparator joins the public targets of a program.
	PublicTargetSeparator string `json:"public_target_separator" mapstructure:"public_target_separator"`
}

// DefaultValues returns the neutral value of every column that has one.
func DefaultValues() map[string]string {
	return map[string]string{
		models.ColProduct:          models.DefaultProduct,
		models.ColProductUnit:      models.DefaultProductUnit,
		models.ColProductTarget:    models.DefaultTarget,
		models.ColProductRemaining: models.DefaultRemaining,
		models.ColNature:           models.DefaultNature,
		models.ColQuantity:         models.DefaultAmount,
		models.ColUnitValue:        models.DefaultAmount,
		models.ColTotalValue:       models.DefaultAmount,
	}
}

// DefaultConfig returns the default joiner configuration.
func DefaultConfig() *Config {
	return &Config{
		Matching:              matcher.DefaultMatchingConfig(),
		Defaults:              DefaultValues(),
		FallbackDefault:       models.DefaultText,
		PublicTargetSeparator: " * ",
	}
}

// Validate validates the joiner configuration.
func (c *Config) Validate() error {
	if c.Matching == nil {
		return fmt.Errorf("matching config is required")
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching config: %w", err)
	}
	known := make(map[string]bool, len(models.ExtractHeaders))
	for _, h := range models.ExtractHeaders {
		known[h] = true
	}
	for col := range c.Defaults {
		if !known[col] {
			return fmt.Errorf("default for unknown column '%s'", col)
		}
	}
	if c.FallbackDefault == "" {
		return fmt.Errorf("fallback default cannot be empty")
	}
	return nil
}

// Stats counts the joiner decisions of one run.
type Stats struct {
	BaseLines         int `json:"base_lines"`
	UnusedProducts    int `json:"unused_products"`
	ProductDivergence int `json:"product_divergence"`
	StageDivergence   int `json:"stage_divergence"`
	Records           int `json:"records"`
}

// Joiner assembles denormalized records.
type Joiner struct {
	config  *Config
	matcher *matcher.Matcher
	logger  logger.Logger
	trail   *logger.Trail
	issues  *errors.IssueCollector
	stats   Stats
}

// NewJoiner creates a joiner. Nil arguments fall back to defaults.
func NewJoiner(config *Config, log logger.Logger, trail *logger.Trail, issues *errors.IssueCollector) (*Joiner, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "denormalizer", "", err)
	}
	m, err := matcher.NewMatcher(config.Matching)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", "", err)
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
	return &Joiner{
		config:  config,
		matcher: m,
		logger:  log.WithComponent("denormalizer"),
		trail:   trail,
		issues:  issues,
	}, nil
}

// Stats returns the counters of the last Join.
func (j *Joiner) Stats() Stats {
	return j.stats
}

// line is a base record plus the sub-action it came from.
type line struct {
	rec *models.DenormalizedRecord
	gid models.Identifier
}

// Join flattens the extraction and fills the defaults.
func (j *Joiner) Join(ex *extractor.Extraction) []*models.DenormalizedRecord {
	j.stats = Stats{}

	var base []line
	for _, p := range ex.Programs {
		for _, b := range p.Actions {
			base = append(base, j.bucketLines(p, b)...)
		}
	}
	j.stats.BaseLines = len(base)

	out := j.enrich(ex, base)
	for _, r := range out {
		j.ApplyDefaults(r)
	}
	j.stats.Records = len(out)

	j.logger.WithFields(logger.Fields{
		"base_lines":         j.stats.BaseLines,
		"records":            j.stats.Records,
		"unused_products":    j.stats.UnusedProducts,
		"product_divergence": j.stats.ProductDivergence,
		"stage_divergence":   j.stats.StageDivergence,
	}).Info("Records denormalized")
	return out
}

func (j *Joiner) programRecord(p *models.ProgramContext, b *models.ActionBucket) models.DenormalizedRecord {
	return models.DenormalizedRecord{
		Exercise:     p.Exercise,
		Program:      p.Fields.Program,
		Function:     p.Fields.Function,
		OrgUnit:      p.Fields.OrgUnit,
		Action:       b.Text(),
		SubFunction:  p.Fields.SubFunction,
		Objective:    p.Fields.Objective,
		Sphere:       p.Fields.Sphere,
		ActionOwner:  p.Fields.ActionOwner,
		PublicTarget: strings.Join(b.PublicTargets, j.config.PublicTargetSeparator),
	}
}

func withProduct(r models.DenormalizedRecord, p *models.ProductCandidate) *models.DenormalizedRecord {
	if p != nil {
		r.Product = p.Name
		r.ProductUnit = p.Unit
		r.ProductRegion = p.Region
		r.ProductTarget = p.Target
		r.ProductRemaining = p.Remaining
	}
	return &r
}

// bucketLines builds the base lines of one action bucket.
func (j *Joiner) bucketLines(p *models.ProgramContext, b *models.ActionBucket) []line {
	prog := j.programRecord(p, b)
	where := fmt.Sprintf("%s/%s", p.ID, b.Code)

	if len(b.SubActions) == 0 {
		if len(b.Products) == 0 {
			return []line{{rec: withProduct(prog, nil)}}
		}
		out := make([]line, 0, len(b.Products))
		for _, prod := range b.Products {
			out = append(out, line{rec: withProduct(prog, prod)})
		}
		return out
	}

	var out []line
	used := make(map[*models.ProductCandidate]bool, len(b.Products))
	for _, sa := range b.SubActions {
		for _, sl := range sa.Expand() {
			region := strings.TrimSpace(sl.Region.Region)
			res := j.matcher.SelectProduct(b.Products, matcher.ProductTarget{
				DIndex:      sa.DIndex,
				PlanProduct: sa.PlanProduct,
				Region:      region,
			})
			chosen, ok := res.Best()
			if ok {
				used[chosen] = true
				j.trail.Record(where, "sub-action %s region %q -> product %q (%s)",
					sa.ID, region, chosen.Name, res.Decided())
			}

			rec := withProduct(prog, chosen)
			if ok {
				if note, diverged := j.matcher.ProductRegionDivergence(chosen.Region, region); diverged {
					rec.ProductRegion = note
					j.stats.ProductDivergence++
					j.trail.Record(where, "product region diverges for %s: %s", sa.ID, note)
				}
			}

			rec.Delivery = sa.Delivery
			rec.Owner = sa.Owner
			rec.Deadline = sa.Deadline
			rec.ManagingUnit = sa.ManagingUnit
			rec.PlanningUnit = sa.PlanningUnit
			rec.SubActionProduct = sa.Product
			rec.SubActionUnit = sa.Unit
			rec.SubActionRegion = sl.Region.Region
			rec.Code = sl.Region.Code
			rec.Municipalities = sl.Region.Municipalities
			rec.SubActionTarget = sl.Region.Target
			rec.Detail = sa.Detail
			out = append(out, line{rec: rec, gid: sa.ID})
		}
	}

	for _, prod := range b.Products {
		if used[prod] {
			continue
		}
		j.stats.UnusedProducts++
		j.trail.Record(where, "product %q (D%d) not chosen by any sub-action; kept as its own line", prod.Name, prod.DIndex)
		out = append(out, line{rec: withProduct(prog, prod)})
	}
	return out
}

// enrich expands sub-action lines with stages and items. Lines with no
// sub-action follow at the end.
func (j *Joiner) enrich(ex *extractor.Extraction, base []line) []*models.DenormalizedRecord {
	var order []models.Identifier
	byGID := make(map[models.Identifier][]*models.DenormalizedRecord)
	for _, l := range base {
		if l.gid == "" {
			continue
		}
		if _, ok := byGID[l.gid]; !ok {
			order = append(order, l.gid)
		}
		byGID[l.gid] = append(byGID[l.gid], l.rec)
	}

	var out []*models.DenormalizedRecord
	for _, gid := range order {
		lines := byGID[gid]
		stages := ex.StagesOf(gid)
		if len(stages) == 0 {
			for _, r := range lines {
				c := *r
				out = append(out, &c)
			}
			continue
		}
		groups := j.matcher.NewRegionIndex(lines)
		for _, st := range stages {
			out = append(out, j.stageRecords(gid, st, lines, groups)...)
		}
	}

	for _, l := range base {
		if l.gid == "" {
			c := *l.rec
			out = append(out, &c)
		}
	}
	return out
}

// pickGroup returns a copy of the group's first line carrying the joined
// fields of the whole group.
func (j *Joiner) pickGroup(group []*models.DenormalizedRecord) *models.DenormalizedRecord {
	rec := *group[0]
	j.matcher.ConcatGroupFields(group).Apply(&rec)
	return &rec
}

// fallbackGroup uses the first region group for a stage region with no
// group of its own, annotating the divergence.
func (j *Joiner) fallbackGroup(gid models.Identifier, groups *matcher.RegionIndex, key string) *models.DenormalizedRecord {
	_, group, _ := groups.First()
	rec := j.pickGroup(group)
	if note, diverged := j.matcher.StageRegionDivergence(rec.SubActionRegion, key); diverged {
		rec.SubActionRegion = note
		j.stats.StageDivergence++
		j.trail.Record(string(gid), "stage region %s has no region group; first group used: %s", key, note)
	}
	return rec
}

func setStage(r *models.DenormalizedRecord, st *models.StageEntry, region string) {
	r.Stage = st.Name
	r.StageOwner = st.Owner
	r.StageDeadline = st.Deadline
	r.StageRegion = region
}

func (j *Joiner) stageRecords(gid models.Identifier, st *models.StageEntry, lines []*models.DenormalizedRecord, groups *matcher.RegionIndex) []*models.DenormalizedRecord {
	var out []*models.DenormalizedRecord

	if len(st.Items) == 0 {
		regions := st.Regions
		if len(regions) == 0 {
			regions = []string{""}
		}
		for _, reg := range regions {
			reg = strings.TrimSpace(reg)
			key := j.matcher.RegionKey(reg)
			var rec *models.DenormalizedRecord
			if group := groups.Get(key); len(group) > 0 {
				rec = j.pickGroup(group)
			} else {
				rec = j.fallbackGroup(gid, groups, key)
			}
			setStage(rec, st, reg)
			out = append(out, rec)
		}
		return out
	}

	target := j.matcher.NewStageTarget(st.SearchText)
	for _, item := range st.Items {
		reg := strings.TrimSpace(item.Region)
		key := j.matcher.RegionKey(reg)

		var rec *models.DenormalizedRecord
		switch group := groups.Get(key); {
		case len(group) > 0:
			res := j.matcher.RefineRegionGroup(group, target)
			rec = j.pickGroup(res.Candidates)
			if len(res.Applied) > 0 {
				j.trail.Record(string(st.ID), "item region %s refined by %s", key, res.Decided())
			}
		case groups.Len() > 0:
			rec = j.fallbackGroup(gid, groups, key)
		default:
			c := *lines[0]
			rec = &c
		}

		setStage(rec, st, reg)
		rec.Nature = item.Nature
		rec.Source = item.Source
		rec.Purpose = item.Purpose
		rec.Description = item.Description
		rec.ItemUnit = item.Unit
		rec.Quantity = item.Quantity
		rec.UnitValue = item.UnitValue
		rec.TotalValue = item.TotalValue
		out = append(out, rec)
	}
	return out
}

// ApplyDefaults fills every blank field with its neutral value.
func (j *Joiner) ApplyDefaults(r *models.DenormalizedRecord) {
	for i, p := range r.Fields() {
		if strings.TrimSpace(*p) != "" {
			continue
		}
		if v, ok := j.config.Defaults[models.ExtractHeaders[i]]; ok {
			*p = v
		} else {
			*p = j.config.FallbackDefault
		}
	}
}
