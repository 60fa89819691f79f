// Package planner derives the Plan20 table from the denormalized records.
//
// Records are filtered by organizational unit and exercise, then each one
// gets the planning key found in its delivery text exploded into eight
// positional parts, and its nature-of-expense code exploded into five.
package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/pkg/logger"
)

// DefaultTargetUnit is the organizational unit of the education plan.
const DefaultTargetUnit = "14.101 - SECRETARIA DE ESTADO DE EDUCAÇÃO"

// Config holds the post-processing filter.
type Config struct {
	// TargetUnit is compared with the trimmed organizational unit.
	TargetUnit string `json:"target_unit" mapstructure:"target_unit"`

	// MinExercise is the first exercise kept. Exercises that are not numeric
	// are dropped.
	MinExercise int `json:"min_exercise" mapstructure:"min_exercise"`

	// KeyPlaceholder fills missing planning key parts.
	KeyPlaceholder string `json:"key_placeholder" mapstructure:"key_placeholder"`
}

// DefaultConfig returns the filter used for the education plan.
func DefaultConfig() *Config {
	return &Config{
		TargetUnit:     DefaultTargetUnit,
		MinExercise:    2025,
		KeyPlaceholder: models.DefaultText,
	}
}

// Validate validates the planner configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TargetUnit) == "" {
		return fmt.Errorf("target unit cannot be empty")
	}
	if c.MinExercise < 1900 || c.MinExercise > 9999 {
		return fmt.Errorf("min exercise must be a four digit year, got %d", c.MinExercise)
	}
	if c.KeyPlaceholder == "" {
		return fmt.Errorf("key placeholder cannot be empty")
	}
	return nil
}

// Stats counts the filter outcome.
type Stats struct {
	Input           int `json:"input"`
	Kept            int `json:"kept"`
	OtherUnit       int `json:"other_unit"`
	EarlierExercise int `json:"earlier_exercise"`
	InvalidExercise int `json:"invalid_exercise"`
}

// Planner filters and explodes records.
type Planner struct {
	config *Config
	min    decimal.Decimal
	logger logger.Logger
	trail  *logger.Trail
	stats  Stats
}

// New creates a planner. A nil config uses the defaults.
func New(config *Config, log logger.Logger, trail *logger.Trail) (*Planner, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid planner config: %w", err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if trail == nil {
		trail = logger.NewTrail(nil, log)
	}
	return &Planner{
		config: config,
		min:    decimal.NewFromInt(int64(config.MinExercise)),
		logger: log.WithComponent("planner"),
		trail:  trail,
	}, nil
}

// Stats returns the counters of the last Process call.
func (p *Planner) Stats() Stats {
	return p.stats
}

// Process returns the plan rows of the records that pass the filter, in
// input order.
func (p *Planner) Process(records []*models.DenormalizedRecord) []*models.PlanRecord {
	p.stats = Stats{Input: len(records)}

	out := make([]*models.PlanRecord, 0, len(records))
	for _, r := range records {
		switch p.reject(r) {
		case rejectUnit:
			p.stats.OtherUnit++
			continue
		case rejectInvalid:
			p.stats.InvalidExercise++
			continue
		case rejectEarlier:
			p.stats.EarlierExercise++
			continue
		}
		key := PlanningKey(r.Delivery)
		out = append(out, &models.PlanRecord{
			Record:      *r,
			PlanningKey: key,
			KeyParts:    explodeKey(key, p.config.KeyPlaceholder),
			NatureParts: ExplodeNature(r.Nature),
		})
	}
	p.stats.Kept = len(out)

	p.trail.Record("Plan20_SEDUC", "filtered rows (unit+exercise): %d of %d", p.stats.Kept, p.stats.Input)
	p.logger.WithFields(logger.Fields{
		"input":            p.stats.Input,
		"kept":             p.stats.Kept,
		"other_unit":       p.stats.OtherUnit,
		"earlier_exercise": p.stats.EarlierExercise,
		"invalid_exercise": p.stats.InvalidExercise,
	}).Info("Plan rows selected")
	return out
}

const (
	rejectNone = iota
	rejectUnit
	rejectInvalid
	rejectEarlier
)

// Keep reports whether a record passes the unit and exercise filter.
func (p *Planner) Keep(r *models.DenormalizedRecord) bool {
	return p.reject(r) == rejectNone
}

func (p *Planner) reject(r *models.DenormalizedRecord) int {
	if strings.TrimSpace(r.OrgUnit) != p.config.TargetUnit {
		return rejectUnit
	}
	year, err := decimal.NewFromString(strings.TrimSpace(r.Exercise))
	if err != nil {
		return rejectInvalid
	}
	if year.LessThan(p.min) {
		return rejectEarlier
	}
	return rejectNone
}

var (
	starredKey = regexp.MustCompile(`-\s*(\*.*\*)`)
	spaceRuns  = regexp.MustCompile(`\s+`)
)

// PlanningKey returns the starred group that follows a dash in a delivery
// text, whitespace collapsed, or "-" when there is none.
func PlanningKey(delivery string) string {
	s := strings.ReplaceAll(delivery, "\u00a0", " ")
	m := starredKey.FindStringSubmatch(s)
	if m == nil {
		return models.DefaultText
	}
	return strings.TrimSpace(spaceRuns.ReplaceAllString(m[1], " "))
}

// ExplodeKey splits a planning key on "*" into its eight positional parts.
// Empty parts are dropped and missing ones are "-".
func ExplodeKey(key string) [8]string {
	return explodeKey(key, models.DefaultText)
}

func explodeKey(key, placeholder string) [8]string {
	var out [8]string
	n := 0
	for _, part := range strings.Split(strings.ReplaceAll(key, "\u00a0", " "), "*") {
		part = strings.TrimSpace(part)
		if part == "" || n == len(out) {
			continue
		}
		out[n] = part
		n++
	}
	for ; n < len(out); n++ {
		out[n] = placeholder
	}
	return out
}

// ExplodeNature splits a nature-of-expense code on "." into its five
// positional parts; missing parts are empty.
func ExplodeNature(nature string) [5]string {
	var out [5]string
	s := strings.TrimSpace(nature)
	if s == "" {
		return out
	}
	copy(out[:], strings.Split(s, "."))
	return out
}
