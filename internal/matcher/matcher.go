package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/internal/textnorm"
)

// Strategy narrows a candidate list for one target. An empty result means the
// strategy found nothing and the chain moves on.
type Strategy[C any, T any] interface {
	Name() string
	TryMatch(candidates []C, target T) []C
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc[C any, T any] struct {
	name string
	fn   func([]C, T) []C
}

// NewStrategy creates a named strategy from a function.
func NewStrategy[C any, T any](name string, fn func([]C, T) []C) StrategyFunc[C, T] {
	return StrategyFunc[C, T]{name: name, fn: fn}
}

// Name returns the strategy name.
func (s StrategyFunc[C, T]) Name() string { return s.name }

// TryMatch runs the wrapped function.
func (s StrategyFunc[C, T]) TryMatch(candidates []C, target T) []C {
	if len(candidates) == 0 {
		return nil
	}
	return s.fn(candidates, target)
}

// ChainMode controls how a chain combines its strategies.
type ChainMode int

const (
	// Cascade applies every strategy that finds something, each one working
	// on the survivors of the previous.
	Cascade ChainMode = iota

	// FirstHit stops at the first strategy that finds something.
	FirstHit
)

// String returns the string representation of ChainMode
func (m ChainMode) String() string {
	switch m {
	case Cascade:
		return "cascade"
	case FirstHit:
		return "first-hit"
	default:
		return "unknown"
	}
}

// MatchResult is the outcome of one chain evaluation.
type MatchResult[C any] struct {
	// Candidates are the survivors; empty when nothing matched in FirstHit
	// mode, the untouched input when nothing applied in Cascade mode.
	Candidates []C

	// Applied lists the strategies that narrowed the list, in order.
	Applied []string
}

// Best returns the first surviving candidate.
func (r MatchResult[C]) Best() (C, bool) {
	var zero C
	if len(r.Candidates) == 0 {
		return zero, false
	}
	return r.Candidates[0], true
}

// Decided returns the strategy names joined for logging, or "none".
func (r MatchResult[C]) Decided() string {
	if len(r.Applied) == 0 {
		return "none"
	}
	return strings.Join(r.Applied, ">")
}

// Chain is an ordered list of strategies.
type Chain[C any, T any] struct {
	Name       string
	Mode       ChainMode
	Strategies []Strategy[C, T]
}

// Run evaluates the chain.
func (c *Chain[C, T]) Run(candidates []C, target T) MatchResult[C] {
	switch c.Mode {
	case FirstHit:
		for _, s := range c.Strategies {
			if got := s.TryMatch(candidates, target); len(got) > 0 {
				return MatchResult[C]{Candidates: got, Applied: []string{s.Name()}}
			}
		}
		return MatchResult[C]{}
	default:
		res := MatchResult[C]{Candidates: candidates}
		for _, s := range c.Strategies {
			if got := s.TryMatch(res.Candidates, target); len(got) > 0 {
				res.Candidates = got
				res.Applied = append(res.Applied, s.Name())
			}
		}
		return res
	}
}

// ProductTarget describes the sub-action line a product is chosen for.
type ProductTarget struct {
	// DIndex is the product block the sub-action sits under, 0 when unknown.
	DIndex int
	// PlanProduct is the product text of the delivery plan block.
	PlanProduct string
	// Region is the region of the sub-action line.
	Region string
}

// StageTarget describes the stage an expense item belongs to.
type StageTarget struct {
	// Text is the normalized search text of the stage.
	Text string
	// Codes are the delivery codes found in the raw search text.
	Codes map[string]bool
}

// Matcher holds the compiled patterns and the strategy chains.
type Matcher struct {
	config         *MatchingConfig
	regionCode     *regexp.Regexp
	codes          *regexp.Regexp
	municipalities *regexp.Regexp

	productFilter *Chain[*models.ProductCandidate, ProductTarget]
	productPick   *Chain[*models.ProductCandidate, ProductTarget]
	regionRefine  *Chain[*models.DenormalizedRecord, StageTarget]
}

// NewMatcher validates the configuration and builds the chains.
func NewMatcher(config *MatchingConfig) (*Matcher, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}

	m := &Matcher{
		config:         config,
		regionCode:     regexp.MustCompile(config.RegionCodePattern),
		codes:          regexp.MustCompile(config.CodePattern),
		municipalities: regexp.MustCompile(config.MunicipalitySeparators),
	}

	m.productFilter = &Chain[*models.ProductCandidate, ProductTarget]{
		Name: "product-filter",
		Mode: Cascade,
		Strategies: []Strategy[*models.ProductCandidate, ProductTarget]{
			NewStrategy("d-index", matchDIndex),
			NewStrategy("product-text", matchProductText),
		},
	}
	m.productPick = &Chain[*models.ProductCandidate, ProductTarget]{
		Name: "product-pick",
		Mode: FirstHit,
		Strategies: []Strategy[*models.ProductCandidate, ProductTarget]{
			NewStrategy("region", matchProductRegion),
			NewStrategy("non-zero-target", m.matchNonZeroTarget),
			NewStrategy("first", func(c []*models.ProductCandidate, _ ProductTarget) []*models.ProductCandidate {
				return c[:1]
			}),
		},
	}

	refine := []Strategy[*models.DenormalizedRecord, StageTarget]{}
	if config.EnableTextRefinement {
		refine = append(refine,
			NewStrategy("municipality", m.matchMunicipality),
			NewStrategy("code-overlap", m.matchCodeOverlap),
		)
	}
	m.regionRefine = &Chain[*models.DenormalizedRecord, StageTarget]{
		Name:       "region-refine",
		Mode:       FirstHit,
		Strategies: refine,
	}

	return m, nil
}

// GetConfiguration returns the matcher configuration.
func (m *Matcher) GetConfiguration() *MatchingConfig {
	return m.config
}

// SelectProduct picks the product a sub-action line delivers. The filter
// chain narrows the bucket's products, then the pick chain chooses one.
func (m *Matcher) SelectProduct(products []*models.ProductCandidate, target ProductTarget) MatchResult[*models.ProductCandidate] {
	if len(products) == 0 {
		return MatchResult[*models.ProductCandidate]{}
	}
	filtered := m.productFilter.Run(products, target)
	picked := m.productPick.Run(filtered.Candidates, target)
	picked.Applied = append(filtered.Applied, picked.Applied...)
	return picked
}

// RefineRegionGroup narrows the rows of one region group using the stage text.
// When no strategy hits the group is returned unchanged.
func (m *Matcher) RefineRegionGroup(rows []*models.DenormalizedRecord, stage StageTarget) MatchResult[*models.DenormalizedRecord] {
	res := m.regionRefine.Run(rows, stage)
	if len(res.Candidates) == 0 {
		return MatchResult[*models.DenormalizedRecord]{Candidates: rows}
	}
	return res
}

// NewStageTarget builds the matching view of a stage search text.
func (m *Matcher) NewStageTarget(searchText string) StageTarget {
	return StageTarget{
		Text:  textnorm.Normalize(searchText),
		Codes: m.codeSet(searchText),
	}
}

// RegionKey returns the numeric region code of a region text, or "".
func (m *Matcher) RegionKey(region string) string {
	return m.regionCode.FindString(strings.TrimSpace(region))
}

func (m *Matcher) codeSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, c := range m.codes.FindAllString(s, -1) {
		out[c] = true
	}
	return out
}

func matchDIndex(c []*models.ProductCandidate, t ProductTarget) []*models.ProductCandidate {
	if t.DIndex == 0 {
		return nil
	}
	var out []*models.ProductCandidate
	for _, p := range c {
		if p.DIndex == t.DIndex {
			out = append(out, p)
		}
	}
	return out
}

func matchProductText(c []*models.ProductCandidate, t ProductTarget) []*models.ProductCandidate {
	want := textnorm.Normalize(t.PlanProduct)
	if want == "" {
		return nil
	}
	var out []*models.ProductCandidate
	for _, p := range c {
		if textnorm.Normalize(p.Name) == want {
			out = append(out, p)
		}
	}
	return out
}

func matchProductRegion(c []*models.ProductCandidate, t ProductTarget) []*models.ProductCandidate {
	want := strings.TrimSpace(t.Region)
	if want == "" {
		return nil
	}
	for _, p := range c {
		if strings.TrimSpace(p.Region) == want {
			return []*models.ProductCandidate{p}
		}
	}
	return nil
}

func (m *Matcher) matchNonZeroTarget(c []*models.ProductCandidate, _ ProductTarget) []*models.ProductCandidate {
	for _, p := range c {
		if m.config.IsNonZeroTarget(p.Target) {
			return []*models.ProductCandidate{p}
		}
	}
	return nil
}

// Municipalities splits a municipality list into trimmed names.
func (m *Matcher) Municipalities(s string) []string {
	var out []string
	for _, part := range m.municipalities.Split(s, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (m *Matcher) matchMunicipality(rows []*models.DenormalizedRecord, t StageTarget) []*models.DenormalizedRecord {
	var out []*models.DenormalizedRecord
	for _, r := range rows {
		for _, name := range m.Municipalities(r.Municipalities) {
			if n := textnorm.Normalize(name); n != "" && strings.Contains(t.Text, n) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func (m *Matcher) matchCodeOverlap(rows []*models.DenormalizedRecord, t StageTarget) []*models.DenormalizedRecord {
	if len(t.Codes) == 0 {
		return nil
	}
	var out []*models.DenormalizedRecord
	for _, r := range rows {
		for code := range m.codeSet(r.Code) {
			if t.Codes[code] {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
