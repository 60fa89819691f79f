// Package matcher provides the ranked heuristics that join plan levels whose
// parent/child relation is ambiguous.
//
// The workbook never states which product a sub-action delivers, or which
// region group of a sub-action an expense item belongs to. These links are
// rebuilt by chains of small strategies evaluated in priority order:
//   - Product filters (cascade): product block index, then product text
//   - Product pick (first hit): region equality, non-zero target, first product
//   - Region refinement (first hit): municipality in stage text, code overlap
//
// Each strategy is pure and narrows a candidate list; a chain records which
// strategy decided so the caller can log the decision.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	m, err := matcher.NewMatcher(config)
//	if err != nil {
//		return err
//	}
//	result := m.SelectProduct(products, matcher.ProductTarget{DIndex: 1, Region: "Norte"})
package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MatchingConfig holds the parameters of the join heuristics.
//
// Use the provided factory functions for common scenarios:
//   - DefaultMatchingConfig(): the behavior expected by downstream consumers
//   - StrictMatchingConfig(): no text refinement, divergences still annotated
type MatchingConfig struct {
	// ZeroTargets are target spellings that count as zero without parsing.
	ZeroTargets []string `json:"zero_targets" mapstructure:"zero_targets"`

	// RegionCodePattern extracts the numeric region code used to group rows.
	RegionCodePattern string `json:"region_code_pattern" mapstructure:"region_code_pattern"`

	// CodePattern extracts the delivery codes compared against stage text.
	CodePattern string `json:"code_pattern" mapstructure:"code_pattern"`

	// MunicipalitySeparators splits a municipality list.
	MunicipalitySeparators string `json:"municipality_separators" mapstructure:"municipality_separators"`

	// FieldSeparator joins the fields of several rows of one region group.
	FieldSeparator string `json:"field_separator" mapstructure:"field_separator"`

	// EnableTextRefinement enables the municipality and code strategies.
	EnableTextRefinement bool `json:"enable_text_refinement" mapstructure:"enable_text_refinement"`

	// AnnotateDivergence appends a divergence note to region fields whenever a
	// fallback picked a row from another region.
	AnnotateDivergence bool `json:"annotate_divergence" mapstructure:"annotate_divergence"`
}

// DefaultMatchingConfig returns a configuration with the standard heuristics.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		ZeroTargets:            []string{"", "0", "0,0", "0,00", "0.0", "0.00"},
		RegionCodePattern:      `\d{4}`,
		CodePattern:            `\b\d{6,8}\b`,
		MunicipalitySeparators: `[;,*]+`,
		FieldSeparator:         " * ",
		EnableTextRefinement:   true,
		AnnotateDivergence:     true,
	}
}

// StrictMatchingConfig returns a configuration that joins items on the
// numeric region code alone.
func StrictMatchingConfig() *MatchingConfig {
	c := DefaultMatchingConfig()
	c.EnableTextRefinement = false
	return c
}

// Validate checks that every pattern compiles and the separator is set.
func (mc *MatchingConfig) Validate() error {
	for name, expr := range map[string]string{
		"region code pattern":     mc.RegionCodePattern,
		"code pattern":            mc.CodePattern,
		"municipality separators": mc.MunicipalitySeparators,
	} {
		if strings.TrimSpace(expr) == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, expr, err)
		}
	}

	if mc.FieldSeparator == "" {
		return fmt.Errorf("field separator cannot be empty")
	}

	return nil
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}

	clone := *mc
	clone.ZeroTargets = append([]string(nil), mc.ZeroTargets...)
	return &clone
}

// IsNonZeroTarget reports whether a target cell holds a non-zero amount.
// Thousands dots are dropped and the decimal comma becomes a point before
// parsing; text that still does not parse counts as non-zero.
func (mc *MatchingConfig) IsNonZeroTarget(v string) bool {
	s := strings.TrimSpace(v)
	for _, z := range mc.ZeroTargets {
		if s == z {
			return false
		}
	}

	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return true
	}
	return !d.IsZero()
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{RegionCode: %s, Code: %s, TextRefinement: %t, Annotate: %t}",
		mc.RegionCodePattern, mc.CodePattern, mc.EnableTextRefinement, mc.AnnotateDivergence)
}
