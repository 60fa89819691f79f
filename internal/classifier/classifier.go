// Package classifier decides which structural markers a normalized row carries.
//
// Each marker is an independent rule; a row may match several. The rules are
// kept in a fixed order so that the hierarchy builder can evaluate its
// transitions against a single LabelSet:
//   - Exercise        "exercicio igual a"
//   - Noise           rows starting with "emitir relatorio"
//   - Program         rows starting with "programa"
//   - Action          "acao" followed by a "p a o e" token run
//   - Product         "produto(s) da acao"
//   - ProductTotal    "total por produto"
//   - PublicTarget    "publico transversal"
//   - DeliveryPlan    "plano de acao por produto"
//   - SubAction       rows starting with "subacao", optionally "/entrega"
//   - Stage           rows starting with "etapa"
//   - Region          rows starting with "regiao (de) planejamento"
//
// Example usage:
//
//	c := classifier.New()
//	labels := c.Classify(textnorm.Normalize(row.Joined()))
//	if labels.Has(classifier.Program) {
//		key := classifier.ProgramKey(norm)
//	}
package classifier

import (
	"regexp"
	"strings"
)

// Label is one structural marker.
type Label uint16

const (
	Exercise Label = 1 << iota
	Noise
	Program
	Action
	Product
	ProductTotal
	PublicTarget
	DeliveryPlan
	SubAction
	Stage
	Region
)

var labelNames = []struct {
	label Label
	name  string
}{
	{Exercise, "exercise"},
	{Noise, "noise"},
	{Program, "program"},
	{Action, "action"},
	{Product, "product"},
	{ProductTotal, "product_total"},
	{PublicTarget, "public_target"},
	{DeliveryPlan, "delivery_plan"},
	{SubAction, "sub_action"},
	{Stage, "stage"},
	{Region, "region"},
}

// String returns the label name.
func (l Label) String() string {
	for _, ln := range labelNames {
		if ln.label == l {
			return ln.name
		}
	}
	return "unknown"
}

// LabelSet is the set of labels matched by one row.
type LabelSet uint16

// Has reports whether the set contains l.
func (s LabelSet) Has(l Label) bool {
	return s&LabelSet(l) != 0
}

// Empty reports whether no rule matched.
func (s LabelSet) Empty() bool {
	return s == 0
}

// Labels lists the labels of the set in rule order.
func (s LabelSet) Labels() []Label {
	var out []Label
	for _, ln := range labelNames {
		if s.Has(ln.label) {
			out = append(out, ln.label)
		}
	}
	return out
}

// String joins the label names with "+", or "none".
func (s LabelSet) String() string {
	labels := s.Labels()
	if len(labels) == 0 {
		return "none"
	}
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.String()
	}
	return strings.Join(names, "+")
}

// Rule recognizes one label on normalized text.
type Rule struct {
	Label Label
	Match func(norm string) bool
}

func pattern(expr string) func(string) bool {
	re := regexp.MustCompile(expr)
	return re.MatchString
}

// DefaultRules returns the recognizers in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Exercise, pattern(`\bexercici?o\s*igual\s*a\b`)},
		{Noise, func(s string) bool { return strings.HasPrefix(s, "emitir relatorio") }},
		{Program, pattern(`^programa\b`)},
		{Action, pattern(`\bacao\b.*\bp\s*a\s*o\s*e\b`)},
		{Product, pattern(`\bproduto\s*s?\s*da\s*acao\b|\bprodutos\s+da\s*acao\b`)},
		{ProductTotal, func(s string) bool { return strings.Contains(s, "total por produto") }},
		{PublicTarget, pattern(`\bpublico\s*transversal\b`)},
		{DeliveryPlan, pattern(`\bplano\s*de\s*acao\s*por\s*produto\b`)},
		{SubAction, pattern(`^suba[cç][aã]o(?:\s*[/ ]?entrega)?\b`)},
		{Stage, pattern(`^etapa\b`)},
		{Region, pattern(`^regiao\s*de\s*planejamento\b|^regiao\s*planejamento\b`)},
	}
}

// Classifier evaluates an ordered rule list.
type Classifier struct {
	rules []Rule
}

// New creates a classifier with the default rules.
func New() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

// NewWithRules creates a classifier with a custom rule list.
func NewWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns every label whose rule matches the normalized text.
func (c *Classifier) Classify(norm string) LabelSet {
	var set LabelSet
	if norm == "" {
		return set
	}
	for _, r := range c.rules {
		if r.Match(norm) {
			set |= LabelSet(r.Label)
		}
	}
	return set
}

var (
	actionCodePattern = regexp.MustCompile(`p\s*a\s*o\s*e\s*[:\- ]+(\d+)`)
	programNumber     = regexp.MustCompile(`^programa\s+(\d+)`)
	numbers           = regexp.MustCompile(`\d+`)
)

// ExtractActionCode returns the action code of a normalized action row: the
// digits right after the "p a o e" token, else the last number of a row
// mentioning both "acao" and "p a o e". The second result is false when
// neither applies.
func ExtractActionCode(norm string) (string, bool) {
	if m := actionCodePattern.FindStringSubmatch(norm); m != nil {
		return m[1], true
	}
	if strings.Contains(norm, "acao") && strings.Contains(norm, "p a o e") {
		if nums := numbers.FindAllString(norm, -1); len(nums) > 0 {
			return nums[len(nums)-1], true
		}
	}
	return "", false
}

// ActionCode is ExtractActionCode with the builder fallbacks applied: the last
// number of the row, then "0".
func ActionCode(norm string) string {
	if code, ok := ExtractActionCode(norm); ok {
		return code
	}
	if nums := numbers.FindAllString(norm, -1); len(nums) > 0 {
		return nums[len(nums)-1]
	}
	return "0"
}

// ProgramKey returns the number following "programa", or the normalized text
// itself when the marker carries no number.
func ProgramKey(norm string) string {
	if m := programNumber.FindStringSubmatch(norm); m != nil {
		return m[1]
	}
	return norm
}
