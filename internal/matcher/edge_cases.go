package matcher

import (
	"fmt"
	"strings"

	"plan20-extraction-service/internal/models"
)

// GroupFields joins the code, municipality and target fields of every line of
// a region group.
type GroupFields struct {
	Codes          string
	Municipalities string
	Targets        string
}

// ConcatGroupFields collects the non-empty fields of the lines with the
// configured separator.
func (m *Matcher) ConcatGroupFields(lines []*models.DenormalizedRecord) GroupFields {
	var codes, munis, targets []string
	for _, l := range lines {
		if c := strings.TrimSpace(l.Code); c != "" {
			codes = append(codes, c)
		}
		if mu := strings.TrimSpace(l.Municipalities); mu != "" {
			munis = append(munis, mu)
		}
		if t := strings.TrimSpace(l.SubActionTarget); t != "" {
			targets = append(targets, t)
		}
	}
	sep := m.config.FieldSeparator
	return GroupFields{
		Codes:          strings.Join(codes, sep),
		Municipalities: strings.Join(munis, sep),
		Targets:        strings.Join(targets, sep),
	}
}

// Apply writes the joined fields onto a record.
func (g GroupFields) Apply(r *models.DenormalizedRecord) {
	r.Code = g.Codes
	r.Municipalities = g.Municipalities
	r.SubActionTarget = g.Targets
}

// ProductRegionDivergence returns the annotated product region when the
// chosen product sits in another region than the sub-action line, and false
// when both agree or there is nothing to compare.
func (m *Matcher) ProductRegionDivergence(productRegion, subActionRegion string) (string, bool) {
	pr := strings.TrimSpace(productRegion)
	sr := strings.TrimSpace(subActionRegion)
	if sr == "" || pr == sr || !m.config.AnnotateDivergence {
		return productRegion, false
	}
	return fmt.Sprintf("%s (Região da Subação divergente: %s)", pr, sr), true
}

// StageRegionDivergence returns the annotated sub-action region when a
// fallback group was used for a stage region with another numeric code.
func (m *Matcher) StageRegionDivergence(subActionRegion, stageKey string) (string, bool) {
	if stageKey == "" || m.RegionKey(subActionRegion) == stageKey || !m.config.AnnotateDivergence {
		return subActionRegion, false
	}
	return fmt.Sprintf("%s (Região da Etapa divergente: %s)", strings.TrimSpace(subActionRegion), stageKey), true
}
