package hierarchy

import (
	"testing"

	"plan20-extraction-service/internal/models"
)

func TestValidate(t *testing.T) {
	tag := func(id string, sub int) models.RowTag {
		return models.RowTag{Sheet: "Plan", Identifier: models.Identifier(id), SubSeq: sub}
	}
	base := []Opening{{ID: "A1", Tag: 0}, {ID: "A1.B1", Tag: 0}}

	tests := []struct {
		name     string
		tags     []models.RowTag
		openings []Opening
		expected int
	}{
		{
			name:     "valid",
			tags:     []models.RowTag{tag("A1.B1", 1), tag("A1.B1", 2), tag("", 0), tag("A1.B1", 1)},
			openings: base,
			expected: 0,
		},
		{
			name:     "malformed identifier",
			tags:     []models.RowTag{tag("A1.X9", 1)},
			openings: base,
			expected: 1,
		},
		{
			name:     "parent opened later",
			tags:     []models.RowTag{tag("A1.B1.C1.2009.D1", 1), tag("A1.B1.C1.2009", 1)},
			openings: append(base, Opening{ID: "A1.B1.C1.2009", Tag: 1}),
			expected: 1,
		},
		{
			name:     "sub-sequence regression",
			tags:     []models.RowTag{tag("A1.B1", 1), tag("A1.B1", 3), tag("A1.B1", 2)},
			openings: base,
			expected: 1,
		},
		{
			name:     "sub-sequence not starting at one",
			tags:     []models.RowTag{tag("A1.B1", 2)},
			openings: base,
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(&Result{Tags: tt.tags, Openings: tt.openings})
			if len(got) != tt.expected {
				t.Errorf("expected %d issues, got %d", tt.expected, len(got))
			}
		})
	}
}
