package matcher

import (
	"reflect"
	"testing"

	"plan20-extraction-service/internal/models"
)

func TestRegionIndex(t *testing.T) {
	m := newTestMatcher(t)
	lines := []*models.DenormalizedRecord{
		{SubActionRegion: "0202 - Sul"},
		{SubActionRegion: ""},
		{SubActionRegion: "Região 0101"},
		{SubActionRegion: "0202 Sul - Polo 2"},
	}

	idx := m.NewRegionIndex(lines)

	if got := idx.Keys(); !reflect.DeepEqual(got, []string{"0202", "", "0101"}) {
		t.Errorf("Expected keys in first-seen order, got %v", got)
	}
	if len(idx.Get("0202")) != 2 {
		t.Errorf("Expected 2 lines for 0202, got %d", len(idx.Get("0202")))
	}
	if len(idx.Get("9999")) != 0 {
		t.Error("Expected no lines for unknown key")
	}

	key, first, ok := idx.First()
	if !ok || key != "0202" || first[0] != lines[0] {
		t.Errorf("Expected first group 0202, got %q", key)
	}

	stats := idx.GetIndexStats()
	if stats.Groups != 3 || stats.Lines != 4 || stats.Largest != 2 {
		t.Errorf("Expected stats {3 4 2}, got %+v", stats)
	}
}

func TestEmptyRegionIndex(t *testing.T) {
	m := newTestMatcher(t)
	idx := m.NewRegionIndex(nil)
	if idx.Len() != 0 {
		t.Errorf("Expected empty index, got %d groups", idx.Len())
	}
	if _, _, ok := idx.First(); ok {
		t.Error("Expected no first group")
	}
}
