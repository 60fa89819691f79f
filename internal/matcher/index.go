package matcher

import (
	"plan20-extraction-service/internal/models"
)

// RegionIndex groups the base lines of one sub-action by numeric region code.
// Keys keep the order in which they were first seen; the empty key groups the
// lines with no code.
type RegionIndex struct {
	keys   []string
	groups map[string][]*models.DenormalizedRecord
}

// IndexStats provides statistics about a region index.
type IndexStats struct {
	Groups  int `json:"groups"`
	Lines   int `json:"lines"`
	Largest int `json:"largest"`
}

// NewRegionIndex indexes lines by the region code of their sub-action region.
func (m *Matcher) NewRegionIndex(lines []*models.DenormalizedRecord) *RegionIndex {
	idx := &RegionIndex{groups: make(map[string][]*models.DenormalizedRecord)}
	for _, l := range lines {
		idx.Add(m.RegionKey(l.SubActionRegion), l)
	}
	return idx
}

// Add appends a line under key.
func (ri *RegionIndex) Add(key string, line *models.DenormalizedRecord) {
	if _, ok := ri.groups[key]; !ok {
		ri.keys = append(ri.keys, key)
	}
	ri.groups[key] = append(ri.groups[key], line)
}

// Get returns the group of key.
func (ri *RegionIndex) Get(key string) []*models.DenormalizedRecord {
	return ri.groups[key]
}

// First returns the key and lines of the first group.
func (ri *RegionIndex) First() (string, []*models.DenormalizedRecord, bool) {
	if len(ri.keys) == 0 {
		return "", nil, false
	}
	k := ri.keys[0]
	return k, ri.groups[k], true
}

// Keys returns the group keys in first-seen order.
func (ri *RegionIndex) Keys() []string {
	return append([]string(nil), ri.keys...)
}

// Len returns the number of groups.
func (ri *RegionIndex) Len() int {
	return len(ri.keys)
}

// GetIndexStats returns group statistics.
func (ri *RegionIndex) GetIndexStats() IndexStats {
	s := IndexStats{Groups: len(ri.keys)}
	for _, k := range ri.keys {
		n := len(ri.groups[k])
		s.Lines += n
		if n > s.Largest {
			s.Largest = n
		}
	}
	return s
}
