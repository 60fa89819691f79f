package logger

import (
	"fmt"
	"sync"
	"time"
)

// TrailEntry is one record of the debug trail.
type TrailEntry struct {
	Time     time.Time `json:"time"`
	Location string    `json:"location"`
	Message  string    `json:"message"`
}

// Trail is the append-only log of notable decisions taken during one run.
// Entries are also emitted at debug level on the attached logger.
type Trail struct {
	mu      sync.Mutex
	entries []TrailEntry
	now     func() time.Time
	logger  Logger
}

// NewTrail creates an empty trail. A nil clock uses time.Now and a nil logger
// uses the global one.
func NewTrail(clock func() time.Time, log Logger) *Trail {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = GetGlobalLogger()
	}
	return &Trail{
		entries: make([]TrailEntry, 0, 64),
		now:     clock,
		logger:  log.WithComponent("trail"),
	}
}

// Record appends an entry.
func (t *Trail) Record(location, format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	t.mu.Lock()
	t.entries = append(t.entries, TrailEntry{Time: t.now(), Location: location, Message: msg})
	t.mu.Unlock()

	t.logger.WithField("location", location).Debug(msg)
}

// Entries returns a copy of the entries in recording order.
func (t *Trail) Entries() []TrailEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrailEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
