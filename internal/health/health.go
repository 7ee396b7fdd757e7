package health

import (
	"sync"
	"time"

	"github.com/situation-hq/situation-monitor/internal/domain"
)

// Tracker records rolling per-adapter reliability. It biases fetch ordering
// on later aggregations; it never gates a source, since a degraded provider
// may recover at any time.
type Tracker struct {
	mu      sync.Mutex
	records map[string]domain.SourceHealth
	now     func() time.Time
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]domain.SourceHealth),
		now:     time.Now,
	}
}

// RecordOutcome updates the record for adapterID. A success stamps
// lastSuccess and clears the consecutive error count; a failure increments
// it. lastUsed is stamped either way.
func (t *Tracker) RecordOutcome(adapterID string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.records[adapterID]
	now := t.now()
	rec.LastUsed = now
	if success {
		rec.LastSuccess = now
		rec.ErrorCount = 0
	} else {
		rec.ErrorCount++
	}
	t.records[adapterID] = rec
}

// ErrorCount returns the consecutive failure count for adapterID; zero for
// adapters never seen.
func (t *Tracker) ErrorCount(adapterID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records[adapterID].ErrorCount
}

// Snapshot returns a copy of all health records.
func (t *Tracker) Snapshot() map[string]domain.SourceHealth {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]domain.SourceHealth, len(t.records))
	for id, rec := range t.records {
		out[id] = rec
	}
	return out
}
