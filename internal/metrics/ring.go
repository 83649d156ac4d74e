// Package metrics holds the in-memory resource snapshot buffer and the
// batch aggregator that summarizes it into durable records.
package metrics

import (
	"sync"
	"time"

	"github.com/gekkolab/vivarium/internal/sensors"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

// RingStore buffers recent resource snapshots for two independent consumers:
// the display view (Latest/Window, retention-bounded, survives aggregation)
// and the accumulation buffer (DrainForAggregation, destructive, consumed in
// non-overlapping batches). The split keeps the dashboard history intact
// while guaranteeing the aggregator never double-counts a snapshot.
type RingStore struct {
	mu        sync.Mutex
	retention time.Duration
	clock     timeutil.Clock
	display   []sensors.ResourceSample
	batch     []sensors.ResourceSample
}

// NewRingStore creates a store whose display view keeps the trailing
// retention window.
func NewRingStore(retention time.Duration, clock timeutil.Clock) *RingStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RingStore{retention: retention, clock: clock}
}

// Add inserts one snapshot. Snapshots without a timestamp are stamped at
// insertion time. Safe for concurrent use with Drain and the readers.
func (r *RingStore) Add(s sensors.ResourceSample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = r.clock.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.display = append(r.display, s)
	r.batch = append(r.batch, s)
	r.pruneLocked()
}

// Latest returns the most recent snapshot in the display view, or nil if
// empty.
func (r *RingStore) Latest() *sensors.ResourceSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.display) == 0 {
		return nil
	}
	s := r.display[len(r.display)-1]
	return &s
}

// Window returns all display snapshots within the trailing duration d,
// ascending by time. The result is a copy.
func (r *RingStore) Window(d time.Duration) []sensors.ResourceSample {
	cutoff := r.clock.Now().Add(-d)

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sensors.ResourceSample
	for _, s := range r.display {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// DrainForAggregation atomically removes and returns everything accumulated
// since the last drain. The display view is untouched; only the aggregator
// calls this. A second drain with no intervening Add returns nil.
func (r *RingStore) DrainForAggregation() []sensors.ResourceSample {
	r.mu.Lock()
	batch := r.batch
	r.batch = nil
	r.mu.Unlock()
	return batch
}

// pruneLocked drops display entries older than the retention window. Callers
// must hold r.mu.
func (r *RingStore) pruneLocked() {
	cutoff := r.clock.Now().Add(-r.retention)
	i := 0
	for i < len(r.display) && r.display[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		r.display = append([]sensors.ResourceSample(nil), r.display[i:]...)
	}
}
