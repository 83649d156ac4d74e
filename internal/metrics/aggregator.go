package metrics

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/gekkolab/vivarium/internal/db"
	"github.com/gekkolab/vivarium/internal/monitoring"
	"github.com/gekkolab/vivarium/internal/sensors"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

// StatsSink is the slice of the stats store the aggregator writes through.
type StatsSink interface {
	Insert(r db.SystemStats) error
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// Aggregator drains the ring store on a slow cadence and persists one
// summary record per non-empty batch. It also owns the low-frequency
// retention cleanup of old aggregate rows.
type Aggregator struct {
	ring      *RingStore
	sink      StatsSink
	interval  time.Duration
	retention time.Duration
	clock     timeutil.Clock

	lastCleanupHour time.Time
}

// NewAggregator creates an Aggregator. retention bounds how long aggregated
// records are kept in the database.
func NewAggregator(ring *RingStore, sink StatsSink, interval, retention time.Duration, clock timeutil.Clock) *Aggregator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Aggregator{
		ring:      ring,
		sink:      sink,
		interval:  interval,
		retention: retention,
		clock:     clock,
	}
}

// Run executes the aggregation loop until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	monitoring.Logf("aggregator: started, interval=%v", a.interval)
	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("aggregator: stopped")
			return nil
		case <-ticker.C():
			a.aggregateOnce()
			a.maybeCleanup()
		}
	}
}

// aggregateOnce drains the accumulation buffer and persists one record. An
// empty batch is skipped rather than written as zeros: a gap in the table is
// honest, a synthetic zero row is not.
func (a *Aggregator) aggregateOnce() {
	batch := a.ring.DrainForAggregation()
	if len(batch) == 0 {
		monitoring.Logf("aggregator: empty batch, skipping")
		return
	}

	record := Summarize(batch, a.clock.Now())
	if err := a.sink.Insert(record); err != nil {
		monitoring.Logf("aggregator: persist failed: %v", err)
	}
}

// Summarize reduces a batch to one record: percentage and used-bytes fields
// are arithmetic means, total-bytes fields come from the last snapshot
// (capacity is near-constant, so the newest reading wins; averaging totals
// would manufacture capacities that never existed).
func Summarize(batch []sensors.ResourceSample, now time.Time) db.SystemStats {
	n := len(batch)
	cpu := make([]float64, n)
	memPct := make([]float64, n)
	diskPct := make([]float64, n)
	memUsed := make([]float64, n)
	diskUsed := make([]float64, n)
	for i, s := range batch {
		cpu[i] = s.CPUPct
		memPct[i] = s.MemPct
		diskPct[i] = s.DiskPct
		memUsed[i] = float64(s.MemUsedBytes)
		diskUsed[i] = float64(s.DiskUsedBytes)
	}

	last := batch[n-1]
	return db.SystemStats{
		CPUPct:         stat.Mean(cpu, nil),
		MemPct:         stat.Mean(memPct, nil),
		DiskPct:        stat.Mean(diskPct, nil),
		MemUsedBytes:   uint64(stat.Mean(memUsed, nil)),
		DiskUsedBytes:  uint64(stat.Mean(diskUsed, nil)),
		MemTotalBytes:  last.MemTotalBytes,
		DiskTotalBytes: last.DiskTotalBytes,
		SampleCount:    n,
		RecordedAt:     now,
	}
}

// maybeCleanup runs the retention sweep once per hour, detected by wall
// clock rather than a second timer: the first tick inside minute zero of a
// new hour triggers it.
func (a *Aggregator) maybeCleanup() {
	now := a.clock.Now()
	if now.Minute() != 0 {
		return
	}
	hour := now.Truncate(time.Hour)
	if hour.Equal(a.lastCleanupHour) {
		return
	}
	a.lastCleanupHour = hour

	deleted, err := a.sink.DeleteOlderThan(now.Add(-a.retention))
	if err != nil {
		monitoring.Logf("aggregator: retention cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		monitoring.Logf("aggregator: retention cleanup removed %d records", deleted)
	}
}
