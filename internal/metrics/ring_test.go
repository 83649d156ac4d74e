package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekkolab/vivarium/internal/sensors"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

func sample(cpu float64, at time.Time) sensors.ResourceSample {
	return sensors.ResourceSample{CPUPct: cpu, Timestamp: at}
}

func TestRingStoreLatestAndWindow(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	ring := NewRingStore(10*time.Minute, clock)

	assert.Nil(t, ring.Latest())
	assert.Empty(t, ring.Window(time.Hour))

	ring.Add(sample(10, start))
	clock.Advance(time.Minute)
	ring.Add(sample(20, start.Add(time.Minute)))

	latest := ring.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, 20.0, latest.CPUPct)

	window := ring.Window(2 * time.Minute)
	require.Len(t, window, 2)
	assert.Equal(t, 10.0, window[0].CPUPct, "window must be ascending")
}

func TestRingStoreStampsUntimestampedSnapshots(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ring := NewRingStore(time.Hour, timeutil.NewMockClock(now))

	ring.Add(sensors.ResourceSample{CPUPct: 5})
	latest := ring.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, now, latest.Timestamp)
}

func TestRingStoreDisplayRetention(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	ring := NewRingStore(5*time.Minute, clock)

	ring.Add(sample(1, start))
	clock.Advance(10 * time.Minute)
	ring.Add(sample(2, start.Add(10*time.Minute)))

	window := ring.Window(time.Hour)
	require.Len(t, window, 1, "expired display entries should be pruned")
	assert.Equal(t, 2.0, window[0].CPUPct)
}

func TestDrainIsDestructiveAndExactlyOnce(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	ring := NewRingStore(time.Hour, clock)

	ring.Add(sample(1, start))
	ring.Add(sample(2, start))

	first := ring.DrainForAggregation()
	assert.Len(t, first, 2)

	// No intervening Add: second drain must be empty, never double-counting.
	second := ring.DrainForAggregation()
	assert.Empty(t, second)

	// Drain must not disturb the display view.
	assert.Len(t, ring.Window(time.Hour), 2)
	require.NotNil(t, ring.Latest())
}

func TestRingStoreConcurrentAddAndDrain(t *testing.T) {
	ring := NewRingStore(time.Hour, timeutil.RealClock{})

	const writers = 4
	const perWriter = 200
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				ring.Add(sensors.ResourceSample{CPUPct: float64(i)})
			}
		}()
	}

	// Drain concurrently with the writers, then sweep up the remainder.
	total := 0
	deadline := time.Now().Add(2 * time.Second)
	for total < writers*perWriter && time.Now().Before(deadline) {
		total += len(ring.DrainForAggregation())
	}
	wg.Wait()
	total += len(ring.DrainForAggregation())

	assert.Equal(t, writers*perWriter, total, "every snapshot drains exactly once")
}
