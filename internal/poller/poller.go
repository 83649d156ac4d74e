// Package poller implements the generic scheduled acquire/persist loop shared
// by the climate, weather and resource pollers.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gekkolab/vivarium/internal/monitoring"
	"github.com/gekkolab/vivarium/internal/sensors"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

var (
	cycleCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vivarium_poller_cycles_total",
		Help: "Completed poll cycles per poller, including failed ones.",
	}, []string{"poller"})

	errorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vivarium_poller_errors_total",
		Help: "Failed poll cycles per poller and stage.",
	}, []string{"poller", "stage"})
)

// Poller repeatedly acquires a sample and hands it to a persist function. A
// failure in either stage is logged and the loop carries on; only context
// cancellation ends it.
type Poller[T any] struct {
	name     string
	interval time.Duration
	acquire  func(ctx context.Context) (T, error)
	persist  func(sample T) error
	clock    timeutil.Clock
}

// Config carries the pieces a Poller is built from.
type Config[T any] struct {
	// Name identifies the poller in logs and metrics.
	Name string
	// Interval is the sleep between the end of one cycle and the start of
	// the next. It is additive to cycle duration, not a fixed-rate clock.
	Interval time.Duration
	// Acquire reads one sample from the source.
	Acquire func(ctx context.Context) (T, error)
	// Persist writes one sample to durable storage.
	Persist func(sample T) error
	// Clock is optional; nil means the real clock.
	Clock timeutil.Clock
}

// New creates a Poller.
func New[T any](cfg Config[T]) *Poller[T] {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Poller[T]{
		name:     cfg.Name,
		interval: cfg.Interval,
		acquire:  cfg.Acquire,
		persist:  cfg.Persist,
		clock:    clock,
	}
}

// Run executes the loop until ctx is cancelled. It always returns nil on
// shutdown; per-cycle failures never propagate out.
func (p *Poller[T]) Run(ctx context.Context) error {
	monitoring.Logf("poller %s: started, interval=%v", p.name, p.interval)
	for {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("poller %s: stopped", p.name)
			return nil
		}

		p.cycle(ctx)

		timer := p.clock.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			monitoring.Logf("poller %s: stopped", p.name)
			return nil
		case <-timer.C():
		}
	}
}

// cycle runs one acquire/persist round. Unavailable sources are a warning
// (expected with absent hardware); everything else is an error. Both skip
// persistence for this cycle only.
func (p *Poller[T]) cycle(ctx context.Context) {
	cycleCount.WithLabelValues(p.name).Inc()

	sample, err := p.acquire(ctx)
	switch {
	case errors.Is(err, sensors.ErrUnavailable):
		monitoring.Logf("poller %s: source unavailable, skipping cycle", p.name)
		errorCount.WithLabelValues(p.name, "unavailable").Inc()
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return
	case err != nil:
		monitoring.Logf("poller %s: acquire failed: %v", p.name, err)
		errorCount.WithLabelValues(p.name, "acquire").Inc()
		return
	}

	if err := p.persist(sample); err != nil {
		// No retry queue: the sample for this cycle is lost, the next cycle
		// proceeds normally.
		monitoring.Logf("poller %s: persist failed: %v", p.name, err)
		errorCount.WithLabelValues(p.name, "persist").Inc()
	}
}
