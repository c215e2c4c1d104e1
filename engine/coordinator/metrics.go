package coordinator

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a snapshot of the coordinator's counters.
type Stats struct {
	Ticks          uint64
	Skipped        uint64
	PhysicsUpdates uint64
	Swaps          uint64
	LastTick       time.Duration
}

// metrics holds the Prometheus collectors and the matching host counters read by Stats.
type metrics struct {
	ticks          prometheus.Counter
	skipped        prometheus.Counter
	physicsUpdates prometheus.Counter
	swaps          prometheus.Counter
	tickSeconds    prometheus.Gauge

	nTicks, nSkipped, nUpdates, nSwaps atomic.Uint64
	lastTick                           atomic.Int64
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "coordinator",
			Name:      "ticks_total",
			Help:      "Ticks requested from the coordinator.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "coordinator",
			Name:      "skipped_ticks_total",
			Help:      "Ticks skipped because no compute frame could be acquired.",
		}),
		physicsUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "coordinator",
			Name:      "physics_updates_total",
			Help:      "Update passes recorded.",
		}),
		swaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "coordinator",
			Name:      "swaps_total",
			Help:      "Scratch to current copies recorded.",
		}),
		tickSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "coordinator",
			Name:      "last_tick_seconds",
			Help:      "Host time spent in the most recent tick.",
		}),
	}
	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.ticks, m.skipped, m.physicsUpdates, m.swaps, m.tickSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register coordinator metrics: %w", err)
		}
	}
	return m, nil
}

func (m *metrics) tick() {
	m.ticks.Inc()
	m.nTicks.Add(1)
}

func (m *metrics) skip() {
	m.skipped.Inc()
	m.nSkipped.Add(1)
}

func (m *metrics) update() {
	m.physicsUpdates.Inc()
	m.nUpdates.Add(1)
}

func (m *metrics) swap() {
	m.swaps.Inc()
	m.nSwaps.Add(1)
}

func (m *metrics) tickDuration(d time.Duration) {
	m.tickSeconds.Set(d.Seconds())
	m.lastTick.Store(int64(d))
}

func (m *metrics) stats() Stats {
	return Stats{
		Ticks:          m.nTicks.Load(),
		Skipped:        m.nSkipped.Load(),
		PhysicsUpdates: m.nUpdates.Load(),
		Swaps:          m.nSwaps.Load(),
		LastTick:       time.Duration(m.lastTick.Load()),
	}
}
