package profiler

import (
	"log"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/voxel-go/engine/coordinator"
)

// StatsSource returns the coordinator counters to report alongside tick rate and memory.
type StatsSource func() coordinator.Stats

// ProfilerOption is a functional option used to configure a Profiler during construction.
type ProfilerOption func(*Profiler)

// WithInterval sets how often the profiler logs. Defaults to 1 second.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithStatsSource adds coordinator counters to every log line.
func WithStatsSource(source StatsSource) ProfilerOption {
	return func(p *Profiler) {
		p.stats = source
	}
}

// Profiler tracks tick rate, memory and coordinator statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	stats     StatsSource
	lastStats coordinator.Stats
}

// NewProfiler creates a new Profiler with default settings.
//
// Parameters:
//   - options: functional options configuring the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Tick should be called once per engine tick.
// Logs performance statistics when the update interval has elapsed: tick rate, heap usage,
// allocation rate, GC count/pause times, total memory and, with a stats source, the physics
// update and skipped tick rates.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		tps := float64(p.frameCount) / elapsed.Seconds()

		runtime.ReadMemStats(&p.memStats)
		// Alloc: Bytes of allocated heap objects (live memory)
		// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
		// Sys: Total bytes of memory obtained from the OS (actual process footprint)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024
		sysMB := float64(p.memStats.Sys) / 1024 / 1024

		// Calculate allocation rate (MB/sec)
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

		// Calculate GC pause stats (last pause and max recent pause)
		gcCount := p.memStats.NumGC
		var lastPauseUs, maxPauseUs uint64
		if gcCount > 0 {
			// PauseNs is a circular buffer of last 256 GC pauses
			lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

			// Find max pause since last tick
			startIdx := p.lastGCCount
			if gcCount-startIdx > 256 {
				startIdx = gcCount - 256
			}
			for i := startIdx; i < gcCount; i++ {
				pause := p.memStats.PauseNs[i%256] / 1000
				if pause > maxPauseUs {
					maxPauseUs = pause
				}
			}
		}

		log.Printf("[Profiler] TPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
			tps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

		if p.stats != nil {
			st := p.stats()
			log.Printf("[Profiler] Updates/s: %.2f | Skipped: %d (+%d) | Swaps: %d | Last tick: %s",
				float64(st.PhysicsUpdates-p.lastStats.PhysicsUpdates)/elapsed.Seconds(),
				st.Skipped, st.Skipped-p.lastStats.Skipped, st.Swaps, st.LastTick)
			p.lastStats = st
		}

		p.frameCount = 0
		p.lastTime = currentTime
		p.lastGCCount = gcCount
		p.lastTotalAlloc = p.memStats.TotalAlloc
		return true
	}

	return false
}
