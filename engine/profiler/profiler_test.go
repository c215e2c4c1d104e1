package profiler

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/voxel-go/engine/coordinator"
	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestTickLogsAfterInterval(t *testing.T) {
	buf := captureLog(t)
	p := NewProfiler(WithInterval(time.Hour))
	assert.False(t, p.Tick())
	assert.Empty(t, buf.String())

	p = NewProfiler(WithInterval(0))
	assert.True(t, p.Tick())
	assert.Contains(t, buf.String(), "[Profiler] TPS:")
}

func TestTickReportsCoordinatorStats(t *testing.T) {
	buf := captureLog(t)
	stats := coordinator.Stats{PhysicsUpdates: 30, Skipped: 2, Swaps: 30, LastTick: time.Millisecond}
	p := NewProfiler(WithInterval(0), WithStatsSource(func() coordinator.Stats { return stats }))

	assert.True(t, p.Tick())
	out := buf.String()
	assert.Contains(t, out, "Skipped: 2 (+2)")
	assert.Contains(t, out, "Swaps: 30")

	buf.Reset()
	stats.Skipped = 3
	assert.True(t, p.Tick())
	assert.Equal(t, 1, strings.Count(buf.String(), "Skipped: 3 (+1)"))
}
