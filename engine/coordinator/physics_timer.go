package coordinator

import "time"

// DefaultPhysicsTrigger is the physics step interval (30 Hz).
const DefaultPhysicsTrigger = time.Second / 30

// PhysicsTimer gates the update pass to a fixed rate independent of the tick rate.
type PhysicsTimer struct {
	elapsed time.Duration
	trigger time.Duration
}

// NewPhysicsTimer creates a timer that triggers once trigger has elapsed.
// A non-positive trigger triggers on every tick.
func NewPhysicsTimer(trigger time.Duration) *PhysicsTimer {
	return &PhysicsTimer{trigger: max(trigger, 0)}
}

// Tick resets the timer if it was triggered, then adds dt.
func (t *PhysicsTimer) Tick(dt time.Duration) {
	if t.Triggered() {
		t.Reset()
	}
	t.elapsed += dt
}

// Triggered reports whether the elapsed time has reached the trigger.
func (t *PhysicsTimer) Triggered() bool {
	return t.elapsed >= t.trigger
}

// Reset zeroes the elapsed time.
func (t *PhysicsTimer) Reset() {
	t.elapsed = 0
}

// Elapsed returns the time accumulated since the last reset.
func (t *PhysicsTimer) Elapsed() time.Duration {
	return t.elapsed
}

// Trigger returns the configured interval.
func (t *PhysicsTimer) Trigger() time.Duration {
	return t.trigger
}
