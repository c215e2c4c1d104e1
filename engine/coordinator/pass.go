package coordinator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/voxel-go/engine/compute"
	"github.com/Carmen-Shannon/voxel-go/engine/compute/bind_group_provider"
	"github.com/Carmen-Shannon/voxel-go/engine/compute/pipeline"
)

// ErrPassHazard is returned by Schedule when a pass reads and writes the same resource.
var ErrPassHazard = errors.New("pass reads and writes the same resource")

// Resource names a buffer or image that passes read or write.
type Resource string

// Resources of the per-tick pass graph.
const (
	ResourceCurrent   Resource = "current"
	ResourceScratch   Resource = "scratch"
	ResourceConstants Resource = "constants"
	ResourceSelection Resource = "selection"
	ResourceOutput    Resource = "output"
)

// Pass names.
const (
	PassUpdate   = "update"
	PassSwap     = "swap"
	PassConsumer = "consumer"
)

// PassKind selects how a pass is recorded.
type PassKind int

const (
	// PassKindDispatch records a compute dispatch.
	PassKindDispatch PassKind = iota

	// PassKindCopy records a buffer to buffer copy.
	PassKindCopy
)

// Pass is one node of the per-tick pass graph.
type Pass struct {
	Name string
	Kind PassKind

	// dispatch passes
	Pipeline   pipeline.Pipeline
	Provider   bind_group_provider.BindGroupProvider
	Workgroups [3]uint32

	// copy passes
	Src, Dst compute.Buffer
	Size     uint64

	Reads  []Resource
	Writes []Resource
}

// Step is a scheduled pass, with a barrier to record before it when it depends on earlier work.
type Step struct {
	Pass          Pass
	BarrierBefore bool
}

// conflicts reports whether p touches a resource that pending work touches in a way that
// needs ordering: read after write, write after read, or write after write.
func conflicts(p Pass, pendingReads, pendingWrites map[Resource]bool) bool {
	for _, r := range p.Reads {
		if pendingWrites[r] {
			return true
		}
	}
	for _, w := range p.Writes {
		if pendingWrites[w] || pendingReads[w] {
			return true
		}
	}
	return false
}

// Schedule validates passes in order and places a barrier before every pass whose resources
// conflict with work recorded since the previous barrier.
//
// Parameters:
//   - passes: the passes in execution order
//
// Returns:
//   - []Step: the passes with their barriers
//   - error: ErrPassHazard (wrapped) if a pass reads and writes the same resource
func Schedule(passes []Pass) ([]Step, error) {
	steps := make([]Step, 0, len(passes))
	pendingReads := make(map[Resource]bool)
	pendingWrites := make(map[Resource]bool)

	for _, p := range passes {
		for _, w := range p.Writes {
			if slices.Contains(p.Reads, w) {
				return nil, fmt.Errorf("%w: %s on %q", ErrPassHazard, p.Name, w)
			}
		}

		barrier := conflicts(p, pendingReads, pendingWrites)
		if barrier {
			clear(pendingReads)
			clear(pendingWrites)
		}
		for _, r := range p.Reads {
			pendingReads[r] = true
		}
		for _, w := range p.Writes {
			pendingWrites[w] = true
		}
		steps = append(steps, Step{Pass: p, BarrierBefore: barrier})
	}
	return steps, nil
}

// Names returns the pass names of steps in order.
func Names(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Pass.Name
	}
	return names
}
