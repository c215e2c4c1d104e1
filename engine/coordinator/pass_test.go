package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleUpdateSwapConsumer(t *testing.T) {
	passes := []Pass{
		{Name: PassUpdate, Reads: []Resource{ResourceCurrent, ResourceConstants}, Writes: []Resource{ResourceScratch}},
		{Name: PassSwap, Kind: PassKindCopy, Reads: []Resource{ResourceScratch}, Writes: []Resource{ResourceCurrent}},
		{Name: PassConsumer, Reads: []Resource{ResourceCurrent, ResourceConstants}, Writes: []Resource{ResourceOutput}},
	}

	steps, err := Schedule(passes)
	require.NoError(t, err)
	assert.Equal(t, []string{PassUpdate, PassSwap, PassConsumer}, Names(steps))
	assert.False(t, steps[0].BarrierBefore)
	assert.True(t, steps[1].BarrierBefore, "swap reads what update wrote")
	assert.True(t, steps[2].BarrierBefore, "consumer reads what swap wrote")
}

func TestScheduleIndependentPassesShareABarrierScope(t *testing.T) {
	passes := []Pass{
		{Name: "a", Reads: []Resource{ResourceCurrent}, Writes: []Resource{ResourceScratch}},
		{Name: "b", Reads: []Resource{ResourceCurrent}, Writes: []Resource{ResourceOutput}},
	}

	steps, err := Schedule(passes)
	require.NoError(t, err)
	assert.False(t, steps[0].BarrierBefore)
	assert.False(t, steps[1].BarrierBefore)
}

func TestScheduleWriteAfterRead(t *testing.T) {
	passes := []Pass{
		{Name: PassConsumer, Reads: []Resource{ResourceCurrent}, Writes: []Resource{ResourceOutput}},
		{Name: PassSwap, Reads: []Resource{ResourceScratch}, Writes: []Resource{ResourceCurrent}},
	}

	steps, err := Schedule(passes)
	require.NoError(t, err)
	assert.True(t, steps[1].BarrierBefore)
}

func TestScheduleRejectsReadWriteOfOneResource(t *testing.T) {
	passes := []Pass{
		{Name: "in-place", Reads: []Resource{ResourceCurrent}, Writes: []Resource{ResourceCurrent}},
	}

	steps, err := Schedule(passes)
	assert.ErrorIs(t, err, ErrPassHazard)
	assert.Nil(t, steps)
}

func TestScheduleEmpty(t *testing.T) {
	steps, err := Schedule(nil)
	require.NoError(t, err)
	assert.Empty(t, steps)
	assert.Empty(t, Names(steps))
}
