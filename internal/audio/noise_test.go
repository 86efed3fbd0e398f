package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoiseTrackerStartsAtInitialFloor(t *testing.T) {
	tr := NewNoiseTracker(DefaultNoiseHistory, DefaultNoiseFloor)
	assert.Equal(t, DefaultNoiseFloor, tr.Floor())
}

func TestNoiseTrackerZeroFilledHistoryClampsToMinimum(t *testing.T) {
	tr := NewNoiseTracker(10, DefaultNoiseFloor)

	// The quietest entries are still the zero fill.
	got := tr.Update(0.5, 0.3, DefaultNoiseFloor)
	assert.Equal(t, DefaultNoiseFloor, got)
}

func TestNoiseTrackerAveragesQuietestShare(t *testing.T) {
	tr := NewNoiseTracker(10, DefaultNoiseFloor)

	for i := 1; i <= 10; i++ {
		v := float64(i) / 10
		tr.Update(v+1, v, DefaultNoiseFloor)
	}

	// 20% of 10 slots: mean of 0.1 and 0.2.
	assert.InDelta(t, 0.15, tr.Floor(), 1e-12)
}

func TestNoiseTrackerOverwritesOldest(t *testing.T) {
	tr := NewNoiseTracker(5, DefaultNoiseFloor)

	for range 5 {
		tr.Update(0.5, 0.5, DefaultNoiseFloor)
	}
	assert.InDelta(t, 0.5, tr.Floor(), 1e-12)

	tr.Update(0.2, 0.9, DefaultNoiseFloor)
	assert.InDelta(t, 0.2, tr.Floor(), 1e-12)
}

func TestNoiseTrackerEffectiveThreshold(t *testing.T) {
	tr := NewNoiseTracker(5, DefaultNoiseFloor)
	for range 5 {
		tr.Update(0.04, 0.04, DefaultNoiseFloor)
	}

	assert.Equal(t, 0.1, tr.EffectiveThreshold(false, 0.1))
	assert.InDelta(t, 0.04+0.05, tr.EffectiveThreshold(true, 0.1), 1e-12)
}

func TestNoiseTrackerReset(t *testing.T) {
	tr := NewNoiseTracker(5, 0.002)
	for range 5 {
		tr.Update(0.3, 0.3, 0.002)
	}

	tr.Reset()

	assert.Equal(t, 0.002, tr.Floor())
	assert.Equal(t, 0.002, tr.Update(0.3, 0.3, 0.002))
}
