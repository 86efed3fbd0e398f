package audio

import "slices"

const (
	// DefaultNoiseHistory is the number of per-window noise estimates retained.
	DefaultNoiseHistory = 100
	// DefaultNoiseFloor is the minimum noise floor and the tracker's starting floor.
	DefaultNoiseFloor = 0.001
	// noiseLowPercent is the share of the quietest history entries averaged into the floor.
	noiseLowPercent = 20
)

// NoiseTracker estimates the ambient noise floor from recent window loudness.
// It is not safe for concurrent use; the capture callback owns it.
type NoiseTracker struct {
	history      []float64
	sorted       []float64
	index        int
	lowCount     int
	floor        float64
	initialFloor float64
}

// NewNoiseTracker returns a tracker with a zero-filled history of capacity
// entries and a starting floor of initialFloor.
func NewNoiseTracker(capacity int, initialFloor float64) *NoiseTracker {
	capacity = max(capacity, 1)
	return &NoiseTracker{
		history:      make([]float64, capacity),
		sorted:       make([]float64, capacity),
		lowCount:     max(1, capacity*noiseLowPercent/100),
		floor:        initialFloor,
		initialFloor: initialFloor,
	}
}

// Update records min(left, right) and recomputes the floor as the mean of the
// quietest entries, never below minFloor.
func (t *NoiseTracker) Update(left, right, minFloor float64) float64 {
	t.history[t.index] = min(left, right)
	t.index = (t.index + 1) % len(t.history)

	copy(t.sorted, t.history)
	slices.Sort(t.sorted)

	var sum float64
	for _, v := range t.sorted[:t.lowCount] {
		sum += v
	}
	t.floor = max(sum/float64(t.lowCount), minFloor)
	return t.floor
}

// Floor returns the current noise floor estimate.
func (t *NoiseTracker) Floor() float64 {
	return t.floor
}

// EffectiveThreshold returns the detection threshold for this window.
func (t *NoiseTracker) EffectiveThreshold(adaptive bool, fixed float64) float64 {
	if !adaptive {
		return fixed
	}
	return t.floor + fixed*0.5
}

// Reset clears the history and restores the starting floor.
func (t *NoiseTracker) Reset() {
	clear(t.history)
	t.index = 0
	t.floor = t.initialFloor
}
