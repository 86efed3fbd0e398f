package audio

import (
	"sync"
	"time"
)

// DefaultPeakHoldDuration is how long a loudness peak is held before it decays.
const DefaultPeakHoldDuration = 1500 * time.Millisecond

// PeakHolder holds the highest recent loudness per channel for meters.
// It is safe for concurrent use.
type PeakHolder struct {
	mu           sync.Mutex
	held         [2]float64
	heldAt       [2]time.Time
	holdDuration time.Duration
}

// NewPeakHolder returns a PeakHolder with the default hold duration.
func NewPeakHolder() *PeakHolder {
	return &PeakHolder{holdDuration: DefaultPeakHoldDuration}
}

// Update folds in the latest loudness values and returns the held peaks.
func (p *PeakHolder) Update(left, right float64, now time.Time) (heldL, heldR float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, v := range [2]float64{left, right} {
		if v >= p.held[i] || now.Sub(p.heldAt[i]) > p.holdDuration {
			p.held[i] = v
			p.heldAt[i] = now
		}
	}
	return p.held[0], p.held[1]
}

// SetHoldDuration updates the hold duration.
func (p *PeakHolder) SetHoldDuration(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdDuration = d
}

// Reset clears held peaks.
func (p *PeakHolder) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.held = [2]float64{}
	p.heldAt = [2]time.Time{}
}
