package engine

import (
	"sync"
	"time"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/metrics"
	"github.com/oszuidwest/hearingai/internal/types"
)

type registration struct {
	id       uint64
	observer Observer
}

// Distributor fans analysis events out to registered observers in
// registration order. It is safe for concurrent use.
type Distributor struct {
	mu     sync.RWMutex
	nextID uint64
	regs   []registration
}

// Subscribe registers o and returns a function that removes it.
func (d *Distributor) Subscribe(o Observer) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.regs = append(d.regs, registration{id: id, observer: o})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, r := range d.regs {
			if r.id == id {
				d.regs = append(d.regs[:i:i], d.regs[i+1:]...)
				return
			}
		}
	}
}

// observers returns the current registrations. The returned slice is never
// mutated, so callers may range over it without holding the lock.
func (d *Distributor) observers() []registration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.regs
}

// Decision delivers channel activity for one window, left before right.
func (d *Distributor) Decision(decision audio.Decision, at time.Time) {
	if !decision.Any() {
		return
	}
	regs := d.observers()
	if decision.Left {
		metrics.RecordChannelActive(string(audio.ChannelLeft))
		for _, r := range regs {
			r.observer.LeftChannelActive(at)
		}
	}
	if decision.Right {
		metrics.RecordChannelActive(string(audio.ChannelRight))
		for _, r := range regs {
			r.observer.RightChannelActive(at)
		}
	}
}

// Detections delivers classified events in order.
func (d *Distributor) Detections(detections []audio.Detection) {
	if len(detections) == 0 {
		return
	}
	regs := d.observers()
	for _, det := range detections {
		metrics.RecordDetection(det.Kind.String(), string(det.Channel))
		for _, r := range regs {
			r.observer.AudioEventDetected(det)
		}
	}
}

// Device delivers a device message.
func (d *Distributor) Device(message string) {
	for _, r := range d.observers() {
		r.observer.DeviceChanged(message)
	}
}

// State delivers a state transition to status observers.
func (d *Distributor) State(state types.EngineState) {
	for _, r := range d.observers() {
		if so, ok := r.observer.(StatusObserver); ok {
			so.StateChanged(state)
		}
	}
}

// Levels delivers a level update to status observers.
func (d *Distributor) Levels(levels audio.Levels) {
	for _, r := range d.observers() {
		if so, ok := r.observer.(StatusObserver); ok {
			so.LevelsUpdated(levels)
		}
	}
}
