package engine

import (
	"time"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/metrics"
	"github.com/oszuidwest/hearingai/internal/types"
)

// Observer receives analysis events. Methods are called synchronously on the
// capture thread and must not block. Within a window, left fires before
// right and channel activity fires before detections.
type Observer interface {
	LeftChannelActive(at time.Time)
	RightChannelActive(at time.Time)
	DeviceChanged(message string)
	AudioEventDetected(d audio.Detection)
}

// StatusObserver is optionally implemented by observers that also want engine
// state transitions and periodic level updates.
type StatusObserver interface {
	StateChanged(state types.EngineState)
	LevelsUpdated(levels audio.Levels)
}

// ObserverFuncs adapts plain functions to Observer and StatusObserver.
// Nil fields are skipped.
type ObserverFuncs struct {
	OnLeft      func(at time.Time)
	OnRight     func(at time.Time)
	OnDevice    func(message string)
	OnDetection func(d audio.Detection)
	OnState     func(state types.EngineState)
	OnLevels    func(levels audio.Levels)
}

// LeftChannelActive implements Observer.
func (f ObserverFuncs) LeftChannelActive(at time.Time) {
	if f.OnLeft != nil {
		f.OnLeft(at)
	}
}

// RightChannelActive implements Observer.
func (f ObserverFuncs) RightChannelActive(at time.Time) {
	if f.OnRight != nil {
		f.OnRight(at)
	}
}

// DeviceChanged implements Observer.
func (f ObserverFuncs) DeviceChanged(message string) {
	if f.OnDevice != nil {
		f.OnDevice(message)
	}
}

// AudioEventDetected implements Observer.
func (f ObserverFuncs) AudioEventDetected(d audio.Detection) {
	if f.OnDetection != nil {
		f.OnDetection(d)
	}
}

// StateChanged implements StatusObserver.
func (f ObserverFuncs) StateChanged(state types.EngineState) {
	if f.OnState != nil {
		f.OnState(state)
	}
}

// LevelsUpdated implements StatusObserver.
func (f ObserverFuncs) LevelsUpdated(levels audio.Levels) {
	if f.OnLevels != nil {
		f.OnLevels(levels)
	}
}

// EventType identifies the payload of an Event.
type EventType string

// Event types delivered by ChannelObserver.
const (
	EventChannelActive EventType = "channel_active"
	EventDevice        EventType = "device"
	EventDetection     EventType = "detection"
	EventState         EventType = "state"
	EventLevels        EventType = "levels"
)

// Event is one observer callback captured as a value.
type Event struct {
	Type      EventType
	Channel   audio.Channel
	At        time.Time
	Message   string
	Detection audio.Detection
	State     types.EngineState
	Levels    audio.Levels
}

// ChannelObserver queues events on a bounded channel so slow consumers never
// stall the capture thread. Events that do not fit are dropped and counted.
type ChannelObserver struct {
	name   string
	events chan Event
	levels bool
}

// NewChannelObserver returns an observer with a queue of size events. name
// labels the drop metric. Level updates are only queued when withLevels is set.
func NewChannelObserver(name string, size int, withLevels bool) *ChannelObserver {
	return &ChannelObserver{
		name:   name,
		events: make(chan Event, max(size, 1)),
		levels: withLevels,
	}
}

// Events returns the receive side of the queue.
func (o *ChannelObserver) Events() <-chan Event {
	return o.events
}

func (o *ChannelObserver) send(e Event) {
	select {
	case o.events <- e:
	default:
		metrics.RecordObserverDrop(o.name)
	}
}

// LeftChannelActive implements Observer.
func (o *ChannelObserver) LeftChannelActive(at time.Time) {
	o.send(Event{Type: EventChannelActive, Channel: audio.ChannelLeft, At: at})
}

// RightChannelActive implements Observer.
func (o *ChannelObserver) RightChannelActive(at time.Time) {
	o.send(Event{Type: EventChannelActive, Channel: audio.ChannelRight, At: at})
}

// DeviceChanged implements Observer.
func (o *ChannelObserver) DeviceChanged(message string) {
	o.send(Event{Type: EventDevice, Message: message, At: time.Now()})
}

// AudioEventDetected implements Observer.
func (o *ChannelObserver) AudioEventDetected(d audio.Detection) {
	o.send(Event{Type: EventDetection, Channel: d.Channel, At: d.Timestamp, Detection: d})
}

// StateChanged implements StatusObserver.
func (o *ChannelObserver) StateChanged(state types.EngineState) {
	o.send(Event{Type: EventState, State: state, At: time.Now()})
}

// LevelsUpdated implements StatusObserver.
func (o *ChannelObserver) LevelsUpdated(levels audio.Levels) {
	if o.levels {
		o.send(Event{Type: EventLevels, Levels: levels, At: time.Now()})
	}
}
