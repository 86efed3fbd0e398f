// Package eventlog keeps a short in-memory window of analysis events
// (channel activity, detections, device and engine changes) for the
// control surface. Nothing is written to disk.
package eventlog

import (
	"sync"
	"time"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/types"
)

// EventType represents the type of event.
type EventType string

// Event types.
const (
	ChannelActive EventType = "channel_active"
	Detection     EventType = "detection"
	DeviceChanged EventType = "device_changed"
	StateChanged  EventType = "state_changed"
)

// Default window bounds.
const (
	DefaultCapacity = 1000
	DefaultMaxAge   = 10 * time.Minute
)

// MaxReadLimit is the maximum number of events that can be read at once.
const MaxReadLimit = 500

// Event represents a single log entry with type-specific details.
type Event struct {
	Timestamp time.Time        `json:"ts"`
	Type      EventType        `json:"type"`
	Channel   audio.Channel    `json:"channel,omitempty"`
	Message   string           `json:"msg,omitempty"`
	Detection *audio.Detection `json:"detection,omitempty"`
}

// TypeFilter specifies which event types to include when reading.
type TypeFilter string

// Filter constants for Recent.
const (
	FilterAll       TypeFilter = ""
	FilterChannel   TypeFilter = "channel"
	FilterDetection TypeFilter = "detection"
	FilterDevice    TypeFilter = "device"
	FilterEngine    TypeFilter = "engine"
)

// ParseFilter validates a filter name from a request.
func ParseFilter(s string) (TypeFilter, bool) {
	switch f := TypeFilter(s); f {
	case FilterAll, FilterChannel, FilterDetection, FilterDevice, FilterEngine:
		return f, true
	default:
		return FilterAll, false
	}
}

// Match reports whether t passes the filter.
func (f TypeFilter) Match(t EventType) bool {
	switch f {
	case FilterChannel:
		return t == ChannelActive
	case FilterDetection:
		return t == Detection
	case FilterDevice:
		return t == DeviceChanged
	case FilterEngine:
		return t == StateChanged
	default:
		return true
	}
}

// Logger is a bounded ring of recent events. It implements engine.Observer
// and engine.StatusObserver and is safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	events []Event
	head   int // index of the oldest event
	count  int
	maxAge time.Duration
	now    func() time.Time
}

// NewLogger creates a logger holding at most capacity events, none older than maxAge.
// A zero maxAge keeps events until they are overwritten.
func NewLogger(capacity int, maxAge time.Duration) *Logger {
	return &Logger{
		events: make([]Event, max(capacity, 1)),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Log appends an event, overwriting the oldest when full.
func (l *Logger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	idx := (l.head + l.count) % len(l.events)
	l.events[idx] = event
	if l.count < len(l.events) {
		l.count++
	} else {
		l.head = (l.head + 1) % len(l.events)
	}
}

// Len returns the number of events currently inside the window.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expireLocked()
	return l.count
}

// expireLocked drops events older than maxAge. Caller must hold l.mu.
func (l *Logger) expireLocked() {
	if l.maxAge <= 0 {
		return
	}
	cutoff := l.now().Add(-l.maxAge)
	for l.count > 0 && l.events[l.head].Timestamp.Before(cutoff) {
		l.events[l.head] = Event{}
		l.head = (l.head + 1) % len(l.events)
		l.count--
	}
}

// Recent returns up to n events starting from offset, filtered by type.
// Events are returned in reverse chronological order (newest first).
// The n parameter is capped at MaxReadLimit. hasMore reports whether further
// matching events exist beyond the returned page.
func (l *Logger) Recent(n, offset int, filter TypeFilter) (events []Event, hasMore bool) {
	n = min(n, MaxReadLimit)
	if n <= 0 {
		return []Event{}, false
	}
	offset = max(offset, 0)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.expireLocked()

	events = make([]Event, 0, min(n, l.count))
	skipped := 0
	for i := l.count - 1; i >= 0; i-- {
		e := l.events[(l.head+i)%len(l.events)]
		if !filter.Match(e.Type) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(events) == n {
			return events, true
		}
		events = append(events, e)
	}
	return events, false
}

// Clear empties the window.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.events)
	l.head, l.count = 0, 0
}

// LeftChannelActive implements engine.Observer.
func (l *Logger) LeftChannelActive(at time.Time) {
	l.Log(Event{Timestamp: at, Type: ChannelActive, Channel: audio.ChannelLeft})
}

// RightChannelActive implements engine.Observer.
func (l *Logger) RightChannelActive(at time.Time) {
	l.Log(Event{Timestamp: at, Type: ChannelActive, Channel: audio.ChannelRight})
}

// DeviceChanged implements engine.Observer.
func (l *Logger) DeviceChanged(message string) {
	l.Log(Event{Type: DeviceChanged, Message: message})
}

// AudioEventDetected implements engine.Observer.
func (l *Logger) AudioEventDetected(d audio.Detection) {
	l.Log(Event{Timestamp: d.Timestamp, Type: Detection, Channel: d.Channel, Message: d.Name, Detection: &d})
}

// StateChanged implements engine.StatusObserver.
func (l *Logger) StateChanged(state types.EngineState) {
	l.Log(Event{Type: StateChanged, Message: string(state)})
}

// LevelsUpdated implements engine.StatusObserver. Levels are not logged.
func (l *Logger) LevelsUpdated(audio.Levels) {}
