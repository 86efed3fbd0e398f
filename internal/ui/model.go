// Package ui provides the Bubbletea terminal overlay: a left and a right
// panel that flash when a channel fires and fade back to the background.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/engine"
	"github.com/oszuidwest/hearingai/internal/types"
	"github.com/oszuidwest/hearingai/internal/util"
)

const (
	frameInterval = 33 * time.Millisecond // ~30 fps fade
	background    = "#1A1A1A"
	maxDetections = 5
)

// Settings controls how flashes are drawn.
type Settings struct {
	FlashDuration time.Duration
	LeftColor     string
	RightColor    string
	Opacity       float64
}

// DefaultSettings returns the overlay defaults.
func DefaultSettings() Settings {
	return Settings{
		FlashDuration: 200 * time.Millisecond,
		LeftColor:     "#FF0000",
		RightColor:    "#FF0000",
		Opacity:       0.8,
	}
}

// Model is the Bubbletea model for the overlay.
type Model struct {
	events <-chan engine.Event
	toggle func() error
	now    func() time.Time

	Settings   Settings
	State      types.EngineState
	Device     string
	Levels     audio.Levels
	LeftAt     time.Time // last time the left channel fired
	RightAt    time.Time
	Detections []audio.Detection // newest first
	Err        error

	// Terminal dimensions
	Width  int
	Height int
}

// NewModel creates an overlay reading from events. toggle starts or stops
// monitoring and may be nil.
func NewModel(events <-chan engine.Event, settings Settings, toggle func() error) Model {
	return Model{
		events:   events,
		toggle:   toggle,
		now:      time.Now,
		Settings: settings,
		State:    types.StateStopped,
	}
}

// Init starts listening for events and the animation clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), nextFrame())
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "t", " ":
			return m, runToggle(m.toggle)
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case EventMsg:
		m = m.apply(&msg.Event)
		return m, waitForEvent(m.events)

	case SettingsMsg:
		m.Settings = msg.Settings

	case toggleResultMsg:
		m.Err = msg.err

	case frameMsg:
		return m, nextFrame()

	case closedMsg:
		return m, tea.Quit
	}

	return m, nil
}

// apply folds an engine event into the model.
func (m Model) apply(ev *engine.Event) Model {
	switch ev.Type {
	case engine.EventChannelActive:
		switch ev.Channel {
		case audio.ChannelLeft:
			m.LeftAt = m.now()
		case audio.ChannelRight:
			m.RightAt = m.now()
		}
	case engine.EventDetection:
		detections := make([]audio.Detection, 0, maxDetections)
		detections = append(detections, ev.Detection)
		m.Detections = append(detections, m.Detections[:min(len(m.Detections), maxDetections-1)]...)
	case engine.EventState:
		m.State = ev.State
		if ev.State == types.StateStopped {
			m.Levels = audio.Levels{}
			m.Device = ""
		}
	case engine.EventDevice:
		m.Device = ev.Message
	case engine.EventLevels:
		m.Levels = ev.Levels
	}
	return m
}

// Intensity returns how strongly ch is lit at now, from opacity right after
// it fired down to 0 once the flash duration has passed.
func (m Model) Intensity(ch audio.Channel, now time.Time) float64 {
	at := m.LeftAt
	if ch == audio.ChannelRight {
		at = m.RightAt
	}
	if at.IsZero() || m.Settings.FlashDuration <= 0 {
		return 0
	}
	elapsed := now.Sub(at)
	if elapsed < 0 || elapsed >= m.Settings.FlashDuration {
		return 0
	}
	return (1 - float64(elapsed)/float64(m.Settings.FlashDuration)) * m.Settings.Opacity
}

// PanelColor returns the background color of ch's panel at now.
func (m Model) PanelColor(ch audio.Channel, now time.Time) string {
	color := m.Settings.LeftColor
	if ch == audio.ChannelRight {
		color = m.Settings.RightColor
	}
	return util.BlendColor(background, color, m.Intensity(ch, now))
}

// waitForEvent returns a command that waits for the next engine event.
func waitForEvent(events <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func runToggle(toggle func() error) tea.Cmd {
	if toggle == nil {
		return nil
	}
	return func() tea.Msg {
		return toggleResultMsg{err: toggle()}
	}
}
