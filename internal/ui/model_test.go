package ui

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/engine"
	"github.com/oszuidwest/hearingai/internal/types"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestModel(toggle func() error) Model {
	m := NewModel(make(chan engine.Event), DefaultSettings(), toggle)
	m.now = func() time.Time { return t0 }
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestChannelFlashFades(t *testing.T) {
	m := newTestModel(nil)
	m, cmd := update(t, m, EventMsg{Event: engine.Event{Type: engine.EventChannelActive, Channel: audio.ChannelLeft}})
	assert.NotNil(t, cmd, "keeps listening for events")
	assert.Equal(t, t0, m.LeftAt)
	assert.True(t, m.RightAt.IsZero())

	tests := []struct {
		name    string
		elapsed time.Duration
		want    float64
	}{
		{"just fired", 0, 0.8},
		{"halfway", 100 * time.Millisecond, 0.4},
		{"expired", 200 * time.Millisecond, 0},
		{"long after", time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, m.Intensity(audio.ChannelLeft, t0.Add(tt.elapsed)), 1e-9)
		})
	}
	assert.Zero(t, m.Intensity(audio.ChannelRight, t0))
}

func TestPanelColor(t *testing.T) {
	m := newTestModel(nil)
	m.Settings.Opacity = 1
	m.Settings.RightColor = "#00FF00"
	m, _ = update(t, m, EventMsg{Event: engine.Event{Type: engine.EventChannelActive, Channel: audio.ChannelRight}})

	assert.Equal(t, "#00FF00", m.PanelColor(audio.ChannelRight, t0))
	assert.Equal(t, background, m.PanelColor(audio.ChannelRight, t0.Add(time.Second)))
	assert.Equal(t, background, m.PanelColor(audio.ChannelLeft, t0))
}

func TestSettingsMsg(t *testing.T) {
	m := newTestModel(nil)
	m, _ = update(t, m, EventMsg{Event: engine.Event{Type: engine.EventChannelActive, Channel: audio.ChannelLeft}})
	m, _ = update(t, m, SettingsMsg{Settings: Settings{FlashDuration: time.Second, LeftColor: "#0000FF", RightColor: "#0000FF", Opacity: 0.5}})

	assert.InDelta(t, 0.25, m.Intensity(audio.ChannelLeft, t0.Add(500*time.Millisecond)), 1e-9)
}

func TestDetectionsNewestFirst(t *testing.T) {
	m := newTestModel(nil)
	for i := range 7 {
		d := audio.Detection{ID: fmt.Sprint(i), Kind: audio.EventImpact, Name: "Impact"}
		m, _ = update(t, m, EventMsg{Event: engine.Event{Type: engine.EventDetection, Detection: d}})
	}

	require.Len(t, m.Detections, maxDetections)
	assert.Equal(t, "6", m.Detections[0].ID)
	assert.Equal(t, "2", m.Detections[maxDetections-1].ID)
}

func TestStateAndDevice(t *testing.T) {
	m := newTestModel(nil)
	m, _ = update(t, m, EventMsg{Event: engine.Event{Type: engine.EventState, State: types.StateRunning}})
	m, _ = update(t, m, EventMsg{Event: engine.Event{Type: engine.EventDevice, Message: "Using device: USB"}})
	m, _ = update(t, m, EventMsg{Event: engine.Event{Type: engine.EventLevels, Levels: audio.Levels{Left: 0.5}}})

	assert.Equal(t, types.StateRunning, m.State)
	assert.Equal(t, "Using device: USB", m.Device)
	assert.InDelta(t, 0.5, m.Levels.Left, 1e-9)

	m, _ = update(t, m, EventMsg{Event: engine.Event{Type: engine.EventState, State: types.StateStopped}})
	assert.Empty(t, m.Device)
	assert.Zero(t, m.Levels.Left)
}

func TestKeys(t *testing.T) {
	calls := 0
	m := newTestModel(func() error {
		calls++
		return errors.New("no capture device")
	})

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, 1, calls)

	m, _ = update(t, m, msg)
	assert.EqualError(t, m.Err, "no capture device")
	assert.Contains(t, m.View(), "no capture device")
}

func TestView(t *testing.T) {
	m := newTestModel(nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, m.View(), "No sounds detected yet")

	d := audio.Detection{Kind: audio.EventGlass, Name: "Glass Breaking", Channel: audio.ChannelRight, Confidence: 0.9, Timestamp: t0}
	m, _ = update(t, m, EventMsg{Event: engine.Event{Type: engine.EventDetection, Detection: d}})

	view := m.View()
	assert.Contains(t, view, "LEFT")
	assert.Contains(t, view, "RIGHT")
	assert.Contains(t, view, "Glass Breaking")
	assert.Contains(t, view, "90%")
}

func TestRenderMeter(t *testing.T) {
	tests := []struct {
		name      string
		level     float64
		peak      float64
		threshold float64
		want      string
	}{
		{"silent", 0, 0, 0, "░░░░░░░░░░"},
		{"half", 0.5, 0, 0, "█████░░░░░"},
		{"peak and threshold", 0.2, 0.6, 0.8, "██░░░░▌░|░"},
		{"clipped", 2, 2, 0, "█████████▌"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderMeter(tt.level, tt.peak, tt.threshold, 10))
		})
	}
}
