package ui

import (
	"time"

	"github.com/oszuidwest/hearingai/internal/engine"
)

// EventMsg carries one analysis event from the engine.
type EventMsg struct {
	Event engine.Event
}

// SettingsMsg replaces the flash settings, for example after a config change.
type SettingsMsg struct {
	Settings Settings
}

// frameMsg drives the fade animation.
type frameMsg time.Time

// toggleResultMsg reports the outcome of a monitoring toggle.
type toggleResultMsg struct {
	err error
}

// closedMsg indicates the event channel was closed.
type closedMsg struct{}
