// Package types provides shared type definitions used across the engine,
// server and notification packages.
package types

import (
	"time"

	"github.com/oszuidwest/hearingai/internal/audio"
)

// EngineState represents the current state of the analysis engine.
type EngineState string

const (
	// StateStopped indicates the engine is not capturing.
	StateStopped EngineState = "stopped"
	// StateStarting indicates capture is being opened.
	StateStarting EngineState = "starting"
	// StateRunning indicates the engine is analyzing audio.
	StateRunning EngineState = "running"
	// StateStopping indicates capture is being released.
	StateStopping EngineState = "stopping"
)

const (
	// InitialRetryDelay is the starting delay between notification retries.
	InitialRetryDelay = 3000 * time.Millisecond
	// MaxRetryDelay is the maximum delay between notification retries.
	MaxRetryDelay = 60000 * time.Millisecond
	// ShutdownTimeout is the duration to wait for graceful shutdown.
	ShutdownTimeout = 3000 * time.Millisecond
	// RestartDelay is the pause between stopping and restarting capture.
	RestartDelay = 250 * time.Millisecond
)

// EngineStatus contains a summary of the engine's current operational state.
type EngineStatus struct {
	State     EngineState `json:"state"`               // Current engine state
	Device    string      `json:"device,omitzero"`     // Name of the device being captured
	Uptime    string      `json:"uptime,omitzero"`     // Time since start
	LastError string      `json:"last_error,omitzero"` // Most recent error
	Windows   uint64      `json:"windows"`             // Windows analyzed since start
}

// AudioDevice represents a capturable audio endpoint.
type AudioDevice struct {
	ID        string `json:"id"`                  // Device identifier, empty for the default device
	Name      string `json:"name"`                // Device display name
	IsDefault bool   `json:"is_default,omitzero"` // Entry selects the system default
}

// GraphConfig contains Microsoft Graph API settings for email notifications.
type GraphConfig struct {
	TenantID     string `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`         // Azure AD tenant ID
	ClientID     string `json:"client_id,omitempty" yaml:"client_id,omitempty"`         // App registration client ID
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty"` // App registration client secret
	FromAddress  string `json:"from_address,omitempty" yaml:"from_address,omitempty"`   // Shared mailbox address (sender)
	Recipients   string `json:"recipients,omitempty" yaml:"recipients,omitempty"`       // Comma-separated recipients
}

// MQTTConfig contains broker settings for MQTT notifications.
type MQTTConfig struct {
	Broker        string `json:"broker,omitempty" yaml:"broker,omitempty"`                 // Broker URL, e.g. tcp://localhost:1883
	ClientID      string `json:"client_id,omitempty" yaml:"client_id,omitempty"`           // MQTT client identifier
	Username      string `json:"username,omitempty" yaml:"username,omitempty"`             // Optional username
	Password      string `json:"password,omitempty" yaml:"password,omitempty"`             // Optional password
	TopicPrefix   string `json:"topic_prefix,omitempty" yaml:"topic_prefix,omitempty"`     // Topic prefix (default "hearingai")
	ChannelEvents bool   `json:"channel_events,omitempty" yaml:"channel_events,omitempty"` // Also publish channel activity
}

// WSStatusResponse is sent to clients with engine status and settings.
type WSStatusResponse struct {
	Type    string        `json:"type"`    // Message type identifier
	Engine  EngineStatus  `json:"engine"`  // Engine status
	Devices []AudioDevice `json:"devices"` // Available audio devices
	Config  any           `json:"config"`  // Current configuration
	Version VersionInfo   `json:"version"` // Version information
}

// WSLevelsResponse is sent to clients with per-window level updates.
type WSLevelsResponse struct {
	Type   string       `json:"type"`   // Message type identifier
	Levels audio.Levels `json:"levels"` // Latest levels
}

// WSChannelActive is pushed when a channel fires.
type WSChannelActive struct {
	Type      string        `json:"type"`    // "channel_active"
	Channel   audio.Channel `json:"channel"` // Firing channel
	Timestamp time.Time     `json:"ts"`      // Window timestamp
}

// WSDetection is pushed for each classified event.
type WSDetection struct {
	Type      string          `json:"type"`      // "detection"
	Detection audio.Detection `json:"detection"` // The detection
}

// WSDeviceMessage is pushed when capture starts on a device.
type WSDeviceMessage struct {
	Type    string `json:"type"`    // "device"
	Message string `json:"message"` // e.g. "Using device: Speakers"
}

// WSTestResult is sent to clients after a test operation completes.
type WSTestResult struct {
	Type     string `json:"type"`            // Message type identifier
	TestType string `json:"test_type"`       // Type of test performed
	Success  bool   `json:"success"`         // Test succeeded
	Error    string `json:"error,omitempty"` // Error message if failed
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}
