package config

import (
	"cmp"
	"slices"
	"time"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/engine"
	"github.com/oszuidwest/hearingai/internal/types"
	"github.com/oszuidwest/hearingai/internal/util"
)

// Snapshot is a point-in-time copy of all configuration values.
type Snapshot struct {
	// System
	Port    int
	Listen  string
	Hotkey  string
	Metrics bool

	// Audio
	DeviceID     string
	SampleRate   int
	WindowMs     int
	SampleFormat string

	// Detection
	VolumeThreshold     float64
	Gain                float64
	LeftEnabled         bool
	RightEnabled        bool
	TriggerMode         string
	SeparationThreshold float64
	AdaptiveThreshold   bool
	NoiseFloor          float64
	SensitivityMode     string

	// Frequency
	FrequencyEnabled bool
	EventDetection   bool
	EventSensitivity float64

	// Overlay
	FlashDurationMs int
	LeftColor       string
	RightColor      string
	Opacity         float64

	// Notifications
	WebhookURL    string
	MQTT          types.MQTTConfig
	Graph         types.GraphConfig
	AlertKinds    []string
	MinIntervalMs int
}

// Snapshot returns a point-in-time copy of the configuration.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := c.Notifications.MQTT
	e := c.Notifications.Email

	return Snapshot{
		Port:    cmp.Or(c.System.Port, DefaultPort),
		Listen:  cmp.Or(c.System.Listen, DefaultListen),
		Hotkey:  c.System.Hotkey,
		Metrics: c.System.Metrics,

		DeviceID:     c.Audio.DeviceID,
		SampleRate:   cmp.Or(c.Audio.SampleRate, audio.DefaultSampleRate),
		WindowMs:     cmp.Or(c.Audio.WindowMs, audio.DefaultWindowMs),
		SampleFormat: cmp.Or(c.Audio.SampleFormat, DefaultSampleFormat),

		VolumeThreshold:     c.Detection.VolumeThreshold,
		Gain:                cmp.Or(c.Detection.Gain, DefaultGain),
		LeftEnabled:         c.Detection.LeftEnabled,
		RightEnabled:        c.Detection.RightEnabled,
		TriggerMode:         cmp.Or(c.Detection.TriggerMode, DefaultTriggerMode),
		SeparationThreshold: c.Detection.SeparationThreshold,
		AdaptiveThreshold:   c.Detection.AdaptiveThreshold,
		NoiseFloor:          cmp.Or(c.Detection.NoiseFloor, audio.DefaultNoiseFloor),
		SensitivityMode:     cmp.Or(c.Detection.SensitivityMode, DefaultSensitivityMode),

		FrequencyEnabled: c.Frequency.Enabled,
		EventDetection:   c.Frequency.EventDetection,
		EventSensitivity: cmp.Or(c.Frequency.EventSensitivity, DefaultEventSensitivity),

		FlashDurationMs: cmp.Or(c.Overlay.FlashDurationMs, DefaultFlashDurationMs),
		LeftColor:       cmp.Or(c.Overlay.LeftColor, DefaultFlashColor),
		RightColor:      cmp.Or(c.Overlay.RightColor, DefaultFlashColor),
		Opacity:         c.Overlay.Opacity,

		WebhookURL: c.Notifications.Webhook.URL,
		MQTT: types.MQTTConfig{
			Broker:        m.Broker,
			ClientID:      m.ClientID,
			Username:      m.Username,
			Password:      m.Password,
			TopicPrefix:   cmp.Or(m.TopicPrefix, DefaultTopicPrefix),
			ChannelEvents: m.ChannelEvents,
		},
		Graph: types.GraphConfig{
			TenantID:     e.TenantID,
			ClientID:     e.ClientID,
			ClientSecret: e.ClientSecret,
			FromAddress:  e.FromAddress,
			Recipients:   e.Recipients,
		},
		AlertKinds:    slices.Clone(c.Notifications.AlertKinds),
		MinIntervalMs: c.Notifications.MinIntervalMs,
	}
}

// HasWebhook reports whether a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasMQTT reports whether an MQTT broker is configured.
func (s *Snapshot) HasMQTT() bool {
	return s.MQTT.Broker != ""
}

// HasGraph reports whether Microsoft Graph is configured.
func (s *Snapshot) HasGraph() bool {
	return util.IsConfigured(s.Graph.TenantID, s.Graph.ClientID, s.Graph.ClientSecret) &&
		s.Graph.FromAddress != "" && s.Graph.Recipients != ""
}

// FlashDuration returns the overlay flash duration.
func (s *Snapshot) FlashDuration() time.Duration {
	return time.Duration(s.FlashDurationMs) * time.Millisecond
}

// MinInterval returns the minimum time between alerts of one kind.
func (s *Snapshot) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalMs) * time.Millisecond
}

// BitsPerSample returns the capture sample width for the configured format.
func (s *Snapshot) BitsPerSample() int {
	if s.SampleFormat == "s16" {
		return 16
	}
	return 32
}

// Analyzer converts the snapshot into analyzer settings. Mode names have
// already been validated, so unknown names fall back to the defaults.
func (s *Snapshot) Analyzer() engine.Settings {
	trigger, _ := audio.ParseTriggerMode(s.TriggerMode)
	sensitivity, _ := audio.ParseSensitivityMode(s.SensitivityMode)

	st := engine.DefaultSettings()
	st.VolumeThreshold = s.VolumeThreshold
	st.Gain = s.Gain
	st.LeftEnabled = s.LeftEnabled
	st.RightEnabled = s.RightEnabled
	st.TriggerMode = trigger
	st.SeparationThreshold = s.SeparationThreshold
	st.AdaptiveThreshold = s.AdaptiveThreshold
	st.NoiseFloor = s.NoiseFloor
	st.Sensitivity = sensitivity
	st.FrequencyAnalysis = s.FrequencyEnabled
	st.EventDetection = s.EventDetection
	st.EventSensitivity = s.EventSensitivity
	st.DeviceID = s.DeviceID
	st.SampleRate = s.SampleRate
	st.WindowMs = s.WindowMs
	st.BitsPerSample = s.BitsPerSample()
	return st
}

// AlertKindSet returns the configured alert kinds. An empty set matches all kinds.
func (s *Snapshot) AlertKindSet() map[audio.EventKind]bool {
	set := make(map[audio.EventKind]bool, len(s.AlertKinds))
	for _, name := range s.AlertKinds {
		if k, err := audio.ParseEventKind(name); err == nil {
			set[k] = true
		}
	}
	return set
}
