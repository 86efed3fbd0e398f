// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/types"
	"github.com/oszuidwest/hearingai/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultPort             = 8765
	DefaultListen           = "127.0.0.1"
	DefaultHotkey           = "ctrl+shift+h"
	DefaultSampleFormat     = "f32"
	DefaultVolumeThreshold  = 0.1
	DefaultGain             = 1.0
	DefaultTriggerMode      = "independent"
	DefaultSeparation       = 0.02
	DefaultSensitivityMode  = "normal"
	DefaultEventSensitivity = 0.7
	DefaultFlashDurationMs  = 200
	DefaultFlashColor       = "#FF0000"
	DefaultOpacity          = 0.8
	DefaultTopicPrefix      = "hearingai"
	DefaultMinIntervalMs    = 30000 // 30 seconds between alerts of one kind
)

// appDir is the directory under the user config dir holding settings.
const appDir = "HearingAI"

// SystemConfig holds process-level settings that require restart.
type SystemConfig struct {
	Port    int    `json:"port" yaml:"port" validate:"gte=0,lte=65535"` // HTTP server port
	Listen  string `json:"listen" yaml:"listen" validate:"omitempty,ip|hostname"` // HTTP listen address
	Hotkey  string `json:"hotkey" yaml:"hotkey"`                         // Global toggle hotkey, empty disables
	Metrics bool   `json:"metrics" yaml:"metrics"`                       // Serve /metrics
}

// AudioConfig holds capture device settings. Changing them restarts capture.
type AudioConfig struct {
	DeviceID     string `json:"device_id" yaml:"device_id"`
	SampleRate   int    `json:"sample_rate" yaml:"sample_rate" validate:"omitempty,oneof=16000 22050 32000 44100 48000 96000"`
	WindowMs     int    `json:"window_ms" yaml:"window_ms" validate:"omitempty,gte=10,lte=1000"`
	SampleFormat string `json:"sample_format" yaml:"sample_format" validate:"omitempty,oneof=f32 s16"`
}

// DetectionConfig holds channel activity detection settings.
type DetectionConfig struct {
	VolumeThreshold     float64 `json:"volume_threshold" yaml:"volume_threshold" validate:"gte=0,lte=1"`
	Gain                float64 `json:"gain" yaml:"gain" validate:"gte=0,lte=10"`
	LeftEnabled         bool    `json:"left_enabled" yaml:"left_enabled"`
	RightEnabled        bool    `json:"right_enabled" yaml:"right_enabled"`
	TriggerMode         string  `json:"trigger_mode" yaml:"trigger_mode" validate:"omitempty,oneof=independent exclusive threshold"`
	SeparationThreshold float64 `json:"separation_threshold" yaml:"separation_threshold" validate:"gte=0,lte=1"`
	AdaptiveThreshold   bool    `json:"adaptive_threshold" yaml:"adaptive_threshold"`
	NoiseFloor          float64 `json:"noise_floor" yaml:"noise_floor" validate:"gte=0,lte=1"`
	SensitivityMode     string  `json:"sensitivity_mode" yaml:"sensitivity_mode" validate:"omitempty,oneof=normal high ultra_high"`
}

// FrequencyConfig holds spectrum analysis and event classification settings.
type FrequencyConfig struct {
	Enabled          bool    `json:"enabled" yaml:"enabled"`
	EventDetection   bool    `json:"event_detection" yaml:"event_detection"`
	EventSensitivity float64 `json:"event_sensitivity" yaml:"event_sensitivity" validate:"gte=0,lte=1"`
}

// OverlayConfig holds the visual cue settings.
type OverlayConfig struct {
	FlashDurationMs int     `json:"flash_duration_ms" yaml:"flash_duration_ms" validate:"omitempty,gte=50,lte=5000"`
	LeftColor       string  `json:"left_color" yaml:"left_color"`
	RightColor      string  `json:"right_color" yaml:"right_color"`
	Opacity         float64 `json:"opacity" yaml:"opacity" validate:"gte=0,lte=1"`
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	URL string `json:"url" yaml:"url" validate:"omitempty,url"` // Webhook URL for detection alerts
}

// MQTTConfig holds MQTT notification settings.
type MQTTConfig struct {
	Broker        string `json:"broker" yaml:"broker" validate:"omitempty,url"` // e.g. tcp://localhost:1883
	ClientID      string `json:"client_id" yaml:"client_id"`
	Username      string `json:"username" yaml:"username"`
	Password      string `json:"password" yaml:"password"`
	TopicPrefix   string `json:"topic_prefix" yaml:"topic_prefix"`
	ChannelEvents bool   `json:"channel_events" yaml:"channel_events"` // Also publish channel activity
}

// EmailConfig holds Microsoft Graph email notification settings.
type EmailConfig struct {
	TenantID     string `json:"tenant_id" yaml:"tenant_id"`         // Azure AD tenant ID
	ClientID     string `json:"client_id" yaml:"client_id"`         // App registration client ID
	ClientSecret string `json:"client_secret" yaml:"client_secret"` // App registration client secret
	FromAddress  string `json:"from_address" yaml:"from_address"`   // Shared mailbox sender address
	Recipients   string `json:"recipients" yaml:"recipients"`       // Comma-separated recipient addresses
}

// NotificationsConfig holds all notification channel settings.
type NotificationsConfig struct {
	Webhook       WebhookConfig `json:"webhook" yaml:"webhook"`
	MQTT          MQTTConfig    `json:"mqtt" yaml:"mqtt"`
	Email         EmailConfig   `json:"email" yaml:"email"`
	AlertKinds    []string      `json:"alert_kinds" yaml:"alert_kinds"`                          // Event kinds that trigger alerts, empty for all
	MinIntervalMs int           `json:"min_interval_ms" yaml:"min_interval_ms" validate:"gte=0"` // Minimum time between alerts of one kind
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System        SystemConfig        `json:"system" yaml:"system"`
	Audio         AudioConfig         `json:"audio" yaml:"audio"`
	Detection     DetectionConfig     `json:"detection" yaml:"detection"`
	Frequency     FrequencyConfig     `json:"frequency" yaml:"frequency"`
	Overlay       OverlayConfig       `json:"overlay" yaml:"overlay"`
	Notifications NotificationsConfig `json:"notifications" yaml:"notifications"`

	mu          sync.RWMutex
	filePath    string
	subMu       sync.Mutex
	nextSubID   int
	subscribers map[int]func(Snapshot)
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{
			Port:    DefaultPort,
			Listen:  DefaultListen,
			Hotkey:  DefaultHotkey,
			Metrics: true,
		},
		Audio: AudioConfig{
			SampleRate:   audio.DefaultSampleRate,
			WindowMs:     audio.DefaultWindowMs,
			SampleFormat: DefaultSampleFormat,
		},
		Detection: DetectionConfig{
			VolumeThreshold:     DefaultVolumeThreshold,
			Gain:                DefaultGain,
			LeftEnabled:         true,
			RightEnabled:        true,
			TriggerMode:         DefaultTriggerMode,
			SeparationThreshold: DefaultSeparation,
			NoiseFloor:          audio.DefaultNoiseFloor,
			SensitivityMode:     DefaultSensitivityMode,
		},
		Frequency: FrequencyConfig{
			EventSensitivity: DefaultEventSensitivity,
		},
		Overlay: OverlayConfig{
			FlashDurationMs: DefaultFlashDurationMs,
			LeftColor:       DefaultFlashColor,
			RightColor:      DefaultFlashColor,
			Opacity:         DefaultOpacity,
		},
		Notifications: NotificationsConfig{
			MQTT:          MQTTConfig{TopicPrefix: DefaultTopicPrefix},
			AlertKinds:    []string{},
			MinIntervalMs: DefaultMinIntervalMs,
		},
		filePath:    filePath,
		subscribers: make(map[int]func(Snapshot)),
	}
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", util.WrapError("locate user config directory", err)
	}
	return filepath.Join(dir, appDir, "settings.json"), nil
}

// Path returns the settings file location.
func (c *Config) Path() string {
	return c.filePath
}

// isYAML reports whether the settings file is YAML encoded.
func (c *Config) isYAML() bool {
	return util.HasExtension(c.filePath, ".yaml", ".yml")
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return c.saveLocked()
	}
	if err != nil {
		return util.WrapError("read config", err)
	}

	if c.isYAML() {
		err = yaml.Unmarshal(data, c)
	} else {
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	return c.validate()
}

var configValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return util.WrapError("validate config", err)
	}
	if !util.IsHexColor(c.Overlay.LeftColor) {
		return fmt.Errorf("invalid left_color %q: must be hex format (#RRGGBB)", c.Overlay.LeftColor)
	}
	if !util.IsHexColor(c.Overlay.RightColor) {
		return fmt.Errorf("invalid right_color %q: must be hex format (#RRGGBB)", c.Overlay.RightColor)
	}
	for _, kind := range c.Notifications.AlertKinds {
		if _, err := audio.ParseEventKind(kind); err != nil {
			return fmt.Errorf("invalid alert_kinds: %w", err)
		}
	}
	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	c.System.Port = cmp.Or(c.System.Port, DefaultPort)
	c.System.Listen = cmp.Or(c.System.Listen, DefaultListen)

	c.Audio.SampleRate = cmp.Or(c.Audio.SampleRate, audio.DefaultSampleRate)
	c.Audio.WindowMs = cmp.Or(c.Audio.WindowMs, audio.DefaultWindowMs)
	c.Audio.SampleFormat = cmp.Or(c.Audio.SampleFormat, DefaultSampleFormat)

	c.Detection.Gain = cmp.Or(c.Detection.Gain, DefaultGain)
	c.Detection.TriggerMode = cmp.Or(c.Detection.TriggerMode, DefaultTriggerMode)
	c.Detection.SensitivityMode = cmp.Or(c.Detection.SensitivityMode, DefaultSensitivityMode)
	c.Detection.NoiseFloor = cmp.Or(c.Detection.NoiseFloor, audio.DefaultNoiseFloor)

	c.Frequency.EventSensitivity = cmp.Or(c.Frequency.EventSensitivity, DefaultEventSensitivity)

	c.Overlay.FlashDurationMs = cmp.Or(c.Overlay.FlashDurationMs, DefaultFlashDurationMs)
	c.Overlay.LeftColor = cmp.Or(c.Overlay.LeftColor, DefaultFlashColor)
	c.Overlay.RightColor = cmp.Or(c.Overlay.RightColor, DefaultFlashColor)

	c.Notifications.MQTT.TopicPrefix = cmp.Or(c.Notifications.MQTT.TopicPrefix, DefaultTopicPrefix)
	if c.Notifications.AlertKinds == nil {
		c.Notifications.AlertKinds = []string{}
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	var data []byte
	var err error
	if c.isYAML() {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// Subscribe registers fn to run with a fresh snapshot after every successful
// update. It returns a function that removes the subscription.
func (c *Config) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Config) notify() {
	snap := c.Snapshot()
	c.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// update applies mutate, validates and persists the result. Invalid changes
// are rolled back and nothing is written.
func (c *Config) update(mutate func()) error {
	c.mu.Lock()
	backup := c.sectionsLocked()
	mutate()
	c.applyDefaults()
	if err := c.validate(); err != nil {
		c.restoreLocked(backup)
		c.mu.Unlock()
		return err
	}
	err := c.saveLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.notify()
	return nil
}

type sections struct {
	system        SystemConfig
	audio         AudioConfig
	detection     DetectionConfig
	frequency     FrequencyConfig
	overlay       OverlayConfig
	notifications NotificationsConfig
}

func (c *Config) sectionsLocked() sections {
	n := c.Notifications
	n.AlertKinds = slices.Clone(n.AlertKinds)
	return sections{c.System, c.Audio, c.Detection, c.Frequency, c.Overlay, n}
}

func (c *Config) restoreLocked(s sections) {
	c.System, c.Audio, c.Detection = s.system, s.audio, s.detection
	c.Frequency, c.Overlay, c.Notifications = s.frequency, s.overlay, s.notifications
}

// --- Getters for individual sections ---

// DetectionSettings returns a copy of the detection section.
func (c *Config) DetectionSettings() DetectionConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detection
}

// FrequencySettings returns a copy of the frequency section.
func (c *Config) FrequencySettings() FrequencyConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Frequency
}

// OverlaySettings returns a copy of the overlay section.
func (c *Config) OverlaySettings() OverlayConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Overlay
}

// AudioSettings returns a copy of the audio section.
func (c *Config) AudioSettings() AudioConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio
}

// GraphConfig returns a copy of the current Graph/Email configuration.
func (c *Config) GraphConfig() types.GraphConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.GraphConfig{
		TenantID:     c.Notifications.Email.TenantID,
		ClientID:     c.Notifications.Email.ClientID,
		ClientSecret: c.Notifications.Email.ClientSecret,
		FromAddress:  c.Notifications.Email.FromAddress,
		Recipients:   c.Notifications.Email.Recipients,
	}
}

// MQTTConfig returns a copy of the current MQTT configuration.
func (c *Config) MQTTConfig() types.MQTTConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := c.Notifications.MQTT
	return types.MQTTConfig{
		Broker:        m.Broker,
		ClientID:      m.ClientID,
		Username:      m.Username,
		Password:      m.Password,
		TopicPrefix:   m.TopicPrefix,
		ChannelEvents: m.ChannelEvents,
	}
}

// --- Setters for individual sections ---

// SetDetection replaces the detection section and saves the configuration.
func (c *Config) SetDetection(d DetectionConfig) error {
	return c.update(func() { c.Detection = d })
}

// SetFrequency replaces the frequency section and saves the configuration.
func (c *Config) SetFrequency(f FrequencyConfig) error {
	return c.update(func() { c.Frequency = f })
}

// SetOverlay replaces the overlay section and saves the configuration.
func (c *Config) SetOverlay(o OverlayConfig) error {
	return c.update(func() { c.Overlay = o })
}

// SetAudio replaces the audio section and saves the configuration.
func (c *Config) SetAudio(a AudioConfig) error {
	return c.update(func() { c.Audio = a })
}

// SetDeviceID updates the capture device and saves the configuration.
func (c *Config) SetDeviceID(id string) error {
	return c.update(func() { c.Audio.DeviceID = id })
}

// SetWebhookURL updates the webhook URL and saves the configuration.
func (c *Config) SetWebhookURL(url string) error {
	return c.update(func() { c.Notifications.Webhook.URL = url })
}

// SetMQTT replaces the MQTT settings and saves the configuration.
func (c *Config) SetMQTT(m MQTTConfig) error {
	return c.update(func() { c.Notifications.MQTT = m })
}

// SetGraphConfig updates all Microsoft Graph/Email configuration fields and saves.
func (c *Config) SetGraphConfig(e EmailConfig) error {
	return c.update(func() { c.Notifications.Email = e })
}

// SetAlerts updates the alert kind filter and rate limit and saves.
func (c *Config) SetAlerts(kinds []string, minIntervalMs int) error {
	return c.update(func() {
		c.Notifications.AlertKinds = slices.Clone(kinds)
		c.Notifications.MinIntervalMs = minIntervalMs
	})
}
