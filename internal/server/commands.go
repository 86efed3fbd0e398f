package server

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oszuidwest/hearingai/internal/capture"
	"github.com/oszuidwest/hearingai/internal/config"
	"github.com/oszuidwest/hearingai/internal/eventlog"
	"github.com/oszuidwest/hearingai/internal/notify"
	"github.com/oszuidwest/hearingai/internal/types"
)

// Limits for command handling.
const (
	DefaultEventLimit = 50
	testTimeout       = 60 * time.Second
)

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Engine is the part of the analyzer driven by commands.
type Engine interface {
	Start() error
	Stop() error
	Toggle() error
	Status() types.EngineStatus
	Devices() ([]capture.Device, error)
}

// GraphInvalidator drops cached Graph clients after credential changes.
type GraphInvalidator interface {
	InvalidateGraphClient()
}

// TestFunc runs a notification test against the current configuration.
type TestFunc func(ctx context.Context, cfg *config.Snapshot) error

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	cfg      *config.Config
	engine   Engine
	events   *eventlog.Logger
	notifier GraphInvalidator
	tests    map[string]TestFunc
}

// NewCommandHandler creates a new command handler. notifier may be nil.
func NewCommandHandler(cfg *config.Config, engine Engine, events *eventlog.Logger, notifier GraphInvalidator) *CommandHandler {
	return &CommandHandler{
		cfg:      cfg,
		engine:   engine,
		events:   events,
		notifier: notifier,
		tests: map[string]TestFunc{
			"webhook": func(ctx context.Context, s *config.Snapshot) error {
				return notify.SendTestWebhook(ctx, s.WebhookURL)
			},
			"email": func(ctx context.Context, s *config.Snapshot) error {
				return notify.SendTestEmail(ctx, &s.Graph)
			},
			"mqtt": func(_ context.Context, s *config.Snapshot) error {
				return notify.SendTestMQTT(&s.MQTT)
			},
		},
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "detection/update", "notifications/webhook/test")
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	parts := strings.SplitN(cmd.Type, "/", 3)
	namespace := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}
	subaction := ""
	if len(parts) > 2 {
		subaction = parts[2]
	}

	switch namespace {
	case "detection":
		h.handleDetection(action, cmd, send)
	case "frequency":
		h.handleFrequency(action, cmd, send)
	case "overlay":
		h.handleOverlay(action, cmd, send)
	case "audio":
		h.handleAudio(action, cmd, send)
	case "notifications":
		h.handleNotifications(action, subaction, cmd, send)
	case "engine":
		h.handleEngine(action, cmd, send)
	case "events":
		h.handleEvents(action, cmd, send)
	case "status":
		h.handleStatus(action, cmd, send)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
		SendError(send, cmd, fmt.Errorf("unknown command: %s", cmd.Type))
	}

	triggerStatusUpdate()
}

// unknownAction reports an unsupported action to the client.
func unknownAction(cmd WSCommand, send chan<- any) {
	slog.Warn("unknown WebSocket action", "type", cmd.Type)
	SendError(send, cmd, fmt.Errorf("unknown command: %s", cmd.Type))
}

// --- Namespace handlers ---

// handleDetection routes detection/* commands
func (h *CommandHandler) handleDetection(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		HandleCommand(cmd, send, func(req *DetectionUpdateRequest) error {
			d := h.cfg.DetectionSettings()
			setIf(&d.VolumeThreshold, req.VolumeThreshold)
			setIf(&d.Gain, req.Gain)
			setIf(&d.LeftEnabled, req.LeftEnabled)
			setIf(&d.RightEnabled, req.RightEnabled)
			setIf(&d.TriggerMode, req.TriggerMode)
			setIf(&d.SeparationThreshold, req.SeparationThreshold)
			setIf(&d.AdaptiveThreshold, req.AdaptiveThreshold)
			setIf(&d.NoiseFloor, req.NoiseFloor)
			setIf(&d.SensitivityMode, req.SensitivityMode)
			return h.cfg.SetDetection(d)
		})
	case "get":
		SendSuccess(send, cmd, h.cfg.DetectionSettings())
	default:
		unknownAction(cmd, send)
	}
}

// handleFrequency routes frequency/* commands
func (h *CommandHandler) handleFrequency(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		HandleCommand(cmd, send, func(req *FrequencyUpdateRequest) error {
			f := h.cfg.FrequencySettings()
			setIf(&f.Enabled, req.Enabled)
			setIf(&f.EventDetection, req.EventDetection)
			setIf(&f.EventSensitivity, req.EventSensitivity)
			return h.cfg.SetFrequency(f)
		})
	case "get":
		SendSuccess(send, cmd, h.cfg.FrequencySettings())
	default:
		unknownAction(cmd, send)
	}
}

// handleOverlay routes overlay/* commands
func (h *CommandHandler) handleOverlay(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		HandleCommand(cmd, send, func(req *OverlayUpdateRequest) error {
			o := h.cfg.OverlaySettings()
			setIf(&o.FlashDurationMs, req.FlashDurationMs)
			setIf(&o.LeftColor, req.LeftColor)
			setIf(&o.RightColor, req.RightColor)
			setIf(&o.Opacity, req.Opacity)
			return h.cfg.SetOverlay(o)
		})
	case "get":
		SendSuccess(send, cmd, h.cfg.OverlaySettings())
	default:
		unknownAction(cmd, send)
	}
}

// handleAudio routes audio/* commands
func (h *CommandHandler) handleAudio(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		HandleCommand(cmd, send, func(req *AudioUpdateRequest) error {
			a := h.cfg.AudioSettings()
			setIf(&a.DeviceID, req.DeviceID)
			setIf(&a.SampleRate, req.SampleRate)
			setIf(&a.WindowMs, req.WindowMs)
			setIf(&a.SampleFormat, req.SampleFormat)
			if req.DeviceID != nil {
				slog.Info("audio/update: changing capture device", "device", *req.DeviceID)
			}
			return h.cfg.SetAudio(a)
		})
	case "get":
		SendSuccess(send, cmd, h.cfg.AudioSettings())
	case "devices":
		HandleActionAsync(cmd, send, func() (any, error) {
			devices, err := h.engine.Devices()
			if err != nil {
				slog.Warn("device enumeration incomplete", "error", err)
			}
			return devices, nil
		})
	default:
		unknownAction(cmd, send)
	}
}

// handleNotifications routes notifications/*/* commands
func (h *CommandHandler) handleNotifications(action, subaction string, cmd WSCommand, send chan<- any) {
	switch action + "/" + subaction {
	case "webhook/update":
		HandleCommand(cmd, send, func(req *WebhookUpdateRequest) error {
			return h.cfg.SetWebhookURL(req.URL)
		})
	case "mqtt/update":
		HandleCommand(cmd, send, func(req *MQTTUpdateRequest) error {
			return h.cfg.SetMQTT(config.MQTTConfig{
				Broker:        req.Broker,
				ClientID:      req.ClientID,
				Username:      req.Username,
				Password:      req.Password,
				TopicPrefix:   req.TopicPrefix,
				ChannelEvents: req.ChannelEvents,
			})
		})
	case "email/update":
		HandleCommand(cmd, send, func(req *EmailUpdateRequest) error {
			if err := h.cfg.SetGraphConfig(config.EmailConfig{
				TenantID:     req.TenantID,
				ClientID:     req.ClientID,
				ClientSecret: req.ClientSecret,
				FromAddress:  req.FromAddress,
				Recipients:   req.Recipients,
			}); err != nil {
				return err
			}
			if h.notifier != nil {
				h.notifier.InvalidateGraphClient()
			}
			return nil
		})
	case "alerts/update":
		HandleCommand(cmd, send, func(req *AlertsUpdateRequest) error {
			interval := h.cfg.Snapshot().MinIntervalMs
			setIf(&interval, req.MinIntervalMs)
			return h.cfg.SetAlerts(req.Kinds, interval)
		})
	case "webhook/test", "email/test", "mqtt/test":
		h.handleTest(action, send)
	default:
		unknownAction(cmd, send)
	}
}

// handleEngine routes engine/* commands
func (h *CommandHandler) handleEngine(action string, cmd WSCommand, send chan<- any) {
	var op func() error
	switch action {
	case "start":
		op = h.engine.Start
	case "stop":
		op = h.engine.Stop
	case "toggle":
		op = h.engine.Toggle
	default:
		unknownAction(cmd, send)
		return
	}

	HandleActionAsync(cmd, send, func() (any, error) {
		if err := op(); err != nil {
			return nil, err
		}
		return h.engine.Status(), nil
	})
}

// EventsResult is the data payload of events/get.
type EventsResult struct {
	Events  []eventlog.Event `json:"events"`
	HasMore bool             `json:"has_more"`
}

// handleEvents routes events/* commands
func (h *CommandHandler) handleEvents(action string, cmd WSCommand, send chan<- any) {
	if action != "get" {
		unknownAction(cmd, send)
		return
	}

	var req EventsRequest
	if !DecodeAndValidate(cmd, send, &req) {
		return
	}
	filter, _ := eventlog.ParseFilter(req.Type)
	events, hasMore := h.events.Recent(cmp.Or(req.Limit, DefaultEventLimit), req.Offset, filter)
	SendSuccess(send, cmd, EventsResult{Events: events, HasMore: hasMore})
}

// handleStatus routes status/* commands
func (h *CommandHandler) handleStatus(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "get":
		// Status is sent automatically, but explicit get triggers immediate update
		slog.Debug("status/get received, status update will be triggered")
	default:
		unknownAction(cmd, send)
	}
}

// handleTest executes a notification test and sends the result to the client.
func (h *CommandHandler) handleTest(testType string, send chan<- any) {
	run, ok := h.tests[testType]
	if !ok {
		slog.Warn("unknown test type", "test", testType)
		return
	}
	snap := h.cfg.Snapshot()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in test handler", "test", testType, "panic", r)
			}
		}()

		result := types.WSTestResult{
			Type:     "test_result",
			TestType: testType,
			Success:  true,
		}

		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		if err := run(ctx, &snap); err != nil {
			slog.Error("notification test failed", "test", testType, "error", err)
			result.Success = false
			result.Error = err.Error()
		} else {
			slog.Info("notification test succeeded", "test", testType)
		}

		trySend(send, "test_result", result)
	}()
}

// setIf copies *src into dst when src is set.
func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
