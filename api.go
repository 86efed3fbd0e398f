package main

import (
	"cmp"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/oszuidwest/hearingai/internal/capture"
	"github.com/oszuidwest/hearingai/internal/config"
	"github.com/oszuidwest/hearingai/internal/eventlog"
	"github.com/oszuidwest/hearingai/internal/server"
	"github.com/oszuidwest/hearingai/internal/types"
)

// API response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// configView is the settings payload sent to clients. Secrets are reported
// only as present or absent.
type configView struct {
	System        systemView             `json:"system"`
	Audio         config.AudioConfig     `json:"audio"`
	Detection     config.DetectionConfig `json:"detection"`
	Frequency     config.FrequencyConfig `json:"frequency"`
	Overlay       config.OverlayConfig   `json:"overlay"`
	Notifications notificationsView      `json:"notifications"`
}

type systemView struct {
	Port    int    `json:"port"`
	Listen  string `json:"listen"`
	Hotkey  string `json:"hotkey"`
	Metrics bool   `json:"metrics"`
}

type notificationsView struct {
	WebhookURL    string    `json:"webhook_url"`
	MQTT          mqttView  `json:"mqtt"`
	Email         emailView `json:"email"`
	AlertKinds    []string  `json:"alert_kinds"`
	MinIntervalMs int       `json:"min_interval_ms"`
}

type mqttView struct {
	Broker        string `json:"broker"`
	ClientID      string `json:"client_id"`
	Username      string `json:"username"`
	HasPassword   bool   `json:"has_password"`
	TopicPrefix   string `json:"topic_prefix"`
	ChannelEvents bool   `json:"channel_events"`
}

type emailView struct {
	TenantID    string `json:"tenant_id"`
	ClientID    string `json:"client_id"`
	HasSecret   bool   `json:"has_secret"`
	FromAddress string `json:"from_address"`
	Recipients  string `json:"recipients"`
}

// buildConfigView returns the client-facing settings.
func (s *Server) buildConfigView() configView {
	cfg := s.config.Snapshot()
	return configView{
		System: systemView{
			Port:    cfg.Port,
			Listen:  cfg.Listen,
			Hotkey:  cfg.Hotkey,
			Metrics: cfg.Metrics,
		},
		Audio:     s.config.AudioSettings(),
		Detection: s.config.DetectionSettings(),
		Frequency: s.config.FrequencySettings(),
		Overlay:   s.config.OverlaySettings(),
		Notifications: notificationsView{
			WebhookURL: cfg.WebhookURL,
			MQTT: mqttView{
				Broker:        cfg.MQTT.Broker,
				ClientID:      cfg.MQTT.ClientID,
				Username:      cfg.MQTT.Username,
				HasPassword:   cfg.MQTT.Password != "",
				TopicPrefix:   cfg.MQTT.TopicPrefix,
				ChannelEvents: cfg.MQTT.ChannelEvents,
			},
			Email: emailView{
				TenantID:    cfg.Graph.TenantID,
				ClientID:    cfg.Graph.ClientID,
				HasSecret:   cfg.Graph.ClientSecret != "",
				FromAddress: cfg.Graph.FromAddress,
				Recipients:  cfg.Graph.Recipients,
			},
			AlertKinds:    cfg.AlertKinds,
			MinIntervalMs: cfg.MinIntervalMs,
		},
	}
}

// listDevices returns the source's devices for clients. Enumeration errors
// are logged; the default entry is still returned.
func (s *Server) listDevices() []types.AudioDevice {
	devices, err := s.engine.Devices()
	if err != nil {
		slog.Debug("device enumeration incomplete", "error", err)
	}
	return toAudioDevices(devices)
}

func toAudioDevices(devices []capture.Device) []types.AudioDevice {
	out := make([]types.AudioDevice, 0, len(devices))
	for _, d := range devices {
		out = append(out, types.AudioDevice{ID: d.ID, Name: d.Name, IsDefault: d.IsDefault})
	}
	return out
}

// handleAPIStatus returns engine status, settings and version info.
// GET /api/status
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.buildWSStatus())
}

// handleAPIDevices returns available audio devices.
// GET /api/devices
func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.listDevices(),
	})
}

// errInvalidNumber is returned for query parameters that are not integers.
var errInvalidNumber = errors.New("must be an integer")

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errInvalidNumber
	}
	return n, nil
}

// handleAPIEvents returns recent events, newest first.
// GET /api/events?limit=&offset=&type=
func (s *Server) handleAPIEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req server.EventsRequest
	var err error
	if req.Limit, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	if req.Offset, err = queryInt(r, "offset"); err != nil {
		s.writeError(w, http.StatusBadRequest, "offset "+err.Error())
		return
	}
	req.Type = r.URL.Query().Get("type")

	if err := server.Validate(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, server.ToValidationError(err))
		return
	}

	filter, _ := eventlog.ParseFilter(req.Type)
	events, hasMore := s.events.Recent(cmp.Or(req.Limit, server.DefaultEventLimit), req.Offset, filter)
	s.writeJSON(w, http.StatusOK, server.EventsResult{Events: events, HasMore: hasMore})
}
