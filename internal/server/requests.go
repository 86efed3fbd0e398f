package server

// Request types for WebSocket commands with validation tags.
// Pointer fields are optional; nil leaves the stored value unchanged.

// --- Detection settings ---

// DetectionUpdateRequest is the request body for detection/update.
type DetectionUpdateRequest struct {
	VolumeThreshold     *float64 `json:"volume_threshold" validate:"omitempty,gte=0,lte=1"`
	Gain                *float64 `json:"gain" validate:"omitempty,gt=0,lte=10"`
	LeftEnabled         *bool    `json:"left_enabled"`
	RightEnabled        *bool    `json:"right_enabled"`
	TriggerMode         *string  `json:"trigger_mode" validate:"omitempty,oneof=independent exclusive threshold"`
	SeparationThreshold *float64 `json:"separation_threshold" validate:"omitempty,gte=0,lte=1"`
	AdaptiveThreshold   *bool    `json:"adaptive_threshold"`
	NoiseFloor          *float64 `json:"noise_floor" validate:"omitempty,gte=0,lte=1"`
	SensitivityMode     *string  `json:"sensitivity_mode" validate:"omitempty,oneof=normal high ultra_high"`
}

// --- Frequency settings ---

// FrequencyUpdateRequest is the request body for frequency/update.
type FrequencyUpdateRequest struct {
	Enabled          *bool    `json:"enabled"`
	EventDetection   *bool    `json:"event_detection"`
	EventSensitivity *float64 `json:"event_sensitivity" validate:"omitempty,gt=0,lte=1"`
}

// --- Overlay settings ---

// OverlayUpdateRequest is the request body for overlay/update.
type OverlayUpdateRequest struct {
	FlashDurationMs *int     `json:"flash_duration_ms" validate:"omitempty,gte=50,lte=5000"`
	LeftColor       *string  `json:"left_color" validate:"omitempty,hexcolor"`
	RightColor      *string  `json:"right_color" validate:"omitempty,hexcolor"`
	Opacity         *float64 `json:"opacity" validate:"omitempty,gte=0,lte=1"`
}

// --- Audio settings ---

// AudioUpdateRequest is the request body for audio/update.
type AudioUpdateRequest struct {
	DeviceID     *string `json:"device_id" validate:"omitempty,max=512"`
	SampleRate   *int    `json:"sample_rate" validate:"omitempty,oneof=16000 22050 32000 44100 48000 96000"`
	WindowMs     *int    `json:"window_ms" validate:"omitempty,gte=10,lte=1000"`
	SampleFormat *string `json:"sample_format" validate:"omitempty,oneof=f32 s16"`
}

// --- Notification settings ---

// WebhookUpdateRequest is the request body for notifications/webhook/update.
type WebhookUpdateRequest struct {
	URL string `json:"url" validate:"omitempty,max=2048,url"`
}

// MQTTUpdateRequest is the request body for notifications/mqtt/update.
type MQTTUpdateRequest struct {
	Broker        string `json:"broker" validate:"omitempty,max=2048,url"`
	ClientID      string `json:"client_id" validate:"omitempty,max=256"`
	Username      string `json:"username" validate:"omitempty,max=256"`
	Password      string `json:"password" validate:"omitempty,max=500"`
	TopicPrefix   string `json:"topic_prefix" validate:"omitempty,max=256"`
	ChannelEvents bool   `json:"channel_events"`
}

// EmailUpdateRequest is the request body for notifications/email/update.
type EmailUpdateRequest struct {
	TenantID     string `json:"tenant_id" validate:"omitempty,max=100"`
	ClientID     string `json:"client_id" validate:"omitempty,max=100"`
	ClientSecret string `json:"client_secret" validate:"omitempty,max=500"`
	FromAddress  string `json:"from_address" validate:"omitempty,max=254"`
	Recipients   string `json:"recipients" validate:"omitempty,max=1000"`
}

// AlertsUpdateRequest is the request body for notifications/alerts/update.
type AlertsUpdateRequest struct {
	Kinds         []string `json:"alert_kinds" validate:"omitempty,max=16,dive,oneof=unknown footsteps gunshot explosion voice_shout metallic glass impact"`
	MinIntervalMs *int     `json:"min_interval_ms" validate:"omitempty,gte=0,lte=3600000"`
}

// --- Event log ---

// EventsRequest is the request body for events/get.
type EventsRequest struct {
	Limit  int    `json:"limit" validate:"omitempty,gte=1,lte=500"`
	Offset int    `json:"offset" validate:"omitempty,gte=0"`
	Type   string `json:"type" validate:"omitempty,oneof=channel detection device engine"`
}
