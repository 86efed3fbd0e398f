package engine

import (
	"github.com/go-playground/validator/v10"
	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/util"
)

// Settings is an immutable snapshot of the analysis parameters. The analyzer
// loads it once per window; replace it with UpdateSettings.
type Settings struct {
	VolumeThreshold     float64               `validate:"gte=0,lte=1"`
	Gain                float64               `validate:"gt=0,lte=10"`
	LeftEnabled         bool
	RightEnabled        bool
	TriggerMode         audio.TriggerMode     `validate:"gte=0,lte=2"`
	SeparationThreshold float64               `validate:"gte=0,lte=1"`
	AdaptiveThreshold   bool
	NoiseFloor          float64               `validate:"gte=0,lte=1"`
	Sensitivity         audio.SensitivityMode `validate:"gte=0,lte=2"`
	FrequencyAnalysis   bool
	EventDetection      bool
	EventSensitivity    float64               `validate:"gt=0,lte=1"`
	DeviceID            string
	SampleRate          int                   `validate:"gte=8000,lte=192000"`
	WindowMs            int                   `validate:"gte=10,lte=1000"`
	NoiseHistory        int                   `validate:"gte=1,lte=10000"`
	BitsPerSample       int                   `validate:"oneof=16 32"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		VolumeThreshold:     0.1,
		Gain:                1.0,
		LeftEnabled:         true,
		RightEnabled:        true,
		TriggerMode:         audio.TriggerIndependent,
		SeparationThreshold: 0.02,
		NoiseFloor:          audio.DefaultNoiseFloor,
		Sensitivity:         audio.SensitivityNormal,
		EventSensitivity:    0.7,
		SampleRate:          audio.DefaultSampleRate,
		WindowMs:            audio.DefaultWindowMs,
		NoiseHistory:        audio.DefaultNoiseHistory,
		BitsPerSample:       32,
	}
}

var settingsValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its allowed range.
func (s *Settings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return util.WrapError("validate settings", err)
	}
	return nil
}

// WindowLength returns the analysis window length in frames.
func (s *Settings) WindowLength() int {
	return audio.WindowLength(s.SampleRate, s.WindowMs)
}

// requiresRestart reports whether moving from s to next changes how capture
// is opened or how the pipeline is sized.
func (s *Settings) requiresRestart(next *Settings) bool {
	return s.DeviceID != next.DeviceID ||
		s.SampleRate != next.SampleRate ||
		s.WindowMs != next.WindowMs ||
		s.NoiseHistory != next.NoiseHistory ||
		s.BitsPerSample != next.BitsPerSample
}
