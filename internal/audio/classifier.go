package audio

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// EventKind identifies a class of sound event.
type EventKind int

// Event kinds.
const (
	EventUnknown EventKind = iota
	EventFootsteps
	EventGunshot
	EventExplosion
	EventVoiceShout
	EventMetallic
	EventGlass
	EventImpact
)

var eventKindNames = map[EventKind]string{
	EventUnknown:    "unknown",
	EventFootsteps:  "footsteps",
	EventGunshot:    "gunshot",
	EventExplosion:  "explosion",
	EventVoiceShout: "voice_shout",
	EventMetallic:   "metallic",
	EventGlass:      "glass",
	EventImpact:     "impact",
}

// String returns the configuration name of the kind.
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// ParseEventKind returns the kind for a configuration name.
func ParseEventKind(s string) (EventKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range eventKindNames {
		if name == s {
			return k, nil
		}
	}
	return EventUnknown, fmt.Errorf("unknown event kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(b []byte) error {
	parsed, err := ParseEventKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// EventProfile describes the spectral signature of an event kind.
type EventProfile struct {
	Kind              EventKind
	Name              string
	MinFrequency      float64
	MaxFrequency      float64
	PeakFrequency     float64
	MinIntensity      float64
	Duration          time.Duration
	RequiresTransient bool
	SpectralCentroid  float64
}

// DefaultProfiles returns the built-in event catalog.
func DefaultProfiles() []EventProfile {
	return []EventProfile{
		{Kind: EventFootsteps, Name: "Footsteps", MinFrequency: 20, MaxFrequency: 2000, PeakFrequency: 200,
			MinIntensity: 0.05, Duration: 200 * time.Millisecond, RequiresTransient: true, SpectralCentroid: 800},
		{Kind: EventGunshot, Name: "Gunshot", MinFrequency: 500, MaxFrequency: 8000, PeakFrequency: 2000,
			MinIntensity: 0.3, Duration: 50 * time.Millisecond, RequiresTransient: true, SpectralCentroid: 3000},
		{Kind: EventExplosion, Name: "Explosion", MinFrequency: 20, MaxFrequency: 10000, PeakFrequency: 150,
			MinIntensity: 0.4, Duration: 500 * time.Millisecond, RequiresTransient: true, SpectralCentroid: 1000},
		{Kind: EventVoiceShout, Name: "Voice/Shout", MinFrequency: 85, MaxFrequency: 4000, PeakFrequency: 1000,
			MinIntensity: 0.1, Duration: 800 * time.Millisecond, RequiresTransient: false, SpectralCentroid: 1500},
		{Kind: EventMetallic, Name: "Metallic", MinFrequency: 2000, MaxFrequency: 15000, PeakFrequency: 6000,
			MinIntensity: 0.1, Duration: 300 * time.Millisecond, RequiresTransient: true, SpectralCentroid: 8000},
		{Kind: EventGlass, Name: "Glass Breaking", MinFrequency: 3000, MaxFrequency: 20000, PeakFrequency: 8000,
			MinIntensity: 0.15, Duration: 400 * time.Millisecond, RequiresTransient: true, SpectralCentroid: 10000},
	}
}

// Detection is a classified sound event on one channel.
type Detection struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	Frequency  float64   `json:"frequency_hz"`
	Intensity  float64   `json:"intensity"`
	Channel    Channel   `json:"channel"`
	Timestamp  time.Time `json:"ts"`
}

// Classifier scores magnitude spectra against a fixed profile catalog.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	profiles []EventProfile
	binWidth float64
}

// NewClassifier returns a classifier for spectra produced from bufferSize
// samples at sampleRate.
func NewClassifier(profiles []EventProfile, sampleRate, bufferSize int) *Classifier {
	return &Classifier{
		profiles: profiles,
		binWidth: float64(sampleRate) / float64(bufferSize),
	}
}

// Profiles returns the catalog.
func (c *Classifier) Profiles() []EventProfile {
	return c.profiles
}

// bin maps a frequency to a spectrum index clamped to [0, n-1].
func (c *Classifier) bin(freq float64, n int) int {
	return min(max(int(freq/c.binWidth), 0), n-1)
}

// Score returns the match confidence in [0,1] of spectrum against p.
func (c *Classifier) Score(p *EventProfile, spectrum []float64) float64 {
	n := len(spectrum)
	if n == 0 {
		return 0
	}

	minBin := c.bin(p.MinFrequency, n)
	maxBin := c.bin(p.MaxFrequency, n)
	peakBin := c.bin(p.PeakFrequency, n)

	var total, profileEnergy float64
	for i, m := range spectrum {
		total += m
		if i >= minBin && i <= maxBin {
			profileEnergy += m
		}
	}
	if !(total > 0) || math.IsInf(total, 1) {
		return 0
	}

	peak := spectrum[peakBin]
	if peak < p.MinIntensity {
		return 0
	}

	confidence := (profileEnergy/total)*0.6 + (peak/total)*0.4

	if p.RequiresTransient {
		average := profileEnergy / float64(maxBin-minBin+1)
		if peak > average*2 {
			confidence *= 1.2
		}
	}

	if math.IsNaN(confidence) {
		return 0
	}
	return min(max(confidence, 0), 1)
}

// Classify returns a detection for every profile whose confidence reaches
// sensitivity, in catalog order. Detection IDs are left empty.
func (c *Classifier) Classify(spectrum []float64, sensitivity float64, ch Channel, now time.Time) []Detection {
	var out []Detection
	for i := range c.profiles {
		p := &c.profiles[i]
		confidence := c.Score(p, spectrum)
		if confidence < sensitivity {
			continue
		}
		out = append(out, Detection{
			Kind:       p.Kind,
			Name:       p.Name,
			Confidence: confidence,
			Frequency:  p.PeakFrequency,
			Intensity:  spectrum[c.bin(p.PeakFrequency, len(spectrum))],
			Channel:    ch,
			Timestamp:  now,
		})
	}
	return out
}
