package audio

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier() *Classifier {
	return NewClassifier(DefaultProfiles(), DefaultSampleRate, FFTSize)
}

func profile(t *testing.T, kind EventKind) *EventProfile {
	t.Helper()
	for _, p := range DefaultProfiles() {
		if p.Kind == kind {
			return &p
		}
	}
	t.Fatalf("no profile for %s", kind)
	return nil
}

func TestClassifyConcentratedEnergyAt2kHz(t *testing.T) {
	c := newTestClassifier()
	spectrum := make([]float64, FFTSize/2)
	spectrum[46] = 0.4
	now := time.Now()

	got := c.Classify(spectrum, 0.7, ChannelLeft, now)

	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, EventGunshot, d.Kind)
	assert.Equal(t, "Gunshot", d.Name)
	assert.InDelta(t, 1.0, d.Confidence, 1e-9)
	assert.Equal(t, 2000.0, d.Frequency)
	assert.Equal(t, 0.4, d.Intensity)
	assert.Equal(t, ChannelLeft, d.Channel)
	assert.Equal(t, now, d.Timestamp)
	assert.Empty(t, d.ID)
}

func TestClassifyFromToneSpectrum(t *testing.T) {
	c := newTestClassifier()
	a, err := NewFrequencyAnalyzer(FFTSize)
	require.NoError(t, err)

	var got []Detection
	a.Push(sine(46, FFTSize, 1.6), func(s []float64) {
		got = append(got, c.Classify(s, 0.7, ChannelRight, time.Now())...)
	})

	require.NotEmpty(t, got)
	assert.Equal(t, EventGunshot, got[0].Kind)
	assert.GreaterOrEqual(t, got[0].Confidence, 0.7)
}

func TestScoreBelowMinimumIntensity(t *testing.T) {
	c := newTestClassifier()
	spectrum := make([]float64, FFTSize/2)
	spectrum[46] = 0.2

	assert.Zero(t, c.Score(profile(t, EventGunshot), spectrum))
}

func TestScoreNonTransientBlend(t *testing.T) {
	c := newTestClassifier()
	spectrum := make([]float64, FFTSize/2)
	spectrum[23] = 0.2  // ~1 kHz, inside the voice band
	spectrum[300] = 0.2 // ~12.9 kHz, outside it

	// 0.5 in-band ratio and 0.5 peak share.
	assert.InDelta(t, 0.5, c.Score(profile(t, EventVoiceShout), spectrum), 1e-9)

	assert.Empty(t, c.Classify(spectrum, 0.6, ChannelLeft, time.Now()))

	got := c.Classify(spectrum, 0.49, ChannelLeft, time.Now())
	require.Len(t, got, 1)
	assert.Equal(t, EventVoiceShout, got[0].Kind)
}

func TestScoreEmptyAndSilentSpectra(t *testing.T) {
	c := newTestClassifier()
	p := profile(t, EventGunshot)

	assert.Zero(t, c.Score(p, nil))
	assert.Zero(t, c.Score(p, make([]float64, FFTSize/2)))
	assert.Empty(t, c.Classify(make([]float64, FFTSize/2), 0.1, ChannelLeft, time.Now()))
}

func TestScoreClampsOutOfRangeBins(t *testing.T) {
	// A short spectrum pushes every profile bin onto the last index.
	c := NewClassifier(DefaultProfiles(), DefaultSampleRate, FFTSize)
	spectrum := []float64{0, 0, 0, 0.9}

	conf := c.Score(profile(t, EventGlass), spectrum)
	assert.GreaterOrEqual(t, conf, 0.0)
	assert.LessOrEqual(t, conf, 1.0)
}

func spectrumWith(n int, set func(s []float64)) []float64 {
	s := make([]float64, n)
	set(s)
	return s
}

func TestScoreStaysInUnitRange(t *testing.T) {
	half := FFTSize / 2
	r := rand.New(rand.NewPCG(3, 5))

	tests := []struct {
		name     string
		spectrum []float64
	}{
		{"all equal", constant(0.5, half)},
		{"single bin", spectrumWith(half, func(s []float64) { s[46] = 100 })},
		{"single sample", []float64{0.8}},
		{"negative bins", spectrumWith(half, func(s []float64) { s[10], s[46], s[200] = -1, 0.5, -0.3 })},
		{"negative total", constant(-0.4, half)},
		{"huge values", constant(math.MaxFloat64/float64(half*2), half)},
		{"nan bin", spectrumWith(half, func(s []float64) { s[46], s[100] = math.NaN(), 0.5 })},
		{"nan peak only", spectrumWith(half, func(s []float64) { s[46] = math.NaN() })},
		{"inf bin", spectrumWith(half, func(s []float64) { s[46], s[300] = math.Inf(1), 0.4 })},
		{"negative inf bin", spectrumWith(half, func(s []float64) { s[46], s[300] = math.Inf(-1), 0.4 })},
		{"random", spectrumWith(half, func(s []float64) {
			for i := range s {
				s[i] = r.Float64() * 2
			}
		})},
		{"random signed", spectrumWith(half, func(s []float64) {
			for i := range s {
				s[i] = r.NormFloat64()
			}
		})},
	}

	c := newTestClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, p := range c.Profiles() {
				conf := c.Score(&p, tt.spectrum)
				assert.False(t, math.IsNaN(conf), p.Name)
				assert.GreaterOrEqual(t, conf, 0.0, p.Name)
				assert.LessOrEqual(t, conf, 1.0, p.Name)
			}
			for _, d := range c.Classify(tt.spectrum, 0.7, ChannelLeft, time.Now()) {
				assert.GreaterOrEqual(t, d.Confidence, 0.7, d.Name)
				assert.LessOrEqual(t, d.Confidence, 1.0, d.Name)
			}
		})
	}
}

func TestInfiniteSampleProducesNoDetections(t *testing.T) {
	frames := make([]float32, FFTSize*2)
	frames[10] = float32(math.Inf(1))
	frames[11] = float32(math.Inf(-1))

	w := NewWindower(FFTSize)
	var windows []Window
	require.NoError(t, w.Write(f32Frames(frames...), 4, 2, collect(&windows)))
	require.Len(t, windows, 1)
	assert.Zero(t, windows[0].Left[5])
	assert.Zero(t, windows[0].Right[5])

	a, err := NewFrequencyAnalyzer(FFTSize)
	require.NoError(t, err)
	c := newTestClassifier()

	var spectra int
	var got []Detection
	a.Push(windows[0].Left, func(s []float64) {
		spectra++
		for _, m := range s {
			require.False(t, math.IsNaN(m) || math.IsInf(m, 0))
		}
		got = append(got, c.Classify(s, 0.7, ChannelLeft, time.Now())...)
	})

	assert.Equal(t, 1, spectra)
	assert.Empty(t, got)
	_, err = json.Marshal(got)
	assert.NoError(t, err)
}

func TestDefaultProfiles(t *testing.T) {
	profiles := DefaultProfiles()
	require.Len(t, profiles, 6)

	for _, p := range profiles {
		assert.NotEqual(t, EventUnknown, p.Kind)
		assert.Less(t, p.MinFrequency, p.MaxFrequency, p.Name)
		assert.GreaterOrEqual(t, p.PeakFrequency, p.MinFrequency, p.Name)
		assert.LessOrEqual(t, p.PeakFrequency, p.MaxFrequency, p.Name)
	}
}

func TestEventKindText(t *testing.T) {
	kind, err := ParseEventKind(" Voice_Shout ")
	require.NoError(t, err)
	assert.Equal(t, EventVoiceShout, kind)

	_, err = ParseEventKind("thunder")
	assert.Error(t, err)

	b, err := json.Marshal(Detection{Kind: EventGlass, Channel: ChannelRight})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"glass"`)
	assert.Contains(t, string(b), `"channel":"right"`)

	var d Detection
	require.NoError(t, json.Unmarshal(b, &d))
	assert.Equal(t, EventGlass, d.Kind)
}
