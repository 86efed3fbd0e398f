package engine

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/capture"
	"github.com/oszuidwest/hearingai/internal/types"
)

// fakeSource records lifecycle calls and exposes the callbacks it was given.
type fakeSource struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
	stopErr  error
	format   capture.Format
	deviceID string
	onData   capture.DataFunc
	onStop   capture.StopFunc

	// When gate is set, Start closes entered and blocks until gate closes.
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (f *fakeSource) Start(deviceID string, format capture.Format, onData capture.DataFunc, onStop capture.StopFunc) (capture.Device, error) {
	if f.gate != nil {
		f.once.Do(func() { close(f.entered) })
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return capture.Device{}, f.startErr
	}
	f.deviceID = deviceID
	f.format = format
	f.onData = onData
	f.onStop = onStop
	return capture.Device{ID: "fake", Name: "Fake Speakers"}, nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopErr
}

func (f *fakeSource) Devices() ([]capture.Device, error) {
	return []capture.Device{{Name: capture.DefaultDeviceName, IsDefault: true}, {ID: "fake", Name: "Fake Speakers"}}, nil
}

func (f *fakeSource) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

// push delivers frames through the callback captured at Start.
func (f *fakeSource) push(buf []byte, bits int) {
	f.mu.Lock()
	onData := f.onData
	f.mu.Unlock()
	onData(buf, len(buf), bits, 2)
}

// recorder captures observer calls in order.
type recorder struct {
	mu         sync.Mutex
	events     []string
	detections []audio.Detection
	levels     []audio.Levels
	states     []types.EngineState
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) LeftChannelActive(time.Time)  { r.add("left") }
func (r *recorder) RightChannelActive(time.Time) { r.add("right") }
func (r *recorder) DeviceChanged(m string)       { r.add("device:" + m) }

func (r *recorder) AudioEventDetected(d audio.Detection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "detection:"+d.Kind.String())
	r.detections = append(r.detections, d)
}

func (r *recorder) StateChanged(s types.EngineState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) LevelsUpdated(l audio.Levels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, l)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// stereoFloat32 builds n interleaved float32 frames from per-channel generators.
func stereoFloat32(n int, left, right func(i int) float64) []byte {
	buf := make([]byte, n*8)
	for i := range n {
		binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(float32(left(i))))
		binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(float32(right(i))))
	}
	return buf
}

func level(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func newTestAnalyzer(t *testing.T, mutate func(*Settings)) (*Analyzer, *fakeSource, *recorder) {
	t.Helper()
	s := DefaultSettings()
	if mutate != nil {
		mutate(&s)
	}
	src := &fakeSource{}
	a, err := New(src, s)
	require.NoError(t, err)
	rec := &recorder{}
	a.Subscribe(rec)
	return a, src, rec
}

func TestAnalyzerIndependentBothChannelsFire(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)
	require.NoError(t, a.Start())

	src.push(stereoFloat32(2205, level(0.2), level(0.2)), 32)

	assert.Equal(t, []string{"device:Using device: Fake Speakers", "left", "right"}, rec.snapshot())
}

func TestAnalyzerExclusiveOnlyLouderFires(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, func(s *Settings) {
		s.TriggerMode = audio.TriggerExclusive
	})
	require.NoError(t, a.Start())

	src.push(stereoFloat32(2205, level(0.05), level(0.3)), 32)

	assert.Equal(t, []string{"device:Using device: Fake Speakers", "right"}, rec.snapshot())
}

func TestAnalyzerSilentWindowFiresNothing(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)
	require.NoError(t, a.Start())

	src.push(stereoFloat32(2205, level(0), level(0)), 32)

	assert.Equal(t, []string{"device:Using device: Fake Speakers"}, rec.snapshot())
	assert.Equal(t, uint64(1), a.Status().Windows)
}

func TestAnalyzerPartialWindowWaits(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)
	require.NoError(t, a.Start())

	src.push(stereoFloat32(2000, level(0.5), level(0.5)), 32)
	assert.Len(t, rec.snapshot(), 1)

	src.push(stereoFloat32(205, level(0.5), level(0.5)), 32)
	assert.Len(t, rec.snapshot(), 3)
}

func TestAnalyzerInt16Format(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, func(s *Settings) {
		s.BitsPerSample = 16
	})
	require.NoError(t, a.Start())
	assert.Equal(t, 16, src.format.BitsPerSample)
	assert.Equal(t, 2, src.format.Channels)
	assert.Equal(t, 44100, src.format.SampleRate)

	buf := make([]byte, 2205*4)
	for i := range 2205 {
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(int16(16384)))
		binary.LittleEndian.PutUint16(buf[i*4+2:], 0)
	}
	src.push(buf, 16)

	assert.Equal(t, []string{"device:Using device: Fake Speakers", "left"}, rec.snapshot())
}

func TestAnalyzerUnsupportedFormatIsDropped(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)
	require.NoError(t, a.Start())

	assert.NotPanics(t, func() {
		src.push(make([]byte, 2205*6), 24)
	})
	assert.Len(t, rec.snapshot(), 1)
	assert.True(t, a.IsRunning())
}

func TestAnalyzerDetectsEvents(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, func(s *Settings) {
		s.FrequencyAnalysis = true
		s.EventDetection = true
		s.EventSensitivity = 0.1
	})
	require.NoError(t, a.Start())

	// The window stores magnitudes, so a ~990 Hz tone carries its strongest
	// harmonic at bin 46 (~2 kHz).
	tone := func(i int) float64 {
		return 4 * math.Sin(2*math.Pi*23*float64(i)/float64(audio.FFTSize))
	}
	src.push(stereoFloat32(2205, tone, level(0)), 32)

	events := rec.snapshot()
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, "left", events[1])
	assert.Equal(t, "detection:gunshot", events[2])

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.detections)
	for _, d := range rec.detections {
		assert.Equal(t, audio.ChannelLeft, d.Channel)
		_, err := uuid.Parse(d.ID)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, d.Confidence, 0.1)
		assert.LessOrEqual(t, d.Confidence, 1.0)
	}
}

func TestAnalyzerFrequencyAnalysisWithoutDetection(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, func(s *Settings) {
		s.FrequencyAnalysis = true
		s.EventSensitivity = 0.1
	})
	require.NoError(t, a.Start())

	src.push(stereoFloat32(2205, level(1), level(1)), 32)

	for _, e := range rec.snapshot() {
		assert.NotContains(t, e, "detection:")
	}
}

func TestAnalyzerStartIsIdempotent(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)

	require.NoError(t, a.Start())
	require.NoError(t, a.Start())

	starts, _ := src.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, []string{"device:Using device: Fake Speakers"}, rec.snapshot())
	assert.Equal(t, types.StateRunning, a.State())
	assert.Equal(t, "Fake Speakers", a.Status().Device)
}

func TestAnalyzerStopIsIdempotent(t *testing.T) {
	a, src, _ := newTestAnalyzer(t, nil)

	require.NoError(t, a.Stop())
	require.NoError(t, a.Start())
	require.NoError(t, a.Stop())
	require.NoError(t, a.Stop())

	_, stops := src.counts()
	assert.Equal(t, 1, stops)
	assert.Equal(t, types.StateStopped, a.State())
}

func TestAnalyzerCallbackAfterStopIsIgnored(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)
	require.NoError(t, a.Start())
	require.NoError(t, a.Stop())

	src.push(stereoFloat32(2205, level(0.9), level(0.9)), 32)

	assert.Equal(t, []string{"device:Using device: Fake Speakers"}, rec.snapshot())
}

func TestAnalyzerStartupFailure(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)
	src.startErr = errors.New("no such device")

	err := a.Start()

	require.ErrorIs(t, err, ErrStartupFailed)
	assert.Equal(t, "failed to start audio capture: no such device", err.Error())
	assert.Equal(t, types.StateStopped, a.State())
	assert.Equal(t, "no such device", a.Status().LastError)
	assert.Empty(t, rec.snapshot())
}

func TestAnalyzerStopErrorIsSwallowed(t *testing.T) {
	a, src, _ := newTestAnalyzer(t, nil)
	src.stopErr = errors.New("device busy")

	require.NoError(t, a.Start())
	assert.NoError(t, a.Stop())
	assert.Equal(t, types.StateStopped, a.State())
}

func TestAnalyzerStateTransitions(t *testing.T) {
	a, _, rec := newTestAnalyzer(t, nil)

	require.NoError(t, a.Start())
	require.NoError(t, a.Stop())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []types.EngineState{
		types.StateStarting, types.StateRunning, types.StateStopping, types.StateStopped,
	}, rec.states)
}

func TestAnalyzerToggle(t *testing.T) {
	a, _, _ := newTestAnalyzer(t, nil)

	require.NoError(t, a.Toggle())
	assert.True(t, a.IsRunning())
	require.NoError(t, a.Toggle())
	assert.False(t, a.IsRunning())
}

func TestAnalyzerSourceEndStopsEngine(t *testing.T) {
	a, src, _ := newTestAnalyzer(t, nil)
	require.NoError(t, a.Start())

	src.onStop(capture.ErrDeviceLost)

	assert.Eventually(t, func() bool {
		return a.State() == types.StateStopped
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, a.Status().LastError, "stopped unexpectedly")
}

func TestAnalyzerUpdateSettings(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)
	require.NoError(t, a.Start())

	next := a.Settings()
	next.VolumeThreshold = 0.5
	require.NoError(t, a.UpdateSettings(next))
	assert.Equal(t, 0.5, a.Settings().VolumeThreshold)

	src.push(stereoFloat32(2205, level(0.3), level(0.3)), 32)
	assert.Len(t, rec.snapshot(), 1)

	starts, _ := src.counts()
	assert.Equal(t, 1, starts)
}

func TestAnalyzerUpdateSettingsRejectsInvalid(t *testing.T) {
	a, _, _ := newTestAnalyzer(t, nil)

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"threshold above one", func(s *Settings) { s.VolumeThreshold = 1.5 }},
		{"zero gain", func(s *Settings) { s.Gain = 0 }},
		{"unknown trigger mode", func(s *Settings) { s.TriggerMode = 7 }},
		{"zero event sensitivity", func(s *Settings) { s.EventSensitivity = 0 }},
		{"unsupported bit depth", func(s *Settings) { s.BitsPerSample = 24 }},
		{"tiny window", func(s *Settings) { s.WindowMs = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			assert.Error(t, a.UpdateSettings(s))
		})
	}
	assert.Equal(t, DefaultSettings(), a.Settings())
}

func TestAnalyzerDeviceChangeRestartsCapture(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)
	require.NoError(t, a.Start())

	next := a.Settings()
	next.DeviceID = "other"
	require.NoError(t, a.UpdateSettings(next))

	starts, stops := src.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)
	assert.Equal(t, "other", src.deviceID)
	assert.True(t, a.IsRunning())

	devices := 0
	for _, e := range rec.snapshot() {
		if e == "device:Using device: Fake Speakers" {
			devices++
		}
	}
	assert.Equal(t, 2, devices)
}

func TestAnalyzerDeviceChangeDuringStartRestartsCapture(t *testing.T) {
	a, src, _ := newTestAnalyzer(t, nil)
	src.gate = make(chan struct{})
	src.entered = make(chan struct{})

	started := make(chan error, 1)
	go func() { started <- a.Start() }()
	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("source never started")
	}
	require.Equal(t, types.StateStarting, a.State())

	next := a.Settings()
	next.DeviceID = "other"
	updated := make(chan error, 1)
	go func() { updated <- a.UpdateSettings(next) }()
	require.Eventually(t, func() bool { return a.Settings().DeviceID == "other" }, 2*time.Second, time.Millisecond)

	close(src.gate)
	for _, ch := range []chan error{started, updated} {
		select {
		case err := <-ch:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("lifecycle call did not return")
		}
	}

	starts, stops := src.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)
	src.mu.Lock()
	assert.Equal(t, "other", src.deviceID)
	src.mu.Unlock()
	assert.True(t, a.IsRunning())
}

func TestAnalyzerUnsubscribe(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)
	other := &recorder{}
	unsubscribe := a.Subscribe(other)
	require.NoError(t, a.Start())

	unsubscribe()
	src.push(stereoFloat32(2205, level(0.5), level(0.5)), 32)

	assert.Equal(t, []string{"device:Using device: Fake Speakers"}, other.snapshot())
	assert.Len(t, rec.snapshot(), 3)
}

func TestAnalyzerPublishesLevels(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, nil)
	require.NoError(t, a.Start())

	src.push(stereoFloat32(2205*LevelUpdateWindows, level(0.2), level(0.05)), 32)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.levels, 1)
	l := rec.levels[0]
	assert.InDelta(t, 0.2, l.Left, 1e-6)
	assert.InDelta(t, 0.05, l.Right, 1e-6)
	assert.InDelta(t, 0.2, l.PeakLeft, 1e-6)
	assert.Equal(t, 0.1, l.Threshold)
	assert.Equal(t, []audio.Channel{audio.ChannelLeft}, l.Active)
	assert.Equal(t, l, a.Levels())
}

func TestAnalyzerAdaptiveThreshold(t *testing.T) {
	a, src, rec := newTestAnalyzer(t, func(s *Settings) {
		s.AdaptiveThreshold = true
		s.NoiseHistory = 5
	})
	require.NoError(t, a.Start())

	// A steady 0.08 background raises the floor to 0.08 and the threshold to 0.13.
	for range 5 {
		src.push(stereoFloat32(2205, level(0.08), level(0.08)), 32)
	}
	before := len(rec.snapshot())

	src.push(stereoFloat32(2205, level(0.12), level(0.12)), 32)
	assert.Len(t, rec.snapshot(), before)

	src.push(stereoFloat32(2205, level(0.2), level(0.2)), 32)
	assert.Len(t, rec.snapshot(), before+2)
}

func TestAnalyzerConcurrentSettingsSwap(t *testing.T) {
	a, src, _ := newTestAnalyzer(t, nil)
	require.NoError(t, a.Start())
	buf := stereoFloat32(1000, level(0.3), level(0.2))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 50 {
			src.push(buf, 32)
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 50 {
			s := a.Settings()
			s.TriggerMode = audio.TriggerMode(i % 3)
			s.VolumeThreshold = float64(i%10) / 10
			assert.NoError(t, a.UpdateSettings(s))
		}
	}()
	wg.Wait()

	assert.True(t, a.IsRunning())
}

func TestChannelObserverDropsWhenFull(t *testing.T) {
	o := NewChannelObserver("test", 2, false)
	now := time.Now()

	o.LeftChannelActive(now)
	o.RightChannelActive(now)
	o.DeviceChanged("dropped")
	o.LevelsUpdated(audio.Levels{Left: 1})

	require.Len(t, o.Events(), 2)
	first := <-o.Events()
	assert.Equal(t, EventChannelActive, first.Type)
	assert.Equal(t, audio.ChannelLeft, first.Channel)
	second := <-o.Events()
	assert.Equal(t, audio.ChannelRight, second.Channel)
}

func TestObserverFuncsSkipsNil(t *testing.T) {
	var got []string
	f := ObserverFuncs{OnRight: func(time.Time) { got = append(got, "right") }}

	assert.NotPanics(t, func() {
		f.LeftChannelActive(time.Now())
		f.RightChannelActive(time.Now())
		f.DeviceChanged("x")
		f.AudioEventDetected(audio.Detection{})
		f.StateChanged(types.StateRunning)
		f.LevelsUpdated(audio.Levels{})
	})
	assert.Equal(t, []string{"right"}, got)
}
