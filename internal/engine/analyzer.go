// Package engine runs the real-time sound cue analysis. It owns the capture
// lifecycle, applies the per-window pipeline from package audio and fans the
// results out to observers.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/capture"
	"github.com/oszuidwest/hearingai/internal/metrics"
	"github.com/oszuidwest/hearingai/internal/types"
)

// LevelUpdateWindows is the number of windows between level updates.
const LevelUpdateWindows = 2

// captureChannels is the channel count requested from sources.
const captureChannels = 2

// ErrStartupFailed is returned by Start when the source cannot be opened.
var ErrStartupFailed = errors.New("failed to start audio capture")

// Source is an audio capture backend.
type Source interface {
	Start(deviceID string, format capture.Format, onData capture.DataFunc, onStop capture.StopFunc) (capture.Device, error)
	Stop() error
	Devices() ([]capture.Device, error)
}

// pipeline holds the per-session analysis state. It is owned by the capture
// callback and guarded by Analyzer.procMu.
type pipeline struct {
	windower   *audio.Windower
	tracker    *audio.NoiseTracker
	left       *audio.FrequencyAnalyzer
	right      *audio.FrequencyAnalyzer
	classifier *audio.Classifier
	windows    uint64
}

func newPipeline(s *Settings) (*pipeline, error) {
	left, err := audio.NewFrequencyAnalyzer(audio.FFTSize)
	if err != nil {
		return nil, err
	}
	right, err := audio.NewFrequencyAnalyzer(audio.FFTSize)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		windower:   audio.NewWindower(s.WindowLength()),
		tracker:    audio.NewNoiseTracker(s.NoiseHistory, audio.DefaultNoiseFloor),
		left:       left,
		right:      right,
		classifier: audio.NewClassifier(audio.DefaultProfiles(), s.SampleRate, audio.FFTSize),
	}, nil
}

// Analyzer is the sound cue engine. It is safe for concurrent use.
type Analyzer struct {
	source     Source
	settings   atomic.Pointer[Settings]
	observers  Distributor
	peakHolder *audio.PeakHolder
	levels     atomic.Pointer[audio.Levels]
	windows    atomic.Uint64
	now        func() time.Time
	newID      func() string

	// lifecycle serializes Start and Stop; mu guards the fields below it.
	lifecycle  sync.Mutex
	mu         sync.Mutex
	state      types.EngineState
	device     capture.Device
	startTime  time.Time
	lastError  string
	generation uint64
	active     Settings

	// running gates the capture callback; procMu serializes window
	// processing against Start and Stop.
	running atomic.Bool
	procMu  sync.Mutex
	pipe    *pipeline
}

// New creates an Analyzer reading from source with the given settings.
func New(source Source, settings Settings) (*Analyzer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		source:     source,
		peakHolder: audio.NewPeakHolder(),
		now:        time.Now,
		newID:      uuid.NewString,
		state:      types.StateStopped,
	}
	a.settings.Store(&settings)
	a.levels.Store(&audio.Levels{})
	return a, nil
}

// Subscribe registers an observer and returns a function that removes it.
func (a *Analyzer) Subscribe(o Observer) (unsubscribe func()) {
	return a.observers.Subscribe(o)
}

// Settings returns the current settings snapshot.
func (a *Analyzer) Settings() Settings {
	return *a.settings.Load()
}

// State returns the current engine state.
func (a *Analyzer) State() types.EngineState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsRunning reports whether the engine is analyzing audio.
func (a *Analyzer) IsRunning() bool {
	return a.State() == types.StateRunning
}

// Levels returns the most recent level update.
func (a *Analyzer) Levels() audio.Levels {
	if !a.running.Load() {
		return audio.Levels{}
	}
	return *a.levels.Load()
}

// Status returns the current engine status.
func (a *Analyzer) Status() types.EngineStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	status := types.EngineStatus{
		State:     a.state,
		LastError: a.lastError,
		Windows:   a.windows.Load(),
	}
	if a.state == types.StateRunning {
		status.Device = a.device.Name
		status.Uptime = time.Since(a.startTime).Truncate(time.Second).String()
	}
	return status
}

// Devices lists the source's capturable devices.
func (a *Analyzer) Devices() ([]capture.Device, error) {
	return a.source.Devices()
}

// Start opens the configured device and begins analysis. Calling Start while
// running or starting is a no-op. On failure the engine stays stopped and the
// returned error wraps ErrStartupFailed.
func (a *Analyzer) Start() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	if a.state == types.StateRunning || a.state == types.StateStarting {
		a.mu.Unlock()
		return nil
	}
	a.state = types.StateStarting
	a.generation++
	generation := a.generation
	a.mu.Unlock()
	a.observers.State(types.StateStarting)

	settings := a.Settings()
	device, err := a.startSource(&settings, generation)

	a.mu.Lock()
	if err != nil {
		a.state = types.StateStopped
		a.lastError = err.Error()
		a.mu.Unlock()

		metrics.RecordCaptureError("start")
		slog.Error("audio capture failed to start", "error", err)
		a.observers.State(types.StateStopped)
		return fmt.Errorf("%w: %w", ErrStartupFailed, err)
	}
	a.state = types.StateRunning
	a.device = device
	a.startTime = time.Now()
	a.lastError = ""
	a.active = settings
	a.mu.Unlock()

	metrics.SetCaptureRunning(true)
	slog.Info("analysis started", "device", device.Name,
		"sample_rate", settings.SampleRate, "window_ms", settings.WindowMs)

	a.observers.State(types.StateRunning)
	a.observers.Device("Using device: " + device.Name)
	return nil
}

// startSource builds a fresh pipeline and opens the source. The running flag
// is raised before the source starts so the first callback is not lost.
func (a *Analyzer) startSource(s *Settings, generation uint64) (capture.Device, error) {
	pipe, err := newPipeline(s)
	if err != nil {
		return capture.Device{}, err
	}

	a.procMu.Lock()
	a.pipe = pipe
	a.procMu.Unlock()

	a.peakHolder.Reset()
	a.windows.Store(0)
	a.levels.Store(&audio.Levels{})
	a.running.Store(true)

	format := capture.Format{
		SampleRate:    s.SampleRate,
		Channels:      captureChannels,
		BitsPerSample: s.BitsPerSample,
	}
	onStop := func(err error) {
		// Sources may call this from their own audio thread.
		go a.sourceStopped(generation, err)
	}

	device, err := a.source.Start(s.DeviceID, format, a.HandleData, onStop)
	if err != nil {
		a.running.Store(false)
		return capture.Device{}, err
	}
	return device, nil
}

// Stop halts analysis and releases the source. Calling Stop while stopped is
// a no-op. Errors from the source are logged and swallowed.
func (a *Analyzer) Stop() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	if a.state == types.StateStopped || a.state == types.StateStopping {
		a.mu.Unlock()
		return nil
	}
	a.state = types.StateStopping
	a.mu.Unlock()
	a.observers.State(types.StateStopping)

	a.running.Store(false)

	// Wait for any in-flight window to finish.
	a.procMu.Lock()
	a.pipe = nil
	a.procMu.Unlock()

	if err := a.source.Stop(); err != nil {
		slog.Warn("failed to stop audio capture", "error", err)
	}

	a.mu.Lock()
	a.state = types.StateStopped
	a.device = capture.Device{}
	a.mu.Unlock()

	metrics.SetCaptureRunning(false)
	slog.Info("analysis stopped")
	a.observers.State(types.StateStopped)
	return nil
}

// Restart stops and starts the engine.
func (a *Analyzer) Restart() error {
	if err := a.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	time.Sleep(types.RestartDelay)
	return a.Start()
}

// Toggle starts a stopped engine and stops a running one.
func (a *Analyzer) Toggle() error {
	switch a.State() {
	case types.StateRunning, types.StateStarting:
		return a.Stop()
	default:
		return a.Start()
	}
}

// UpdateSettings validates and swaps in new settings. The next window uses
// them. When the device, sample rate, window or history size changes while
// running, capture is restarted.
func (a *Analyzer) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	a.settings.Store(&s)

	// Wait out an in-flight Start so a.active reflects what it opened.
	a.lifecycle.Lock()
	a.mu.Lock()
	restart := a.state == types.StateRunning && a.active.requiresRestart(a.settings.Load())
	a.mu.Unlock()
	a.lifecycle.Unlock()

	if !restart {
		return nil
	}
	slog.Info("capture settings changed, restarting", "device", s.DeviceID,
		"sample_rate", s.SampleRate, "window_ms", s.WindowMs)
	return a.Restart()
}

// sourceStopped handles a source that ended on its own: end of file, or a
// lost device.
func (a *Analyzer) sourceStopped(generation uint64, err error) {
	a.mu.Lock()
	current := generation == a.generation && a.state == types.StateRunning
	if current && err != nil {
		a.lastError = err.Error()
	}
	a.mu.Unlock()

	if !current || !a.running.Load() {
		return
	}

	if err != nil {
		metrics.RecordCaptureError("device_lost")
		slog.Error("audio capture stopped unexpectedly", "error", err)
	} else {
		slog.Info("audio source ended")
	}
	_ = a.Stop() //nolint:errcheck // Stop logs and swallows its errors
}

// HandleData is the capture callback. It decodes buf and runs the pipeline
// for every completed window. It never panics and never blocks on observers
// beyond their own callbacks.
func (a *Analyzer) HandleData(buf []byte, byteCount, bitsPerSample, channels int) {
	if !a.running.Load() {
		return
	}

	a.procMu.Lock()
	defer a.procMu.Unlock()

	pipe := a.pipe
	if pipe == nil || !a.running.Load() {
		return
	}

	n := min(max(byteCount, 0), len(buf))
	err := pipe.windower.Write(buf[:n], bitsPerSample/8, channels, func(w audio.Window) {
		a.processWindow(pipe, w)
	})
	if err != nil {
		metrics.RecordProcessingError("decode")
		slog.Debug("dropping capture buffer", "bits", bitsPerSample, "channels", channels, "error", err)
	}
}

// processWindow runs the loudness, threshold, trigger and classification
// stages for one window. A panic abandons the window only.
func (a *Analyzer) processWindow(pipe *pipeline, w audio.Window) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordProcessingError("panic")
			slog.Debug("analysis window abandoned", "panic", r)
		}
	}()

	started := time.Now()
	s := a.settings.Load()
	now := a.now()

	floor := pipe.tracker.Floor()
	left := audio.Loudness(w.Left, s.Gain, s.Sensitivity, floor)
	right := audio.Loudness(w.Right, s.Gain, s.Sensitivity, floor)

	if s.AdaptiveThreshold {
		floor = pipe.tracker.Update(left, right, s.NoiseFloor)
	}
	threshold := pipe.tracker.EffectiveThreshold(s.AdaptiveThreshold, s.VolumeThreshold)

	decision := audio.Decide(audio.TriggerInput{
		Left:         left,
		Right:        right,
		Threshold:    threshold,
		LeftEnabled:  s.LeftEnabled,
		RightEnabled: s.RightEnabled,
		Mode:         s.TriggerMode,
		Separation:   s.SeparationThreshold,
	})
	a.observers.Decision(decision, now)

	if s.FrequencyAnalysis {
		a.observers.Detections(a.classify(pipe, s, w, now))
	}

	pipe.windows++
	a.windows.Add(1)
	metrics.RecordWindow(time.Since(started).Seconds(), left, right, floor, threshold)

	if pipe.windows%LevelUpdateWindows == 0 {
		peakL, peakR := a.peakHolder.Update(left, right, now)
		levels := audio.Levels{
			Left:       left,
			Right:      right,
			PeakLeft:   peakL,
			PeakRight:  peakR,
			Threshold:  threshold,
			NoiseFloor: floor,
			Active:     decision.Channels(),
		}
		a.levels.Store(&levels)
		a.observers.Levels(levels)
	}
}

// classify feeds both channels to their analyzers and, when event detection
// is on, collects detections for every completed spectrum.
func (a *Analyzer) classify(pipe *pipeline, s *Settings, w audio.Window, now time.Time) []audio.Detection {
	var detections []audio.Detection
	collect := func(ch audio.Channel) func([]float64) {
		return func(spectrum []float64) {
			if !s.EventDetection {
				return
			}
			for _, d := range pipe.classifier.Classify(spectrum, s.EventSensitivity, ch, now) {
				d.ID = a.newID()
				detections = append(detections, d)
			}
		}
	}
	pipe.left.Push(w.Left, collect(audio.ChannelLeft))
	pipe.right.Push(w.Right, collect(audio.ChannelRight))
	return detections
}
