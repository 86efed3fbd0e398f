package capture

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/oszuidwest/hearingai/internal/util"
)

// periodMs is the requested device period. The analyzer's window is larger,
// so several callbacks contribute to one window.
const periodMs = 10

// Malgo captures audio through miniaudio. On Windows it records the render
// stream of the selected output device (loopback); elsewhere it records the
// selected input device. It is safe for concurrent use.
type Malgo struct {
	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	stopping bool
}

// NewMalgo returns an idle miniaudio adapter.
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Start opens deviceID (or the default device when empty or not found) and
// begins delivering PCM in the requested format to onData.
func (m *Malgo) Start(deviceID string, format Format, onData DataFunc, onStop StopFunc) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return Device{}, ErrAlreadyRunning
	}

	sampleFormat, err := malgoFormat(format.BitsPerSample)
	if err != nil {
		return Device{}, err
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return Device{}, util.WrapError("initialize audio context", err)
	}

	cfg := malgo.DefaultDeviceConfig(deviceType)
	cfg.Capture.Format = sampleFormat
	cfg.Capture.Channels = uint32(format.Channels)  //nolint:gosec // Channel count is validated by config
	cfg.SampleRate = uint32(format.SampleRate)      //nolint:gosec // Sample rate is validated by config
	cfg.PeriodSizeInMilliseconds = periodMs
	cfg.Alsa.NoMMap = 1

	selected := defaultDevice()
	if info, ok := lookupDevice(ctx, deviceID); ok {
		cfg.Capture.DeviceID = info.ID.Pointer()
		selected = Device{ID: deviceID, Name: info.Name()}
	}

	bits, channels := format.BitsPerSample, format.Channels
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onData(input, len(input), bits, channels)
		},
		Stop: func() {
			m.mu.Lock()
			requested := m.stopping
			m.mu.Unlock()
			if onStop == nil {
				return
			}
			if requested {
				onStop(nil)
				return
			}
			onStop(ErrDeviceLost)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		freeContext(ctx)
		return Device{}, util.WrapError("initialize capture device", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(ctx)
		return Device{}, util.WrapError("start capture device", err)
	}

	m.ctx = ctx
	m.device = device
	m.stopping = false

	slog.Info("audio capture started", "device", selected.Name, "sample_rate", format.SampleRate, "bits", bits)
	return selected, nil
}

// Stop stops the device and releases the audio context. It is a no-op when
// not running.
func (m *Malgo) Stop() error {
	m.mu.Lock()
	device, ctx := m.device, m.ctx
	if device == nil {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	m.mu.Unlock()

	// The stop callback takes m.mu, so the device is stopped without holding it.
	err := device.Stop()
	device.Uninit()
	freeContext(ctx)

	m.mu.Lock()
	m.device = nil
	m.ctx = nil
	m.mu.Unlock()

	if err != nil {
		return util.WrapError("stop capture device", err)
	}
	return nil
}

// Devices lists capturable endpoints, headed by the default device entry.
func (m *Malgo) Devices() ([]Device, error) {
	return ListDevices()
}

func malgoFormat(bits int) (malgo.FormatType, error) {
	switch bits {
	case 32:
		return malgo.FormatF32, nil
	case 16:
		return malgo.FormatS16, nil
	default:
		return malgo.FormatUnknown, ErrFormatMismatch
	}
}

func freeContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		slog.Debug("audio context uninit failed", "error", err)
	}
	ctx.Free()
}
