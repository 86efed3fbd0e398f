// Package capture provides audio sources that push raw PCM to the analyzer:
// a miniaudio device adapter and a WAV file replay source.
package capture

import "errors"

// DefaultDeviceName is the display name of the system default device.
const DefaultDeviceName = "Default Device"

// Sentinel errors for capture operations.
var (
	ErrAlreadyRunning = errors.New("capture already running")
	ErrDeviceLost     = errors.New("capture device stopped unexpectedly")
	ErrFormatMismatch = errors.New("source format does not match requested format")
)

// Device is an audio endpoint that can be captured.
type Device struct {
	// ID is the backend device identifier. Empty selects the default device.
	ID string `json:"id"`
	// Name is the device display name.
	Name string `json:"name"`
	// IsDefault reports whether this entry selects the default device.
	IsDefault bool `json:"is_default"`
}

// Format describes the PCM layout delivered to a DataFunc.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// BytesPerFrame returns the byte size of one interleaved frame.
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitsPerSample / 8
}

// DataFunc receives raw interleaved little-endian PCM. buf is only valid for
// the duration of the call.
type DataFunc func(buf []byte, byteCount, bitsPerSample, channels int)

// StopFunc is called once when a running source stops. err is nil for a
// requested stop.
type StopFunc func(err error)

// defaultDevice is the synthetic first entry of every device list.
func defaultDevice() Device {
	return Device{ID: "", Name: DefaultDeviceName, IsDefault: true}
}
