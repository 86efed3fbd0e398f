// Package audio provides the sound cue analysis primitives: PCM windowing,
// loudness estimation, noise floor tracking, trigger decisions, spectrum
// analysis and event classification.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	// MaxSampleValue is the normalization divisor for 16-bit signed audio.
	MaxSampleValue = 32768.0
	// DefaultSampleRate is the analysis sample rate in Hz.
	DefaultSampleRate = 44100
	// DefaultWindowMs is the analysis window duration in milliseconds.
	DefaultWindowMs = 50
)

// ErrUnsupportedFormat is returned for sample layouts the windower cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported sample format")

// Window is one analysis window of absolute sample magnitudes per channel.
type Window struct {
	Left  []float64
	Right []float64
}

// Len returns the number of frames in the window.
func (w Window) Len() int {
	return len(w.Left)
}

// WindowLength returns the number of frames in a window of windowMs at sampleRate.
func WindowLength(sampleRate, windowMs int) int {
	return sampleRate * windowMs / 1000
}

// Windower accumulates decoded frames into fixed-size analysis windows.
// It is not safe for concurrent use; the capture callback owns it.
type Windower struct {
	left  []float64
	right []float64
	index int
}

// NewWindower returns a Windower producing windows of size frames.
func NewWindower(size int) *Windower {
	size = max(size, 1)
	return &Windower{
		left:  make([]float64, size),
		right: make([]float64, size),
	}
}

// Size returns the window length in frames.
func (w *Windower) Size() int {
	return len(w.left)
}

// Pending returns the number of frames buffered toward the next window.
func (w *Windower) Pending() int {
	return w.index
}

// Reset discards any partially filled window.
func (w *Windower) Reset() {
	w.index = 0
}

// Write decodes interleaved little-endian PCM from buf and calls dispatch for
// every window that fills. Four-byte samples are IEEE float32, two-byte samples
// are int16. Mono is duplicated to both channels and channels beyond the second
// are ignored. A trailing partial frame is dropped. The Window passed to
// dispatch aliases internal buffers and is only valid for the duration of the call.
func (w *Windower) Write(buf []byte, bytesPerSample, channels int, dispatch func(Window)) error {
	if channels < 1 {
		return ErrUnsupportedFormat
	}

	var decode func([]byte) float64
	switch bytesPerSample {
	case 4:
		decode = decodeFloat32
	case 2:
		decode = decodeInt16
	default:
		return ErrUnsupportedFormat
	}

	frameBytes := bytesPerSample * channels
	frames := len(buf) / frameBytes

	for frame := range frames {
		offset := frame * frameBytes

		left := decode(buf[offset:])
		right := left
		if channels >= 2 {
			right = decode(buf[offset+bytesPerSample:])
		}

		w.left[w.index] = math.Abs(left)
		w.right[w.index] = math.Abs(right)
		w.index++

		if w.index >= len(w.left) {
			dispatch(Window{Left: w.left, Right: w.right})
			w.index = 0
		}
	}

	return nil
}

func decodeFloat32(b []byte) float64 {
	v := float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	// Non-finite samples would poison RMS and the spectrum for the whole window
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func decodeInt16(b []byte) float64 {
	return float64(int16(binary.LittleEndian.Uint16(b))) / MaxSampleValue
}
