package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32Frames(samples ...float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

func s16Frames(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// collect copies every dispatched window, since dispatch aliases internal buffers.
func collect(windows *[]Window) func(Window) {
	return func(w Window) {
		*windows = append(*windows, Window{
			Left:  append([]float64(nil), w.Left...),
			Right: append([]float64(nil), w.Right...),
		})
	}
}

func TestWindowLength(t *testing.T) {
	assert.Equal(t, 2205, WindowLength(44100, 50))
	assert.Equal(t, 2400, WindowLength(48000, 50))
	assert.Equal(t, 441, WindowLength(44100, 10))
}

func TestWindowerFloat32Stereo(t *testing.T) {
	w := NewWindower(2)
	var got []Window

	nan := float32(math.NaN())
	err := w.Write(f32Frames(-0.5, 0.25, nan, 1), 4, 2, collect(&got))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, []float64{0.5, 0}, got[0].Left)
	assert.Equal(t, []float64{0.25, 1}, got[0].Right)
	assert.Equal(t, 0, w.Pending())
}

func TestWindowerInt16MonoDuplicates(t *testing.T) {
	w := NewWindower(2)
	var got []Window

	require.NoError(t, w.Write(s16Frames(-16384, 8192), 2, 1, collect(&got)))

	require.Len(t, got, 1)
	assert.Equal(t, []float64{0.5, 0.25}, got[0].Left)
	assert.Equal(t, got[0].Left, got[0].Right)
}

func TestWindowerIgnoresExtraChannels(t *testing.T) {
	w := NewWindower(1)
	var got []Window

	require.NoError(t, w.Write(s16Frames(16384, -8192, 32767), 2, 3, collect(&got)))

	require.Len(t, got, 1)
	assert.Equal(t, 0.5, got[0].Left[0])
	assert.Equal(t, 0.25, got[0].Right[0])
}

func TestWindowerDropsPartialFrame(t *testing.T) {
	w := NewWindower(1)
	var got []Window

	buf := f32Frames(0.1, 0.2, 0.3)
	require.NoError(t, w.Write(buf, 4, 2, collect(&got)))

	assert.Len(t, got, 1)
	assert.Equal(t, 0, w.Pending())
}

func TestWindowerSpansWrites(t *testing.T) {
	w := NewWindower(4)
	var got []Window

	require.NoError(t, w.Write(s16Frames(1, 1, 2, 2, 3, 3), 2, 2, collect(&got)))
	assert.Empty(t, got)
	assert.Equal(t, 3, w.Pending())

	require.NoError(t, w.Write(s16Frames(4, 4, 5, 5, 6, 6), 2, 2, collect(&got)))
	require.Len(t, got, 1)
	assert.Equal(t, 2, w.Pending())
	assert.InDelta(t, 4/MaxSampleValue, got[0].Left[3], 1e-12)

	w.Reset()
	assert.Equal(t, 0, w.Pending())
}

func TestWindowerUnsupportedFormat(t *testing.T) {
	w := NewWindower(4)
	noop := func(Window) {}

	assert.ErrorIs(t, w.Write(make([]byte, 12), 3, 2, noop), ErrUnsupportedFormat)
	assert.ErrorIs(t, w.Write(make([]byte, 8), 4, 0, noop), ErrUnsupportedFormat)
}
