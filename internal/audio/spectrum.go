package audio

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFTSize is the default analysis buffer length.
const FFTSize = 1024

// FrequencyAnalyzer accumulates Hann-windowed samples and computes a magnitude
// spectrum each time its buffer fills. It is not safe for concurrent use.
type FrequencyAnalyzer struct {
	fft      *fourier.FFT
	window   []float64
	buffer   []float64
	coeffs   []complex128
	spectrum []float64
	index    int
}

// NewFrequencyAnalyzer returns an analyzer with a buffer of size samples.
// size must be a power of two greater than one.
func NewFrequencyAnalyzer(size int) (*FrequencyAnalyzer, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("analysis size %d is not a power of two", size)
	}
	return &FrequencyAnalyzer{
		fft:      fourier.NewFFT(size),
		window:   hannWindow(size),
		buffer:   make([]float64, size),
		coeffs:   make([]complex128, size/2+1),
		spectrum: make([]float64, size/2),
	}, nil
}

// Size returns the analysis buffer length.
func (a *FrequencyAnalyzer) Size() int {
	return len(a.buffer)
}

// Push appends samples to the analysis buffer, calling onSpectrum with the
// magnitude spectrum every time the buffer fills. The spectrum slice is reused
// and only valid for the duration of the call.
func (a *FrequencyAnalyzer) Push(samples []float64, onSpectrum func([]float64)) {
	for _, s := range samples {
		a.buffer[a.index] = s * a.window[a.index]
		a.index++

		if a.index >= len(a.buffer) {
			a.compute()
			if onSpectrum != nil {
				onSpectrum(a.spectrum)
			}
			a.index = 0
		}
	}
}

// Reset discards buffered samples.
func (a *FrequencyAnalyzer) Reset() {
	a.index = 0
}

// compute fills a.spectrum with |X_k|/N for k < N/2.
func (a *FrequencyAnalyzer) compute() {
	a.coeffs = a.fft.Coefficients(a.coeffs, a.buffer)
	n := float64(len(a.buffer))
	for k := range a.spectrum {
		a.spectrum[k] = cmplx.Abs(a.coeffs[k]) / n
	}
}

func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

// BinFrequency returns the centre frequency in Hz of bin k.
func BinFrequency(k, sampleRate, size int) float64 {
	return float64(k) * float64(sampleRate) / float64(size)
}
