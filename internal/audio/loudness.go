package audio

import (
	"fmt"
	"math"
)

// SensitivityMode selects how window loudness is shaped before thresholding.
type SensitivityMode int

const (
	// SensitivityNormal passes gain-scaled RMS through unchanged.
	SensitivityNormal SensitivityMode = iota
	// SensitivityHigh blends RMS with the window peak.
	SensitivityHigh
	// SensitivityUltraHigh blends RMS, peak and dynamic range and lifts near-silence.
	SensitivityUltraHigh
)

// String returns the configuration name of the mode.
func (m SensitivityMode) String() string {
	switch m {
	case SensitivityNormal:
		return "normal"
	case SensitivityHigh:
		return "high"
	case SensitivityUltraHigh:
		return "ultra_high"
	default:
		return fmt.Sprintf("sensitivity(%d)", int(m))
	}
}

// ParseSensitivityMode returns the mode for a configuration name.
func ParseSensitivityMode(s string) (SensitivityMode, error) {
	switch s {
	case "", "normal":
		return SensitivityNormal, nil
	case "high":
		return SensitivityHigh, nil
	case "ultra_high":
		return SensitivityUltraHigh, nil
	default:
		return SensitivityNormal, fmt.Errorf("unknown sensitivity mode %q", s)
	}
}

// nearSilenceCeiling is the upper bound below which ultra-high output is log-lifted.
const nearSilenceCeiling = 0.01

// RMS returns the root-mean-square of samples, or 0 for an empty slice.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest sample, or 0 for an empty slice.
func Peak(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if s > peak {
			peak = s
		}
	}
	return peak
}

// Loudness returns the effective loudness of one channel window. Gain scales
// the RMS term only; peak is taken from the unscaled samples. noiseFloor is the
// current tracker floor and is only used by SensitivityUltraHigh.
func Loudness(samples []float64, gain float64, mode SensitivityMode, noiseFloor float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	rms := RMS(samples) * gain

	switch mode {
	case SensitivityHigh:
		peak := Peak(samples)
		return (rms*0.7 + peak*0.3) * 2.0

	case SensitivityUltraHigh:
		peak := Peak(samples)
		dynamicRange := peak - noiseFloor
		enhanced := (rms*0.5 + peak*0.3 + dynamicRange*0.2) * 3.0
		if enhanced > 0 && enhanced < nearSilenceCeiling {
			enhanced = math.Log10(enhanced*100+1) * 0.1
		}
		return enhanced

	default:
		return rms
	}
}
