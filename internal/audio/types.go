package audio

// Levels is one window's measurements, published for meters.
type Levels struct {
	// Left is the left channel effective loudness.
	Left float64 `json:"left"`
	// Right is the right channel effective loudness.
	Right float64 `json:"right"`
	// PeakLeft is the held left loudness peak.
	PeakLeft float64 `json:"peak_left"`
	// PeakRight is the held right loudness peak.
	PeakRight float64 `json:"peak_right"`
	// Threshold is the effective detection threshold for the window.
	Threshold float64 `json:"threshold"`
	// NoiseFloor is the tracker's current noise floor.
	NoiseFloor float64 `json:"noise_floor"`
	// Active lists the channels that fired in the window.
	Active []Channel `json:"active,omitzero"`
}
