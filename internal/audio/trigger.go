package audio

import (
	"fmt"
	"math"
)

// TriggerMode selects which channels fire when more than one exceeds the threshold.
type TriggerMode int

const (
	// TriggerIndependent fires every exceeding channel.
	TriggerIndependent TriggerMode = iota
	// TriggerExclusive fires only the louder channel, left on a tie.
	TriggerExclusive
	// TriggerThreshold fires the louder channel only when the channels differ by the separation threshold.
	TriggerThreshold
)

// String returns the configuration name of the mode.
func (m TriggerMode) String() string {
	switch m {
	case TriggerIndependent:
		return "independent"
	case TriggerExclusive:
		return "exclusive"
	case TriggerThreshold:
		return "threshold"
	default:
		return fmt.Sprintf("trigger(%d)", int(m))
	}
}

// ParseTriggerMode returns the mode for a configuration name.
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch s {
	case "", "independent":
		return TriggerIndependent, nil
	case "exclusive":
		return TriggerExclusive, nil
	case "threshold":
		return TriggerThreshold, nil
	default:
		return TriggerIndependent, fmt.Errorf("unknown trigger mode %q", s)
	}
}

// Channel identifies a stereo channel.
type Channel string

// Stereo channels.
const (
	ChannelLeft  Channel = "left"
	ChannelRight Channel = "right"
)

// TriggerInput holds the per-window measurements and settings for a decision.
type TriggerInput struct {
	Left         float64
	Right        float64
	Threshold    float64
	LeftEnabled  bool
	RightEnabled bool
	Mode         TriggerMode
	Separation   float64
}

// Decision reports which channels fire for a window.
type Decision struct {
	Left  bool
	Right bool
}

// Channels returns the firing channels, left before right.
func (d Decision) Channels() []Channel {
	var out []Channel
	if d.Left {
		out = append(out, ChannelLeft)
	}
	if d.Right {
		out = append(out, ChannelRight)
	}
	return out
}

// Any reports whether at least one channel fires.
func (d Decision) Any() bool {
	return d.Left || d.Right
}

// Decide applies the trigger mode to one window. It holds no state.
func Decide(in TriggerInput) Decision {
	leftExceeds := in.LeftEnabled && in.Left > in.Threshold
	rightExceeds := in.RightEnabled && in.Right > in.Threshold

	if !leftExceeds || !rightExceeds {
		return Decision{Left: leftExceeds, Right: rightExceeds}
	}

	switch in.Mode {
	case TriggerExclusive:
		if in.Left >= in.Right {
			return Decision{Left: true}
		}
		return Decision{Right: true}

	case TriggerThreshold:
		if math.Abs(in.Left-in.Right) < in.Separation {
			return Decision{}
		}
		if in.Left > in.Right {
			return Decision{Left: true}
		}
		return Decision{Right: true}

	default:
		return Decision{Left: true, Right: true}
	}
}
