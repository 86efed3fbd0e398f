//go:build !windows

package capture

import "github.com/gen2brain/malgo"

// Loopback is WASAPI-only; other platforms record an input device, which can
// be a monitor source such as PulseAudio's "Monitor of ...".
const (
	deviceType    = malgo.Capture
	enumerateType = malgo.Capture
)
