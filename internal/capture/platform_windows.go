//go:build windows

package capture

import "github.com/gen2brain/malgo"

// Windows records what the selected output device is playing.
const (
	deviceType    = malgo.Loopback
	enumerateType = malgo.Playback
)
