package capture

import (
	"log/slog"

	"github.com/gen2brain/malgo"
	"github.com/oszuidwest/hearingai/internal/util"
)

// ListDevices returns the default device entry followed by every endpoint the
// platform backend reports.
func ListDevices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return []Device{defaultDevice()}, util.WrapError("initialize audio context", err)
	}
	defer freeContext(ctx)

	infos, err := ctx.Devices(enumerateType)
	if err != nil {
		return []Device{defaultDevice()}, util.WrapError("enumerate devices", err)
	}

	devices := make([]Device, 0, len(infos)+1)
	devices = append(devices, defaultDevice())
	for i := range infos {
		devices = append(devices, Device{
			ID:   infos[i].ID.String(),
			Name: infos[i].Name(),
		})
	}
	return devices, nil
}

// lookupDevice finds deviceID among the backend's endpoints. A miss falls back
// to the default device and is only logged.
func lookupDevice(ctx *malgo.AllocatedContext, deviceID string) (malgo.DeviceInfo, bool) {
	if deviceID == "" {
		return malgo.DeviceInfo{}, false
	}

	infos, err := ctx.Devices(enumerateType)
	if err != nil {
		slog.Warn("device lookup failed, using default device", "device", deviceID, "error", err)
		return malgo.DeviceInfo{}, false
	}

	for i := range infos {
		if infos[i].ID.String() == deviceID {
			return infos[i], true
		}
	}

	slog.Warn("device not found, using default device", "device", deviceID)
	return malgo.DeviceInfo{}, false
}
