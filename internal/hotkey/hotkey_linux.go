//go:build linux

package hotkey

import "golang.design/x/hotkey"

// modAlt returns the Alt modifier for X11 (Mod1).
func modAlt() hotkey.Modifier {
	return hotkey.Mod1
}

// modSuper returns the Super modifier for X11 (Mod4).
func modSuper() hotkey.Modifier {
	return hotkey.Mod4
}
