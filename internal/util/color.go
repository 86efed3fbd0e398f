package util

import (
	"fmt"
	"regexp"
	"strings"
)

// hexColorPattern matches #RRGGBB.
var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// IsHexColor reports whether s is a #RRGGBB color.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// ParseHexColor parses a hex color string (#RRGGBB) into RGB components.
func ParseHexColor(hex string) (r, g, b uint8, err error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex color length: %s", hex)
	}

	var ri, gi, bi int
	_, err = fmt.Sscanf(hex, "%02x%02x%02x", &ri, &gi, &bi)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color: %s", hex)
	}

	return uint8(ri), uint8(gi), uint8(bi), nil //nolint:gosec // Values are validated to be 0-255 by hex parsing
}

// rgbToHex converts RGB components to a hex color string (#RRGGBB).
func rgbToHex(r, g, b uint8) string {
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// BlendColor mixes from toward to by t in [0,1]. Unparseable input returns from.
func BlendColor(from, to string, t float64) string {
	fr, fg, fb, err := ParseHexColor(from)
	if err != nil {
		return from
	}
	tr, tg, tb, err := ParseHexColor(to)
	if err != nil {
		return from
	}

	t = min(max(t, 0), 1)
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*t) //nolint:gosec // Result stays within the two inputs
	}
	return rgbToHex(mix(fr, tr), mix(fg, tg), mix(fb, tb))
}

// DarkenColor darkens a hex color by a percentage (0-100).
func DarkenColor(hex string, percent int) string {
	return BlendColor(hex, "#000000", float64(percent)/100.0)
}
