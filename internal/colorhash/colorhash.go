// Package colorhash assigns stable display colors to ponds and chart series.
// Both schemes are pure functions of their input so a pond keeps its color
// across sessions and clients without any coordination.
package colorhash

import "fmt"

// HSL is a hue/saturation/lightness triple. Hue is in degrees, saturation and
// lightness are percentages.
type HSL struct {
	Hue        int `json:"hue"`
	Saturation int `json:"saturation"`
	Lightness  int `json:"lightness"`
}

// CSS renders the color as a CSS hsl() value.
func (c HSL) CSS() string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", c.Hue, c.Saturation, c.Lightness)
}

// ForID maps an integer identifier to a stable HSL color. Negative ids
// (temporary, not-yet-persisted ponds) are valid inputs.
func ForID(id int64) HSL {
	h := int32(id)
	h = h ^ 61
	h = h + h<<3
	h = h ^ int32(uint32(h)>>4)
	h = h * 0x27D4EB2D
	h = h ^ int32(uint32(h)>>15)

	n := int(h)
	if n < 0 {
		n = -n
	}
	n = n % 1000

	return HSL{
		Hue:        180 + n%80,
		Saturation: 45 + n%40,
		Lightness:  35 + n%25,
	}
}

// palette is the fixed set of named colors for label-keyed series (motor
// reference ids on telemetry charts).
var palette = [...]string{
	"teal",
	"indigo",
	"amber",
	"rose",
	"emerald",
	"sky",
	"violet",
	"orange",
	"lime",
	"cyan",
}

// ForLabel maps a string identifier onto the fixed palette using a
// polynomial hash. No collision avoidance beyond the hash's spread.
func ForLabel(label string) string {
	var h int32
	for _, c := range label {
		h = h*31 + c
	}
	n := int(h) % len(palette)
	if n < 0 {
		n += len(palette)
	}
	return palette[n]
}
