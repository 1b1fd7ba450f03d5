package transform

import "math"

// FontConfig bounds message font sizes. Values are expected to be clamped by
// the config loader before they reach the engine.
type FontConfig struct {
	MinPoint    float64
	MaxPoint    float64
	NormalPoint float64
	LegacyStep  float64
}

// DefaultFontConfig mirrors the config loader defaults.
func DefaultFontConfig() FontConfig {
	return FontConfig{
		MinPoint:    6,
		MaxPoint:    24,
		NormalPoint: 12,
		LegacyStep:  2,
	}
}

// legacySteps maps legacy size tokens to steps away from the normal size.
var legacySteps = map[string]float64{
	"small":  -1,
	"normal": 0,
	"large":  1,
	"huge":   2,
}

// Point returns the point size for a legacy size token at the given scale.
// Unknown tokens are treated as normal.
func (f FontConfig) Point(size string, scale float64) float64 {
	base := f.NormalPoint + legacySteps[size]*f.LegacyStep
	if !finite(scale) || scale <= 0 {
		scale = 1
	}
	return math.Min(math.Max(base*scale, f.MinPoint), f.MaxPoint)
}
