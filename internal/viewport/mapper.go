package viewport

import "math"

// Mapping is the linear transform from virtual to physical coordinates:
// physical = virtual*scale + offset, per axis.
type Mapping struct {
	ScaleX  float64
	ScaleY  float64
	OffsetX float64
	OffsetY float64
}

// Map builds the legacy mapping for state under mode.
//
// In fit mode the canvas is scaled uniformly and centred, so the axis with
// slack gets symmetric letterbox offsets. In fill mode each axis scales
// independently and offsets are zero.
func Map(state State, mode ScaleMode) Mapping {
	w := clampDimension(state.Width)
	h := clampDimension(state.Height)
	sx := w / BaseWidth
	sy := h / BaseHeight

	if mode == ScaleFill {
		return Mapping{ScaleX: sx, ScaleY: sy}
	}

	s := math.Min(sx, sy)
	return Mapping{
		ScaleX:  s,
		ScaleY:  s,
		OffsetX: (w - BaseWidth*s) / 2,
		OffsetY: (h - BaseHeight*s) / 2,
	}
}

// Apply maps a virtual point to physical coordinates.
func (m Mapping) Apply(x, y float64) (float64, float64) {
	return x*m.ScaleX + m.OffsetX, y*m.ScaleY + m.OffsetY
}

// Uniform returns the smaller of the two axis scales. Font sizing uses it so
// text never overflows the tighter axis.
func (m Mapping) Uniform() float64 {
	return math.Min(m.ScaleX, m.ScaleY)
}
