// Package viewport resolves physical canvas metrics and maps the fixed legacy
// virtual canvas onto them.
package viewport

import (
	"fmt"
	"math"
)

// Virtual canvas dimensions every producer authors payloads in.
const (
	BaseWidth  = 1280.0
	BaseHeight = 960.0
)

// ScaleMode selects how the virtual canvas is fitted onto the physical surface.
type ScaleMode string

const (
	// ScaleFit keeps the aspect ratio and letterboxes the axis with slack
	ScaleFit ScaleMode = "fit"

	// ScaleFill stretches each axis independently to cover the surface
	ScaleFill ScaleMode = "fill"
)

// Validate checks the mode is fit or fill.
func (m ScaleMode) Validate() error {
	switch m {
	case ScaleFit, ScaleFill:
		return nil
	default:
		return fmt.Errorf("invalid scale mode: %q (must be 'fit' or 'fill')", string(m))
	}
}

// State is the per-frame viewport. Width and Height are device pixels kept as
// floats; callers floor them only when handing sizes to the renderer.
type State struct {
	Width  float64
	Height float64
	DPR    float64
	Mode   ScaleMode

	// ScaleX and ScaleY are the legacy scale factors under Mode.
	ScaleX float64
	ScaleY float64
}

// Floor returns the integer pixel size of the surface.
func (s State) Floor() (int, int) {
	return int(math.Floor(s.Width)), int(math.Floor(s.Height))
}

// Resolver turns raw window metrics into a State for its scale mode.
type Resolver struct {
	mode ScaleMode
}

// NewResolver creates a resolver. An invalid mode falls back to fit.
func NewResolver(mode ScaleMode) *Resolver {
	if mode.Validate() != nil {
		mode = ScaleFit
	}
	return &Resolver{mode: mode}
}

// Mode returns the active scale mode.
func (r *Resolver) Mode() ScaleMode {
	return r.mode
}

// SetMode switches the scale mode. Invalid modes are rejected and the current mode kept.
func (r *Resolver) SetMode(mode ScaleMode) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	r.mode = mode
	return nil
}

// Resolve computes the physical surface for a window of rawWidth x rawHeight
// logical pixels at the given device pixel ratio.
func (r *Resolver) Resolve(rawWidth, rawHeight, dpr float64) State {
	if !positive(dpr) {
		dpr = 1
	}
	width := clampDimension(rawWidth * dpr)
	height := clampDimension(rawHeight * dpr)

	state := State{
		Width:  width,
		Height: height,
		DPR:    dpr,
		Mode:   r.mode,
	}
	m := Map(state, r.mode)
	state.ScaleX = m.ScaleX
	state.ScaleY = m.ScaleY
	return state
}

// clampDimension keeps a physical dimension finite and at least one device pixel.
func clampDimension(v float64) float64 {
	if !positive(v) || v < 1 {
		return 1
	}
	return v
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
