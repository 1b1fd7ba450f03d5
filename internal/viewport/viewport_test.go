package viewport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Run("applies device pixel ratio without rounding", func(t *testing.T) {
		state := NewResolver(ScaleFill).Resolve(1001, 757, 1.25)
		assert.InDelta(t, 1251.25, state.Width, 1e-9)
		assert.InDelta(t, 946.25, state.Height, 1e-9)
		assert.Equal(t, 1.25, state.DPR)

		w, h := state.Floor()
		assert.Equal(t, 1251, w)
		assert.Equal(t, 946, h)
	})

	t.Run("clamps degenerate dimensions", func(t *testing.T) {
		for _, dims := range [][2]float64{{0, 0}, {-10, 500}, {math.NaN(), 10}, {math.Inf(1), 10}} {
			state := NewResolver(ScaleFit).Resolve(dims[0], dims[1], 1)
			assert.GreaterOrEqual(t, state.Width, 1.0)
			assert.GreaterOrEqual(t, state.Height, 1.0)
			assert.False(t, math.IsInf(state.ScaleX, 0) || math.IsNaN(state.ScaleX))
			assert.False(t, math.IsInf(state.ScaleY, 0) || math.IsNaN(state.ScaleY))
		}

		state := NewResolver(ScaleFill).Resolve(0, -3, 2)
		assert.Equal(t, 1.0, state.Width, "floor is one device pixel")
		assert.Equal(t, 1.0, state.Height)
		assert.InDelta(t, 1/BaseWidth, state.ScaleX, 1e-12)
		assert.InDelta(t, 1/BaseHeight, state.ScaleY, 1e-12)
	})

	t.Run("bad dpr is treated as one", func(t *testing.T) {
		state := NewResolver(ScaleFit).Resolve(1280, 960, 0)
		assert.Equal(t, 1.0, state.DPR)
		assert.Equal(t, 1280.0, state.Width)
	})

	t.Run("records scale factors for mode", func(t *testing.T) {
		state := NewResolver(ScaleFill).Resolve(1920, 1080, 1)
		assert.InDelta(t, 1.5, state.ScaleX, 1e-9)
		assert.InDelta(t, 1.125, state.ScaleY, 1e-9)
	})
}

func TestResolverMode(t *testing.T) {
	r := NewResolver("stretch")
	assert.Equal(t, ScaleFit, r.Mode())

	require.NoError(t, r.SetMode(ScaleFill))
	assert.Equal(t, ScaleFill, r.Mode())

	err := r.SetMode("zoom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scale mode")
	assert.Equal(t, ScaleFill, r.Mode())
}

func TestMap_FitVersusFill(t *testing.T) {
	state := State{Width: 1920, Height: 1080, DPR: 1}

	t.Run("fit", func(t *testing.T) {
		m := Map(state, ScaleFit)
		assert.Equal(t, m.ScaleX, m.ScaleY)
		assert.InDelta(t, 1.125, m.ScaleX, 1e-9)

		// 1920x1080 is wider than 4:3, so the slack (and letterbox) is horizontal.
		assert.InDelta(t, 240.0, m.OffsetX, 1e-9)
		assert.InDelta(t, 0.0, m.OffsetY, 1e-9)
		assert.NotZero(t, m.OffsetX+m.OffsetY)
	})

	t.Run("fit on a tall surface letterboxes vertically", func(t *testing.T) {
		m := Map(State{Width: 1280, Height: 1200}, ScaleFit)
		assert.InDelta(t, 1.0, m.ScaleX, 1e-9)
		assert.InDelta(t, 0.0, m.OffsetX, 1e-9)
		assert.InDelta(t, 120.0, m.OffsetY, 1e-9)
	})

	t.Run("fill", func(t *testing.T) {
		m := Map(state, ScaleFill)
		assert.InDelta(t, 1.5, m.ScaleX, 1e-9)
		assert.Equal(t, 1.125, m.ScaleY)
		assert.Zero(t, m.OffsetX)
		assert.Zero(t, m.OffsetY)
	})
}

func TestMapping_Apply(t *testing.T) {
	m := Map(State{Width: 1920, Height: 1080}, ScaleFit)

	x, y := m.Apply(0, 0)
	assert.InDelta(t, 240.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)

	x, y = m.Apply(BaseWidth, BaseHeight)
	assert.InDelta(t, 1680.0, x, 1e-9)
	assert.InDelta(t, 1080.0, y, 1e-9)

	assert.InDelta(t, 1.125, m.Uniform(), 1e-9)
}
