package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/overlay/internal/viewport"
)

func TestDispatch_LegacyOverlay(t *testing.T) {
	t.Run("bare payload", func(t *testing.T) {
		e := newTestEngine(t, viewport.ScaleFit)
		assert.True(t, e.Dispatch(frameOf(t, `{"type":"message","id":"m1","text":"hi"}`)))
		assert.Equal(t, 1, e.Store().Len())
	})

	t.Run("wrapped payload", func(t *testing.T) {
		e := newTestEngine(t, viewport.ScaleFit)
		assert.True(t, e.Dispatch(frameOf(t, `{"event":"LegacyOverlay","payload":{"type":"message","id":"m1","text":"hi"}}`)))
		_, ok := e.Store().Get("m1")
		assert.True(t, ok)
	})

	t.Run("rejected payload leaves store untouched", func(t *testing.T) {
		e := newTestEngine(t, viewport.ScaleFit)
		assert.False(t, e.Dispatch(frameOf(t, `{"event":"LegacyOverlay","type":"shape","shape":"rect","id":"r1","x":"a"}`)))
		assert.Equal(t, 0, e.Store().Len())
	})

	t.Run("frame without event or type ignored", func(t *testing.T) {
		e := newTestEngine(t, viewport.ScaleFit)
		assert.False(t, e.Dispatch(frameOf(t, `{"id":"m1","text":"hi"}`)))
	})

	t.Run("legacy clear", func(t *testing.T) {
		e := newTestEngine(t, viewport.ScaleFit)
		e.Dispatch(frameOf(t, `{"type":"message","id":"m1","text":"hi"}`))
		e.Dispatch(frameOf(t, `{"type":"message","id":"m2","text":"yo"}`))
		e.Cycle(CycleNext)

		assert.True(t, e.Dispatch(frameOf(t, `{"type":"legacy_clear"}`)))
		assert.Equal(t, 0, e.Store().Len())
		assert.Equal(t, "", e.Selected())
		assert.Equal(t, 0, e.ItemCount())

		assert.False(t, e.Dispatch(frameOf(t, `{"type":"legacy_clear"}`)), "clearing an empty store changes nothing")
	})
}

func TestDispatch_OverlayConfig(t *testing.T) {
	e := newTestEngine(t, viewport.ScaleFit)

	assert.True(t, e.Dispatch(frameOf(t, `{"event":"OverlayConfig","scale_mode":"fill"}`)))
	assert.Equal(t, viewport.ScaleFill, e.Resolver().Mode())

	assert.False(t, e.Dispatch(frameOf(t, `{"event":"OverlayConfig","scale_mode":"fill"}`)), "same mode")
	assert.False(t, e.Dispatch(frameOf(t, `{"event":"OverlayConfig","scale_mode":"zoom"}`)))
	assert.Equal(t, viewport.ScaleFill, e.Resolver().Mode(), "invalid mode keeps the current one")
	assert.False(t, e.Dispatch(frameOf(t, `{"event":"OverlayConfig","opacity":0.5}`)))
}

func TestDispatch_Groups(t *testing.T) {
	e := newTestEngine(t, viewport.ScaleFit)

	assert.True(t, e.Dispatch(frameOf(t, `{"event":"OverlayGroupTransform","group":"hud","prefixes":["hud_"],"band_max_x":100,"band_max_y":50,"anchor":"bottom-right","dx":5,"scale":1.5}`)))
	g, ok := e.Groups().Get("hud")
	require.True(t, ok)
	assert.Equal(t, "se", string(g.Anchor))
	assert.Equal(t, 5.0, g.DX)
	assert.Equal(t, 1.5, g.Scale)

	assert.True(t, e.Dispatch(frameOf(t, `{"event":"OverlayGroupTransform","payload":{"name":"side","prefixes":["side_"]}}`)))
	assert.Equal(t, 2, e.Groups().Len())

	t.Run("invalid transforms rejected", func(t *testing.T) {
		assert.False(t, e.Dispatch(frameOf(t, `{"event":"OverlayGroupTransform","prefixes":["x"]}`)), "missing name")
		assert.False(t, e.Dispatch(frameOf(t, `{"event":"OverlayGroupTransform","group":"x","anchor":"sideways"}`)))
		assert.False(t, e.Dispatch(frameOf(t, `{"event":"OverlayGroupTransform","group":"x","scale":"big"}`)))
		assert.False(t, e.Dispatch(frameOf(t, `{"event":"OverlayGroupTransform","group":"x","scale":-1}`)))
		assert.Equal(t, 2, e.Groups().Len())
	})

	t.Run("reset one group", func(t *testing.T) {
		assert.True(t, e.Dispatch(frameOf(t, `{"event":"OverlayGroupReset","group":"side"}`)))
		assert.False(t, e.Dispatch(frameOf(t, `{"event":"OverlayGroupReset","group":"side"}`)))
		assert.Equal(t, 1, e.Groups().Len())
	})

	t.Run("reset all", func(t *testing.T) {
		assert.True(t, e.Dispatch(frameOf(t, `{"event":"OverlayGroupReset"}`)))
		assert.Equal(t, 0, e.Groups().Len())
		assert.False(t, e.Dispatch(frameOf(t, `{"event":"OverlayGroupReset"}`)))
	})
}

func TestDispatch_UnknownEvent(t *testing.T) {
	e := newTestEngine(t, viewport.ScaleFit)
	assert.False(t, e.Dispatch(frameOf(t, `{"event":"WindowMoved","x":1}`)))
}

func TestCycle(t *testing.T) {
	e := newTestEngine(t, viewport.ScaleFit)

	assert.False(t, e.Cycle(CycleNext), "no items to select")

	for _, id := range []string{"a", "b", "c"} {
		e.Dispatch(frameOf(t, `{"type":"message","id":"`+id+`","text":"x"}`))
	}

	steps := []struct {
		action string
		want   string
	}{
		{CycleNext, "a"},
		{CycleNext, "b"},
		{CycleNext, "c"},
		{CycleNext, "a"},
		{CyclePrev, "c"},
		{CyclePrev, "b"},
		{CycleClear, ""},
		{CyclePrev, "c"},
	}
	for _, step := range steps {
		e.Dispatch(frameOf(t, `{"event":"OverlayCycle","action":"`+step.action+`"}`))
		assert.Equal(t, step.want, e.Selected(), "after %s", step.action)
	}

	assert.False(t, e.Cycle("sideways"))
	assert.Equal(t, "c", e.Selected())
}
