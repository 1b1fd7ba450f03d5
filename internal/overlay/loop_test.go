package overlay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/overlay/internal/viewport"
	"github.com/dyluth/overlay/pkg/protocol"
)

type captureRenderer struct {
	frames chan Frame
	err    error
}

func (c *captureRenderer) Render(_ context.Context, frame Frame) error {
	c.frames <- frame
	return c.err
}

func nextFrame(t *testing.T, c *captureRenderer, match func(Frame) bool) Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-c.frames:
			if match(f) {
				return f
			}
		case <-deadline:
			t.Fatal("timed out waiting for frame")
			return Frame{}
		}
	}
}

func TestLoop_AppliesFramesAndRenders(t *testing.T) {
	e := newTestEngine(t, viewport.ScaleFit)
	frames := make(chan protocol.Frame, 4)
	relay := make(chan protocol.Frame, 4)
	renderer := &captureRenderer{frames: make(chan Frame, 64)}

	loop := &Loop{
		Engine:   e,
		Renderer: renderer,
		Surface:  FixedSurface(1280, 960, 1),
		Tick:     10 * time.Millisecond,
		Frames:   frames,
		Relay:    relay,
		Clock:    func() time.Time { return t0 },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	frames <- frameOf(t, `{"event":"LegacyOverlay","type":"message","id":"m1","text":"socket"}`)
	relay <- frameOf(t, `{"type":"message","id":"m2","text":"relay"}`)

	f := nextFrame(t, renderer, func(f Frame) bool { return len(f.Primitives) == 2 })
	assert.Equal(t, 1280, f.Width)
	assert.ElementsMatch(t, []string{"socket", "relay"}, []string{f.Primitives[0].Text, f.Primitives[1].Text})

	close(relay)
	frames <- frameOf(t, `{"type":"legacy_clear"}`)
	nextFrame(t, renderer, func(f Frame) bool { return len(f.Primitives) == 0 })

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoop_SourceClosed(t *testing.T) {
	e := newTestEngine(t, viewport.ScaleFit)
	frames := make(chan protocol.Frame)
	close(frames)

	loop := &Loop{
		Engine:   e,
		Renderer: &captureRenderer{frames: make(chan Frame, 8)},
		Surface:  FixedSurface(100, 100, 1),
		Frames:   frames,
	}
	err := loop.Run(context.Background())
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestLoop_RenderError(t *testing.T) {
	e := newTestEngine(t, viewport.ScaleFit)
	loop := &Loop{
		Engine:   e,
		Renderer: &captureRenderer{frames: make(chan Frame, 8), err: errors.New("display gone")},
		Surface:  FixedSurface(100, 100, 1),
		Tick:     10 * time.Millisecond,
	}

	err := loop.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "display gone")
}

func TestLoop_RequiresCollaborators(t *testing.T) {
	err := (&Loop{}).Run(context.Background())
	assert.Error(t, err)
}
