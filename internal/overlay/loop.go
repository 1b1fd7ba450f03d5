package overlay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/overlay/pkg/protocol"
)

// ErrSourceClosed is returned by Loop.Run when the broadcaster frame channel
// closes while the context is still live.
var ErrSourceClosed = errors.New("frame source closed")

// Surface reports the raw window size in logical pixels and its device pixel ratio.
type Surface func() (width, height, dpr float64)

// FixedSurface returns a Surface that never changes.
func FixedSurface(width, height, dpr float64) Surface {
	return func() (float64, float64, float64) { return width, height, dpr }
}

// Loop is the single goroutine that owns an Engine. It applies frames from
// the broadcaster and the optional relay, and renders on every tick that
// changed something.
type Loop struct {
	Engine   *Engine
	Renderer Renderer
	Surface  Surface
	Tick     time.Duration

	// Frames carries broadcaster frames. Relay is optional.
	Frames <-chan protocol.Frame
	Relay  <-chan protocol.Frame

	Clock func() time.Time
}

// Run blocks until ctx is done or the broadcaster frame source closes.
func (l *Loop) Run(ctx context.Context) error {
	if l.Engine == nil || l.Renderer == nil || l.Surface == nil {
		return fmt.Errorf("loop requires an engine, a renderer and a surface")
	}
	tick := l.Tick
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	clock := l.Clock
	if clock == nil {
		clock = time.Now
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	frames, relay := l.Frames, l.Relay
	for {
		select {
		case <-ctx.Done():
			return nil

		case frame, ok := <-frames:
			if !ok {
				return ErrSourceClosed
			}
			l.Engine.Dispatch(frame)

		case frame, ok := <-relay:
			if !ok {
				l.Engine.logger.Warn("overlay: relay closed")
				relay = nil
				continue
			}
			l.Engine.Dispatch(frame)

		case <-ticker.C:
			if err := l.render(ctx, clock()); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) render(ctx context.Context, now time.Time) error {
	w, h, dpr := l.Surface()
	state := l.Engine.Resolver().Resolve(w, h, dpr)

	frame, changed := l.Engine.Tick(now, state)
	if !changed {
		return nil
	}
	if err := l.Renderer.Render(ctx, frame); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	return nil
}
