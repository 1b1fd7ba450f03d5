// Package overlay composes the item store, classifier, viewport resolver and
// transform engine into the consumer that turns broadcast frames into draw
// primitives.
//
// An Engine is owned by a single goroutine: Dispatch and Tick must never run
// concurrently. Loop provides that goroutine.
package overlay

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dyluth/overlay/internal/classify"
	"github.com/dyluth/overlay/internal/store"
	"github.com/dyluth/overlay/internal/transform"
	"github.com/dyluth/overlay/internal/viewport"
)

// Options configures an Engine.
type Options struct {
	Logger    *slog.Logger
	ScaleMode viewport.ScaleMode
	Font      transform.FontConfig

	// Groups seed the group cache. Controller signals may replace them.
	Groups []transform.Group

	Remap          transform.AxisRemap
	AnchorToBounds bool

	// Trace receives the pipeline stages of the item selected with
	// OverlayCycle, once per frame.
	Trace func(id string, stage transform.TraceStage)

	Clock func() time.Time
}

// Engine holds the live overlay state.
type Engine struct {
	logger     *slog.Logger
	store      *store.Store
	classifier *classify.Classifier
	resolver   *viewport.Resolver
	groups     *transform.Cache
	font       transform.FontConfig

	remap          transform.AxisRemap
	anchorToBounds bool
	trace          func(id string, stage transform.TraceStage)

	selected  string
	dirty     bool
	lastState viewport.State
	seq       uint64

	// items mirrors store.Len for readers on other goroutines.
	items atomic.Int64
}

// NewEngine creates an engine. It fails if a seed group is invalid.
func NewEngine(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var classifierOpts []classify.Option
	if opts.Clock != nil {
		classifierOpts = append(classifierOpts, classify.WithClock(opts.Clock))
	}
	font := opts.Font
	if font == (transform.FontConfig{}) {
		font = transform.DefaultFontConfig()
	}

	e := &Engine{
		logger:         logger,
		store:          store.New(),
		classifier:     classify.New(logger, classifierOpts...),
		resolver:       viewport.NewResolver(opts.ScaleMode),
		groups:         transform.NewCache(),
		font:           font,
		remap:          opts.Remap,
		anchorToBounds: opts.AnchorToBounds,
		trace:          opts.Trace,
		dirty:          true,
	}
	for _, g := range opts.Groups {
		if err := e.groups.Set(g); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Store returns the item store.
func (e *Engine) Store() *store.Store { return e.store }

// Groups returns the group cache.
func (e *Engine) Groups() *transform.Cache { return e.groups }

// Resolver returns the viewport resolver.
func (e *Engine) Resolver() *viewport.Resolver { return e.resolver }

// Selected returns the id picked by OverlayCycle, or "".
func (e *Engine) Selected() string { return e.selected }

// ItemCount is safe to call from any goroutine.
func (e *Engine) ItemCount() int {
	return int(e.items.Load())
}

func (e *Engine) markDirty() {
	e.dirty = true
	e.items.Store(int64(e.store.Len()))
}

// Tick purges expired items and maps every live item for state, which is
// normally produced by Resolver().Resolve so it carries the active mode.
// The second result reports whether anything changed since the previous
// tick; callers may skip rendering when it is false.
//
// Items whose geometry is not finite are left out of this frame.
func (e *Engine) Tick(now time.Time, state viewport.State) (Frame, bool) {
	if e.store.PurgeExpired(now) {
		e.markDirty()
	}
	changed := e.dirty || state != e.lastState
	e.dirty = false
	e.lastState = state

	mapping := viewport.Map(state, state.Mode)
	engine := transform.NewEngine(mapping, e.font)

	width, height := state.Floor()
	frame := Frame{Time: now, Width: width, Height: height}
	for _, item := range e.store.Items() {
		prims, err := e.render(engine, item)
		if err != nil {
			if errors.Is(err, transform.ErrNonFinite) {
				e.logger.Debug("overlay: skipping item for frame", "id", item.ID, "error", err)
				continue
			}
			e.logger.Warn("overlay: failed to render item", "id", item.ID, "error", err)
			continue
		}
		frame.Primitives = append(frame.Primitives, prims...)
	}

	if changed {
		e.seq++
	}
	frame.Seq = e.seq
	return frame, changed
}

func (e *Engine) render(engine *transform.Engine, item store.Item) ([]Primitive, error) {
	opts := transform.Options{
		Group:          e.groups.Lookup(item.ID),
		Remap:          e.remap,
		AnchorToBounds: e.anchorToBounds,
	}
	traced := item.ID == e.selected && e.selected != ""
	opts.CollectOnly = traced

	var prims []Primitive
	var stages []transform.TraceStage

	switch item.Kind {
	case store.KindMessage:
		res, err := engine.Message(*item.Message, opts)
		if err != nil {
			return nil, err
		}
		stages = res.Stages
		prims = append(prims, Primitive{
			Kind:      PrimitiveText,
			ID:        item.ID,
			Points:    []transform.Point{transform.Pt(res.X, res.Y)},
			Color:     item.Message.Color,
			Text:      item.Message.Text,
			FontPoint: res.FontPoint,
		})

	case store.KindRect:
		res, err := engine.Rect(*item.Rect, opts)
		if err != nil {
			return nil, err
		}
		stages = res.Stages
		prims = append(prims, Primitive{
			Kind:   PrimitiveQuad,
			ID:     item.ID,
			Points: res.Corners[:],
			Color:  item.Rect.Color,
			Fill:   item.Rect.Fill,
		})

	case store.KindVector:
		res, err := engine.Vector(*item.Vector, opts)
		if err != nil {
			return nil, err
		}
		stages = res.Stages
		prims = vectorPrimitives(item.ID, item.Vector.BaseColor, res)
	}

	if traced {
		e.emitTrace(item.ID, stages)
	}
	return prims, nil
}

// vectorPrimitives draws a polyline through the points plus a marker for
// every point carrying a marker or text.
func vectorPrimitives(id, baseColor string, res transform.VectorResult) []Primitive {
	var prims []Primitive

	if len(res.Points) >= 2 {
		line := Primitive{
			Kind:   PrimitivePolyline,
			ID:     id,
			Points: make([]transform.Point, len(res.Points)),
			Color:  baseColor,
		}
		overridden := false
		colors := make([]string, len(res.Points))
		for i, p := range res.Points {
			line.Points[i] = p.Point
			colors[i] = baseColor
			if p.Color != "" {
				colors[i] = p.Color
				overridden = true
			}
		}
		if overridden {
			line.Colors = colors
		}
		prims = append(prims, line)
	}

	for _, p := range res.Points {
		if p.Marker == "" && p.Text == "" {
			continue
		}
		color := baseColor
		if p.Color != "" {
			color = p.Color
		}
		prims = append(prims, Primitive{
			Kind:   PrimitiveMarker,
			ID:     id,
			Points: []transform.Point{p.Point},
			Color:  color,
			Marker: p.Marker,
			Text:   p.Text,
		})
	}
	return prims
}

func (e *Engine) emitTrace(id string, stages []transform.TraceStage) {
	for _, stage := range stages {
		e.logger.Debug("overlay: trace", "id", id, "stage", stage.Stage, "values", stage.Values)
		if e.trace != nil {
			e.trace(id, stage)
		}
	}
}
