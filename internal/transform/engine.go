// Package transform maps stored items from the virtual canvas to physical
// draw geometry: legacy mapping, optional per-group anchor-preserving
// scale/translate, and per-axis remapping.
package transform

import (
	"errors"

	"github.com/dyluth/overlay/internal/store"
	"github.com/dyluth/overlay/internal/viewport"
)

// ErrNonFinite is returned when an input or result coordinate is NaN or infinite.
// Callers skip the item for the current frame.
var ErrNonFinite = errors.New("transform: non-finite coordinate")

// Options tune a single transform call.
type Options struct {
	// Group layers an anchor-preserving scale/translate over the legacy mapping.
	Group *Group

	// Remap is applied to every virtual point before mapping.
	Remap AxisRemap

	// BoundsOverrideX pins the group anchor x (virtual units) to rendered
	// content instead of the nominal band. dx is not applied to it.
	BoundsOverrideX *float64

	// AnchorToBounds derives BoundsOverrideX from the remapped source bounds
	// of a vector, at the anchor's horizontal position. Ignored when
	// BoundsOverrideX is set.
	AnchorToBounds bool

	// Trace receives stage values unless CollectOnly is set.
	Trace TraceFunc

	// CollectOnly records stages into the result without calling Trace.
	CollectOnly bool
}

// MessageResult is the physical placement of a message.
type MessageResult struct {
	X float64
	Y float64

	// DeltaX and DeltaY are how far the group transform moved the text
	// origin away from its plain legacy-mapped position.
	DeltaX float64
	DeltaY float64

	FontPoint float64
	Stages    []TraceStage
}

// RectResult holds all four transformed corners (clockwise from the
// origin corner) and their bounding box.
type RectResult struct {
	Corners [4]Point
	Bounds  Rect
	Stages  []TraceStage
}

// VectorPoint is a transformed vertex with its per-point overrides.
type VectorPoint struct {
	Point
	Color  string
	Marker string
	Text   string
}

// VectorResult is a transformed vector plus the data needed to reconstruct
// every intermediate value.
type VectorResult struct {
	Points       []VectorPoint
	SourceBounds Rect  // untransformed input points
	Bounds       Rect  // transformed points
	Anchor       Point // physical anchor used; zero without a group
	Stages       []TraceStage
}

// Engine transforms items for one frame's legacy mapping.
type Engine struct {
	mapping viewport.Mapping
	font    FontConfig
}

// NewEngine creates an engine for the given mapping and font bounds.
func NewEngine(mapping viewport.Mapping, font FontConfig) *Engine {
	return &Engine{mapping: mapping, font: font}
}

// Mapping returns the legacy mapping the engine applies.
func (e *Engine) Mapping() viewport.Mapping {
	return e.mapping
}

// Message places a message's text origin.
func (e *Engine) Message(msg store.Message, opts Options) (MessageResult, error) {
	tr := newTracer(opts)

	p, gr, err := e.point(Pt(msg.X, msg.Y), 0, opts, opts.BoundsOverrideX, tr)
	if err != nil {
		return MessageResult{}, err
	}

	base := opts.Remap.Apply(Pt(msg.X, msg.Y))
	bx, by := e.mapping.Apply(base.X, base.Y)

	scale := e.mapping.Uniform()
	if gr.GroupUsed {
		scale *= opts.Group.EffectiveScale()
	}

	return MessageResult{
		X:         p.X,
		Y:         p.Y,
		DeltaX:    p.X - bx,
		DeltaY:    p.Y - by,
		FontPoint: e.font.Point(msg.Size, scale),
		Stages:    tr.stages,
	}, nil
}

// Rect maps all four corners of a rectangle, so a group scale yields a
// correctly sized quadrilateral rather than a moved origin with a stale extent.
func (e *Engine) Rect(r store.Rect, opts Options) (RectResult, error) {
	tr := newTracer(opts)

	corners := [4]Point{
		Pt(r.X, r.Y),
		Pt(r.X+r.W, r.Y),
		Pt(r.X+r.W, r.Y+r.H),
		Pt(r.X, r.Y+r.H),
	}

	var result RectResult
	for i, c := range corners {
		p, _, err := e.point(c, i, opts, opts.BoundsOverrideX, tr)
		if err != nil {
			return RectResult{}, err
		}
		result.Corners[i] = p
	}
	result.Bounds = Bounds(result.Corners[:])
	if tr.enabled() {
		tr.record(StageBounds, rectValues(result.Bounds))
	}
	result.Stages = tr.stages
	return result, nil
}

// Vector maps every point of a vector, keeping per-point overrides.
func (e *Engine) Vector(v store.Vector, opts Options) (VectorResult, error) {
	tr := newTracer(opts)

	source := make([]Point, len(v.Points))
	remapped := make([]Point, len(v.Points))
	for i, vp := range v.Points {
		source[i] = Pt(vp.X, vp.Y)
		remapped[i] = opts.Remap.Apply(source[i])
	}

	result := VectorResult{
		Points:       make([]VectorPoint, 0, len(v.Points)),
		SourceBounds: Bounds(source),
	}

	override := opts.BoundsOverrideX
	if override == nil && opts.AnchorToBounds && opts.Group != nil && len(remapped) > 0 {
		rb := Bounds(remapped)
		x := rb.MinX + rb.Width()*opts.Group.AnchorFractionX()
		override = &x
	}

	transformed := make([]Point, 0, len(v.Points))
	for i, vp := range v.Points {
		p, gr, err := e.point(source[i], i, opts, override, tr)
		if err != nil {
			return VectorResult{}, err
		}
		if gr.GroupUsed {
			result.Anchor = gr.AnchorPx
		}
		transformed = append(transformed, p)
		result.Points = append(result.Points, VectorPoint{
			Point:  p,
			Color:  vp.Color,
			Marker: vp.Marker,
			Text:   vp.Text,
		})
	}

	result.Bounds = Bounds(transformed)
	if tr.enabled() {
		values := rectValues(result.Bounds)
		values["source_min_x"] = result.SourceBounds.MinX
		values["source_min_y"] = result.SourceBounds.MinY
		values["source_max_x"] = result.SourceBounds.MaxX
		values["source_max_y"] = result.SourceBounds.MaxY
		tr.record(StageBounds, values)
	}
	result.Stages = tr.stages
	return result, nil
}

// point runs one virtual point through remap, mapping and the optional group.
func (e *Engine) point(p Point, index int, opts Options, overrideX *float64, tr *tracer) (Point, groupResult, error) {
	if !p.Finite() {
		return Point{}, groupResult{}, ErrNonFinite
	}
	idx := float64(index)

	if tr.enabled() {
		tr.record(StageInput, map[string]float64{"index": idx, "x": p.X, "y": p.Y})
	}

	remapped := opts.Remap.Apply(p)
	if tr.enabled() {
		tr.record(StageRemap, map[string]float64{"index": idx, "x": remapped.X, "y": remapped.Y})
	}

	var final Point
	var gr groupResult
	if opts.Group != nil {
		gr = opts.Group.apply(e.mapping, opts.Remap, p, overrideX)
		final = gr.Final
		if tr.enabled() {
			tr.record(StageGroup, map[string]float64{
				"index":     idx,
				"virtual_x": gr.Virtual.X,
				"virtual_y": gr.Virtual.Y,
				"anchor_x":  gr.Anchor.X,
				"anchor_y":  gr.Anchor.Y,
				"anchor_px": gr.AnchorPx.X,
				"anchor_py": gr.AnchorPx.Y,
				"mapped_x":  gr.ItemPx.X,
				"mapped_y":  gr.ItemPx.Y,
				"scale":     opts.Group.EffectiveScale(),
			})
		}
	} else {
		x, y := e.mapping.Apply(remapped.X, remapped.Y)
		final = Pt(x, y)
	}

	if !final.Finite() {
		return Point{}, groupResult{}, ErrNonFinite
	}
	if tr.enabled() {
		tr.record(StageFinal, map[string]float64{"index": idx, "x": final.X, "y": final.Y})
	}
	return final, gr, nil
}

func rectValues(r Rect) map[string]float64 {
	return map[string]float64{
		"min_x": r.MinX,
		"min_y": r.MinY,
		"max_x": r.MaxX,
		"max_y": r.MaxY,
	}
}
