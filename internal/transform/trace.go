package transform

// Trace stage names, in pipeline order.
const (
	StageInput  = "input"
	StageRemap  = "remap"
	StageGroup  = "group"
	StageFinal  = "final"
	StageBounds = "bounds"
)

// TraceFunc observes intermediate values of a transform. It is called
// synchronously and must not retain values.
type TraceFunc func(stage string, values map[string]float64)

// TraceStage is one recorded pipeline stage.
type TraceStage struct {
	Stage  string
	Values map[string]float64
}

// tracer routes stage values either to the callback or, in collect-only
// mode, into a slice returned with the result.
type tracer struct {
	fn      TraceFunc
	collect bool
	stages  []TraceStage
}

func newTracer(opts Options) *tracer {
	return &tracer{fn: opts.Trace, collect: opts.CollectOnly}
}

func (t *tracer) enabled() bool {
	return t.collect || t.fn != nil
}

func (t *tracer) record(stage string, values map[string]float64) {
	if t.collect {
		t.stages = append(t.stages, TraceStage{Stage: stage, Values: values})
		return
	}
	if t.fn != nil {
		t.fn(stage, values)
	}
}
