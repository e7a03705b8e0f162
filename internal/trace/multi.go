package trace

import "errors"

// MultiTracer fans out events to several tracers.
type MultiTracer struct {
	tracers []Tracer
}

// NewMultiTracer combines the given tracers.
func NewMultiTracer(tracers ...Tracer) *MultiTracer {
	return &MultiTracer{tracers: tracers}
}

// Emit forwards the event to every tracer.
func (t *MultiTracer) Emit(ev *Event) {
	for _, tr := range t.tracers {
		tr.Emit(ev)
	}
}

// Flush flushes every tracer, collecting errors.
func (t *MultiTracer) Flush() error {
	var errs []error
	for _, tr := range t.tracers {
		if err := tr.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every tracer, collecting errors.
func (t *MultiTracer) Close() error {
	var errs []error
	for _, tr := range t.tracers {
		if err := tr.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Level returns the most verbose level among the tracers.
func (t *MultiTracer) Level() Level {
	max := LevelOff
	for _, tr := range t.tracers {
		if l := tr.Level(); l > max {
			max = l
		}
	}
	return max
}

// Enabled returns true if any tracer is active.
func (t *MultiTracer) Enabled() bool {
	return t.Level() > LevelOff
}

// Ring returns the first ring tracer in the fan-out, if any. Used to pull a
// snapshot for post-mortem dumps.
func (t *MultiTracer) Ring() (*RingTracer, bool) {
	for _, tr := range t.tracers {
		if r, ok := tr.(*RingTracer); ok {
			return r, true
		}
	}
	return nil, false
}
