package trace

import (
	"sync/atomic"
	"time"
)

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindPoint represents an instant event.
	KindPoint Kind = iota + 1
	// KindHeartbeat is a periodic liveness signal (one per timer tick batch).
	KindHeartbeat
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates which part of the core emitted the event.
// Lower numeric values represent coarser events.
type Scope uint8

const (
	// ScopeKernel covers boot, shutdown and run-loop boundaries.
	ScopeKernel Scope = iota + 1
	// ScopeTask covers per-task lifecycle (spawn, complete, skip).
	ScopeTask
	// ScopeWake covers individual wakeups, polls and timer cuts.
	ScopeWake
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeKernel:
		return "kernel"
	case ScopeTask:
		return "task"
	case ScopeWake:
		return "wake"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time   time.Time `msgpack:"time"`
	Seq    uint64    `msgpack:"seq"`
	Kind   Kind      `msgpack:"kind"`
	Scope  Scope     `msgpack:"scope"`
	Name   string    `msgpack:"name"`
	Detail string    `msgpack:"detail,omitempty"`
	Task   uint64    `msgpack:"task,omitempty"` // task id, 0 if not task-bound
	Tick   uint64    `msgpack:"tick,omitempty"` // monotonic tick at emission
}

var seq atomic.Uint64

// NextSeq returns the next global event sequence number.
func NextSeq() uint64 {
	return seq.Add(1)
}

// Point emits an instant event through t, filling in the timestamp.
func Point(t Tracer, scope Scope, name, detail string, task, tick uint64) {
	if t == nil || !t.Enabled() {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindPoint,
		Scope:  scope,
		Name:   name,
		Detail: detail,
		Task:   task,
		Tick:   tick,
	})
}

// Heartbeat emits the liveness signal for one timer tick batch. Heartbeats
// bypass level filtering so a quiet tracer still shows the core is alive.
func Heartbeat(t Tracer, tick uint64) {
	if t == nil || !t.Enabled() {
		return
	}
	t.Emit(&Event{
		Time:  time.Now(),
		Kind:  KindHeartbeat,
		Scope: ScopeKernel,
		Name:  "tick",
		Tick:  tick,
	})
}
