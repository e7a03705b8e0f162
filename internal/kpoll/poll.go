// Package kpoll defines the poll protocol every suspended computation in the
// core speaks: futures advanced by explicit polls, wakers that re-enqueue
// their task, and the context that carries one into the other.
package kpoll

// Poll reports whether a future made it to completion during one advance.
type Poll uint8

const (
	// Pending means the future registered a waker and yielded.
	Pending Poll = iota
	// Ready means the future completed; it must not be polled again.
	Ready
)

// String returns the string representation of Poll.
func (p Poll) String() string {
	switch p {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Waker re-enqueues one specific suspended task.
//
// Wake may be invoked from interrupt context and therefore must never block
// or suspend. Invoking it more than once, or after the task completed, is
// harmless: the scheduler treats the resulting stale wakeup as a no-op.
type Waker interface {
	Wake()
}

// Future is a resumable computation advanced by the scheduler.
//
// Poll either completes the computation (Ready) or registers the context's
// waker with whatever resource it is blocked on and returns Pending. A
// future that returns Pending without registering the waker is never
// resumed.
type Future interface {
	Poll(cx *Context) Poll
}

// Context carries the per-task waker into a poll.
type Context struct {
	waker Waker
}

// NewContext builds a poll context around a waker.
func NewContext(w Waker) *Context {
	return &Context{waker: w}
}

// Waker returns the waker bound to the task being polled.
func (c *Context) Waker() Waker {
	if c == nil {
		return nil
	}
	return c.waker
}

// WakerFunc adapts a plain function to the Waker interface.
type WakerFunc func()

// Wake calls the wrapped function.
func (f WakerFunc) Wake() { f() }
