package kpoll

// YieldNow returns a future that suspends exactly once before completing.
//
// The first poll wakes its own waker and reports Pending, which pushes the
// task back onto the ready queue behind everything already there. Useful in
// long-running tasks to keep one computation from monopolizing the core.
func YieldNow() Future {
	return &yieldNow{}
}

type yieldNow struct {
	yielded bool
}

func (y *yieldNow) Poll(cx *Context) Poll {
	if y.yielded {
		return Ready
	}
	y.yielded = true
	cx.Waker().Wake()
	return Pending
}

// Func adapts a step function to the Future interface. The function is
// called on every poll until it reports Ready.
type Func func(cx *Context) Poll

// Poll invokes the step function.
func (f Func) Poll(cx *Context) Poll { return f(cx) }
