package ktime

import (
	"container/heap"
	"time"

	"nucleus/internal/kpoll"
	"nucleus/internal/ksync"
)

// Sleeper maps target ticks to the wakers waiting for them. Tasks register
// through Sleep futures; the timer interrupt handler cuts everything due in
// one pass via WakeSleepers.
//
// The registry lock is an IntMutex: a task may only hold it with interrupts
// disabled, which is what lets the handler's TryLockInHandler treat failure
// as fatal rather than waiting in a context that cannot wait.
type Sleeper struct {
	ticker *Ticker
	reg    *ksync.IntMutex[registry]
}

// NewSleeper builds a sleep service driven by the given ticker, gated on the
// machine's interrupt controls.
func NewSleeper(gate ksync.InterruptGate, ticker *Ticker) *Sleeper {
	return &Sleeper{
		ticker: ticker,
		reg:    ksync.NewIntMutex(gate, registry{index: make(map[uint64]*sleepNode)}),
	}
}

// Sleep returns a future that completes once the tick counter reaches the
// target derived from d. The conversion truncates to whole ticks and
// subtracts one because the counter lags the true elapsed count by one
// increment; the target addition wraps, so wake times near counter
// wraparound are wrong (known limitation, not handled).
//
// The wake is "at or after" the target, never before.
func (s *Sleeper) Sleep(d time.Duration) *SleepFuture {
	ticks := s.ticker.TicksIn(d)
	if ticks > 0 {
		ticks--
	}
	return &SleepFuture{s: s, end: s.ticker.Now() + ticks}
}

// WakeSleepers removes every registration with a target tick at or below
// now and wakes all of its wakers. Interrupt context only: the registry is
// taken with a non-suspending try-lock and a failure is the documented
// fatal invariant violation (a task held the registry while interruptible).
// Returns the number of wakers invoked.
func (s *Sleeper) WakeSleepers(now uint64) int {
	g, ok := s.reg.TryLockInHandler()
	if !ok {
		panic("ktime: sleep registry held during timer interrupt")
	}
	r := g.Get()
	if len(r.heap) == 0 || r.heap[0].tick > now {
		// Nothing due yet.
		g.Unlock()
		return 0
	}
	woken := 0
	for len(r.heap) > 0 && r.heap[0].tick <= now {
		n := heap.Pop(&r.heap).(*sleepNode)
		delete(r.index, n.tick)
		for _, w := range n.wakers {
			w.Wake()
			woken++
		}
	}
	g.Unlock()
	return woken
}

// Pending reports the number of registered target ticks. Task context.
func (s *Sleeper) Pending() int {
	g := s.reg.SpinLock()
	n := len(g.Get().heap)
	g.Unlock()
	return n
}

func (s *Sleeper) register(end uint64, w kpoll.Waker) {
	g := s.reg.SpinLock()
	r := g.Get()
	if n, ok := r.index[end]; ok {
		n.wakers = append(n.wakers, w)
	} else {
		n := &sleepNode{tick: end, wakers: make([]kpoll.Waker, 1, 4)}
		n.wakers[0] = w
		r.index[end] = n
		heap.Push(&r.heap, n)
	}
	g.Unlock()
}

// SleepFuture completes when the tick counter reaches its target. The first
// poll registers the waker exactly once; every poll, first included,
// re-compares against the current tick so a registration that raced with
// its own deadline still completes.
type SleepFuture struct {
	s          *Sleeper
	end        uint64
	registered bool
}

// EndTick returns the absolute target tick.
func (f *SleepFuture) EndTick() uint64 {
	return f.end
}

// Poll reports Ready once the counter has reached the target.
func (f *SleepFuture) Poll(cx *kpoll.Context) kpoll.Poll {
	if f.s.ticker.Now() >= f.end {
		return kpoll.Ready
	}
	if !f.registered {
		f.s.register(f.end, cx.Waker())
		f.registered = true
		// The deadline may have passed while we registered; the cut for it
		// is then already over and nobody will wake us. The stale entry is
		// harmless: it wakes a completed task, which the scheduler skips.
		if f.s.ticker.Now() >= f.end {
			return kpoll.Ready
		}
	}
	return kpoll.Pending
}

// Registrations keyed by target tick. The heap orders smallest target
// first so the due set is a contiguous prefix; same-tick sleepers share one
// node and wake in the same interrupt invocation.
type registry struct {
	heap  nodeHeap
	index map[uint64]*sleepNode
}

type sleepNode struct {
	tick   uint64
	wakers []kpoll.Waker
}

type nodeHeap []*sleepNode

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].tick < h[j].tick }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) {
	n, ok := x.(*sleepNode)
	if !ok || n == nil {
		return
	}
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	if n == 0 {
		return (*sleepNode)(nil)
	}
	item := old[n-1]
	*h = old[:n-1]
	return item
}
