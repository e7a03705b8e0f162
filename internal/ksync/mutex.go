// Package ksync provides the kernel's synchronization primitives: an
// asynchronous mutual-exclusion lock over a payload, the interrupt-disabling
// variant required for state shared with interrupt handlers, and the waker
// list both are built on.
package ksync

import (
	"runtime"
	"sync/atomic"

	"nucleus/internal/kpoll"
)

// Mutex is an asynchronous mutual-exclusion lock that owns a payload of type
// T. The payload is reachable only through a live Guard, so a guard exists
// exactly when the locked flag is set.
//
// Lock suspends and is therefore a task-context operation. TryLock and
// SpinLock never suspend; SpinLock is for contexts where no scheduler exists
// yet. State that is also touched by an interrupt handler must use IntMutex
// instead.
type Mutex[T any] struct {
	locked  atomic.Bool
	wakers  WakerList
	live    atomic.Int32
	payload T
}

// NewMutex builds a mutex owning payload.
func NewMutex[T any](payload T) *Mutex[T] {
	return &Mutex[T]{payload: payload}
}

// TryLock attempts to acquire the lock without suspending. On failure it
// reports false with no side effects.
func (m *Mutex[T]) TryLock() (*Guard[T], bool) {
	if m.locked.Load() {
		return nil, false
	}
	if !m.locked.CompareAndSwap(false, true) {
		return nil, false // lost the race
	}
	m.live.Add(1)
	return &Guard[T]{m: m}, true
}

// SpinLock busy-waits until the lock is acquired. Only for use before the
// scheduler exists or where suspension is structurally unavailable.
func (m *Mutex[T]) SpinLock() *Guard[T] {
	for {
		if g, ok := m.TryLock(); ok {
			return g
		}
		runtime.Gosched()
	}
}

// Lock returns a future that acquires the lock, suspending while it is held
// elsewhere. A wakeup never implies acquisition: the future retries TryLock
// on every poll and re-registers when it loses the race.
func (m *Mutex[T]) Lock() *LockFuture[T] {
	return &LockFuture[T]{m: m}
}

// LiveGuards reports the number of guards currently outstanding. It exists
// for invariant checks; the value can only be 0 or 1.
func (m *Mutex[T]) LiveGuards() int32 {
	return m.live.Load()
}

// Guard is exclusive access to a mutex's payload. Releasing it clears the
// locked flag strictly before notifying one waiter, so a woken waiter's
// TryLock can succeed immediately.
type Guard[T any] struct {
	m        *Mutex[T]
	released bool
}

// Get returns the payload. The pointer must not outlive the guard.
func (g *Guard[T]) Get() *T {
	if g.released {
		panic("ksync: guard used after unlock")
	}
	return &g.m.payload
}

// Unlock releases the lock and wakes at most one waiter.
func (g *Guard[T]) Unlock() {
	if g.released {
		panic("ksync: guard unlocked twice")
	}
	g.released = true
	g.m.live.Add(-1)
	g.m.locked.Store(false)
	g.m.wakers.NotifyOne()
}

// LockFuture is the suspending acquisition of a Mutex. Completed by the
// scheduler; after Poll returns Ready the guard is available via Guard.
type LockFuture[T any] struct {
	m          *Mutex[T]
	handle     Handle
	registered bool
	guard      *Guard[T]
}

// Poll attempts acquisition. On contention it registers the task's waker and
// re-checks the flag once more: a release that slipped in between the failed
// TryLock and the registration would otherwise have spent its notification
// on nobody, stranding this task.
func (f *LockFuture[T]) Poll(cx *kpoll.Context) kpoll.Poll {
	if f.guard != nil {
		return kpoll.Ready
	}
	if g, ok := f.m.TryLock(); ok {
		f.guard = g
		if f.registered {
			f.handle.Unregister()
			f.registered = false
		}
		return kpoll.Ready
	}
	if !f.registered {
		f.handle = f.m.wakers.Handle()
		f.registered = true
	}
	f.handle.Register(cx.Waker())
	if !f.m.locked.Load() {
		// Released between the TryLock above and Register. Self-wake and
		// retry on the next poll; a duplicate wakeup is harmless.
		cx.Waker().Wake()
	}
	return kpoll.Pending
}

// Guard returns the acquired guard after the future completed, or nil.
func (f *LockFuture[T]) Guard() *Guard[T] {
	return f.guard
}

// Abandon unregisters any pending registration. Call when the future is
// dropped before completing; dropping it silently would leak the slot until
// a NotifyOne happened to drain it.
func (f *LockFuture[T]) Abandon() {
	if f.registered {
		f.handle.Unregister()
		f.registered = false
	}
}
