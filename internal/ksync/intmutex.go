package ksync

// InterruptGate is the slice of the machine that IntMutex needs: clearing
// the interrupt-enable flag (returning its prior state) and restoring it.
type InterruptGate interface {
	DisableInterrupts() bool
	RestoreInterrupts(prior bool)
}

// IntMutex protects state that is also touched by an interrupt handler. On
// top of Mutex it clears the interrupt-enable flag for as long as the lock
// is held and restores the saved state on release. A task therefore can
// never hold the lock while interruptible, which is the only way the
// handler's own non-suspending TryLock can be guaranteed to succeed.
//
// There is deliberately no suspending acquisition: suspending with
// interrupts disabled would stop the timer and with it every future wakeup.
//
// Task context uses SpinLock or TryLock. Interrupt context uses
// TryLockInHandler, which skips the flag entirely: handler entry has
// already cleared it.
type IntMutex[T any] struct {
	gate  InterruptGate
	inner Mutex[T]
}

// NewIntMutex builds an interrupt-safe mutex owning payload, gated on the
// given interrupt controller.
func NewIntMutex[T any](gate InterruptGate, payload T) *IntMutex[T] {
	return &IntMutex[T]{gate: gate, inner: Mutex[T]{payload: payload}}
}

// SpinLock disables interrupts, then busy-waits for the lock. Task context
// only.
func (m *IntMutex[T]) SpinLock() *IntGuard[T] {
	prior := m.gate.DisableInterrupts()
	g := m.inner.SpinLock()
	return &IntGuard[T]{inner: g, gate: m.gate, prior: prior}
}

// TryLock disables interrupts and attempts acquisition. On failure the
// saved interrupt state is restored and there are no other side effects.
// Task context only.
func (m *IntMutex[T]) TryLock() (*IntGuard[T], bool) {
	prior := m.gate.DisableInterrupts()
	g, ok := m.inner.TryLock()
	if !ok {
		m.gate.RestoreInterrupts(prior)
		return nil, false
	}
	return &IntGuard[T]{inner: g, gate: m.gate, prior: prior}, true
}

// TryLockInHandler attempts acquisition without touching the interrupt
// flag. Interrupt context only, where the flag is already clear. Failure
// here means a task held the lock while interruptible, which the caller
// must treat as a fatal invariant violation, not a retry.
func (m *IntMutex[T]) TryLockInHandler() (*Guard[T], bool) {
	return m.inner.TryLock()
}

// LiveGuards reports the number of guards currently outstanding.
func (m *IntMutex[T]) LiveGuards() int32 {
	return m.inner.LiveGuards()
}

// IntGuard is exclusive access to an IntMutex payload. Release restores the
// interrupt-enable state saved at acquisition, after the lock itself is
// released and one waiter notified.
type IntGuard[T any] struct {
	inner *Guard[T]
	gate  InterruptGate
	prior bool
}

// Get returns the payload. The pointer must not outlive the guard.
func (g *IntGuard[T]) Get() *T {
	return g.inner.Get()
}

// Unlock releases the lock, wakes at most one waiter, then restores the
// saved interrupt-enable state. A pending timer interrupt fires as part of
// the restore.
func (g *IntGuard[T]) Unlock() {
	g.inner.Unlock()
	g.gate.RestoreInterrupts(g.prior)
}
