// Package machine simulates the hardware this core runs against: a single
// execution context, an interrupt-enable flag, a periodic timer interrupt
// source, and a halt instruction.
//
// The timer handler runs on a dedicated goroutine that stands in for
// interrupt context. Delivery respects the interrupt-enable flag the way a
// local APIC does: an interrupt raised while the flag is clear stays pending
// and fires as soon as the flag is set again. Handler entry clears the flag
// and handler exit restores it, so a handler never observes itself
// interruptible.
package machine

import (
	"context"
	"errors"
	"sync"
	"time"

	"fortio.org/safecast"
)

// DefaultHz is the periodic interrupt rate used when none is configured.
// Matches the RTC periodic interrupt default (one tick every ~976us).
const DefaultHz = 1024

// Machine is the simulated CPU and interrupt controller.
//
// Context contract: DisableInterrupts, RestoreInterrupts, Halt and
// EnableAndHalt are task-context operations. The registered timer handler
// must never call them; it runs with interrupts cleared and must run to
// completion without blocking.
type Machine struct {
	hz      uint32
	handler func()

	mu         sync.Mutex
	cond       *sync.Cond
	enabled    bool
	inHandler  bool
	pending    bool
	stopped    bool
	deliveries uint64

	stopCh chan struct{}
}

// New constructs a machine with the given periodic interrupt rate. A rate of
// zero disables the background timer; interrupts then fire only through
// FireTimer. Interrupts start disabled, as at reset.
func New(hz uint32) *Machine {
	m := &Machine{hz: hz, stopCh: make(chan struct{})}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Hz returns the configured periodic interrupt rate.
func (m *Machine) Hz() uint32 {
	if m.hz == 0 {
		return DefaultHz
	}
	return m.hz
}

// Period returns the wall-clock duration of one timer period.
func (m *Machine) Period() time.Duration {
	hz, err := safecast.Conv[int64](m.Hz())
	if err != nil || hz <= 0 {
		hz = DefaultHz
	}
	return time.Second / time.Duration(hz)
}

// SetTimerHandler registers the function invoked once per timer period.
// Must be called before Start.
func (m *Machine) SetTimerHandler(fn func()) {
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()
}

// InterruptsEnabled reports the state of the interrupt-enable flag.
func (m *Machine) InterruptsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// DisableInterrupts clears the interrupt-enable flag and returns its prior
// state. It waits out any in-flight handler first, so code between a
// successful DisableInterrupts and the matching RestoreInterrupts can never
// overlap the timer handler.
func (m *Machine) DisableInterrupts() bool {
	m.mu.Lock()
	for m.inHandler {
		m.cond.Wait()
	}
	prior := m.enabled
	m.enabled = false
	m.mu.Unlock()
	return prior
}

// RestoreInterrupts sets the interrupt-enable flag back to a state previously
// returned by DisableInterrupts. An interrupt that went pending while the
// flag was clear is delivered immediately, on the calling goroutine.
func (m *Machine) RestoreInterrupts(prior bool) {
	m.mu.Lock()
	m.enabled = prior
	fire := prior && m.pending && !m.stopped
	if fire {
		m.pending = false
	}
	m.mu.Unlock()
	if fire {
		m.FireTimer()
	}
}

// EnableInterrupts sets the interrupt-enable flag.
func (m *Machine) EnableInterrupts() {
	m.RestoreInterrupts(true)
}

// Halt blocks until the next timer interrupt is delivered or the machine
// stops. Interrupts must be enabled by the caller; halting with the flag
// clear sleeps until Stop, exactly like hlt with IF=0.
func (m *Machine) Halt() {
	m.mu.Lock()
	d0 := m.deliveries
	for m.deliveries == d0 && !m.stopped {
		m.cond.Wait()
	}
	m.mu.Unlock()
}

// EnableAndHalt atomically sets the interrupt-enable flag and halts. An
// interrupt that went pending while the flag was clear ends the halt
// immediately, which is what closes the check-then-sleep race: callers check
// their wakeup condition with interrupts disabled, then call EnableAndHalt,
// and no interrupt delivered in between can be lost.
func (m *Machine) EnableAndHalt() {
	m.mu.Lock()
	m.enabled = true
	if m.pending && !m.stopped {
		m.pending = false
		m.mu.Unlock()
		m.FireTimer()
		return
	}
	d0 := m.deliveries
	for m.deliveries == d0 && !m.stopped {
		m.cond.Wait()
	}
	m.mu.Unlock()
}

// FireTimer delivers one timer interrupt. If interrupts are disabled the
// interrupt goes pending instead. Safe to call from any goroutine; the
// registered handler runs on the calling goroutine with the interrupt-enable
// flag cleared for its duration.
func (m *Machine) FireTimer() {
	m.mu.Lock()
	for m.inHandler {
		m.cond.Wait()
	}
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if !m.enabled {
		m.pending = true
		m.mu.Unlock()
		return
	}
	handler := m.handler
	m.enabled = false
	m.inHandler = true
	m.mu.Unlock()

	if handler != nil {
		handler()
	}

	m.mu.Lock()
	m.inHandler = false
	m.enabled = true
	m.deliveries++
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Deliveries returns the number of timer interrupts delivered so far.
func (m *Machine) Deliveries() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveries
}

// Start launches the periodic delivery loop. It returns once the loop is
// running; delivery continues until ctx is cancelled or Stop is called.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.handler == nil {
		m.mu.Unlock()
		return errors.New("machine: no timer handler registered")
	}
	if m.stopped {
		m.mu.Unlock()
		return errors.New("machine: already stopped")
	}
	m.mu.Unlock()

	if m.hz == 0 {
		return nil // manual delivery only
	}

	ticker := time.NewTicker(m.Period())
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.FireTimer()
			}
		}
	}()
	return nil
}

// Stop halts delivery and releases anyone blocked in Halt or EnableAndHalt.
func (m *Machine) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.stopCh)
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Stopped reports whether Stop has been called.
func (m *Machine) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
