// Package kernel wires the concurrency core together: one machine, one tick
// counter, one sleep service, one executor. The pieces are explicit
// singletons constructed here and passed by reference, not ambient globals,
// so tests can stand up as many isolated instances as they need.
package kernel

import (
	"context"
	"strconv"
	"time"

	"nucleus/internal/kpoll"
	"nucleus/internal/ksync"
	"nucleus/internal/ktime"
	"nucleus/internal/machine"
	"nucleus/internal/sched"
	"nucleus/internal/trace"
)

// Config selects the machine's timer rate and the tracer.
type Config struct {
	// Hz is the periodic interrupt rate. Zero disables the background
	// timer; ticks then come only from explicit FireTimer calls, while
	// the tick rate used for duration conversion stays machine.DefaultHz.
	Hz uint32
	// Tracer receives scheduler and timer events; nil means none.
	Tracer trace.Tracer
}

// Kernel owns the core's components and the timer interrupt wiring between
// them: every tick advances the monotonic counter, then cuts the sleep
// registry.
type Kernel struct {
	mach    *machine.Machine
	ticker  *ktime.Ticker
	sleeper *ktime.Sleeper
	exec    *sched.Executor
	tracer  trace.Tracer
}

// New builds a kernel. The machine starts with interrupts disabled and the
// timer idle; call Start to bring both up.
func New(cfg Config) *Kernel {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}

	// The machine keeps the raw rate: zero means manual delivery only.
	// The ticker always needs a real rate to convert durations.
	m := machine.New(cfg.Hz)
	ticker := ktime.NewTicker(m.Hz())
	k := &Kernel{
		mach:    m,
		ticker:  ticker,
		sleeper: ktime.NewSleeper(m, ticker),
		exec:    sched.NewExecutor(m, tracer),
		tracer:  tracer,
	}
	m.SetTimerHandler(k.onTick)
	return k
}

// onTick is the periodic timer interrupt handler: advance the counter, wake
// everything due. Interrupt context; must run to completion without
// blocking.
func (k *Kernel) onTick() {
	now := k.ticker.Advance()
	woken := k.sleeper.WakeSleepers(now)
	trace.Heartbeat(k.tracer, now)
	if woken > 0 {
		trace.Point(k.tracer, trace.ScopeWake, "tick.cut", strconv.Itoa(woken)+" woken", 0, now)
	}
}

// Start enables interrupts and launches periodic timer delivery.
func (k *Kernel) Start(ctx context.Context) error {
	trace.Point(k.tracer, trace.ScopeKernel, "kernel.start", "", 0, 0)
	k.mach.EnableInterrupts()
	return k.mach.Start(ctx)
}

// Shutdown stops timer delivery and releases any halted run loop.
func (k *Kernel) Shutdown() {
	trace.Point(k.tracer, trace.ScopeKernel, "kernel.shutdown", "", 0, k.ticker.Now())
	k.mach.Stop()
	_ = k.tracer.Flush()
}

// Spawn registers a computation with the executor. Not for interrupt
// context.
func (k *Kernel) Spawn(fut kpoll.Future) sched.TaskID {
	return k.exec.Spawn(fut)
}

// Sleep returns a future that completes once at least d worth of ticks have
// elapsed.
func (k *Kernel) Sleep(d time.Duration) *ktime.SleepFuture {
	return k.sleeper.Sleep(d)
}

// NewIntMutex builds an interrupt-safe mutex gated on this kernel's
// machine. Required for any state also touched from the timer handler.
func NewIntMutex[T any](k *Kernel, payload T) *ksync.IntMutex[T] {
	return ksync.NewIntMutex(k.mach, payload)
}

// Run enters the idle loop. Never returns.
func (k *Kernel) Run() {
	k.exec.Run()
}

// RunUntilIdle advances tasks until none are live. Harness entry point.
func (k *Kernel) RunUntilIdle() {
	k.exec.RunUntilIdle()
}

// Machine returns the simulated hardware.
func (k *Kernel) Machine() *machine.Machine { return k.mach }

// Ticker returns the monotonic tick counter.
func (k *Kernel) Ticker() *ktime.Ticker { return k.ticker }

// Sleeper returns the sleep timer service.
func (k *Kernel) Sleeper() *ktime.Sleeper { return k.sleeper }

// Executor returns the scheduler.
func (k *Kernel) Executor() *sched.Executor { return k.exec }
