package sched

import (
	"sync/atomic"

	"nucleus/internal/kpoll"
	"nucleus/internal/ksync"
	"nucleus/internal/trace"
)

// Hardware is the slice of the machine the run loop needs for its idle
// sequence: the interrupt-disabled emptiness re-check and the atomic
// enable-and-halt that closes the check-then-sleep race.
type Hardware interface {
	DisableInterrupts() bool
	RestoreInterrupts(prior bool)
	EnableAndHalt()
}

// Executor is the scheduler. It owns the ready queue of task ids, the table
// of tasks that are not currently being advanced, and the spawn intake.
// The run loop is single-consumer; wakeups may be produced from any
// context, including the timer interrupt handler.
type Executor struct {
	ready  mpscQueue[TaskID]
	spawnq mpscQueue[*Task]
	table  *ksync.Mutex[map[TaskID]*liveTask]
	hw     Hardware
	tracer trace.Tracer

	live       atomic.Int64
	readyDepth atomic.Int64
	spawned    atomic.Uint64
	completed  atomic.Uint64
	polls      atomic.Uint64
	staleWakes atomic.Uint64
}

type liveTask struct {
	task  *Task
	waker kpoll.Waker
}

// NewExecutor builds an executor bound to the given hardware. A nil tracer
// means no tracing.
func NewExecutor(hw Hardware, tracer trace.Tracer) *Executor {
	if tracer == nil {
		tracer = trace.Nop
	}
	return &Executor{
		table:  ksync.NewMutex(make(map[TaskID]*liveTask)),
		hw:     hw,
		tracer: tracer,
	}
}

// Spawn registers a computation for execution and returns its id. Callable
// from any context that is not an interrupt handler.
func (e *Executor) Spawn(fut kpoll.Future) TaskID {
	t := NewTask(fut)
	e.live.Add(1)
	e.spawned.Add(1)
	e.spawnq.Push(t)
	trace.Point(e.tracer, trace.ScopeTask, "task.spawn", "", uint64(t.ID()), 0)
	return t.ID()
}

// Wake pushes a task id onto the ready queue. Safe from any context. Waking
// an id that is no longer in the table is a harmless no-op handled by the
// run loop.
func (e *Executor) Wake(id TaskID) {
	e.ready.Push(id)
	e.readyDepth.Add(1)
}

// taskWaker binds a task id to its executor; invoking it re-enqueues the id.
type taskWaker struct {
	id TaskID
	ex *Executor
}

func (w *taskWaker) Wake() {
	w.ex.Wake(w.id)
}

// Run is the kernel's idle loop. It advances ready tasks and halts the core
// between batches. It never returns.
func (e *Executor) Run() {
	trace.Point(e.tracer, trace.ScopeKernel, "executor.run", "", 0, 0)
	for {
		e.runReadyTasks()
		e.sleepIfIdle()
	}
}

// RunUntilIdle advances tasks until none are live, then returns. This is
// the entry point for harnesses that need the loop to end; the kernel
// proper uses Run.
func (e *Executor) RunUntilIdle() {
	for {
		e.runReadyTasks()
		if e.live.Load() == 0 {
			return
		}
		e.sleepIfIdle()
	}
}

// runReadyTasks drains the spawn intake into the table, then advances every
// ready task once.
func (e *Executor) runReadyTasks() {
	e.drainSpawned()

	for {
		id, ok := e.ready.Pop()
		if !ok {
			return
		}
		e.readyDepth.Add(-1)

		g := e.table.SpinLock()
		lt, present := (*g.Get())[id]
		if present {
			delete(*g.Get(), id)
		}
		g.Unlock()

		if !present {
			// The task already completed, or its wakeup raced with its own
			// completion. Benign; skip.
			e.staleWakes.Add(1)
			trace.Point(e.tracer, trace.ScopeWake, "wake.stale", "task woken more than necessary", uint64(id), 0)
			continue
		}

		e.polls.Add(1)
		cx := kpoll.NewContext(lt.waker)
		if lt.task.poll(cx) == kpoll.Ready {
			e.completed.Add(1)
			e.live.Add(-1)
			trace.Point(e.tracer, trace.ScopeTask, "task.done", "", uint64(id), 0)
			continue
		}

		// Pending: the task registered its waker with whatever it is
		// waiting on before yielding. Put it back so that wakeup can find
		// it.
		g = e.table.SpinLock()
		(*g.Get())[id] = lt
		g.Unlock()
	}
}

// drainSpawned moves newly spawned tasks into the table and marks them
// ready. Insert-then-enqueue under one lock acquisition, so a ready id
// always has a table entry by the time the single consumer can pop it.
func (e *Executor) drainSpawned() {
	g := e.table.SpinLock()
	for {
		t, ok := e.spawnq.Pop()
		if !ok {
			break
		}
		(*g.Get())[t.ID()] = &liveTask{task: t, waker: &taskWaker{id: t.ID(), ex: e}}
		e.ready.Push(t.ID())
		e.readyDepth.Add(1)
	}
	g.Unlock()
}

// sleepIfIdle halts the core when no work is pending. The emptiness check
// runs with interrupts disabled and the halt re-enables them atomically, so
// a wakeup delivered between check and halt ends the halt instead of being
// lost.
func (e *Executor) sleepIfIdle() {
	prior := e.hw.DisableInterrupts()
	if e.ready.Empty() && e.spawnq.Empty() {
		e.hw.EnableAndHalt()
		return
	}
	e.hw.RestoreInterrupts(prior)
}

// TableSize reports the number of tasks currently parked in the table.
func (e *Executor) TableSize() int {
	g := e.table.SpinLock()
	n := len(*g.Get())
	g.Unlock()
	return n
}

// Stats is a point-in-time snapshot of scheduler counters.
type Stats struct {
	Spawned    uint64
	Completed  uint64
	Polls      uint64
	StaleWakes uint64
	Live       int64
	ReadyDepth int64
}

// Stats returns a snapshot of the scheduler counters. Safe from any
// goroutine.
func (e *Executor) Stats() Stats {
	return Stats{
		Spawned:    e.spawned.Load(),
		Completed:  e.completed.Load(),
		Polls:      e.polls.Load(),
		StaleWakes: e.staleWakes.Load(),
		Live:       e.live.Load(),
		ReadyDepth: e.readyDepth.Load(),
	}
}
