// Package sched implements the cooperative scheduler: heap-owned resumable
// tasks, the interrupt-safe ready queue, and the executor run loop that
// advances ready tasks and halts the core when there is nothing to do.
package sched

import (
	"sync/atomic"

	"nucleus/internal/kpoll"
)

// TaskID is an opaque, strictly increasing task identifier. IDs are issued
// by a single global counter and never reused.
type TaskID uint64

var nextTaskID atomic.Uint64

func newTaskID() TaskID {
	return TaskID(nextTaskID.Add(1))
}

// Task owns a boxed resumable computation plus its identity. At any instant
// a task lives in exactly one place: the executor's table, or nowhere while
// it is being advanced. That exclusivity is what makes a stale wakeup of
// its id a harmless skip instead of a double advancement.
type Task struct {
	id  TaskID
	fut kpoll.Future
}

// NewTask wraps a computation in a freshly identified task.
func NewTask(fut kpoll.Future) *Task {
	return &Task{id: newTaskID(), fut: fut}
}

// ID returns the task's identifier.
func (t *Task) ID() TaskID {
	return t.id
}

func (t *Task) poll(cx *kpoll.Context) kpoll.Poll {
	return t.fut.Poll(cx)
}
