package sched

import "sync/atomic"

// mpscQueue is a lock-free multi-producer/single-consumer queue. Producers,
// including interrupt context, push onto an atomic intrusive stack; the
// single consumer drains the stack in one swap and reverses the batch to
// recover push order. Push never blocks and never takes a lock, which is
// the property interrupt context needs.
type mpscQueue[T any] struct {
	head atomic.Pointer[qnode[T]]
	out  []T // consumer-local, oldest first
}

type qnode[T any] struct {
	v    T
	next *qnode[T]
}

// Push enqueues v. Safe from any context.
func (q *mpscQueue[T]) Push(v T) {
	n := &qnode[T]{v: v}
	for {
		old := q.head.Load()
		n.next = old
		if q.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// Pop dequeues the oldest element. Single consumer only.
func (q *mpscQueue[T]) Pop() (T, bool) {
	if len(q.out) == 0 {
		q.refill()
	}
	if len(q.out) == 0 {
		var zero T
		return zero, false
	}
	v := q.out[len(q.out)-1]
	q.out = q.out[:len(q.out)-1]
	return v, true
}

// Empty reports whether the queue holds nothing. Single consumer only; a
// concurrent push immediately after can make the answer stale, which is why
// the idle path re-checks under disabled interrupts.
func (q *mpscQueue[T]) Empty() bool {
	return len(q.out) == 0 && q.head.Load() == nil
}

func (q *mpscQueue[T]) refill() {
	n := q.head.Swap(nil)
	if n == nil {
		return
	}
	// The chain is newest-first; appending in order leaves the oldest at
	// the tail, where Pop takes from.
	for ; n != nil; n = n.next {
		q.out = append(q.out, n.v)
	}
}
