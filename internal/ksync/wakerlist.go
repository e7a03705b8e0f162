package ksync

import (
	"sync"

	"nucleus/internal/kpoll"
)

// WakerList is a rendezvous point between one resource and the tasks waiting
// on it. Waiters register a waker through a keyed Handle right before
// suspending; the resource wakes at most one of them per state change.
//
// The list does not own the waiting tasks and guarantees no order among
// registrants. A notification is a hint, not a promise: woken tasks must
// re-check their condition and re-register if it still does not hold.
//
// Registration is a task-context operation. NotifyOne is safe from both task
// and interrupt context, concurrently with registration and with itself.
type WakerList struct {
	mu     sync.Mutex
	nextID uint64
	wakers map[uint64]kpoll.Waker
}

// Handle is a single registration slot in a WakerList. Each waiting
// computation holds its own handle and unregisters it when it stops waiting,
// whether it was woken or abandoned. This is what keeps an abandoned waiter
// from leaking a stale registration.
type Handle struct {
	id   uint64
	list *WakerList
}

// Handle issues a fresh registration slot. The slot holds nothing until
// Register is called on it.
func (l *WakerList) Handle() Handle {
	l.mu.Lock()
	id := l.nextID
	l.nextID++ // wraps; ids live far too briefly to collide
	l.mu.Unlock()
	return Handle{id: id, list: l}
}

// Register records the waker in the slot, replacing any previous one.
// Call it immediately before returning Pending.
func (h Handle) Register(w kpoll.Waker) {
	l := h.list
	l.mu.Lock()
	if l.wakers == nil {
		l.wakers = make(map[uint64]kpoll.Waker)
	}
	l.wakers[h.id] = w
	l.mu.Unlock()
}

// Unregister removes the slot's waker, if any. Idempotent.
func (h Handle) Unregister() {
	l := h.list
	l.mu.Lock()
	delete(l.wakers, h.id)
	l.mu.Unlock()
}

// NotifyOne removes and invokes at most one registered waker. Calling it
// with no registrants is a no-op. Waking one waiter rather than all bounds
// wakeup amplification; a waiter that loses the subsequent race simply
// re-registers.
func (l *WakerList) NotifyOne() {
	l.mu.Lock()
	var woken kpoll.Waker
	for id, w := range l.wakers {
		delete(l.wakers, id)
		woken = w
		break
	}
	l.mu.Unlock()
	if woken != nil {
		woken.Wake()
	}
}

// Len reports the number of registered wakers.
func (l *WakerList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.wakers)
}
