package main

import (
	"sync/atomic"
	"time"

	"nucleus/internal/kernel"
	"nucleus/internal/kpoll"
	"nucleus/internal/ksync"
	"nucleus/internal/ktime"
)

// demoShared is the payload contended over by the demo workers. holds is a
// deliberately non-atomic overlap detector: it can only exceed one if two
// guards ever exist at once.
type demoShared struct {
	total uint64
	holds int
}

type workerState uint8

const (
	stateLock workerState = iota
	stateSleep
)

// lockerWorker is the demo workload: acquire the shared mutex, bump the
// counter, release, sleep a few ticks, repeat. Written as the explicit
// state machine every suspended computation in this core is.
type lockerWorker struct {
	k          *kernel.Kernel
	shared     *ksync.Mutex[demoShared]
	iters      int
	sleepTicks int
	acquired   *atomic.Uint64

	state  workerState
	lockf  *ksync.LockFuture[demoShared]
	sleepf *ktime.SleepFuture
	round  int
}

func newLockerWorker(k *kernel.Kernel, shared *ksync.Mutex[demoShared], iters, sleepTicks int, acquired *atomic.Uint64) *lockerWorker {
	return &lockerWorker{
		k:          k,
		shared:     shared,
		iters:      iters,
		sleepTicks: sleepTicks,
		acquired:   acquired,
	}
}

func (w *lockerWorker) Poll(cx *kpoll.Context) kpoll.Poll {
	for {
		switch w.state {
		case stateLock:
			if w.lockf == nil {
				w.lockf = w.shared.Lock()
			}
			if w.lockf.Poll(cx) == kpoll.Pending {
				return kpoll.Pending
			}
			g := w.lockf.Guard()
			w.lockf = nil

			v := g.Get()
			v.holds++
			if v.holds > 1 {
				panic("demo: overlapping mutex guards")
			}
			v.total++
			v.holds--
			g.Unlock()

			w.acquired.Add(1)
			w.state = stateSleep

		case stateSleep:
			if w.sleepTicks <= 0 {
				w.round++
				if w.round >= w.iters {
					return kpoll.Ready
				}
				w.state = stateLock
				continue
			}
			if w.sleepf == nil {
				d := w.k.Machine().Period() * time.Duration(w.sleepTicks)
				w.sleepf = w.k.Sleep(d)
			}
			if w.sleepf.Poll(cx) == kpoll.Pending {
				return kpoll.Pending
			}
			w.sleepf = nil
			w.round++
			if w.round >= w.iters {
				return kpoll.Ready
			}
			w.state = stateLock
		}
	}
}
