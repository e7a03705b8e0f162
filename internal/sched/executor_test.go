package sched

import (
	"testing"

	"nucleus/internal/kpoll"
	"nucleus/internal/ksync"
	"nucleus/internal/trace"
)

// idleHardware satisfies Hardware for workloads that never go idle. Tests
// using it assert, by construction, that the run loop always finds work.
type idleHardware struct {
	halts int
}

func (h *idleHardware) DisableInterrupts() bool { return false }
func (h *idleHardware) RestoreInterrupts(bool)  {}
func (h *idleHardware) EnableAndHalt()          { h.halts++ }

func TestImmediateCompletionIsOnePoll(t *testing.T) {
	hw := &idleHardware{}
	ex := NewExecutor(hw, nil)

	polls := 0
	ex.Spawn(kpoll.Func(func(cx *kpoll.Context) kpoll.Poll {
		polls++
		return kpoll.Ready
	}))
	ex.RunUntilIdle()

	if polls != 1 {
		t.Fatalf("immediately ready task polled %d times, want 1", polls)
	}
	if ex.TableSize() != 0 {
		t.Fatalf("completed task left a table entry")
	}
	st := ex.Stats()
	if st.Completed != 1 || st.Live != 0 {
		t.Fatalf("stats after completion: %+v", st)
	}
}

func TestYieldingTaskResumes(t *testing.T) {
	ex := NewExecutor(&idleHardware{}, nil)

	polls := 0
	ex.Spawn(kpoll.Func(func(cx *kpoll.Context) kpoll.Poll {
		polls++
		if polls < 3 {
			cx.Waker().Wake()
			return kpoll.Pending
		}
		return kpoll.Ready
	}))
	ex.RunUntilIdle()

	if polls != 3 {
		t.Fatalf("task polled %d times, want 3", polls)
	}
}

func TestDuplicateWakeIsBenign(t *testing.T) {
	ex := NewExecutor(&idleHardware{}, nil)

	polls := 0
	ex.Spawn(kpoll.Func(func(cx *kpoll.Context) kpoll.Poll {
		polls++
		// Wake three times; only the first can resume us, the surplus must
		// be skipped without a second advancement.
		cx.Waker().Wake()
		cx.Waker().Wake()
		cx.Waker().Wake()
		if polls == 1 {
			return kpoll.Pending
		}
		return kpoll.Ready
	}))
	ex.RunUntilIdle()

	if polls != 2 {
		t.Fatalf("task polled %d times, want 2", polls)
	}
	st := ex.Stats()
	// Poll 1 leaves three queued wakes: one resumes, two go stale. Poll 2
	// completes and leaves three more, all stale.
	if st.StaleWakes != 5 {
		t.Fatalf("stale wakes = %d, want 5", st.StaleWakes)
	}
}

func TestWakeUnknownIDIsSkipped(t *testing.T) {
	ex := NewExecutor(&idleHardware{}, nil)
	ex.Wake(TaskID(1 << 40))
	ex.RunUntilIdle()

	if st := ex.Stats(); st.StaleWakes != 1 {
		t.Fatalf("unknown id produced %d stale wakes, want 1", st.StaleWakes)
	}
}

func TestStaleWakeTracesAtDebugOnly(t *testing.T) {
	countStale := func(ring *trace.RingTracer) int {
		n := 0
		for _, ev := range ring.Snapshot() {
			if ev.Name == "wake.stale" {
				n++
			}
		}
		return n
	}

	// Task level must stay silent about individual wakeups.
	ring := trace.NewRingTracer(16, trace.LevelTask)
	ex := NewExecutor(&idleHardware{}, ring)
	ex.Wake(TaskID(1 << 41))
	ex.RunUntilIdle()
	if got := countStale(ring); got != 0 {
		t.Fatalf("stale wake surfaced %d events at task level, want 0", got)
	}

	ring = trace.NewRingTracer(16, trace.LevelDebug)
	ex = NewExecutor(&idleHardware{}, ring)
	ex.Wake(TaskID(1 << 42))
	ex.RunUntilIdle()
	if got := countStale(ring); got != 1 {
		t.Fatalf("stale wake surfaced %d events at debug level, want 1", got)
	}
}

func TestSpawnedTasksInterleave(t *testing.T) {
	ex := NewExecutor(&idleHardware{}, nil)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		first := true
		ex.Spawn(kpoll.Func(func(cx *kpoll.Context) kpoll.Poll {
			order = append(order, i)
			if first {
				first = false
				cx.Waker().Wake()
				return kpoll.Pending
			}
			return kpoll.Ready
		}))
	}
	ex.RunUntilIdle()

	want := []int{0, 1, 2, 0, 1, 2}
	if len(order) != len(want) {
		t.Fatalf("poll order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("poll order %v, want %v", order, want)
		}
	}
}

// contender acquires the shared mutex, holds it across one yield, then
// releases. Holding across a suspension is what forces the other task down
// the waiter path.
type contender struct {
	shared *ksync.Mutex[int]
	rounds int

	lockf   *ksync.LockFuture[int]
	guard   *ksync.Guard[int]
	yielded bool
	done    int
}

func (c *contender) Poll(cx *kpoll.Context) kpoll.Poll {
	for {
		if c.guard == nil {
			if c.lockf == nil {
				c.lockf = c.shared.Lock()
			}
			if c.lockf.Poll(cx) == kpoll.Pending {
				return kpoll.Pending
			}
			c.guard = c.lockf.Guard()
			c.lockf = nil
			*c.guard.Get()++
			c.yielded = false
		}
		if !c.yielded {
			c.yielded = true
			cx.Waker().Wake()
			return kpoll.Pending
		}
		c.guard.Unlock()
		c.guard = nil
		c.done++
		if c.done >= c.rounds {
			return kpoll.Ready
		}
	}
}

func TestContendedMutexCountsEveryAcquisition(t *testing.T) {
	const rounds = 1000

	ex := NewExecutor(&idleHardware{}, nil)
	shared := ksync.NewMutex(0)

	a := &contender{shared: shared, rounds: rounds}
	b := &contender{shared: shared, rounds: rounds}
	ex.Spawn(a)
	ex.Spawn(b)
	ex.RunUntilIdle()

	g, ok := shared.TryLock()
	if !ok {
		t.Fatalf("mutex still held after both contenders finished")
	}
	if *g.Get() != 2*rounds {
		t.Fatalf("acquisitions = %d, want %d", *g.Get(), 2*rounds)
	}
	g.Unlock()

	if shared.LiveGuards() != 0 {
		t.Fatalf("guards outstanding after the run: %d", shared.LiveGuards())
	}
	if ex.TableSize() != 0 {
		t.Fatalf("tasks left in the table: %d", ex.TableSize())
	}
}
