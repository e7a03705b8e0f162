package machine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testContext stands in for t.Context(), which needs Go 1.24.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func TestInterruptsStartDisabled(t *testing.T) {
	m := New(0)
	if m.InterruptsEnabled() {
		t.Fatalf("machine booted with interrupts enabled")
	}
}

func TestFireTimerRunsHandlerWhenEnabled(t *testing.T) {
	m := New(0)
	var fired atomic.Int64
	m.SetTimerHandler(func() { fired.Add(1) })
	m.EnableInterrupts()

	m.FireTimer()
	if fired.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", fired.Load())
	}
	if m.Deliveries() != 1 {
		t.Fatalf("deliveries = %d, want 1", m.Deliveries())
	}
}

func TestDisabledInterruptGoesPending(t *testing.T) {
	m := New(0)
	var fired atomic.Int64
	m.SetTimerHandler(func() { fired.Add(1) })

	prior := m.DisableInterrupts()
	if prior {
		t.Fatalf("prior state was enabled at reset")
	}
	m.FireTimer()
	m.FireTimer() // pending does not count, it latches
	if fired.Load() != 0 {
		t.Fatalf("handler ran with interrupts disabled")
	}

	m.RestoreInterrupts(true)
	if fired.Load() != 1 {
		t.Fatalf("pending interrupt delivered %d times on restore, want 1", fired.Load())
	}
}

func TestRestoreToDisabledKeepsPending(t *testing.T) {
	m := New(0)
	var fired atomic.Int64
	m.SetTimerHandler(func() { fired.Add(1) })

	prior := m.DisableInterrupts()
	m.FireTimer()
	m.RestoreInterrupts(prior) // prior == false, must not deliver
	if fired.Load() != 0 {
		t.Fatalf("restore to disabled delivered the pending interrupt")
	}

	m.EnableInterrupts()
	if fired.Load() != 1 {
		t.Fatalf("enable did not deliver the latched interrupt")
	}
}

func TestHandlerRunsWithInterruptsCleared(t *testing.T) {
	m := New(0)
	var sawEnabled atomic.Bool
	m.SetTimerHandler(func() {
		sawEnabled.Store(m.InterruptsEnabled())
	})
	m.EnableInterrupts()
	m.FireTimer()

	if sawEnabled.Load() {
		t.Fatalf("handler observed itself interruptible")
	}
	if !m.InterruptsEnabled() {
		t.Fatalf("handler exit did not restore the flag")
	}
}

func TestDisableInterruptsWaitsOutHandler(t *testing.T) {
	m := New(0)
	inHandler := make(chan struct{})
	release := make(chan struct{})
	var handlerDone atomic.Bool
	m.SetTimerHandler(func() {
		close(inHandler)
		<-release
		handlerDone.Store(true)
	})
	m.EnableInterrupts()

	go m.FireTimer()
	<-inHandler

	acquired := make(chan struct{})
	go func() {
		m.DisableInterrupts()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("DisableInterrupts returned while the handler was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-acquired
	if !handlerDone.Load() {
		t.Fatalf("DisableInterrupts returned before the handler finished")
	}
}

func TestEnableAndHaltConsumesPendingImmediately(t *testing.T) {
	// The check-then-sleep race closure: an interrupt latched while the
	// caller was checking its condition must end the halt at once.
	m := New(0)
	var fired atomic.Int64
	m.SetTimerHandler(func() { fired.Add(1) })

	m.DisableInterrupts()
	m.FireTimer() // latches

	done := make(chan struct{})
	go func() {
		m.EnableAndHalt()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("EnableAndHalt slept through a pending interrupt")
	}
	if fired.Load() != 1 {
		t.Fatalf("pending interrupt delivered %d times, want 1", fired.Load())
	}
}

func TestEnableAndHaltWakesOnDelivery(t *testing.T) {
	m := New(0)
	m.SetTimerHandler(func() {})
	m.EnableInterrupts()

	done := make(chan struct{})
	go func() {
		m.EnableAndHalt()
		close(done)
	}()

	// Give the halter time to park, then deliver.
	time.Sleep(10 * time.Millisecond)
	m.FireTimer()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("delivery did not end the halt")
	}
}

func TestStopReleasesHalters(t *testing.T) {
	m := New(0)
	m.SetTimerHandler(func() {})
	m.EnableInterrupts()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Halt()
		}()
	}
	time.Sleep(10 * time.Millisecond)
	m.Stop()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Stop left halters parked")
	}

	if !m.Stopped() {
		t.Fatalf("Stopped() false after Stop")
	}
	m.FireTimer() // no-op after stop, must not panic
}

func TestStartRequiresHandler(t *testing.T) {
	m := New(64)
	if err := m.Start(testContext(t)); err == nil {
		t.Fatalf("Start without a handler succeeded")
	}
}

func TestPeriod(t *testing.T) {
	m := New(1024)
	if got := m.Period(); got != time.Second/1024 {
		t.Fatalf("period = %v, want %v", got, time.Second/1024)
	}
	if New(0).Hz() != DefaultHz {
		t.Fatalf("zero hz did not report the default")
	}
}
