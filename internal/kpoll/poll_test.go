package kpoll

import "testing"

func TestYieldNowSuspendsExactlyOnce(t *testing.T) {
	woken := 0
	cx := NewContext(WakerFunc(func() { woken++ }))

	fut := YieldNow()
	if got := fut.Poll(cx); got != Pending {
		t.Fatalf("first poll: want pending, got %v", got)
	}
	if woken != 1 {
		t.Fatalf("first poll must self-wake once, got %d wakes", woken)
	}
	if got := fut.Poll(cx); got != Ready {
		t.Fatalf("second poll: want ready, got %v", got)
	}
	if woken != 1 {
		t.Fatalf("second poll must not wake, got %d wakes", woken)
	}
}

func TestFuncAdapter(t *testing.T) {
	calls := 0
	fut := Func(func(cx *Context) Poll {
		calls++
		if calls < 3 {
			cx.Waker().Wake()
			return Pending
		}
		return Ready
	})

	cx := NewContext(WakerFunc(func() {}))
	for i := 0; i < 2; i++ {
		if got := fut.Poll(cx); got != Pending {
			t.Fatalf("poll %d: want pending, got %v", i, got)
		}
	}
	if got := fut.Poll(cx); got != Ready {
		t.Fatalf("final poll: want ready, got %v", got)
	}
}

func TestNilContextWaker(t *testing.T) {
	var cx *Context
	if cx.Waker() != nil {
		t.Fatalf("nil context must yield nil waker")
	}
}

func TestPollString(t *testing.T) {
	if Pending.String() != "pending" || Ready.String() != "ready" {
		t.Fatalf("unexpected Poll strings: %q %q", Pending, Ready)
	}
}
