package sched

import (
	"sync"
	"testing"
)

func TestQueueFIFO(t *testing.T) {
	var q mpscQueue[int]
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	for want := 0; want < 5; want++ {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("Pop = %d,%v; want %d,true", got, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("Pop on empty queue reported a value")
	}
}

func TestQueueInterleavedPushPop(t *testing.T) {
	var q mpscQueue[int]
	q.Push(1)
	q.Push(2)
	if v, _ := q.Pop(); v != 1 {
		t.Fatalf("first pop = %d, want 1", v)
	}
	q.Push(3)
	// 2 was already drained into the consumer batch; it stays ahead of 3.
	if v, _ := q.Pop(); v != 2 {
		t.Fatalf("second pop = %d, want 2", v)
	}
	if v, _ := q.Pop(); v != 3 {
		t.Fatalf("third pop = %d, want 3", v)
	}
}

func TestQueueEmpty(t *testing.T) {
	var q mpscQueue[int]
	if !q.Empty() {
		t.Fatalf("fresh queue not empty")
	}
	q.Push(7)
	if q.Empty() {
		t.Fatalf("queue with an unconsumed push reported empty")
	}
	q.Pop()
	if !q.Empty() {
		t.Fatalf("drained queue not empty")
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 1000

	var q mpscQueue[int]
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base + i)
			}
		}(p * perProducer)
	}
	wg.Wait()

	seen := make(map[int]bool, producers*perProducer)
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		if seen[v] {
			t.Fatalf("value %d popped twice", v)
		}
		seen[v] = true
	}
	if len(seen) != producers*perProducer {
		t.Fatalf("drained %d values, want %d", len(seen), producers*perProducer)
	}
}
