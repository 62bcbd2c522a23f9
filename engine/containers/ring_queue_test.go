package containers

import (
	"errors"
	"testing"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[int](3)

	for i := 1; i <= 3; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if !rq.IsFull() {
		t.Fatal("queue not full after filling to capacity")
	}
	for i := 1; i <= 3; i++ {
		got, err := rq.Dequeue()
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if got != i {
			t.Fatalf("dequeue = %d, want %d", got, i)
		}
	}
	if !rq.IsEmpty() {
		t.Error("queue not empty after draining")
	}
}

func TestRingQueueWraparound(t *testing.T) {
	rq := NewRingQueue[int](2)

	// Cycle through the backing array several times.
	for i := 0; i < 10; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		got, err := rq.Dequeue()
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if got != i {
			t.Fatalf("dequeue = %d, want %d", got, i)
		}
	}
}

func TestRingQueueBounds(t *testing.T) {
	rq := NewRingQueue[string](1)

	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("dequeue from empty = %v, want ErrQueueEmpty", err)
	}
	if err := rq.Enqueue("a"); err != nil {
		t.Fatal(err)
	}
	if err := rq.Enqueue("b"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("enqueue into full = %v, want ErrQueueFull", err)
	}
	if got, err := rq.Peek(); err != nil || got != "a" {
		t.Errorf("peek = %q, %v", got, err)
	}
	if rq.Len() != 1 {
		t.Errorf("len = %d, want 1", rq.Len())
	}
}
