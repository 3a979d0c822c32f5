package queue

import (
	"testing"
	"time"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(4)
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	if got := q.Dequeue(); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
	if got := q.Dequeue(); got != 2 {
		t.Fatalf("got %v, want 2", got)
	}
	if got := q.Dequeue(); got != 3 {
		t.Fatalf("got %v, want 3", got)
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(1)
	done := make(chan Registration, 1)
	go func() {
		done <- q.Dequeue()
	}()

	select {
	case <-done:
		t.Fatal("dequeue returned before any enqueue")
	case <-time.After(50 * time.Millisecond):
	}

	q.Enqueue("x")
	select {
	case got := <-done:
		if got != "x" {
			t.Fatalf("got %v, want x", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue never unblocked after enqueue")
	}
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	q := New(2)
	q.Enqueue("a")
	q.Enqueue("b")

	done := make(chan struct{})
	go func() {
		q.Enqueue("c")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("enqueue returned while queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	q.Dequeue()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue never unblocked after a dequeue freed space")
	}
}

func TestLenAndCap(t *testing.T) {
	q := New(3)
	if q.Cap() != 3 {
		t.Fatalf("cap = %d, want 3", q.Cap())
	}
	q.Enqueue(1)
	q.Enqueue(2)
	if q.Len() != 2 {
		t.Fatalf("len = %d, want 2", q.Len())
	}
}
