package telephony

import "testing"

func TestEgressQueueDropOldest(t *testing.T) {
	q := NewEgressQueue(3)
	for i := 0; i < 3; i++ {
		if d := q.Push([]byte{byte(i)}); d != 0 {
			t.Fatalf("premature drop at %d", i)
		}
	}
	if d := q.Push([]byte{3}); d != 1 {
		t.Fatalf("dropped = %d, want 1", d)
	}
	frame, ok := q.Pop()
	if !ok || frame[0] != 1 {
		t.Fatalf("oldest after overflow = %v, want [1]", frame)
	}
	if q.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", q.Dropped())
	}
}

func TestEgressQueueFlush(t *testing.T) {
	q := NewEgressQueue(10)
	for i := 0; i < 4; i++ {
		q.Push([]byte{byte(i)})
	}
	if n := q.Flush(); n != 4 {
		t.Fatalf("Flush() = %d, want 4", n)
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty after flush")
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("Pop() after flush should report empty")
	}
}
