package queue

import "testing"

// TestRing_FIFOOrder verifies Push/Pop preserve insertion order.
func TestRing_FIFOOrder(t *testing.T) {
	r := NewRing[int]()
	for i := 0; i < 5; i++ {
		r.Push(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := r.Pop()
		if !ok {
			t.Fatalf("Pop() ok = false at i=%d", i)
		}
		if v != i {
			t.Fatalf("Pop() = %d, want %d", v, i)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatal("Pop() on empty ring should report ok = false")
	}
}

// TestRing_IsEmpty verifies IsEmpty tracks Push/Pop.
func TestRing_IsEmpty(t *testing.T) {
	r := NewRing[string]()
	if !r.IsEmpty() {
		t.Fatal("new ring should be empty")
	}
	r.Push("a")
	if r.IsEmpty() {
		t.Fatal("ring with one element should not be empty")
	}
	r.Pop()
	if !r.IsEmpty() {
		t.Fatal("ring should be empty after draining its only element")
	}
}

// TestRing_CompactsAfterDrain verifies the lazy shrink-on-drain path runs
// without losing any remaining elements.
func TestRing_CompactsAfterDrain(t *testing.T) {
	r := NewRing[int]()
	for i := 0; i < 200; i++ {
		r.Push(i)
	}
	for i := 0; i < 190; i++ {
		if _, ok := r.Pop(); !ok {
			t.Fatalf("Pop() ok = false at i=%d", i)
		}
	}
	if got := r.Len(); got != 10 {
		t.Fatalf("Len() = %d, want 10", got)
	}
	for i := 190; i < 200; i++ {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
}

// TestRing_Clear verifies Clear drops all queued elements.
func TestRing_Clear(t *testing.T) {
	r := NewRing[int]()
	r.Push(1)
	r.Push(2)
	r.Clear()
	if !r.IsEmpty() {
		t.Fatal("ring should be empty after Clear")
	}
}
