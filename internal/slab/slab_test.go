package slab

import "testing"

func TestInsertGetRemove(t *testing.T) {
	s := New[string]()

	id1 := s.Insert("a")
	id2 := s.Insert("b")

	if v, ok := s.Get(id1); !ok || v != "a" {
		t.Fatalf("Get(id1) = %q, %v", v, ok)
	}
	if v, ok := s.Get(id2); !ok || v != "b" {
		t.Fatalf("Get(id2) = %q, %v", v, ok)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	if v, ok := s.Remove(id1); !ok || v != "a" {
		t.Fatalf("Remove(id1) = %q, %v", v, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if _, ok := s.Get(id1); ok {
		t.Fatalf("Get(id1) should fail after Remove")
	}
}

func TestFreeSlotReused(t *testing.T) {
	s := New[int]()
	id1 := s.Insert(1)
	s.Remove(id1)
	id2 := s.Insert(2)

	if id1 != id2 {
		t.Fatalf("expected freed slot to be reused: id1=%d id2=%d", id1, id2)
	}
}

func TestNoAliasingOfConcurrentlyLiveKeys(t *testing.T) {
	s := New[int]()
	ids := make(map[uint64]bool)
	for i := 0; i < 100; i++ {
		id := s.Insert(i)
		if ids[id] {
			t.Fatalf("id %d reused while still live", id)
		}
		ids[id] = true
	}
}

func TestEachVisitsOnlyOccupied(t *testing.T) {
	s := New[int]()
	a := s.Insert(1)
	_ = s.Insert(2)
	s.Remove(a)

	count := 0
	s.Each(func(id uint64, v int) {
		count++
		if v != 2 {
			t.Fatalf("unexpected value %d visited", v)
		}
	})
	if count != 1 {
		t.Fatalf("Each visited %d slots, want 1", count)
	}
}
