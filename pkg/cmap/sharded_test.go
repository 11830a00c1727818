package cmap

import (
	"fmt"
	"sync"
	"testing"
)

func TestMap_Basic(t *testing.T) {
	m := New[string, int]()

	if _, ok := m.Get("a"); ok {
		t.Fatal("Get on empty map found a value")
	}
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 3)

	if v, ok := m.Get("a"); !ok || v != 3 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if !m.Has("b") || m.Has("c") {
		t.Error("Has() mismatch")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Delete("a")
	m.Delete("missing")
	if m.Has("a") || m.Count() != 1 {
		t.Errorf("after Delete: Count() = %d", m.Count())
	}

	m.Clear()
	if m.Count() != 0 {
		t.Errorf("after Clear: Count() = %d", m.Count())
	}
}

func TestNewWithShards_RoundsUp(t *testing.T) {
	tests := map[int]int{0: DefaultShardCount, -3: DefaultShardCount, 1: 1, 3: 4, 16: 16, 17: 32}
	for in, want := range tests {
		if got := NewWithShards[int, int](in).ShardCount(); got != want {
			t.Errorf("NewWithShards(%d).ShardCount() = %d, want %d", in, got, want)
		}
	}
}

func TestMap_Range(t *testing.T) {
	m := NewWithShards[uint64, string](4)
	for i := uint64(0); i < 100; i++ {
		m.Set(i, fmt.Sprint(i))
	}

	seen := make(map[uint64]bool)
	m.Range(func(k uint64, v string) bool {
		if v != fmt.Sprint(k) {
			t.Errorf("Range(%d) = %q", k, v)
		}
		seen[k] = true
		return true
	})
	if len(seen) != 100 {
		t.Errorf("Range visited %d entries, want 100", len(seen))
	}

	visits := 0
	m.Range(func(uint64, string) bool {
		visits++
		return visits < 5
	})
	if visits != 5 {
		t.Errorf("Range after stop visited %d entries, want 5", visits)
	}
}

func TestMap_RangeMayDelete(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 50; i++ {
		m.Set(i, i)
	}
	m.Range(func(k, _ int) bool {
		m.Delete(k)
		return true
	})
	if m.Count() != 0 {
		t.Errorf("Count() = %d after deleting in Range", m.Count())
	}
}

func TestMap_Concurrent(t *testing.T) {
	m := New[int, int]()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				k := w*1000 + i
				m.Set(k, i)
				if _, ok := m.Get(k); !ok {
					t.Errorf("Get(%d) missing after Set", k)
				}
				if i%2 == 0 {
					m.Delete(k)
				}
			}
		}(w)
	}
	wg.Wait()

	if got := m.Count(); got != 8*250 {
		t.Errorf("Count() = %d, want %d", got, 8*250)
	}
}
