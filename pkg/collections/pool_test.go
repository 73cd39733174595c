package collections

import (
	"testing"
)

func TestSlicePool(t *testing.T) {
	pool := NewSlicePool[int](256)

	s := pool.Get()
	if s == nil {
		t.Fatal("Get returned nil")
	}
	if cap(*s) < 256 {
		t.Errorf("Expected capacity >= 256, got %d", cap(*s))
	}

	*s = append(*s, 1, 2, 3)
	if len(*s) != 3 {
		t.Errorf("Expected length 3, got %d", len(*s))
	}

	pool.Put(s)

	s2 := pool.Get()
	if len(*s2) != 0 {
		t.Errorf("Expected length 0 after Put, got %d", len(*s2))
	}
}

func TestUint64SlicePool(t *testing.T) {
	s := GetUint64Slice()
	*s = append(*s, 1, 2, 3)
	if len(*s) != 3 {
		t.Errorf("Expected length 3, got %d", len(*s))
	}

	PutUint64Slice(s)

	s2 := GetUint64Slice()
	if len(*s2) != 0 {
		t.Errorf("Expected length 0 after Put, got %d", len(*s2))
	}
}

func BenchmarkUint64SlicePool_GetPut(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := GetUint64Slice()
		*s = append(*s, uint64(i))
		PutUint64Slice(s)
	}
}
