// Package collections provides generic data structures for efficient data processing.
package collections

import (
	"sync"
)

// SlicePool is a generic pool for slices of any type.
type SlicePool[T any] struct {
	pool       sync.Pool
	initialCap int
}

// NewSlicePool creates a new slice pool with the given initial capacity.
func NewSlicePool[T any](initialCap int) *SlicePool[T] {
	if initialCap <= 0 {
		initialCap = 256
	}
	return &SlicePool[T]{
		initialCap: initialCap,
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]T, 0, initialCap)
				return &s
			},
		},
	}
}

// Get gets a slice from the pool.
func (p *SlicePool[T]) Get() *[]T {
	return p.pool.Get().(*[]T)
}

// Put returns a slice to the pool after clearing it.
func (p *SlicePool[T]) Put(s *[]T) {
	*s = (*s)[:0]
	p.pool.Put(s)
}

// Uint64SlicePool is a pool for []uint64 slices, used by the reference graph
// consumer for the object-ID scratch slice it builds in Finish.
var Uint64SlicePool = NewSlicePool[uint64](256)

// GetUint64Slice gets a slice from the pool.
func GetUint64Slice() *[]uint64 {
	return Uint64SlicePool.Get()
}

// PutUint64Slice returns a slice to the pool after clearing it.
func PutUint64Slice(s *[]uint64) {
	Uint64SlicePool.Put(s)
}
