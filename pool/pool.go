// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package pool provides a small generic object pool used to recycle
// per-renderable records on the hot frame path.
package pool

import "sync"

// Pool recycles values of type T.
// After warmup, allocations on the frame path are minimized by reusing
// previously released values.
//
// Usage:
//
//	p := pool.New(newEntry, resetEntry)
//	e := p.Get()
//	defer p.Put(e)
//	// use e...
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// New creates a pool that allocates fresh values with newFn and restores
// recycled values with reset before handing them out again.
// The reset function may be nil if values need no cleanup.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return newFn()
			},
		},
		reset: reset,
	}
}

// Get retrieves a value from the pool.
// Recycled values are reset and ready for use.
func (p *Pool[T]) Get() T {
	v := p.pool.Get().(T)
	if p.reset != nil {
		p.reset(v)
	}
	return v
}

// Put returns a value to the pool for reuse.
func (p *Pool[T]) Put(v T) {
	p.pool.Put(v)
}

// Warmup pre-allocates count values to avoid allocation during critical
// paths. Call this during initialization if allocation-free operation is
// required.
func (p *Pool[T]) Warmup(count int) {
	values := make([]T, count)
	for i := 0; i < count; i++ {
		values[i] = p.Get()
	}
	for i := 0; i < count; i++ {
		p.Put(values[i])
	}
}
