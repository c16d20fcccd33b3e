package state

import (
	"sync"
	"sync/atomic"
)

// Dirty wraps a value with a changed-since-last-read flag. Writers call Set;
// the UI polling loop calls ReadIfDirty once per tick and skips work when
// nothing changed. The dirty flag is atomic so the common "nothing changed"
// poll never takes the lock.
type Dirty[T any] struct {
	mu    sync.RWMutex
	value T
	dirty atomic.Bool
}

// NewDirty creates a Dirty holding the initial value, marked clean.
func NewDirty[T any](initial T) *Dirty[T] {
	d := &Dirty[T]{}
	d.value = initial
	return d
}

// Set replaces the value and marks it dirty.
func (d *Dirty[T]) Set(v T) {
	d.mu.Lock()
	d.value = v
	d.mu.Unlock()
	d.dirty.Store(true)
}

// Update applies fn to a copy of the current value, stores the result, and
// marks it dirty. The lock is held across fn, so writers are serialized.
func (d *Dirty[T]) Update(fn func(T) T) {
	d.mu.Lock()
	d.value = fn(d.value)
	d.mu.Unlock()
	d.dirty.Store(true)
}

// Get returns the current value without touching the dirty flag.
func (d *Dirty[T]) Get() T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value
}

// ReadIfDirty returns the current value and clears the dirty flag if it was
// set; otherwise it reports false and the caller skips reprocessing. A write
// that lands between the flag swap and the value read is still observed on
// the next poll because Set raises the flag after storing the value.
func (d *Dirty[T]) ReadIfDirty() (T, bool) {
	if !d.dirty.Swap(false) {
		var zero T
		return zero, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value, true
}
