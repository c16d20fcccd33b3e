package event

import "sync/atomic"

// DefaultNotifierCapacity bounds the control channel. Lifecycle events are
// rare; a small buffer absorbs a burst during teardown.
const DefaultNotifierCapacity = 32

// Notifier is a bounded, non-blocking publication channel for control
// events. Publish never blocks a worker: when the buffer is full the event
// is dropped and counted, which is acceptable for notifications whose
// ground truth also lives in shared state.
type Notifier struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewNotifier creates a Notifier. capacity <= 0 uses
// DefaultNotifierCapacity.
func NewNotifier(capacity int) *Notifier {
	if capacity <= 0 {
		capacity = DefaultNotifierCapacity
	}
	return &Notifier{ch: make(chan Event, capacity)}
}

// Publish enqueues an event without blocking. Returns false if the event
// was dropped because the buffer was full.
func (n *Notifier) Publish(e Event) bool {
	select {
	case n.ch <- e:
		return true
	default:
		n.dropped.Add(1)
		return false
	}
}

// Events returns the receive side of the channel. The UI selects on it or
// polls with a default case.
func (n *Notifier) Events() <-chan Event { return n.ch }

// Dropped returns how many events were discarded due to a full buffer.
func (n *Notifier) Dropped() uint64 { return n.dropped.Load() }
