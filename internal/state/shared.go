// Package state implements the cross-goroutine store shared between bridge
// workers and the UI polling loop. Bridge workers write directly into it (no
// channels on the data path); the UI reads everything once per timer tick
// through dirty-tracked accessors, so unchanged data is never reprocessed.
package state

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/voxmill/flowbridge/internal/data"
)

// DefaultMaxLogEntries bounds the aggregated system log.
const DefaultMaxLogEntries = 1000

// Status mirrors the runtime health the UI shows: which bridges currently
// hold a live node connection, and the most recent error (empty when none).
type Status struct {
	ActiveBridges []string
	LastError     string
}

// LogStore is a capacity-bounded, dirty-tracked append log.
type LogStore struct {
	mu      sync.RWMutex
	entries []data.LogEntry
	max     int
	dirty   atomic.Bool
}

// NewLogStore creates a LogStore bounded to max entries. max <= 0 uses
// DefaultMaxLogEntries.
func NewLogStore(max int) *LogStore {
	if max <= 0 {
		max = DefaultMaxLogEntries
	}
	return &LogStore{max: max}
}

// Push appends an entry, evicting the oldest past capacity.
func (s *LogStore) Push(entry data.LogEntry) {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
	s.mu.Unlock()
	s.dirty.Store(true)
}

// Entries returns a copy of the stored log.
func (s *LogStore) Entries() []data.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]data.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ReadIfDirty returns a copy of the log and clears the dirty flag if it was
// set; otherwise reports false.
func (s *LogStore) ReadIfDirty() ([]data.LogEntry, bool) {
	if !s.dirty.Swap(false) {
		return nil, false
	}
	return s.Entries(), true
}

// Shared is the single cross-thread state object. It is created once per
// dispatcher and handed by pointer to every bridge; it outlives individual
// dataflow runs. Stop/start does not reset chat, audio, or logs; only the
// status bridge set is cleared explicitly around lifecycle transitions.
type Shared struct {
	Chat   *ChatState
	Audio  *AudioState
	Logs   *LogStore
	Status *Dirty[Status]
}

// NewShared creates a Shared with default bounds.
func NewShared() *Shared {
	return NewSharedWithBounds(0, 0, 0)
}

// NewSharedWithBounds creates a Shared with explicit capacities; zero values
// select the package defaults.
func NewSharedWithBounds(maxChat, maxAudio, maxLogs int) *Shared {
	return &Shared{
		Chat:   NewChatState(maxChat),
		Audio:  NewAudioState(maxAudio),
		Logs:   NewLogStore(maxLogs),
		Status: NewDirty(Status{}),
	}
}

// AddBridge records a node id as having a live connection.
func (s *Shared) AddBridge(nodeID string) {
	s.Status.Update(func(st Status) Status {
		if !slices.Contains(st.ActiveBridges, nodeID) {
			st.ActiveBridges = append(slices.Clone(st.ActiveBridges), nodeID)
		}
		return st
	})
}

// RemoveBridge removes a node id from the active set.
func (s *Shared) RemoveBridge(nodeID string) {
	s.Status.Update(func(st Status) Status {
		st.ActiveBridges = slices.DeleteFunc(slices.Clone(st.ActiveBridges), func(id string) bool {
			return id == nodeID
		})
		return st
	})
}

// SetError records the most recent error message shown in the status panel.
// An empty string clears it.
func (s *Shared) SetError(msg string) {
	s.Status.Update(func(st Status) Status {
		st.LastError = msg
		return st
	})
}

// ResetStatus clears the bridge set and last error. Called explicitly on
// dataflow start and stop.
func (s *Shared) ResetStatus() {
	s.Status.Set(Status{})
}
