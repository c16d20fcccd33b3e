package state

import (
	"sync"
	"sync/atomic"

	"github.com/voxmill/flowbridge/internal/data"
)

// DefaultMaxAudioChunks bounds the pending-playback queue. At typical TTS
// segment sizes this is several seconds of audio; older chunks are dropped
// first on overflow.
const DefaultMaxAudioChunks = 64

// AudioState is the handoff queue between bridge workers and the audio
// playback layer, plus the two interrupt signals:
//
//   - shouldClear: tells the UI-side buffer to purge on its next poll.
//   - force-mute: an atomic flag registered by the realtime audio consumer
//     and read before every buffer read, so playback goes silent on the next
//     callback frame without waiting for a poll. Set-only from this side,
//     lock-free on the realtime read path.
type AudioState struct {
	mu          sync.Mutex
	chunks      []data.AudioChunk
	max         int
	dropped     uint64
	shouldClear atomic.Bool
	forceMute   atomic.Pointer[atomic.Bool]
}

// NewAudioState creates an AudioState bounded to max chunks. max <= 0 uses
// DefaultMaxAudioChunks.
func NewAudioState(max int) *AudioState {
	if max <= 0 {
		max = DefaultMaxAudioChunks
	}
	return &AudioState{max: max}
}

// RegisterForceMute installs the flag shared with the realtime audio
// consumer. The consumer owns the flag and reads it before every buffer
// read; this side only ever stores into it.
func (a *AudioState) RegisterForceMute(flag *atomic.Bool) {
	a.forceMute.Store(flag)
}

// ForceMuted reports the current value of the registered flag, or false if
// none is registered.
func (a *AudioState) ForceMuted() bool {
	if f := a.forceMute.Load(); f != nil {
		return f.Load()
	}
	return false
}

// ReleaseMute clears the force-mute flag. The UI calls this once fresh
// audio is ready to play after a clear.
func (a *AudioState) ReleaseMute() {
	if f := a.forceMute.Load(); f != nil {
		f.Store(false)
	}
}

// Push enqueues a chunk, dropping the oldest when the bound is exceeded.
func (a *AudioState) Push(chunk data.AudioChunk) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = append(a.chunks, chunk)
	if len(a.chunks) > a.max {
		over := len(a.chunks) - a.max
		a.chunks = a.chunks[over:]
		a.dropped += uint64(over)
	}
}

// Drain atomically empties the queue and returns the pending chunks in
// arrival order. Returns nil when empty.
func (a *AudioState) Drain() []data.AudioChunk {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.chunks) == 0 {
		return nil
	}
	out := a.chunks
	a.chunks = nil
	return out
}

// Len returns the number of queued chunks.
func (a *AudioState) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.chunks)
}

// Dropped returns how many chunks were discarded to honor the bound.
func (a *AudioState) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// SignalClear marks the UI-side buffer for purge and flips force-mute to
// true. Called from bridge workers on an interrupt; must stay lock-minimal
// because the realtime callback polls the flag concurrently. The queued
// chunks themselves are dropped too, so the next Drain returns only audio
// that arrived after the interrupt.
func (a *AudioState) SignalClear() {
	if f := a.forceMute.Load(); f != nil {
		f.Store(true)
	}
	a.shouldClear.Store(true)
	a.mu.Lock()
	a.chunks = nil
	a.mu.Unlock()
}

// ConsumeClear reports whether a clear was signaled since the last call and
// resets the flag.
func (a *AudioState) ConsumeClear() bool {
	return a.shouldClear.Swap(false)
}
