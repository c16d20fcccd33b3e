package state

import (
	"sync"
	"sync/atomic"

	"github.com/voxmill/flowbridge/internal/data"
)

// DefaultMaxChatMessages bounds the conversation history kept in memory.
const DefaultMaxChatMessages = 500

// ChatState holds the ordered conversation, coalescing streaming chunks.
//
// Consecutive pushes that share a SessionID while the stored entry is still
// streaming grow that entry in place instead of appending; a push with
// IsStreaming=false (or a different SessionID) finalizes it. This keeps one
// visible message per conversational turn while tokens stream in.
type ChatState struct {
	mu       sync.RWMutex
	messages []data.ChatMessage
	max      int
	dirty    atomic.Bool
}

// NewChatState creates a ChatState bounded to max messages. max <= 0 uses
// DefaultMaxChatMessages.
func NewChatState(max int) *ChatState {
	if max <= 0 {
		max = DefaultMaxChatMessages
	}
	return &ChatState{max: max}
}

// Push appends or coalesces a message and marks the chat dirty.
func (c *ChatState) Push(msg data.ChatMessage) {
	c.mu.Lock()
	if n := len(c.messages); n > 0 {
		last := &c.messages[n-1]
		if last.IsStreaming && last.SessionID != "" && last.SessionID == msg.SessionID {
			last.Content += msg.Content
			last.IsStreaming = msg.IsStreaming
			last.Timestamp = msg.Timestamp
			c.mu.Unlock()
			c.dirty.Store(true)
			return
		}
	}
	c.messages = append(c.messages, msg)
	if len(c.messages) > c.max {
		c.messages = c.messages[len(c.messages)-c.max:]
	}
	c.mu.Unlock()
	c.dirty.Store(true)
}

// Messages returns a copy of the full conversation.
func (c *ChatState) Messages() []data.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]data.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of stored entries.
func (c *ChatState) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// ReadIfDirty returns a copy of the conversation and clears the dirty flag
// if it was set; otherwise reports false.
func (c *ChatState) ReadIfDirty() ([]data.ChatMessage, bool) {
	if !c.dirty.Swap(false) {
		return nil, false
	}
	return c.Messages(), true
}

// Clear removes all messages and marks the chat dirty so the UI repaints.
func (c *ChatState) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()
	c.dirty.Store(true)
}
