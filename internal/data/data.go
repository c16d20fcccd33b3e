// Package data defines the value types exchanged between the engine-facing
// bridges and the shared state polled by the UI: audio chunks, chat
// messages, log entries, and control commands.
package data

import (
	"strings"
	"time"
)

// MessageRole identifies who produced a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ChatMessage is one entry in the conversation view.
//
// Streaming responses arrive as many messages sharing a SessionID with
// IsStreaming set; ChatState coalesces those into a single growing entry.
type ChatMessage struct {
	Content     string
	Sender      string
	Role        MessageRole
	Timestamp   time.Time
	IsStreaming bool
	SessionID   string
}

// AudioChunk is a block of PCM samples received from the engine, tagged with
// the participant that produced it and the conversational turn (question id)
// it belongs to. QuestionID is the correlation key for the interrupt
// protocol; it may be empty when the producing node does not tag audio.
type AudioChunk struct {
	Samples       []float32
	SampleRate    int
	Channels      int
	ParticipantID string
	QuestionID    string
}

// Duration returns the playback duration of the chunk.
func (c AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 || len(c.Samples) == 0 {
		return 0
	}
	frames := len(c.Samples)
	if c.Channels > 1 {
		frames /= c.Channels
	}
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// LogLevel is the severity of a LogEntry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the canonical upper-case name of the level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLogLevel maps a level name to a LogLevel. Unknown names default to
// LevelInfo, which matches how engine nodes report untagged output.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR", "FATAL":
		return LevelError
	default:
		return LevelInfo
	}
}

// LogEntry is one line in the aggregated system log.
type LogEntry struct {
	Level     LogLevel
	Message   string
	NodeID    string
	Timestamp time.Time
}

// ControlCommand is a command sent through a bridge's command queue toward
// the engine, for example a reset issued when a human interrupts playback.
type ControlCommand struct {
	// Command is the verb, e.g. "reset" or "mute".
	Command string
	// QuestionID, when set on a reset, requests a smart reset: buffered
	// audio is cleared and chunks are filtered until one tagged with this
	// id arrives.
	QuestionID string
}

// Payload is the generic outbound unit accepted by Bridge.Send: an
// arbitrary JSON-encodable value plus string metadata forwarded verbatim.
type Payload struct {
	Data     any
	Metadata map[string]string
}

// Now returns the current wall-clock time. Indirection exists so tests can
// pin timestamps.
var Now = time.Now
