package engine

import (
	"encoding/json"
	"strconv"
	"time"
)

// Event is one inbound message delivered to a dynamic node: the input id it
// arrived on, an opaque JSON payload, and string metadata. Stop is set when
// the engine asks the node to shut down.
type Event struct {
	ID       string
	Data     json.RawMessage
	Metadata map[string]string
	Stop     bool
}

// Meta returns the metadata value for key, or "" when absent.
func (e Event) Meta(key string) string {
	return e.Metadata[key]
}

// Text decodes the payload as a string. Payloads that are JSON arrays of
// strings are joined in order, matching how segmenter nodes batch text.
func (e Event) Text() string {
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		return s
	}
	var parts []string
	if err := json.Unmarshal(e.Data, &parts); err == nil {
		out := ""
		for _, p := range parts {
			out += p
		}
		return out
	}
	return ""
}

// Samples decodes the payload as PCM samples. Accepts a flat float array or
// a single-element array-of-arrays, which is how batching producers wrap
// audio.
func (e Event) Samples() []float32 {
	var flat []float32
	if err := json.Unmarshal(e.Data, &flat); err == nil && len(flat) > 0 {
		return flat
	}
	var nested [][]float32
	if err := json.Unmarshal(e.Data, &nested); err == nil && len(nested) > 0 {
		return nested[0]
	}
	return nil
}

// Float decodes the payload as a single number.
func (e Event) Float() (float64, bool) {
	var f float64
	if err := json.Unmarshal(e.Data, &f); err == nil {
		return f, true
	}
	var arr []float64
	if err := json.Unmarshal(e.Data, &arr); err == nil && len(arr) > 0 {
		return arr[0], true
	}
	return 0, false
}

// MetaInt returns an integer metadata value, or def when absent or
// malformed.
func (e Event) MetaInt(key string, def int) int {
	v, ok := e.Metadata[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// NodeConn is a live dynamic-node attachment to the engine. One connection
// belongs to exactly one bridge worker goroutine; implementations need not
// be safe for concurrent Recv.
type NodeConn interface {
	// Recv waits up to timeout for the next inbound event. The second
	// return is false on timeout (no event, not an error). A non-nil error
	// means the connection is unusable and the worker should exit.
	Recv(timeout time.Duration) (Event, bool, error)

	// Send emits an output toward the engine graph.
	Send(outputID string, metadata map[string]string, payload any) error

	// Close detaches the node.
	Close() error
}

// DialFunc opens a NodeConn for the given node id. Bridges hold one so
// tests can substitute fakes for the websocket transport.
type DialFunc func(nodeID string) (NodeConn, error)
