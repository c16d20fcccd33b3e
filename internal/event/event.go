// Package event defines the control-flow notifications that travel beside
// the data path: dataflow started/stopped and fatal bridge failures. Data
// (chat, audio, logs) never flows through here; it goes through the shared
// state store.
package event

import "time"

// Event is the interface all notifications implement.
type Event interface {
	// EventType returns a string identifier, convention "category.action".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// DataflowStarted is emitted after a run starts and its bridges connect.
type DataflowStarted struct {
	baseEvent
	RunID string
}

// NewDataflowStarted creates a DataflowStarted notification.
func NewDataflowStarted(runID string) DataflowStarted {
	return DataflowStarted{baseEvent: newBaseEvent("dataflow.started"), RunID: runID}
}

// DataflowStopped is emitted after a run stops, forced or graceful.
type DataflowStopped struct {
	baseEvent
	RunID  string
	Forced bool
}

// NewDataflowStopped creates a DataflowStopped notification.
func NewDataflowStopped(runID string, forced bool) DataflowStopped {
	return DataflowStopped{baseEvent: newBaseEvent("dataflow.stopped"), RunID: runID, Forced: forced}
}

// BridgeFatal is emitted when a bridge worker hits an unrecoverable
// failure (dial error, dead connection). The bridge is left in its Error
// state; the UI decides whether to retry.
type BridgeFatal struct {
	baseEvent
	NodeID string
	Reason string
}

// NewBridgeFatal creates a BridgeFatal notification.
func NewBridgeFatal(nodeID, reason string) BridgeFatal {
	return BridgeFatal{baseEvent: newBaseEvent("bridge.fatal"), NodeID: nodeID, Reason: reason}
}
