// Package errors provides centralized error definitions for the bridge
// runtime. It defines precondition sentinels, diagnostic error types that
// carry a node or run identifier, and classification helpers.
//
// Precondition errors (ErrAlreadyRunning, ErrNotRunning, ErrAlreadyConnected,
// ErrNotConnected) mean the caller invoked an operation from the wrong
// state; they are recovered by fixing state and retrying, never by the
// runtime itself.
//
// Diagnostic errors (StartError, StopError, ConnectError, SendError) wrap a
// cause and a human-readable message; they surface in status.last_error and
// the UI log.
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library helpers so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Precondition sentinels.
var (
	// ErrAlreadyRunning is returned by Controller.Start when a dataflow
	// run is already active.
	ErrAlreadyRunning = errors.New("dataflow already running")

	// ErrNotRunning is returned when an operation requires an active run.
	ErrNotRunning = errors.New("dataflow not running")

	// ErrAlreadyConnected is returned by Bridge.Connect when the bridge is
	// not in the Disconnected state.
	ErrAlreadyConnected = errors.New("bridge already connected")

	// ErrNotConnected is returned by Bridge.Send when the bridge has no
	// active worker.
	ErrNotConnected = errors.New("bridge not connected")

	// ErrCommandQueueClosed means the worker that drains a bridge's
	// command queue is gone. Fatal for that bridge.
	ErrCommandQueueClosed = errors.New("bridge command queue closed")
)

// StartError reports a failed dataflow start. Missing lists required
// environment keys that were absent, when that was the cause.
type StartError struct {
	Message string
	Missing []string
	Err     error
}

func (e *StartError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("start failed: %s: missing required env vars: %v", e.Message, e.Missing)
	}
	return fmt.Sprintf("start failed: %s", e.Message)
}

func (e *StartError) Unwrap() error { return e.Err }

// NewStartError creates a StartError wrapping an optional cause.
func NewStartError(message string, err error) *StartError {
	return &StartError{Message: message, Err: err}
}

// NewMissingEnvError creates a StartError for absent required env keys.
func NewMissingEnvError(missing []string) *StartError {
	return &StartError{Message: "environment incomplete", Missing: missing}
}

// StopError reports a failed dataflow stop invocation.
type StopError struct {
	RunID   string
	Message string
	Err     error
}

func (e *StopError) Error() string {
	return fmt.Sprintf("stop failed for run %s: %s", e.RunID, e.Message)
}

func (e *StopError) Unwrap() error { return e.Err }

// NewStopError creates a StopError for the given run.
func NewStopError(runID, message string, err error) *StopError {
	return &StopError{RunID: runID, Message: message, Err: err}
}

// ConnectError reports one or more bridge connection failures. NodeID is
// empty when the error aggregates several bridges.
type ConnectError struct {
	NodeID  string
	Message string
	Err     error
}

func (e *ConnectError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("connect failed for node %s: %s", e.NodeID, e.Message)
	}
	return fmt.Sprintf("connect failed: %s", e.Message)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// NewConnectError creates a ConnectError for a node.
func NewConnectError(nodeID, message string, err error) *ConnectError {
	return &ConnectError{NodeID: nodeID, Message: message, Err: err}
}

// SendError reports a failed outbound send on a node connection.
type SendError struct {
	NodeID   string
	OutputID string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed on node %s output %s: %v", e.NodeID, e.OutputID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// NewSendError creates a SendError for a node output.
func NewSendError(nodeID, outputID string, err error) *SendError {
	return &SendError{NodeID: nodeID, OutputID: outputID, Err: err}
}

// IsPrecondition reports whether err is a state-precondition violation that
// the caller can recover from by retrying after fixing state.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrAlreadyRunning) ||
		errors.Is(err, ErrNotRunning) ||
		errors.Is(err, ErrAlreadyConnected) ||
		errors.Is(err, ErrNotConnected)
}

// IsFatal reports whether err indicates the bridge it came from cannot
// continue (its command queue receiver is gone).
func IsFatal(err error) bool {
	return errors.Is(err, ErrCommandQueueClosed)
}
