// Package bridge implements the per-node workers that connect the UI
// process to the external dataflow engine. Each bridge owns one worker
// goroutine, a bounded command queue for outbound traffic, and writes its
// results (chat text, audio, logs, connection status) directly into the
// shared state store.
//
// The kind set is closed: one handler per widget node kind, all dispatched
// through the same connect/disconnect/send/state surface.
package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxmill/flowbridge/internal/data"
	"github.com/voxmill/flowbridge/internal/dataflow"
	"github.com/voxmill/flowbridge/internal/engine"
	"github.com/voxmill/flowbridge/internal/errors"
	"github.com/voxmill/flowbridge/internal/event"
	"github.com/voxmill/flowbridge/internal/logging"
	"github.com/voxmill/flowbridge/internal/state"
)

// State is the connection state of a bridge, owned by its worker goroutine.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// Kind identifies the widget node kind a bridge serves.
type Kind int

const (
	KindAudioPlayer Kind = iota
	KindSystemLog
	KindPromptInput
	KindMicInput
	KindCastController
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindAudioPlayer:
		return "audio-player"
	case KindSystemLog:
		return "system-log"
	case KindPromptInput:
		return "prompt-input"
	case KindMicInput:
		return "mic-input"
	case KindCastController:
		return "cast-controller"
	default:
		return "unknown"
	}
}

// KindForNodeType maps a discovered widget node type to its bridge kind.
func KindForNodeType(t dataflow.NodeType) (Kind, bool) {
	switch t {
	case dataflow.NodeAudioPlayer:
		return KindAudioPlayer, true
	case dataflow.NodeSystemLog:
		return KindSystemLog, true
	case dataflow.NodePromptInput:
		return KindPromptInput, true
	case dataflow.NodeMicInput:
		return KindMicInput, true
	case dataflow.NodeCastController:
		return KindCastController, true
	default:
		return 0, false
	}
}

// command is one outbound unit queued by Send.
type command struct {
	outputID string
	payload  data.Payload
}

// handler is the per-kind behavior behind the shared worker loop.
type handler interface {
	// input processes one inbound event from the engine.
	input(conn engine.NodeConn, ev engine.Event)

	// command forwards one queued outbound command to the engine.
	command(conn engine.NodeConn, cmd command)
}

// Bridge is one widget node's connection to the engine.
type Bridge struct {
	kind   Kind
	nodeID string
	shared *state.Shared
	logger *logging.Logger
	cfg    config

	st atomic.Int32

	mu       sync.Mutex
	commands chan command
	stop     chan struct{}
	done     chan struct{}
}

// New creates a bridge of the given kind for a node id. The shared state
// must be the dispatcher's store; nil panics early to surface wiring bugs.
func New(kind Kind, nodeID string, shared *state.Shared, opts ...Option) *Bridge {
	if shared == nil {
		panic("bridge: shared state must not be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bridge{
		kind:   kind,
		nodeID: nodeID,
		shared: shared,
		logger: cfg.logger.WithNode(nodeID),
		cfg:    cfg,
	}
}

// NodeID returns the graph node id this bridge serves.
func (b *Bridge) NodeID() string { return b.nodeID }

// Kind returns the bridge kind.
func (b *Bridge) Kind() Kind { return b.kind }

// State returns the current connection state.
func (b *Bridge) State() State { return State(b.st.Load()) }

func (b *Bridge) setState(s State) { b.st.Store(int32(s)) }

// Connect spawns the worker goroutine and waits a short bounded interval
// for the initial attach attempt to resolve. Success is not guaranteed when
// Connect returns nil; callers must check State. Fails with
// ErrAlreadyConnected unless the bridge is disconnected (a bridge left in
// the error state may be reconnected; its previous worker has exited).
func (b *Bridge) Connect() error {
	b.mu.Lock()
	switch b.State() {
	case Disconnected, Failed:
		// proceed
	default:
		b.mu.Unlock()
		return errors.ErrAlreadyConnected
	}

	b.setState(Connecting)
	b.commands = make(chan command, b.cfg.queueSize)
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	dialed := make(chan struct{})

	h := b.newHandler()
	go b.run(h, b.commands, b.stop, b.done, dialed)
	b.mu.Unlock()

	select {
	case <-dialed:
	case <-time.After(b.cfg.connectWait):
	}
	return nil
}

// Disconnect signals the worker to stop and joins it with a bounded
// timeout. If the worker does not exit in time it is abandoned, not killed:
// it will still exit at its next loop iteration, but its resources are not
// reclaimed synchronously. The worker owns the terminal state either way;
// an abandoned worker that later fails still lands in the error state.
func (b *Bridge) Disconnect() error {
	b.mu.Lock()
	stop, done := b.stop, b.done
	b.stop = nil
	b.mu.Unlock()

	if stop == nil {
		b.setState(Disconnected)
		return nil
	}
	close(stop)

	select {
	case <-done:
		// The worker's exit path has already recorded the final state.
	case <-time.After(b.cfg.joinTimeout):
		b.logger.Warn("bridge worker did not exit in time, abandoning",
			"timeout", b.cfg.joinTimeout)
		// Flip only a still-live connection to disconnected. The abandoned
		// worker may yet fail, and that failure must not be masked.
		b.st.CompareAndSwap(int32(Connected), int32(Disconnected))
	}
	return nil
}

// Send enqueues outbound data for the worker to forward. Fails with
// ErrNotConnected when no worker is connected, and with
// ErrCommandQueueClosed when the queue is full because the worker stopped
// draining it.
func (b *Bridge) Send(outputID string, payload data.Payload) error {
	if b.State() != Connected {
		return errors.ErrNotConnected
	}
	b.mu.Lock()
	commands := b.commands
	b.mu.Unlock()
	if commands == nil {
		return errors.ErrNotConnected
	}

	select {
	case commands <- command{outputID: outputID, payload: payload}:
		return nil
	default:
		return errors.ErrCommandQueueClosed
	}
}

// newHandler builds the kind-specific behavior. The kind set is closed, so
// an unknown kind is a programming error.
func (b *Bridge) newHandler() handler {
	switch b.kind {
	case KindAudioPlayer:
		return newAudioHandler(b)
	case KindSystemLog:
		return newSystemLogHandler(b)
	case KindPromptInput:
		return newPromptHandler(b)
	case KindMicInput:
		return newMicHandler(b)
	case KindCastController:
		return newCastHandler(b)
	default:
		panic("bridge: unknown kind")
	}
}

// run is the worker loop. Each iteration probes the stop signal, drains
// queued outbound commands, then waits for one inbound event with a short
// timeout so the stop signal is observed promptly. Inbound events are
// processed strictly in arrival order.
func (b *Bridge) run(h handler, commands chan command, stop, done, dialed chan struct{}) {
	defer close(done)

	conn, err := b.cfg.dial(b.nodeID)
	close(dialed)
	if err != nil {
		b.fail("attach failed", err)
		return
	}
	defer conn.Close()

	b.setState(Connected)
	b.shared.AddBridge(b.nodeID)
	b.logger.Info("bridge connected", "kind", b.kind.String())

	defer func() {
		b.shared.RemoveBridge(b.nodeID)
		if b.State() != Failed {
			b.setState(Disconnected)
		}
		b.logger.Info("bridge worker exited")
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		for {
			select {
			case cmd := <-commands:
				h.command(conn, cmd)
				continue
			default:
			}
			break
		}

		ev, ok, err := conn.Recv(b.cfg.recvTimeout)
		if err != nil {
			b.fail("connection lost", err)
			return
		}
		if !ok {
			continue
		}
		if ev.Stop {
			b.logger.Info("engine requested stop")
			return
		}
		h.input(conn, ev)
	}
}

// fail records an unrecoverable worker failure: bridge state, shared
// status, and a fatal notification on the control channel.
func (b *Bridge) fail(msg string, err error) {
	b.setState(Failed)
	full := msg + ": " + err.Error()
	b.shared.SetError(b.nodeID + ": " + full)
	if b.cfg.notifier != nil {
		b.cfg.notifier.Publish(event.NewBridgeFatal(b.nodeID, full))
	}
	b.logger.Error("bridge failed", "reason", msg, "error", err)
}
