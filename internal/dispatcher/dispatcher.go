// Package dispatcher owns the set of widget bridges plus the lifecycle
// controller, creating, connecting, and tearing them down as a unit. The UI
// holds one Dispatcher, polls its shared state, and issues lifecycle
// commands through it.
package dispatcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/voxmill/flowbridge/internal/bridge"
	"github.com/voxmill/flowbridge/internal/controller"
	"github.com/voxmill/flowbridge/internal/dataflow"
	"github.com/voxmill/flowbridge/internal/errors"
	"github.com/voxmill/flowbridge/internal/event"
	"github.com/voxmill/flowbridge/internal/logging"
	"github.com/voxmill/flowbridge/internal/state"
)

// WidgetBinding is a directory entry tying a UI widget to its graph node.
// Created when the bridge is instantiated, updated on connect/disconnect,
// never otherwise mutated. Read-only to the UI.
type WidgetBinding struct {
	WidgetID string
	NodeType dataflow.NodeType
	NodeID   string
	State    bridge.State
}

// Dispatcher wires a controller to one bridge per discovered widget node.
type Dispatcher struct {
	ctrl     *controller.Controller
	shared   *state.Shared
	notifier *event.Notifier
	logger   *logging.Logger
	cfg      config

	bridges  map[string]*bridge.Bridge
	bindings []WidgetBinding
}

// New creates a Dispatcher around a controller. The shared state object is
// created here (or supplied via WithShared) and lives for the dispatcher's
// whole life, across stop/start cycles.
func New(ctrl *controller.Controller, opts ...Option) *Dispatcher {
	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dispatcher{
		ctrl:     ctrl,
		shared:   cfg.shared,
		notifier: cfg.notifier,
		logger:   cfg.logger,
		cfg:      cfg,
		bridges:  make(map[string]*bridge.Bridge),
	}
}

// Shared returns the cross-thread state store the UI polls.
func (d *Dispatcher) Shared() *state.Shared { return d.shared }

// Notifier returns the control-event channel owner.
func (d *Dispatcher) Notifier() *event.Notifier { return d.notifier }

// Controller returns the lifecycle controller.
func (d *Dispatcher) Controller() *controller.Controller { return d.ctrl }

// Bridge returns the bridge for a node id, or nil.
func (d *Dispatcher) Bridge(nodeID string) *bridge.Bridge { return d.bridges[nodeID] }

// Bindings returns a copy of the widget directory.
func (d *Dispatcher) Bindings() []WidgetBinding {
	out := make([]WidgetBinding, len(d.bindings))
	copy(out, d.bindings)
	return out
}

// IsRunning reports whether the controlled dataflow is running.
func (d *Dispatcher) IsRunning() bool { return d.ctrl.State().IsRunning() }

// Start launches the dataflow, waits for the engine to report the run,
// creates bridges for every discovered widget node, and connects them with
// a bounded retry loop. The last connect error is surfaced only after all
// attempts are exhausted.
func (d *Dispatcher) Start() (string, error) {
	runID, err := d.ctrl.Start()
	if err != nil {
		return "", err
	}
	d.shared.ResetStatus()

	// A detached start returns before graph nodes finish registering, and
	// nodes that load heavyweight models take longer still. Poll the
	// engine's own listing instead of sleeping a fixed window; the connect
	// retry loop below absorbs whatever readiness lag remains.
	d.waitReady(runID)

	if len(d.bridges) == 0 {
		d.createBridges()
	}
	d.logger.Info("connecting bridges", "count", len(d.bridges), "run_id", runID)

	var lastErr error
	for attempt := 1; attempt <= d.cfg.connectAttempts; attempt++ {
		if err := d.ConnectAll(); err != nil {
			lastErr = err
			d.logger.Warn("bridge connection attempt failed",
				"attempt", attempt, "error", err)
			time.Sleep(d.cfg.connectRetryDelay)
			continue
		}
		lastErr = nil
		d.logger.Info("all bridges connected", "attempts", attempt)
		break
	}
	if lastErr != nil {
		d.logger.Error("bridges failed to connect",
			"attempts", d.cfg.connectAttempts, "error", lastErr)
		return "", lastErr
	}

	d.notifier.Publish(event.NewDataflowStarted(runID))
	return runID, nil
}

// waitReady polls the engine listing until it mentions the run id or the
// ready window expires. Expiry is not fatal; connection retries take over.
func (d *Dispatcher) waitReady(runID string) {
	deadline := time.Now().Add(d.cfg.readyTimeout)
	for time.Now().Before(deadline) {
		status, err := d.ctrl.Status()
		if err == nil && status.State.IsRunning() {
			return
		}
		time.Sleep(d.cfg.readyPollInterval)
	}
	d.logger.Warn("engine never listed the run within the ready window",
		"run_id", runID, "timeout", d.cfg.readyTimeout)
}

// createBridges instantiates one bridge per discovered widget node. Nodes
// whose id is widget-prefixed but unrecognized are skipped, not errors.
func (d *Dispatcher) createBridges() {
	nodes := d.ctrl.Definition().WidgetNodes()
	for _, node := range nodes {
		kind, ok := bridge.KindForNodeType(node.Type())
		if !ok {
			d.logger.Warn("skipping unsupported widget node", "node_id", node.ID)
			continue
		}
		br := bridge.New(kind, node.ID, d.shared, d.cfg.bridgeOpts...)
		d.bridges[node.ID] = br
		d.bindings = append(d.bindings, WidgetBinding{
			WidgetID: node.ID,
			NodeType: node.Type(),
			NodeID:   node.ID,
			State:    bridge.Disconnected,
		})
	}
	d.logger.Info("created bridges", "count", len(d.bridges))
}

// ConnectAll connects every bridge. Fails with ErrNotRunning when the
// controller is not running. Partial failures are aggregated into one
// error rather than stopping at the first.
func (d *Dispatcher) ConnectAll() error {
	if !d.ctrl.State().IsRunning() {
		return errors.ErrNotRunning
	}

	var failures []string
	for nodeID, br := range d.bridges {
		switch br.State() {
		case bridge.Connected:
			d.setBindingState(nodeID, bridge.Connected)
			continue
		case bridge.Connecting:
			failures = append(failures, fmt.Sprintf("%s: still connecting", nodeID))
			continue
		}
		if err := br.Connect(); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", nodeID, err))
			continue
		}
		if st := br.State(); st == bridge.Connected {
			d.setBindingState(nodeID, bridge.Connected)
		} else {
			failures = append(failures, fmt.Sprintf("%s: %s after connect", nodeID, st))
		}
	}

	if len(failures) > 0 {
		return errors.NewConnectError("", strings.Join(failures, "; "), nil)
	}
	return nil
}

// DisconnectAll disconnects every bridge, aggregating partial failures.
func (d *Dispatcher) DisconnectAll() error {
	var failures []string
	for nodeID, br := range d.bridges {
		if err := br.Disconnect(); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", nodeID, err))
			continue
		}
		d.setBindingState(nodeID, bridge.Disconnected)
	}
	if len(failures) > 0 {
		return fmt.Errorf("disconnect failures: %s", strings.Join(failures, "; "))
	}
	return nil
}

func (d *Dispatcher) setBindingState(nodeID string, st bridge.State) {
	for i := range d.bindings {
		if d.bindings[i].NodeID == nodeID {
			d.bindings[i].State = st
			return
		}
	}
}

// Stop disconnects all bridges, then stops the dataflow with the engine's
// default grace. Bridges must not outlive the graph they talk to.
func (d *Dispatcher) Stop() error { return d.stopWith(func() error { return d.ctrl.Stop() }, false) }

// StopWithGrace stops with a custom grace window.
func (d *Dispatcher) StopWithGrace(grace time.Duration) error {
	return d.stopWith(func() error { return d.ctrl.StopWithGrace(grace) }, false)
}

// ForceStop stops immediately, killing nodes that do not exit.
func (d *Dispatcher) ForceStop() error {
	return d.stopWith(func() error { return d.ctrl.ForceStop() }, true)
}

func (d *Dispatcher) stopWith(stop func() error, forced bool) error {
	runID := d.ctrl.State().RunID

	if err := d.DisconnectAll(); err != nil {
		d.logger.Warn("bridge disconnect reported failures", "error", err)
	}
	if err := stop(); err != nil {
		return err
	}
	d.shared.ResetStatus()
	d.notifier.Publish(event.NewDataflowStopped(runID, forced))
	return nil
}

// Close tears the dispatcher down: bridges, run, and daemon.
func (d *Dispatcher) Close() error {
	if err := d.DisconnectAll(); err != nil {
		d.logger.Warn("bridge disconnect reported failures", "error", err)
	}
	return d.ctrl.Close()
}
