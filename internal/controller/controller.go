// Package controller owns the lifecycle state machine of one external
// dataflow run: start, stop with a grace window, and status polling. All
// transitions of the run state happen here and nowhere else.
package controller

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxmill/flowbridge/internal/dataflow"
	"github.com/voxmill/flowbridge/internal/engine"
	"github.com/voxmill/flowbridge/internal/errors"
	"github.com/voxmill/flowbridge/internal/logging"
)

// Phase is the lifecycle phase of the controlled run.
type Phase int

const (
	PhaseStopped Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopping
	PhaseError
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "stopped"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of the lifecycle state. RunID and StartedAt are set
// only while Phase is PhaseRunning; Err only while PhaseError.
type State struct {
	Phase     Phase
	RunID     string
	StartedAt time.Time
	Err       string
}

// IsRunning reports whether the snapshot is in the running phase.
func (s State) IsRunning() bool { return s.Phase == PhaseRunning }

// Status is the report returned by Controller.Status.
type Status struct {
	State           State
	Uptime          time.Duration
	NodeCount       int
	WidgetNodeCount int
}

// Daemon is the slice of the engine supervisor the controller needs.
type Daemon interface {
	EnsureRunning() error
	Close() error
}

// Controller drives one dataflow definition through its lifecycle.
type Controller struct {
	def     *dataflow.Definition
	invoker engine.Invoker
	daemon  Daemon
	logger  *logging.Logger

	mu  sync.RWMutex
	st  State
	env map[string]string
}

// New creates a Controller for a parsed definition. The invoker and daemon
// are injected so tests can run without an engine installation.
func New(def *dataflow.Definition, invoker engine.Invoker, daemon Daemon, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Controller{
		def:     def,
		invoker: invoker,
		daemon:  daemon,
		logger:  logger,
		env:     make(map[string]string),
	}
}

// Definition returns the parsed dataflow definition.
func (c *Controller) Definition() *dataflow.Definition { return c.def }

// SetEnv records one environment variable for the next start. Values are
// attached to the engine child process only, never exported globally.
func (c *Controller) SetEnv(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.env[key] = value
}

// SetEnvs records several environment variables for the next start.
func (c *Controller) SetEnvs(vars map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range vars {
		c.env[k] = v
	}
}

// State returns a snapshot of the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st
}

func (c *Controller) setState(st State) {
	c.mu.Lock()
	c.st = st
	c.mu.Unlock()
}

// Start launches the dataflow and returns its run id.
//
// Fails with ErrAlreadyRunning while a run is active or a start or stop is
// already in flight. Otherwise it probes
// the engine daemon (launching it when unreachable), verifies every
// required environment variable is present either in the supplied set or
// the process environment, and issues the start invocation from the
// definition's own directory using only its file name. The run id is
// scanned out of the invocation's combined output; when the engine prints
// none, a fresh random id is generated so the run remains addressable.
func (c *Controller) Start() (string, error) {
	c.mu.Lock()
	switch c.st.Phase {
	case PhaseRunning, PhaseStarting, PhaseStopping:
		// A start or stop already in flight owns the engine invocation;
		// letting a second start through would double-launch the run.
		c.mu.Unlock()
		return "", errors.ErrAlreadyRunning
	}
	c.st = State{Phase: PhaseStarting}
	env := make(map[string]string, len(c.env))
	for k, v := range c.env {
		env[k] = v
	}
	c.mu.Unlock()

	if err := c.daemon.EnsureRunning(); err != nil {
		startErr := errors.NewStartError("engine daemon unreachable", err)
		c.setState(State{Phase: PhaseError, Err: startErr.Error()})
		return "", startErr
	}

	if missing := c.def.MissingEnv(env); len(missing) > 0 {
		envErr := errors.NewMissingEnvError(missing)
		c.setState(State{Phase: PhaseError, Err: envErr.Error()})
		return "", envErr
	}

	out, err := c.invoker.StartDataflow(c.def.Filename(), c.def.Dir(), env, true)
	if err != nil {
		startErr := errors.NewStartError("engine start invocation failed", err)
		c.setState(State{Phase: PhaseError, Err: startErr.Error()})
		return "", startErr
	}

	runID := ParseRunID(out)
	if runID == "" {
		runID = uuid.NewString()
		c.logger.Warn("no run id in engine output, generated one", "run_id", runID)
	}

	c.setState(State{Phase: PhaseRunning, RunID: runID, StartedAt: time.Now()})
	c.logger.Info("dataflow running", "run_id", runID, "definition", c.def.Filename())
	return runID, nil
}

// Stop stops the run with the engine's default grace window.
func (c *Controller) Stop() error { return c.stopWithOptions(nil) }

// StopWithGrace stops the run, giving nodes the specified window before the
// engine kills them.
func (c *Controller) StopWithGrace(grace time.Duration) error {
	return c.stopWithOptions(&grace)
}

// ForceStop stops the run immediately (zero grace).
func (c *Controller) ForceStop() error {
	zero := time.Duration(0)
	return c.stopWithOptions(&zero)
}

// stopWithOptions implements the three stop shapes. Stopping an already
// stopped controller is a successful no-op; any other non-running phase is
// ErrNotRunning. The transition to stopped is unconditional: if the engine
// reports a failure the run is most likely already dead, so the failure is
// logged and swallowed.
func (c *Controller) stopWithOptions(grace *time.Duration) error {
	c.mu.Lock()
	switch c.st.Phase {
	case PhaseStopped:
		c.mu.Unlock()
		return nil
	case PhaseRunning:
		// proceed
	default:
		c.mu.Unlock()
		return errors.ErrNotRunning
	}
	runID := c.st.RunID
	c.st = State{Phase: PhaseStopping}
	c.mu.Unlock()

	graceStr := "default"
	if grace != nil {
		graceStr = grace.String()
	}
	c.logger.Info("stopping dataflow", "run_id", runID, "grace", graceStr)

	if out, err := c.invoker.StopDataflow(runID, grace); err != nil {
		c.logger.Warn("engine stop reported failure, treating run as stopped",
			"run_id", runID, "error", err, "output", strings.TrimSpace(out))
	}

	c.setState(State{Phase: PhaseStopped})
	return nil
}

// Status reports the current run as the engine sees it. When the local
// state says running but the engine listing no longer mentions the run id,
// the report says stopped: the external process died independently.
func (c *Controller) Status() (Status, error) {
	st := c.State()
	status := Status{
		State:           st,
		NodeCount:       c.def.NodeCount(),
		WidgetNodeCount: c.def.WidgetNodeCount(),
	}
	if !st.IsRunning() {
		return status, nil
	}

	listing, err := c.invoker.ListDataflows()
	if err != nil {
		return status, fmt.Errorf("query engine listing: %w", err)
	}
	if !strings.Contains(listing, st.RunID) {
		status.State = State{Phase: PhaseStopped}
		return status, nil
	}
	status.Uptime = time.Since(st.StartedAt)
	return status, nil
}

// Close stops the run if still active and releases the daemon if this
// process launched it.
func (c *Controller) Close() error {
	if c.State().IsRunning() {
		if err := c.Stop(); err != nil {
			c.logger.Error("failed to stop dataflow on close", "error", err)
		}
	}
	return c.daemon.Close()
}

// ParseRunID scans engine output for a run identifier: a 36-character token
// containing exactly four hyphens, the engine's id format. Returns "" when
// no token matches.
func ParseRunID(output string) string {
	for _, line := range strings.Split(output, "\n") {
		for _, tok := range strings.Fields(line) {
			if len(tok) == 36 && strings.Count(tok, "-") == 4 {
				return tok
			}
		}
	}
	return ""
}
