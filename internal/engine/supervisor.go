package engine

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/voxmill/flowbridge/internal/logging"
)

// DefaultDaemonSettle is how long Supervisor waits after launching the
// engine daemon before declaring it usable.
const DefaultDaemonSettle = time.Second

// Supervisor owns the engine daemon's process lifecycle. It is an explicit
// resource with new → EnsureRunning → Close; the daemon child handle is
// never global state. If the daemon was already running when EnsureRunning
// probed it, Close leaves it alone.
type Supervisor struct {
	binary string
	settle time.Duration
	logger *logging.Logger

	mu    sync.Mutex
	child *exec.Cmd // non-nil only if this process launched the daemon
}

// NewSupervisor creates a Supervisor for the engine binary. settle <= 0
// uses DefaultDaemonSettle.
func NewSupervisor(binary string, settle time.Duration, logger *logging.Logger) *Supervisor {
	if settle <= 0 {
		settle = DefaultDaemonSettle
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Supervisor{binary: binary, settle: settle, logger: logger}
}

// IsRunning probes the daemon by asking it to list runs. A successful exit
// means a coordinator is answering.
func (s *Supervisor) IsRunning() bool {
	cmd := exec.Command(s.binary, "list")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

// EnsureRunning probes the daemon and launches it when unreachable, then
// waits the settle interval for it to come up.
func (s *Supervisor) EnsureRunning() error {
	if s.IsRunning() {
		s.logger.Debug("engine daemon already running")
		return nil
	}

	s.logger.Info("starting engine daemon", "binary", s.binary)
	cmd := exec.Command(s.binary, "up")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch engine daemon: %w", err)
	}

	s.mu.Lock()
	s.child = cmd
	s.mu.Unlock()

	time.Sleep(s.settle)
	return nil
}

// Close terminates the daemon if this process launched it. Best-effort: the
// daemon may have exited on its own.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	child := s.child
	s.child = nil
	s.mu.Unlock()

	if child == nil || child.Process == nil {
		return nil
	}
	s.logger.Info("terminating engine daemon", "pid", child.Process.Pid)
	if err := child.Process.Kill(); err != nil {
		s.logger.Warn("failed to kill engine daemon", "error", err)
		return err
	}
	_ = child.Wait()
	return nil
}
