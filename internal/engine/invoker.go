// Package engine holds the collaborators that talk to the external dataflow
// engine: the CLI invoker for lifecycle commands, the daemon supervisor,
// and the dynamic-node connection used by bridge workers. Everything here
// is behind small interfaces so the rest of the runtime can be tested with
// fakes.
package engine

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/voxmill/flowbridge/internal/logging"
)

// Invoker issues lifecycle commands against the engine. Implementations
// block the calling goroutine; callers must not invoke them from a
// latency-sensitive path.
type Invoker interface {
	// StartDataflow starts the definition named filename from dir with the
	// given extra environment attached to the child process only. Returns
	// the invocation's combined stdout and stderr (the engine writes the
	// run id to either stream).
	StartDataflow(filename, dir string, env map[string]string, detach bool) (string, error)

	// StopDataflow stops a run. grace is the shutdown window handed to the
	// engine; nil means the engine default, zero forces an immediate kill.
	StopDataflow(runID string, grace *time.Duration) (string, error)

	// ListDataflows returns the engine's listing of known runs.
	ListDataflows() (string, error)
}

// CLI invokes the engine's command-line binary via os/exec.
type CLI struct {
	binary string
	logger *logging.Logger
}

// NewCLI creates an Invoker for the given engine binary name or path.
func NewCLI(binary string, logger *logging.Logger) *CLI {
	if logger == nil {
		logger = logging.Nop()
	}
	return &CLI{binary: binary, logger: logger}
}

// StartDataflow implements Invoker. The command runs with cwd = dir and
// argv carrying only the file name; env entries are appended to the
// inherited environment of the child, never exported globally.
func (c *CLI) StartDataflow(filename, dir string, env map[string]string, detach bool) (string, error) {
	args := []string{"start", filename}
	if detach {
		args = append(args, "--detach")
	}
	cmd := exec.Command(c.binary, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	c.logger.Info("starting dataflow", "definition", filename, "dir", dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s start: %w (output: %s)", c.binary, err, string(out))
	}
	return string(out), nil
}

// StopDataflow implements Invoker.
func (c *CLI) StopDataflow(runID string, grace *time.Duration) (string, error) {
	args := []string{"stop", runID}
	if grace != nil {
		args = append(args, "--grace-duration", fmt.Sprintf("%ds", int(grace.Seconds())))
	}
	cmd := exec.Command(c.binary, args...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s stop: %w (output: %s)", c.binary, err, string(out))
	}
	return string(out), nil
}

// ListDataflows implements Invoker.
func (c *CLI) ListDataflows() (string, error) {
	out, err := exec.Command(c.binary, "list").CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s list: %w", c.binary, err)
	}
	return string(out), nil
}
