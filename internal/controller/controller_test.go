package controller

import (
	"sync"
	"testing"
	"time"

	"github.com/voxmill/flowbridge/internal/dataflow"
	"github.com/voxmill/flowbridge/internal/errors"
)

const testRunID = "0197b7e4-92a1-7c3e-b1d4-58b0c2f9ae11"

type startCall struct {
	filename string
	dir      string
	env      map[string]string
	detach   bool
}

type stopCall struct {
	runID string
	grace *time.Duration
}

type fakeInvoker struct {
	mu       sync.Mutex
	startOut string
	startErr error
	stopErr  error
	listOut  string
	listErr  error

	starts []startCall
	stops  []stopCall
	lists  int
}

func (f *fakeInvoker) StartDataflow(filename, dir string, env map[string]string, detach bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, startCall{filename: filename, dir: dir, env: env, detach: detach})
	return f.startOut, f.startErr
}

func (f *fakeInvoker) StopDataflow(runID string, grace *time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, stopCall{runID: runID, grace: grace})
	return "", f.stopErr
}

func (f *fakeInvoker) ListDataflows() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	return f.listOut, f.listErr
}

type fakeDaemon struct {
	ensureErr error
	closed    bool
}

func (f *fakeDaemon) EnsureRunning() error { return f.ensureErr }
func (f *fakeDaemon) Close() error         { f.closed = true; return nil }

func testDefinition(t *testing.T, yml string) *dataflow.Definition {
	t.Helper()
	def, err := dataflow.ParseBytes([]byte(yml))
	if err != nil {
		t.Fatalf("parse test definition: %v", err)
	}
	def.Path = "/tmp/flows/session.yml"
	return def
}

func simpleDefinition(t *testing.T) *dataflow.Definition {
	return testDefinition(t, `
nodes:
  - id: tts
  - id: ui-audio-player
`)
}

func TestStartReturnsParsedRunID(t *testing.T) {
	inv := &fakeInvoker{startOut: "dataflow started: " + testRunID + "\n"}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)

	runID, err := c.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if runID != testRunID {
		t.Errorf("run id = %q, want %q", runID, testRunID)
	}

	st := c.State()
	if !st.IsRunning() || st.RunID != testRunID {
		t.Errorf("state = %+v, want running with run id", st)
	}
	if st.StartedAt.IsZero() {
		t.Error("StartedAt should be set while running")
	}
}

func TestStartGeneratesRunIDWhenEngineSilent(t *testing.T) {
	inv := &fakeInvoker{startOut: "started\n"}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)

	runID, err := c.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ParseRunID(runID) != runID {
		t.Errorf("generated run id %q is not in the engine's id format", runID)
	}
}

func TestStartInvocationShape(t *testing.T) {
	inv := &fakeInvoker{startOut: testRunID}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)
	c.SetEnv("API_KEY", "sk-test")

	if _, err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(inv.starts) != 1 {
		t.Fatalf("expected 1 start invocation, got %d", len(inv.starts))
	}
	call := inv.starts[0]
	if call.filename != "session.yml" {
		t.Errorf("filename = %q, want bare file name", call.filename)
	}
	if call.dir != "/tmp/flows" {
		t.Errorf("dir = %q, want the definition's directory", call.dir)
	}
	if !call.detach {
		t.Error("start must be detached")
	}
	if call.env["API_KEY"] != "sk-test" {
		t.Errorf("env = %v, want the supplied variables", call.env)
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	inv := &fakeInvoker{startOut: testRunID}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)
	if _, err := c.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	_, err := c.Start()
	if !errors.Is(err, errors.ErrAlreadyRunning) {
		t.Fatalf("second Start = %v, want ErrAlreadyRunning", err)
	}
	if len(inv.starts) != 1 {
		t.Errorf("rejected start must not invoke the engine, got %d invocations", len(inv.starts))
	}
	if !c.State().IsRunning() {
		t.Error("rejected start must not disturb the running state")
	}
}

func TestStartWhileStartingOrStoppingFails(t *testing.T) {
	inv := &fakeInvoker{startOut: testRunID}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)

	for _, phase := range []Phase{PhaseStarting, PhaseStopping} {
		c.setState(State{Phase: phase})
		if _, err := c.Start(); !errors.Is(err, errors.ErrAlreadyRunning) {
			t.Errorf("Start during %s = %v, want ErrAlreadyRunning", phase, err)
		}
	}
	if len(inv.starts) != 0 {
		t.Errorf("in-flight transitions must not double-invoke the engine, got %d starts", len(inv.starts))
	}
}

func TestStartDaemonUnreachable(t *testing.T) {
	inv := &fakeInvoker{}
	c := New(simpleDefinition(t), inv, &fakeDaemon{ensureErr: errors.New("no daemon")}, nil)

	_, err := c.Start()
	var startErr *errors.StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Start = %v, want StartError", err)
	}
	if c.State().Phase != PhaseError {
		t.Errorf("phase = %s, want error", c.State().Phase)
	}
	if len(inv.starts) != 0 {
		t.Error("start must not be invoked when the daemon is unreachable")
	}
}

func TestStartMissingEnv(t *testing.T) {
	def := testDefinition(t, `
nodes:
  - id: tts
    env:
      API_KEY: ${FLOWBRIDGE_TEST_UNSET_KEY}
  - id: ui-audio-player
`)
	inv := &fakeInvoker{}
	c := New(def, inv, &fakeDaemon{}, nil)

	_, err := c.Start()
	var startErr *errors.StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Start = %v, want StartError", err)
	}
	if len(startErr.Missing) != 1 || startErr.Missing[0] != "FLOWBRIDGE_TEST_UNSET_KEY" {
		t.Errorf("missing = %v", startErr.Missing)
	}
	if len(inv.starts) != 0 {
		t.Error("start must not be invoked with incomplete environment")
	}
}

func TestStartMissingEnvSatisfiedBySetEnv(t *testing.T) {
	def := testDefinition(t, `
nodes:
  - id: tts
    env:
      API_KEY: ${FLOWBRIDGE_TEST_UNSET_KEY}
`)
	inv := &fakeInvoker{startOut: testRunID}
	c := New(def, inv, &fakeDaemon{}, nil)
	c.SetEnv("FLOWBRIDGE_TEST_UNSET_KEY", "value")

	if _, err := c.Start(); err != nil {
		t.Fatalf("Start with supplied env: %v", err)
	}
}

func TestStopFromStoppedIsNoOp(t *testing.T) {
	inv := &fakeInvoker{}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop while stopped: %v", err)
	}
	if len(inv.stops) != 0 {
		t.Error("no-op stop must not invoke the engine")
	}
}

func TestStopFromErrorStateFails(t *testing.T) {
	c := New(simpleDefinition(t), &fakeInvoker{}, &fakeDaemon{}, nil)
	c.setState(State{Phase: PhaseError, Err: "boom"})

	if err := c.Stop(); !errors.Is(err, errors.ErrNotRunning) {
		t.Errorf("Stop from error = %v, want ErrNotRunning", err)
	}
}

func TestStopSwallowsEngineFailure(t *testing.T) {
	inv := &fakeInvoker{startOut: testRunID, stopErr: errors.New("run not found")}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)
	if _, err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop should swallow engine failures, got %v", err)
	}
	if c.State().Phase != PhaseStopped {
		t.Errorf("phase = %s, want stopped regardless of engine outcome", c.State().Phase)
	}
}

func TestStopGraceShapes(t *testing.T) {
	inv := &fakeInvoker{startOut: testRunID}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)

	c.Start()
	c.Stop()
	c.Start()
	c.StopWithGrace(5 * time.Second)
	c.Start()
	c.ForceStop()

	if len(inv.stops) != 3 {
		t.Fatalf("expected 3 stop invocations, got %d", len(inv.stops))
	}
	if inv.stops[0].grace != nil {
		t.Error("Stop must use the engine default grace")
	}
	if inv.stops[1].grace == nil || *inv.stops[1].grace != 5*time.Second {
		t.Errorf("StopWithGrace grace = %v", inv.stops[1].grace)
	}
	if inv.stops[2].grace == nil || *inv.stops[2].grace != 0 {
		t.Errorf("ForceStop grace = %v", inv.stops[2].grace)
	}
}

func TestStatusWhileStopped(t *testing.T) {
	inv := &fakeInvoker{}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)

	status, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State.Phase != PhaseStopped {
		t.Errorf("phase = %s", status.State.Phase)
	}
	if status.NodeCount != 2 || status.WidgetNodeCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", status.NodeCount, status.WidgetNodeCount)
	}
	if inv.lists != 0 {
		t.Error("stopped status must not query the engine")
	}
}

func TestStatusDetectsExternalDeath(t *testing.T) {
	inv := &fakeInvoker{startOut: testRunID, listOut: "some other run"}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)
	if _, err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	status, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State.Phase != PhaseStopped {
		t.Errorf("phase = %s, want stopped when the listing omits the run", status.State.Phase)
	}
}

func TestStatusRunning(t *testing.T) {
	inv := &fakeInvoker{startOut: testRunID, listOut: testRunID + " running"}
	c := New(simpleDefinition(t), inv, &fakeDaemon{}, nil)
	if _, err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	status, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.State.IsRunning() {
		t.Errorf("phase = %s, want running", status.State.Phase)
	}
	if status.Uptime < 0 {
		t.Errorf("uptime = %v", status.Uptime)
	}
}

func TestCloseStopsAndReleasesDaemon(t *testing.T) {
	inv := &fakeInvoker{startOut: testRunID}
	daemon := &fakeDaemon{}
	c := New(simpleDefinition(t), inv, daemon, nil)
	if _, err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(inv.stops) != 1 {
		t.Errorf("expected stop on close, got %d", len(inv.stops))
	}
	if !daemon.closed {
		t.Error("daemon should be released on close")
	}
}

func TestParseRunID(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   string
	}{
		{"bare uuid", testRunID, testRunID},
		{"uuid in sentence", "dataflow " + testRunID + " started", testRunID},
		{"uuid on later line", "starting...\nrun: " + testRunID, testRunID},
		{"no id", "dataflow started", ""},
		{"wrong length", "0197b7e4-92a1-7c3e-b1d4", ""},
		{"wrong hyphen count", "0197b7e492a17c3eb1d458b0c2f9ae11aaaa", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseRunID(tc.output); got != tc.want {
				t.Errorf("ParseRunID(%q) = %q, want %q", tc.output, got, tc.want)
			}
		})
	}
}
