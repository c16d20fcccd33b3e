package bridge

import (
	"strings"
	"sync"

	"github.com/voxmill/flowbridge/internal/data"
	"github.com/voxmill/flowbridge/internal/engine"
)

// systemLogHandler aggregates log lines from the rest of the graph into the
// shared log store. The source node is derived from the input id
// ("tts_log" comes from "tts"); entries below the configured minimum level
// are skipped.
type systemLogHandler struct {
	b *Bridge

	mu      sync.Mutex
	sources map[string]bool
}

func newSystemLogHandler(b *Bridge) *systemLogHandler {
	return &systemLogHandler{b: b, sources: make(map[string]bool)}
}

func (h *systemLogHandler) input(conn engine.NodeConn, ev engine.Event) {
	source := ev.ID
	if trimmed := strings.TrimSuffix(source, "_log"); trimmed != source {
		source = trimmed
	} else if trimmed := strings.TrimSuffix(source, "_status"); trimmed != source {
		source = trimmed
	}

	h.mu.Lock()
	h.sources[source] = true
	h.mu.Unlock()

	level := data.ParseLogLevel(ev.Meta("level"))
	if level < h.b.cfg.minLogLevel {
		return
	}
	message := ev.Text()
	if message == "" {
		return
	}

	h.b.shared.Logs.Push(data.LogEntry{
		Level:     level,
		Message:   message,
		NodeID:    source,
		Timestamp: data.Now(),
	})
}

// command: the log bridge has no outputs; anything queued is a wiring bug.
func (h *systemLogHandler) command(conn engine.NodeConn, cmd command) {
	h.b.logger.Warn("unknown output id, dropping", "output_id", cmd.outputID)
}

// Sources returns the node ids seen producing logs, for the UI's filter
// dropdown.
func (h *systemLogHandler) Sources() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.sources))
	for s := range h.sources {
		out = append(out, s)
	}
	return out
}
