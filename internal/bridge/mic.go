package bridge

import (
	"github.com/voxmill/flowbridge/internal/data"
	"github.com/voxmill/flowbridge/internal/engine"
)

// Output ids emitted by the mic bridge.
const (
	outputMicAudio   = "audio"
	outputMicControl = "control"
)

// micHandler forwards captured microphone audio into the graph and relays
// capture control (mute/unmute, echo-cancel toggles) from the UI. Inbound
// traffic is sparse: the capture pipeline occasionally reports its state,
// which lands in the shared log.
type micHandler struct {
	b *Bridge
}

func newMicHandler(b *Bridge) *micHandler { return &micHandler{b: b} }

func (h *micHandler) input(conn engine.NodeConn, ev engine.Event) {
	if ev.ID != "status" {
		h.b.logger.Debug("ignoring input", "input_id", ev.ID)
		return
	}
	if msg := ev.Text(); msg != "" {
		h.b.shared.Logs.Push(data.LogEntry{
			Level:     data.ParseLogLevel(ev.Meta("level")),
			Message:   msg,
			NodeID:    h.b.nodeID,
			Timestamp: data.Now(),
		})
	}
}

func (h *micHandler) command(conn engine.NodeConn, cmd command) {
	switch cmd.outputID {
	case outputMicAudio:
		if err := conn.Send(outputMicAudio, cmd.payload.Metadata, cmd.payload.Data); err != nil {
			h.b.logger.Warn("failed to send captured audio", "error", err)
		}
	case outputMicControl:
		md := cmd.payload.Metadata
		payload := cmd.payload.Data
		if ctrl, ok := cmd.payload.Data.(data.ControlCommand); ok {
			if md == nil {
				md = make(map[string]string, 1)
			}
			md["command"] = ctrl.Command
			payload = ctrl.Command
		}
		if err := conn.Send(outputMicControl, md, payload); err != nil {
			h.b.logger.Warn("failed to send capture control", "error", err)
		}
	default:
		h.b.logger.Warn("unknown output id, dropping", "output_id", cmd.outputID)
	}
}
