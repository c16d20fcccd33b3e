package bridge

import (
	"encoding/json"
	"testing"

	"github.com/voxmill/flowbridge/internal/data"
	"github.com/voxmill/flowbridge/internal/engine"
	"github.com/voxmill/flowbridge/internal/state"
)

func newMicFixture() (*micHandler, *fakeConn, *state.Shared) {
	shared := state.NewShared()
	b := New(KindMicInput, "ui-mic-input", shared, fastOpts()...)
	return newMicHandler(b), newFakeConn(), shared
}

func TestMicStatusLandsInLog(t *testing.T) {
	h, conn, shared := newMicFixture()
	raw, _ := json.Marshal("capture device opened")
	h.input(conn, engine.Event{ID: "status", Data: raw, Metadata: map[string]string{"level": "INFO"}})

	entries := shared.Logs.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].NodeID != "ui-mic-input" {
		t.Errorf("entry source = %s", entries[0].NodeID)
	}
}

func TestMicIgnoresOtherInputs(t *testing.T) {
	h, conn, shared := newMicFixture()
	raw, _ := json.Marshal("noise")
	h.input(conn, engine.Event{ID: "telemetry", Data: raw})

	if len(shared.Logs.Entries()) != 0 {
		t.Error("non-status inputs must be ignored")
	}
}

func TestMicForwardsCapturedAudio(t *testing.T) {
	h, conn, _ := newMicFixture()
	samples := []float32{0.1, 0.2}
	h.command(conn, command{outputID: outputMicAudio, payload: data.Payload{
		Data:     samples,
		Metadata: map[string]string{"sample_rate": "16000"},
	}})

	sends := conn.sentByID(outputMicAudio)
	if len(sends) != 1 {
		t.Fatalf("expected 1 audio send, got %d", len(sends))
	}
	if sends[0].metadata["sample_rate"] != "16000" {
		t.Errorf("metadata = %v", sends[0].metadata)
	}
}

func TestMicControlCommand(t *testing.T) {
	h, conn, _ := newMicFixture()
	h.command(conn, command{outputID: outputMicControl, payload: data.Payload{
		Data: data.ControlCommand{Command: "mute"},
	}})

	sends := conn.sentByID(outputMicControl)
	if len(sends) != 1 || sends[0].metadata["command"] != "mute" || sends[0].payload != "mute" {
		t.Errorf("control send = %v", sends)
	}
}
