package bridge

import (
	"encoding/json"
	"testing"

	"github.com/voxmill/flowbridge/internal/data"
	"github.com/voxmill/flowbridge/internal/engine"
	"github.com/voxmill/flowbridge/internal/state"
)

func textEvent(inputID, qid, text, status string) engine.Event {
	raw, _ := json.Marshal(text)
	md := map[string]string{}
	if qid != "" {
		md["question_id"] = qid
	}
	if status != "" {
		md["session_status"] = status
	}
	return engine.Event{ID: inputID, Data: raw, Metadata: md}
}

func newPromptFixture() (*promptHandler, *fakeConn, *state.Shared) {
	shared := state.NewShared()
	b := New(KindPromptInput, "ui-prompt-input", shared, fastOpts()...)
	return newPromptHandler(b), newFakeConn(), shared
}

func TestStreamingResponseCoalesces(t *testing.T) {
	h, conn, shared := newPromptFixture()
	h.input(conn, textEvent("text_tutor", "q1", "The mitochondria ", "streaming"))
	h.input(conn, textEvent("text_tutor", "q1", "is the powerhouse ", "streaming"))
	h.input(conn, textEvent("text_tutor", "q1", "of the cell.", "ended"))

	msgs := shared.Chat.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 coalesced message, got %d", len(msgs))
	}
	if msgs[0].Content != "The mitochondria is the powerhouse of the cell." {
		t.Errorf("content = %q", msgs[0].Content)
	}
	if msgs[0].IsStreaming {
		t.Error("terminal status should finalize the message")
	}
	if msgs[0].Sender != "tutor" {
		t.Errorf("sender = %q, want tutor", msgs[0].Sender)
	}
	if msgs[0].Role != data.RoleAssistant {
		t.Errorf("role = %q", msgs[0].Role)
	}
}

func TestCompleteStatusAlsoFinalizes(t *testing.T) {
	h, conn, shared := newPromptFixture()
	h.input(conn, textEvent("response_coach", "q1", "done", "complete"))

	msgs := shared.Chat.Messages()
	if len(msgs) != 1 || msgs[0].IsStreaming {
		t.Errorf("complete status should finalize, got %+v", msgs)
	}
	if msgs[0].Sender != "coach" {
		t.Errorf("sender = %q, want coach", msgs[0].Sender)
	}
}

func TestBareInputIDFallsBackToAssistant(t *testing.T) {
	h, conn, shared := newPromptFixture()
	h.input(conn, textEvent("text", "q1", "hi", "ended"))

	msgs := shared.Chat.Messages()
	if len(msgs) != 1 || msgs[0].Sender != "assistant" {
		t.Errorf("messages = %+v, want sender assistant", msgs)
	}
}

func TestUntaggedResponseUsesUnknownSession(t *testing.T) {
	h, conn, shared := newPromptFixture()
	h.input(conn, textEvent("text_tutor", "", "hi", ""))

	msgs := shared.Chat.Messages()
	if len(msgs) != 1 || msgs[0].SessionID != "unknown" {
		t.Errorf("messages = %+v, want session unknown", msgs)
	}
}

func TestEmptyTextIgnored(t *testing.T) {
	h, conn, shared := newPromptFixture()
	h.input(conn, textEvent("text_tutor", "q1", "", "streaming"))
	h.input(conn, engine.Event{ID: "metrics", Data: json.RawMessage(`"ignored"`)})

	if shared.Chat.Len() != 0 {
		t.Errorf("chat should be empty, has %d entries", shared.Chat.Len())
	}
}

func TestPromptCommandForwarded(t *testing.T) {
	h, conn, _ := newPromptFixture()
	h.command(conn, command{outputID: outputPrompt, payload: data.Payload{Data: "what is entropy"}})

	sends := conn.sentByID(outputPrompt)
	if len(sends) != 1 || sends[0].payload != "what is entropy" {
		t.Errorf("prompt not forwarded: %v", sends)
	}
}

func TestControlCommandCarriesMetadata(t *testing.T) {
	h, conn, _ := newPromptFixture()
	h.command(conn, command{outputID: outputControl, payload: data.Payload{
		Data: data.ControlCommand{Command: "reset", QuestionID: "q7"},
	}})

	sends := conn.sentByID(outputControl)
	if len(sends) != 1 {
		t.Fatalf("expected 1 control send, got %d", len(sends))
	}
	if sends[0].metadata["command"] != "reset" || sends[0].metadata["question_id"] != "q7" {
		t.Errorf("control metadata = %v", sends[0].metadata)
	}
	if sends[0].payload != "reset" {
		t.Errorf("control payload = %v, want the verb", sends[0].payload)
	}
}

func TestControlCommandWithoutQuestionID(t *testing.T) {
	h, conn, _ := newPromptFixture()
	h.command(conn, command{outputID: outputControl, payload: data.Payload{
		Data: data.ControlCommand{Command: "mute"},
	}})

	sends := conn.sentByID(outputControl)
	if len(sends) != 1 {
		t.Fatalf("expected 1 control send, got %d", len(sends))
	}
	if _, present := sends[0].metadata["question_id"]; present {
		t.Error("empty question id must not appear in metadata")
	}
}
