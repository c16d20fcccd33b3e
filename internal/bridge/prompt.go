package bridge

import (
	"strings"

	"github.com/voxmill/flowbridge/internal/data"
	"github.com/voxmill/flowbridge/internal/engine"
)

// Output ids emitted by the prompt bridge.
const (
	outputPrompt  = "prompt"
	outputControl = "control"
)

// promptHandler forwards user prompts to the language-model side of the
// graph and turns streaming text responses into chat entries. Streamed
// fragments share a session id (the question id of the turn), so ChatState
// coalesces them into one growing message; a terminal session status
// finalizes the entry.
type promptHandler struct {
	b *Bridge
}

func newPromptHandler(b *Bridge) *promptHandler { return &promptHandler{b: b} }

func (h *promptHandler) input(conn engine.NodeConn, ev engine.Event) {
	if !strings.Contains(ev.ID, "text") && !strings.Contains(ev.ID, "response") {
		h.b.logger.Debug("ignoring input", "input_id", ev.ID)
		return
	}
	text := ev.Text()
	if text == "" {
		return
	}

	sessionID := ev.Meta("question_id")
	if sessionID == "" {
		sessionID = "unknown"
	}
	// Producers report "ended" when a stream finishes; some report
	// "complete". Anything else means more fragments are coming.
	status := ev.Meta("session_status")
	complete := status == "ended" || status == "complete"

	h.b.shared.Chat.Push(data.ChatMessage{
		Content:     text,
		Sender:      senderFromInputID(ev.ID),
		Role:        data.RoleAssistant,
		Timestamp:   data.Now(),
		IsStreaming: !complete,
		SessionID:   sessionID,
	})
}

func (h *promptHandler) command(conn engine.NodeConn, cmd command) {
	switch cmd.outputID {
	case outputPrompt:
		if err := conn.Send(outputPrompt, cmd.payload.Metadata, cmd.payload.Data); err != nil {
			h.b.logger.Warn("failed to send prompt", "error", err)
		}
	case outputControl:
		md := cmd.payload.Metadata
		payload := cmd.payload.Data
		if ctrl, ok := cmd.payload.Data.(data.ControlCommand); ok {
			if md == nil {
				md = make(map[string]string, 2)
			}
			md["command"] = ctrl.Command
			if ctrl.QuestionID != "" {
				md["question_id"] = ctrl.QuestionID
			}
			payload = ctrl.Command
		}
		if err := conn.Send(outputControl, md, payload); err != nil {
			h.b.logger.Warn("failed to send control command", "error", err)
		}
	default:
		h.b.logger.Warn("unknown output id, dropping", "output_id", cmd.outputID)
	}
}

// senderFromInputID derives a display name from the input id, e.g.
// "text_tutor" is spoken by "tutor".
func senderFromInputID(inputID string) string {
	for _, prefix := range []string{"text_", "response_"} {
		if rest := strings.TrimPrefix(inputID, prefix); rest != inputID && rest != "" {
			return rest
		}
	}
	return "assistant"
}
