package bridge

import (
	"strings"

	"github.com/voxmill/flowbridge/internal/data"
	"github.com/voxmill/flowbridge/internal/engine"
)

// Output id emitted by the cast bridge.
const outputSegment = "segment"

// castHandler drives batch synthesis of a prepared script: the UI queues
// script segments outbound, synthesized audio comes back and lands in the
// shared audio queue. Cast playback is linear, with no interrupt filtering,
// but each received chunk is still acknowledged so the synthesis pipeline
// keeps releasing segments.
type castHandler struct {
	b *Bridge
}

func newCastHandler(b *Bridge) *castHandler { return &castHandler{b: b} }

func (h *castHandler) input(conn engine.NodeConn, ev engine.Event) {
	switch {
	case strings.Contains(ev.ID, "audio"):
		samples := ev.Samples()
		if len(samples) == 0 {
			return
		}
		participant := strings.TrimPrefix(ev.ID, "audio_")
		if participant == ev.ID {
			participant = ev.Meta("participant")
		}
		h.b.shared.Audio.Push(data.AudioChunk{
			Samples:       samples,
			SampleRate:    ev.MetaInt("sample_rate", 32000),
			Channels:      ev.MetaInt("channels", 1),
			ParticipantID: participant,
			QuestionID:    ev.Meta("question_id"),
		})
		md := map[string]string{"participant": participant}
		copyMeta(md, ev, "question_id")
		if err := conn.Send(outputAudioReceived, md, "received"); err != nil {
			h.b.logger.Warn("failed to acknowledge cast audio", "error", err)
		}
	case strings.HasSuffix(ev.ID, "_log"):
		if msg := ev.Text(); msg != "" {
			h.b.shared.Logs.Push(data.LogEntry{
				Level:     data.ParseLogLevel(ev.Meta("level")),
				Message:   msg,
				NodeID:    strings.TrimSuffix(ev.ID, "_log"),
				Timestamp: data.Now(),
			})
		}
	default:
		h.b.logger.Debug("ignoring input", "input_id", ev.ID)
	}
}

func (h *castHandler) command(conn engine.NodeConn, cmd command) {
	switch cmd.outputID {
	case outputSegment:
		if err := conn.Send(outputSegment, cmd.payload.Metadata, cmd.payload.Data); err != nil {
			h.b.logger.Warn("failed to send script segment", "error", err)
		}
	default:
		h.b.logger.Warn("unknown output id, dropping", "output_id", cmd.outputID)
	}
}
