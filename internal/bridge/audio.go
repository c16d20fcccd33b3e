package bridge

import (
	"strings"

	"github.com/voxmill/flowbridge/internal/data"
	"github.com/voxmill/flowbridge/internal/engine"
)

// Output ids emitted by the audio bridge.
const (
	// outputPlaybackStarted tells the turn coordinator that audio for a
	// question id has begun playing. Sent once per question id.
	outputPlaybackStarted = "playback_started"
	// outputAudioReceived acknowledges one accepted chunk so the producer
	// releases the next segment. Sent for every accepted chunk.
	outputAudioReceived = "audio_received"
	// outputBufferStatus relays the playback buffer's fill percentage.
	outputBufferStatus = "buffer_status"
)

// audioHandler implements the realtime interrupt protocol.
//
// A human interruption reaches playback through two mechanisms with very
// different latencies. The force-mute flag silences the realtime callback
// within one frame; the correlation filter then discriminates stale audio
// still draining through the multi-stage pipeline from fresh audio for the
// new turn, using the question id each chunk carries.
//
// After a smart reset (reset carrying a question id) the handler drops
// every tagged chunk whose id differs from the reset target. The first
// chunk tagged with the target id is accepted and ends filtering. An
// untagged chunk also ends filtering and is accepted: without a
// correlation id it cannot be proven stale, and dropping it could starve a
// producer that never tags.
type audioHandler struct {
	b *Bridge

	filtering  bool
	resetQID   string
	hasResetID bool

	// started remembers question ids whose playback_started already went
	// out; speakerSeen remembers ids whose speaker switch was logged.
	started     *trackSet
	speakerSeen *trackSet
	speaker     string
}

func newAudioHandler(b *Bridge) *audioHandler {
	return &audioHandler{
		b:           b,
		started:     newTrackSet(b.cfg.sessionTrackLimit),
		speakerSeen: newTrackSet(b.cfg.sessionTrackLimit),
	}
}

func (h *audioHandler) input(conn engine.NodeConn, ev engine.Event) {
	if ev.ID == "reset" {
		h.handleReset(ev)
		return
	}
	if strings.Contains(ev.ID, "audio") {
		h.handleAudio(conn, ev)
	}
}

// handleReset processes an interrupt. A reset is never forwarded as audio.
func (h *audioHandler) handleReset(ev engine.Event) {
	cmd := ev.Meta("command")
	if cmd == "" {
		cmd = ev.Text()
	}
	if cmd != "reset" && cmd != "cancel" {
		h.b.logger.Debug("ignoring reset input with unknown command", "command", cmd)
		return
	}

	// Force-mute first: the realtime callback must go silent on its next
	// frame, before any of the bookkeeping below.
	h.b.shared.Audio.SignalClear()

	if qid := ev.Meta("question_id"); qid != "" {
		h.filtering = true
		h.resetQID = qid
		h.hasResetID = true
		h.b.logger.Info("smart reset: filtering until matching audio arrives", "question_id", qid)
	} else {
		h.filtering = false
		h.resetQID = ""
		h.hasResetID = false
		h.b.logger.Info("full reset: buffer cleared, no filtering")
	}

	h.started.clear()
	h.speakerSeen.clear()
	h.speaker = ""
}

func (h *audioHandler) handleAudio(conn engine.NodeConn, ev engine.Event) {
	samples := ev.Samples()
	if len(samples) == 0 {
		return
	}

	// The input id names the participant: "audio_alice" plays alice.
	participant := strings.TrimPrefix(ev.ID, "audio_")
	if participant == ev.ID {
		participant = "unknown"
	}
	qid := ev.Meta("question_id")

	if h.filtering {
		switch {
		case qid != "" && h.hasResetID && qid == h.resetQID:
			// First fresh chunk for the new turn.
			h.filtering = false
			h.b.logger.Info("exiting filtering mode", "question_id", qid, "participant", participant)
		case qid != "" && h.hasResetID:
			// Stale audio from the interrupted turn, still draining.
			h.b.logger.Debug("dropping stale audio", "question_id", qid, "expected", h.resetQID)
			return
		default:
			// No correlation id available; must not be treated as stale.
			h.filtering = false
			h.b.logger.Debug("exiting filtering mode: chunk carries no question id")
		}
	}

	chunk := data.AudioChunk{
		Samples:       samples,
		SampleRate:    ev.MetaInt("sample_rate", 32000),
		Channels:      ev.MetaInt("channels", 1),
		ParticipantID: participant,
		QuestionID:    qid,
	}
	h.b.shared.Audio.Push(chunk)

	if qid != "" {
		if !h.started.contains(qid) {
			if err := h.sendPlaybackStarted(conn, participant, ev); err != nil {
				h.b.logger.Warn("failed to send playback_started", "error", err)
			} else {
				h.started.insert(qid)
				h.b.logger.Info("playback started", "question_id", qid, "participant", participant)
			}
		}
		if !h.speakerSeen.contains(qid) {
			if h.speaker != participant {
				h.speaker = participant
				h.b.logger.Debug("active speaker changed", "participant", participant)
			}
			h.speakerSeen.insert(qid)
		}
	}

	// The per-chunk acknowledgement is the producer's flow control; it is
	// never deduplicated.
	if err := h.sendReceived(conn, participant, ev); err != nil {
		h.b.logger.Warn("failed to send audio_received", "error", err)
	}
}

func (h *audioHandler) sendPlaybackStarted(conn engine.NodeConn, participant string, ev engine.Event) error {
	md := map[string]string{
		"participant": participant,
		"source":      h.b.nodeID,
	}
	copyMeta(md, ev, "question_id", "session_status")
	return conn.Send(outputPlaybackStarted, md, "started")
}

func (h *audioHandler) sendReceived(conn engine.NodeConn, participant string, ev engine.Event) error {
	md := map[string]string{"participant": participant}
	copyMeta(md, ev, "question_id", "session_status")
	return conn.Send(outputAudioReceived, md, "received")
}

// command relays outbound traffic from the UI. The playback buffer's fill
// percentage is the only expected output; it is forwarded unchanged as the
// sole consumer-to-producer backpressure signal.
func (h *audioHandler) command(conn engine.NodeConn, cmd command) {
	switch cmd.outputID {
	case outputBufferStatus:
		if err := conn.Send(outputBufferStatus, cmd.payload.Metadata, cmd.payload.Data); err != nil {
			h.b.logger.Warn("failed to send buffer status", "error", err)
		}
	default:
		h.b.logger.Warn("unknown output id, dropping", "output_id", cmd.outputID)
	}
}

// copyMeta copies the named metadata keys from ev into md when present.
func copyMeta(md map[string]string, ev engine.Event, keys ...string) {
	for _, k := range keys {
		if v := ev.Meta(k); v != "" {
			md[k] = v
		}
	}
}
