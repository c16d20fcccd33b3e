package data

import (
	"testing"
	"time"
)

func TestAudioChunkDuration(t *testing.T) {
	mono := AudioChunk{Samples: make([]float32, 32000), SampleRate: 32000, Channels: 1}
	if got := mono.Duration(); got != time.Second {
		t.Errorf("mono duration = %v, want 1s", got)
	}

	stereo := AudioChunk{Samples: make([]float32, 32000), SampleRate: 32000, Channels: 2}
	if got := stereo.Duration(); got != 500*time.Millisecond {
		t.Errorf("stereo duration = %v, want 500ms", got)
	}

	empty := AudioChunk{SampleRate: 32000, Channels: 1}
	if got := empty.Duration(); got != 0 {
		t.Errorf("empty duration = %v, want 0", got)
	}

	noRate := AudioChunk{Samples: make([]float32, 100)}
	if got := noRate.Duration(); got != 0 {
		t.Errorf("unknown-rate duration = %v, want 0", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"DEBUG":   LevelDebug,
		"trace":   LevelDebug,
		"INFO":    LevelInfo,
		"info":    LevelInfo,
		" warn ":  LevelWarn,
		"WARNING": LevelWarn,
		"ERROR":   LevelError,
		"fatal":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogLevelString(t *testing.T) {
	cases := map[LogLevel]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", level, got, want)
		}
	}
}
