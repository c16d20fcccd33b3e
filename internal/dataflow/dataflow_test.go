package dataflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sessionYAML = `
nodes:
  - id: asr
    path: nodes/asr.py
    outputs: [transcript]
    env:
      MODEL_DIR: /opt/models/asr
  - id: llm
    inputs:
      transcript: asr/transcript
    outputs: [text]
    env:
      API_KEY: ${LLM_API_KEY}
      API_BASE: ${LLM_API_BASE}
  - id: tts
    inputs:
      text: llm/text
    outputs: [audio]
    env:
      API_KEY: ${LLM_API_KEY}
  - id: ui-audio-player
    inputs:
      audio_tutor: tts/audio
  - id: ui-prompt-input
    outputs: [prompt, control]
  - id: ui-sidebar
`

func parseSession(t *testing.T) *Definition {
	t.Helper()
	def, err := ParseBytes([]byte(sessionYAML))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	return def
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.yml")
	if err := os.WriteFile(path, []byte(sessionYAML), 0644); err != nil {
		t.Fatal(err)
	}

	def, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if def.Dir() != dir {
		t.Errorf("Dir = %q, want %q", def.Dir(), dir)
	}
	if def.Filename() != "session.yml" {
		t.Errorf("Filename = %q", def.Filename())
	}
	if def.NodeCount() != 6 {
		t.Errorf("NodeCount = %d, want 6", def.NodeCount())
	}
}

func TestParseMissingFile(t *testing.T) {
	if _, err := Parse(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseBytesRejectsEmptyGraph(t *testing.T) {
	if _, err := ParseBytes([]byte("nodes: []")); err == nil {
		t.Fatal("expected error for empty node list")
	}
	if _, err := ParseBytes([]byte("{}")); err == nil {
		t.Fatal("expected error for document without nodes")
	}
}

func TestParseBytesRejectsBadNodes(t *testing.T) {
	dup := `
nodes:
  - id: tts
  - id: tts
`
	if _, err := ParseBytes([]byte(dup)); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("duplicate id error = %v", err)
	}

	noID := `
nodes:
  - id: tts
  - path: nodes/other.py
`
	if _, err := ParseBytes([]byte(noID)); err == nil {
		t.Error("expected error for node without id")
	}
}

func TestParseBytesRejectsMalformedYAML(t *testing.T) {
	if _, err := ParseBytes([]byte("nodes: [")); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestWidgetNodeDiscovery(t *testing.T) {
	def := parseSession(t)

	widgets := def.WidgetNodes()
	if len(widgets) != 2 {
		t.Fatalf("expected 2 widget nodes, got %d", len(widgets))
	}
	// Definition order is preserved.
	if widgets[0].ID != "ui-audio-player" || widgets[1].ID != "ui-prompt-input" {
		t.Errorf("widgets = %s, %s", widgets[0].ID, widgets[1].ID)
	}
	if def.WidgetNodeCount() != 2 {
		t.Errorf("WidgetNodeCount = %d", def.WidgetNodeCount())
	}
}

func TestUnrecognizedWidgetIDIsSkipped(t *testing.T) {
	def := parseSession(t)
	for _, n := range def.WidgetNodes() {
		if n.ID == "ui-sidebar" {
			t.Error("ui-sidebar has no bridge kind and must be skipped")
		}
	}
}

func TestIsWidgetNode(t *testing.T) {
	cases := map[string]bool{
		"ui-audio-player": true,
		"ui-x":            true,
		"ui-":             false,
		"tts":             false,
		"":                false,
	}
	for id, want := range cases {
		if got := IsWidgetNode(id); got != want {
			t.Errorf("IsWidgetNode(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestTypeRoundTrip(t *testing.T) {
	types := []NodeType{NodeAudioPlayer, NodeSystemLog, NodePromptInput, NodeMicInput, NodeCastController}
	for _, typ := range types {
		if got := TypeForNodeID(typ.String()); got != typ {
			t.Errorf("TypeForNodeID(%q) = %v, want %v", typ.String(), got, typ)
		}
	}
	if TypeForNodeID("ui-sidebar") != NodeUnknown {
		t.Error("unrecognized widget id should map to NodeUnknown")
	}
}

func TestEnvRequirements(t *testing.T) {
	def := parseSession(t)

	reqs := def.EnvRequirements()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %v", reqs)
	}
	// Sorted by key, deduplicated across nodes.
	if reqs[0].Key != "LLM_API_BASE" || reqs[1].Key != "LLM_API_KEY" {
		t.Errorf("keys = %s, %s", reqs[0].Key, reqs[1].Key)
	}
	if reqs[1].Node != "llm" {
		t.Errorf("first referencing node = %s, want llm", reqs[1].Node)
	}
}

func TestMissingEnv(t *testing.T) {
	def := parseSession(t)

	missing := def.MissingEnv(nil)
	if len(missing) != 2 {
		t.Fatalf("missing = %v, want both keys", missing)
	}

	missing = def.MissingEnv(map[string]string{"LLM_API_KEY": "sk-test"})
	if len(missing) != 1 || missing[0] != "LLM_API_BASE" {
		t.Errorf("missing = %v, want only LLM_API_BASE", missing)
	}

	t.Setenv("LLM_API_BASE", "https://llm.local")
	missing = def.MissingEnv(map[string]string{"LLM_API_KEY": "sk-test"})
	if len(missing) != 0 {
		t.Errorf("missing = %v, process env should satisfy the rest", missing)
	}
}
