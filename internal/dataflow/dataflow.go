// Package dataflow parses the engine's YAML graph definition and answers
// the questions the runtime asks of it: which nodes exist, which of them
// are UI widget nodes that need a bridge, and which environment variables
// the graph requires before it can start.
package dataflow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// WidgetNodePrefix marks dynamic nodes owned by the UI process.
const WidgetNodePrefix = "ui-"

// NodeType enumerates the widget node kinds this runtime knows how to
// bridge. The set is closed; unknown widget ids are skipped at discovery.
type NodeType int

const (
	NodeUnknown NodeType = iota
	// NodeAudioPlayer receives synthesized audio and plays it.
	NodeAudioPlayer
	// NodeSystemLog aggregates log lines from other nodes.
	NodeSystemLog
	// NodePromptInput sends user prompts and receives streaming text.
	NodePromptInput
	// NodeMicInput captures microphone audio and forwards it upstream.
	NodeMicInput
	// NodeCastController drives batch synthesis of a prepared script.
	NodeCastController
)

// String returns the widget node id for the type.
func (t NodeType) String() string {
	switch t {
	case NodeAudioPlayer:
		return "ui-audio-player"
	case NodeSystemLog:
		return "ui-system-log"
	case NodePromptInput:
		return "ui-prompt-input"
	case NodeMicInput:
		return "ui-mic-input"
	case NodeCastController:
		return "ui-cast-controller"
	default:
		return "unknown"
	}
}

// TypeForNodeID maps a node id to its widget type, or NodeUnknown.
func TypeForNodeID(nodeID string) NodeType {
	switch nodeID {
	case "ui-audio-player":
		return NodeAudioPlayer
	case "ui-system-log":
		return NodeSystemLog
	case "ui-prompt-input":
		return NodePromptInput
	case "ui-mic-input":
		return NodeMicInput
	case "ui-cast-controller":
		return NodeCastController
	default:
		return NodeUnknown
	}
}

// IsWidgetNode reports whether a node id belongs to the UI process.
func IsWidgetNode(nodeID string) bool {
	return len(nodeID) > len(WidgetNodePrefix) && nodeID[:len(WidgetNodePrefix)] == WidgetNodePrefix
}

// Node is one entry of the definition's node list.
type Node struct {
	ID      string            `yaml:"id"`
	Path    string            `yaml:"path,omitempty"`
	Inputs  map[string]string `yaml:"inputs,omitempty"`
	Outputs []string          `yaml:"outputs,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Type returns the widget type of the node, or NodeUnknown for regular
// worker nodes.
func (n Node) Type() NodeType { return TypeForNodeID(n.ID) }

// EnvRequirement is an environment variable the definition references.
type EnvRequirement struct {
	Key string
	// Node is the first node that references the key.
	Node string
}

// Definition is a parsed dataflow graph definition.
type Definition struct {
	Path  string
	Nodes []Node `yaml:"nodes"`
}

// Parse loads and parses the definition at path.
func Parse(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataflow definition: %w", err)
	}
	def, err := ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	def.Path = path
	return def, nil
}

// ParseBytes parses a definition from raw YAML.
func ParseBytes(raw []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, err
	}
	if len(def.Nodes) == 0 {
		return nil, fmt.Errorf("definition has no nodes")
	}
	seen := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("definition has a node without an id")
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
	}
	return &def, nil
}

// Dir returns the directory holding the definition file. Lifecycle commands
// run from here with only the file name, avoiding path-quoting issues.
func (d *Definition) Dir() string { return filepath.Dir(d.Path) }

// Filename returns the bare file name of the definition.
func (d *Definition) Filename() string { return filepath.Base(d.Path) }

// WidgetNodes returns the nodes this runtime bridges, in definition order.
// Widget-prefixed nodes with an unrecognized id are skipped, not errors.
func (d *Definition) WidgetNodes() []Node {
	var out []Node
	for _, n := range d.Nodes {
		if n.Type() != NodeUnknown {
			out = append(out, n)
		}
	}
	return out
}

// NodeCount returns the total number of nodes in the graph.
func (d *Definition) NodeCount() int { return len(d.Nodes) }

// WidgetNodeCount returns the number of bridgeable widget nodes.
func (d *Definition) WidgetNodeCount() int { return len(d.WidgetNodes()) }

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// EnvRequirements returns the environment keys referenced as ${KEY} in node
// env values, deduplicated and sorted. Literal env values carry their own
// data and require nothing from the caller.
func (d *Definition) EnvRequirements() []EnvRequirement {
	byKey := make(map[string]string)
	for _, n := range d.Nodes {
		for _, v := range n.Env {
			for _, m := range envRefPattern.FindAllStringSubmatch(v, -1) {
				if _, ok := byKey[m[1]]; !ok {
					byKey[m[1]] = n.ID
				}
			}
		}
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	reqs := make([]EnvRequirement, 0, len(keys))
	for _, k := range keys {
		reqs = append(reqs, EnvRequirement{Key: k, Node: byKey[k]})
	}
	return reqs
}

// MissingEnv returns the required keys absent from both the supplied map
// and the process environment, sorted.
func (d *Definition) MissingEnv(supplied map[string]string) []string {
	var missing []string
	for _, req := range d.EnvRequirements() {
		if _, ok := supplied[req.Key]; ok {
			continue
		}
		if _, ok := os.LookupEnv(req.Key); ok {
			continue
		}
		missing = append(missing, req.Key)
	}
	return missing
}
