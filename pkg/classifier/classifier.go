// Package classifier decides which semantic content kind a trajectory
// fragment or A2A part represents.
//
// Resolution is layered and the first layer that matches wins:
//
//  1. explicit content_type tag
//  2. title phrase inference
//  3. embedded JSON in the content
//  4. plain-text keyword fallback
//  5. reasoning if anything is left, otherwise nothing
//
// The order is the contract. Ambiguous text can match more than one layer;
// there is no confidence scoring.
package classifier

import (
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/a2achat/pkg/protocol"
)

// PhraseSets holds the case-insensitive title phrases used for inference.
type PhraseSets struct {
	ToolCall   []string `yaml:"tool_call,omitempty" json:"tool_call,omitempty"`
	ToolResult []string `yaml:"tool_result,omitempty" json:"tool_result,omitempty"`
	Reasoning  []string `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`
	Status     []string `yaml:"status,omitempty" json:"status,omitempty"`
}

// DefaultPhraseSets returns the built-in phrase sets.
func DefaultPhraseSets() PhraseSets {
	return PhraseSets{
		ToolCall:   []string{"calling", "tool call", "invoking", "executing tool", "using tool", "running tool"},
		ToolResult: []string{"result", "response from", "output", "completed", "finished", "returned", "failed"},
		Reasoning:  []string{"thinking", "reasoning", "thought", "planning", "analyzing", "considering", "deliberat", "reflect"},
		Status:     []string{"status", "progress", "working on", "processing", "waiting", "searching", "loading"},
	}
}

// WithDefaults fills empty sets from DefaultPhraseSets.
func (p PhraseSets) WithDefaults() PhraseSets {
	d := DefaultPhraseSets()
	if len(p.ToolCall) == 0 {
		p.ToolCall = d.ToolCall
	}
	if len(p.ToolResult) == 0 {
		p.ToolResult = d.ToolResult
	}
	if len(p.Reasoning) == 0 {
		p.Reasoning = d.Reasoning
	}
	if len(p.Status) == 0 {
		p.Status = d.Status
	}
	return p
}

// Classifier assigns content kinds. The zero value uses DefaultPhraseSets.
type Classifier struct {
	phrases PhraseSets
}

// New creates a Classifier. Empty phrase sets fall back to the defaults.
func New(phrases PhraseSets) *Classifier {
	return &Classifier{phrases: phrases.WithDefaults()}
}

func (c *Classifier) phraseSets() PhraseSets {
	if c == nil {
		return DefaultPhraseSets()
	}
	return c.phrases.WithDefaults()
}

// ClassifyTrajectory classifies a trajectory fragment.
func (c *Classifier) ClassifyTrajectory(frag protocol.TrajectoryFragment) Classification {
	var out Classification

	embedded, hasEmbedded := ExtractEmbeddedJSON(frag.Content)
	if hasEmbedded {
		out = detailsFromJSON(embedded)
	}
	if frag.Status != "" {
		out.Status = frag.Status
	}

	if kind, ok := trajectoryKind(frag.ContentType); ok {
		out.Kind, out.Strategy = kind, StrategyExplicit
		return out
	}

	if kind, ok := c.titleKind(frag.Title); ok {
		out.Kind, out.Strategy = kind, StrategyTitle
		return out
	}

	if hasEmbedded {
		if kind, ok := embeddedKind(embedded); ok {
			out.Kind, out.Strategy = kind, StrategyContent
			return out
		}
	}

	if kind, ok := keywordKind(frag.Content); ok {
		out.Kind, out.Strategy = kind, StrategyKeyword
		return out
	}

	if !frag.IsEmpty() {
		out.Kind, out.Strategy = KindReasoning, StrategyDefault
		return out
	}

	return Classification{}
}

// trajectoryKind accepts the explicit tags that make sense for a trajectory.
func trajectoryKind(tag string) (ContentKind, bool) {
	if tag == "" {
		return KindNone, false
	}
	kind, ok := ParseContentKind(tag)
	if !ok {
		return KindNone, false
	}
	switch kind {
	case KindFile, KindData:
		return KindNone, false
	}
	return kind, true
}

func (c *Classifier) titleKind(title string) (ContentKind, bool) {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return KindNone, false
	}
	p := c.phraseSets()
	switch {
	case containsAny(t, p.ToolCall):
		return KindToolCall, true
	case containsAny(t, p.ToolResult):
		return KindToolResult, true
	case containsAny(t, p.Reasoning):
		return KindReasoning, true
	case containsAny(t, p.Status):
		return KindStatus, true
	}
	return KindNone, false
}

func embeddedKind(obj map[string]any) (ContentKind, bool) {
	tag := protocol.DataString(obj, "content_type", "type")
	kind, ok := ParseContentKind(tag)
	if !ok {
		return KindNone, false
	}
	switch kind {
	case KindToolCall, KindToolResult:
		return kind, true
	}
	return KindNone, false
}

func keywordKind(content string) (ContentKind, bool) {
	if content == "" {
		return KindNone, false
	}
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "arguments:"), strings.Contains(lower, "calling"):
		return KindToolCall, true
	case strings.Contains(lower, "result:"), strings.Contains(lower, "status:"):
		return KindToolResult, true
	}
	return KindNone, false
}

// detailsFromJSON pulls tool details from a flat object or from the legacy
// nested tool_data object. Flat fields win.
func detailsFromJSON(obj map[string]any) Classification {
	var out Classification
	sources := []map[string]any{obj}
	if nested := protocol.DataMap(obj, "tool_data"); nested != nil {
		sources = append(sources, nested)
	}

	for _, src := range sources {
		if out.ToolName == "" {
			out.ToolName = protocol.DataString(src, "tool_name", "name", "tool")
		}
		if out.Arguments == nil {
			out.Arguments = argumentsOf(src)
		}
		if !out.HasResult {
			if v, ok := protocol.DataValue(src, "result", "output", "response", "content"); ok {
				out.Result, out.HasResult = v, true
			}
		}
		if out.Status == "" {
			out.Status = protocol.DataString(src, "status")
		}
		if out.Status == "" {
			if isErr, ok := protocol.DataBool(src, protocol.MetaIsError); ok && isErr {
				out.Status = "error"
			} else if protocol.DataString(src, "error") != "" {
				out.Status = "error"
			}
		}
	}
	return out
}

func argumentsOf(src map[string]any) map[string]any {
	for _, key := range []string{"arguments", "args", "input", "parameters"} {
		switch v := src[key].(type) {
		case map[string]any:
			return v
		case string:
			if m, ok := parseObject(v); ok {
				return m
			}
		}
	}
	return nil
}

// ClassifyPart classifies an A2A part. Legacy event_type metadata hints are
// honoured before the payload shape.
func (c *Classifier) ClassifyPart(part a2a.Part) Classification {
	meta := protocol.PartMetadata(part)

	switch protocol.DataString(meta, protocol.MetaEventType, protocol.MetaBlockType) {
	case protocol.EventTypeToolCall:
		out := c.dataDetails(part)
		if _, hasIsError := meta[protocol.MetaIsError]; hasIsError {
			out.Kind = KindToolResult
			if isErr, _ := protocol.DataBool(meta, protocol.MetaIsError); isErr {
				out.Status = "error"
			}
		} else {
			out.Kind = KindToolCall
		}
		if out.ToolName == "" {
			out.ToolName = protocol.DataString(meta, protocol.MetaToolName)
		}
		out.Strategy = StrategyExplicit
		return out
	case protocol.EventTypeThinking:
		return Classification{Kind: KindReasoning, Strategy: StrategyExplicit}
	case protocol.EventTypeError:
		return Classification{Kind: KindError, Strategy: StrategyExplicit}
	}

	switch p := part.(type) {
	case a2a.TextPart, *a2a.TextPart:
		return Classification{Kind: KindText, Strategy: StrategyExplicit}
	case a2a.FilePart, *a2a.FilePart:
		return Classification{Kind: KindFile, Strategy: StrategyExplicit}
	case a2a.DataPart:
		return classifyData(p.Data)
	case *a2a.DataPart:
		if p != nil {
			return classifyData(p.Data)
		}
	}
	return Classification{}
}

func (c *Classifier) dataDetails(part a2a.Part) Classification {
	switch p := part.(type) {
	case a2a.DataPart:
		return detailsFromJSON(p.Data)
	case *a2a.DataPart:
		if p != nil {
			return detailsFromJSON(p.Data)
		}
	}
	return Classification{}
}

func classifyData(data map[string]any) Classification {
	out := detailsFromJSON(data)
	if kind, ok := ParseContentKind(protocol.DataString(data, "content_type", "type")); ok {
		switch kind {
		case KindToolCall, KindToolResult, KindReasoning, KindStatus, KindError:
			out.Kind, out.Strategy = kind, StrategyExplicit
			return out
		}
	}
	return Classification{Kind: KindData, Strategy: StrategyDefault}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
