package classifier

import "strings"

// ContentKind is the semantic kind assigned to a fragment.
type ContentKind int

const (
	KindNone ContentKind = iota
	KindText
	KindToolCall
	KindToolResult
	KindReasoning
	KindStatus
	KindFile
	KindData
	KindError
)

var kindNames = map[ContentKind]string{
	KindNone:       "none",
	KindText:       "text",
	KindToolCall:   "tool_call",
	KindToolResult: "tool_result",
	KindReasoning:  "reasoning",
	KindStatus:     "status",
	KindFile:       "file",
	KindData:       "data",
	KindError:      "error",
}

func (k ContentKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// kindAliases maps wire discriminators onto kinds. Several producers use
// different spellings for the same thing.
var kindAliases = map[string]ContentKind{
	"text":              KindText,
	"message":           KindText,
	"tool_call":         KindToolCall,
	"tool_use":          KindToolCall,
	"function_call":     KindToolCall,
	"tool_result":       KindToolResult,
	"tool_response":     KindToolResult,
	"function_response": KindToolResult,
	"reasoning":         KindReasoning,
	"thinking":          KindReasoning,
	"thought":           KindReasoning,
	"status":            KindStatus,
	"progress":          KindStatus,
	"file":              KindFile,
	"data":              KindData,
	"error":             KindError,
}

// ParseContentKind resolves a discriminator string. Unknown values report false.
func ParseContentKind(s string) (ContentKind, bool) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

// Strategy records which resolution layer decided a classification.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyExplicit
	StrategyTitle
	StrategyContent
	StrategyKeyword
	StrategyDefault
)

func (s Strategy) String() string {
	switch s {
	case StrategyExplicit:
		return "explicit"
	case StrategyTitle:
		return "title"
	case StrategyContent:
		return "content"
	case StrategyKeyword:
		return "keyword"
	case StrategyDefault:
		return "default"
	default:
		return "none"
	}
}

// Classification is the classifier output. Tool details are filled from
// embedded JSON whenever it parses, regardless of which layer chose Kind.
type Classification struct {
	Kind      ContentKind
	Strategy  Strategy
	ToolName  string
	Arguments map[string]any
	Result    any
	HasResult bool
	Status    string
}

// IsError reports whether the classification carries an explicit error status.
func (c Classification) IsError() bool {
	switch strings.ToLower(c.Status) {
	case "error", "failed", "failure":
		return true
	}
	return false
}
