package translator

import (
	"regexp"
	"strings"

	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/classifier"
	"github.com/kadirpekel/a2achat/pkg/protocol"
)

// fallbackToolName is used when no tool name can be resolved.
const fallbackToolName = "tool"

const toolNameChars = "[A-Za-z0-9_.\\-/]+"

var (
	toolCallTitle = regexp.MustCompile(
		`(?i)(?:calling(?:\s+tool\b)?|tool\s+call|invoking(?:\s+tool\b)?|using\s+tool|executing\s+tool|running\s+tool)\s*[:\-]?\s*["'` + "`" + `]?(` + toolNameChars + `)`)

	// Checked before toolResultSuffix so "Tool Result: x" resolves to x.
	toolResultPrefix = regexp.MustCompile(`(?i)tool\s+(?:result|output|response)\s*[:\-]?\s*["'` + "`" + `]?(` + toolNameChars + `)`)
	toolResultSuffix = regexp.MustCompile(`(?i)^\s*["'` + "`" + `]?(` + toolNameChars + `)["'` + "`" + `]?\s+(?:result|output|response)s?\b`)
)

// CallToolName extracts the tool name from a call title such as
// "Calling search_web" or "Tool Call: search_web".
func CallToolName(title string) string {
	if m := toolCallTitle.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return ""
}

// ResultToolName extracts the tool name from a result title such as
// "search_web Result" or "Tool Result: search_web".
func ResultToolName(title string) string {
	if m := toolResultPrefix.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	if m := toolResultSuffix.FindStringSubmatch(title); m != nil && !strings.EqualFold(m[1], "tool") {
		return m[1]
	}
	return ""
}

// TranslateTrajectory translates a single trajectory fragment. It returns
// nil when the fragment produces no message.
func (t *Translator) TranslateTrajectory(frag protocol.TrajectoryFragment, mode Mode) *chat.Message {
	item, ok := t.TrajectoryItem(frag, mode)
	if !ok {
		return nil
	}
	return &item.Message
}

// TrajectoryItem classifies and translates a trajectory fragment.
func (t *Translator) TrajectoryItem(frag protocol.TrajectoryFragment, mode Mode) (Item, bool) {
	cls := t.classifier.ClassifyTrajectory(frag)

	var item Item
	switch cls.Kind {
	case classifier.KindToolCall:
		item = t.toolCall(frag, cls, mode)
	case classifier.KindToolResult:
		item = t.toolResult(frag, cls)
	case classifier.KindReasoning:
		item = t.reasoning(frag, cls, mode)
	case classifier.KindStatus:
		item = t.status(frag)
	case classifier.KindText:
		text := firstNonEmpty(frag.Content, frag.Title)
		item = t.emit(chat.NewText(text), cls.Kind)
	case classifier.KindError:
		item = t.emit(chat.NewError(frag.Title, firstNonEmpty(frag.Content, frag.Title), "", nil), cls.Kind)
	case classifier.KindNone:
		t.drop("empty_trajectory", "group_id", frag.GroupID)
		return Item{}, false
	default:
		t.drop("unsupported_kind", "kind", cls.Kind.String())
		return Item{}, false
	}

	item.GroupID = frag.GroupID
	t.logger.Debug("Translated trajectory",
		"kind", cls.Kind.String(),
		"strategy", cls.Strategy.String(),
		"tool", item.ToolName,
		"group_id", frag.GroupID)
	return item, true
}

func (t *Translator) toolCall(frag protocol.TrajectoryFragment, cls classifier.Classification, mode Mode) Item {
	name := firstNonEmpty(cls.ToolName, CallToolName(frag.Title), fallbackToolName)

	args := cls.Arguments
	if args == nil {
		args, _ = classifier.ArgumentsLine(frag.Content)
	}
	if args == nil {
		// An untagged fenced object under a call title is the argument list.
		if obj, ok := classifier.ExtractFencedJSON(frag.Content); ok && protocol.DataString(obj, "type", "content_type") == "" {
			args = obj
		}
	}

	step := chat.Step{
		Title:       firstNonEmpty(frag.Title, name),
		ToolName:    name,
		Description: describe(frag.Content),
		Status:      stepStatus(cls.Status, mode.defaultStatus()),
	}
	if len(args) > 0 {
		step.Request = &chat.StepRequest{Args: args}
	}

	item := t.emit(chat.NewChainOfThought(step), cls.Kind)
	item.ToolName = name
	return item
}

func (t *Translator) toolResult(frag protocol.TrajectoryFragment, cls classifier.Classification) Item {
	name := firstNonEmpty(cls.ToolName, ResultToolName(frag.Title), fallbackToolName)

	failed := cls.IsError() ||
		strings.Contains(strings.ToLower(frag.Content), "error") ||
		strings.Contains(strings.ToLower(frag.Title), "failed")

	status := chat.StepSuccess
	if failed {
		status = chat.StepError
	}

	step := chat.Step{
		Title:    firstNonEmpty(frag.Title, name),
		ToolName: name,
		Status:   status,
	}
	if cls.HasResult {
		step.Response = &chat.StepResponse{Content: cls.Result}
		step.Description = describe(frag.Content)
	} else if content := describe(frag.Content); content != "" {
		step.Response = &chat.StepResponse{Content: content}
	}

	item := t.emit(chat.NewChainOfThought(step), cls.Kind)
	item.ToolName = name
	return item
}

func (t *Translator) reasoning(frag protocol.TrajectoryFragment, cls classifier.Classification, mode Mode) Item {
	msg := chat.NewReasoning(
		strings.TrimSpace(frag.Title),
		strings.TrimSpace(frag.Content),
		stepStatus(cls.Status, mode.defaultStatus()),
	)
	return t.emit(msg, cls.Kind)
}

func (t *Translator) status(frag protocol.TrajectoryFragment) Item {
	text := firstNonEmpty(strings.TrimSpace(frag.Content), strings.TrimSpace(frag.Title))
	return t.emit(chat.NewStatus(text, frag.GroupID), classifier.KindStatus)
}

// describe strips fenced blocks from content. Content that is nothing but a
// JSON object has no prose and yields "".
func describe(content string) string {
	stripped := classifier.StripFencedBlocks(content)
	if strings.HasPrefix(stripped, "{") {
		if _, ok := classifier.ExtractEmbeddedJSON(stripped); ok {
			return ""
		}
	}
	return stripped
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
