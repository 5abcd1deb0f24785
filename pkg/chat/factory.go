package chat

import (
	"sort"

	"github.com/google/uuid"

	"github.com/kadirpekel/a2achat/pkg/protocol"
)

// The constructors below build well-formed messages directly, without going
// through classification. Every message gets a fresh id.

func newID() string {
	return uuid.NewString()
}

// NewText creates a text message.
func NewText(text string, citations ...protocol.Citation) Message {
	return Message{
		ID:   newID(),
		Kind: KindText,
		Text: &TextPayload{Text: text, Citations: citations},
	}
}

// NewToolCall creates a chain-of-thought message for an invoked tool.
func NewToolCall(toolName, description string, args map[string]any, status StepStatus) Message {
	step := Step{
		Title:       toolName,
		ToolName:    toolName,
		Description: description,
		Status:      status,
	}
	if len(args) > 0 {
		step.Request = &StepRequest{Args: args}
	}
	return NewChainOfThought(step)
}

// NewToolResult creates a chain-of-thought message for a tool's output.
// A nil content leaves the response absent.
func NewToolResult(toolName, description string, content any, failed bool) Message {
	status := StepSuccess
	if failed {
		status = StepError
	}
	step := Step{
		Title:       toolName,
		ToolName:    toolName,
		Description: description,
		Status:      status,
	}
	if content != nil {
		step.Response = &StepResponse{Content: content}
	}
	return NewChainOfThought(step)
}

// NewChainOfThought wraps steps into a chain-of-thought message.
func NewChainOfThought(steps ...Step) Message {
	return Message{
		ID:             newID(),
		Kind:           KindChainOfThought,
		ChainOfThought: &StepsPayload{Steps: steps},
	}
}

// NewReasoning creates a reasoning message with a single step.
func NewReasoning(title, description string, status StepStatus) Message {
	return Message{
		ID:   newID(),
		Kind: KindReasoningSteps,
		Reasoning: &StepsPayload{Steps: []Step{{
			Title:       title,
			Description: description,
			Status:      status,
		}}},
	}
}

// NewStatus creates a transient status notice.
func NewStatus(text, groupID string) Message {
	return userDefined(&UserDefinedPayload{
		Type:   UserDefinedStatus,
		Status: &StatusNotice{Text: text, GroupID: groupID},
	})
}

// NewImage creates an image message. Source is a URI or a data: URI.
func NewImage(source, mimeType, title string) Message {
	return Message{
		ID:    newID(),
		Kind:  KindImage,
		Image: &ImagePayload{Source: source, MimeType: mimeType, Title: title, AltText: title},
	}
}

// NewChart creates a chart message.
func NewChart(name, mimeType, source string) Message {
	return userDefined(&UserDefinedPayload{
		Type:  UserDefinedChart,
		Chart: &Chart{Name: name, MimeType: mimeType, Source: source},
	})
}

// NewAttachment creates a downloadable attachment message.
func NewAttachment(name, mimeType, source string, size int64) Message {
	return userDefined(&UserDefinedPayload{
		Type:       UserDefinedAttachment,
		Attachment: &Attachment{Name: name, MimeType: mimeType, Source: source, Size: size},
	})
}

// NewTable creates a table message from explicit columns and rows.
func NewTable(columns []string, rows []map[string]any) Message {
	return userDefined(&UserDefinedPayload{
		Type:  UserDefinedTable,
		Table: &Table{Columns: columns, Rows: rows},
	})
}

// TableFromRows derives columns from the keys of the first row, sorted.
// Keys that only appear in later rows are not columns; rows are kept as-is.
func TableFromRows(rows []map[string]any) Table {
	var columns []string
	if len(rows) > 0 {
		columns = make([]string, 0, len(rows[0]))
		for k := range rows[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}
	return Table{Columns: columns, Rows: rows}
}

// NewData creates an opaque data message. The value is not modified.
func NewData(data any) Message {
	return userDefined(&UserDefinedPayload{
		Type: UserDefinedData,
		Data: data,
	})
}

// NewError creates an error message.
func NewError(title, message, code string, context map[string]any) Message {
	return userDefined(&UserDefinedPayload{
		Type:  UserDefinedError,
		Error: &ErrorPayload{Title: title, Message: message, Code: code, Context: context},
	})
}

// NewForm creates a form message for an input-required task.
func NewForm(form protocol.FormRequest) Message {
	return userDefined(&UserDefinedPayload{
		Type: UserDefinedForm,
		Form: &form,
	})
}

func userDefined(p *UserDefinedPayload) Message {
	return Message{ID: newID(), Kind: KindUserDefined, UserDefined: p}
}

// WithAgent returns m attributed to the given agent. A zero profile clears
// the attribution.
func (m Message) WithAgent(agent AgentProfile) Message {
	if agent.IsZero() {
		m.From = nil
		return m
	}
	a := agent
	m.From = &a
	return m
}
