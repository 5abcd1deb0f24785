// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chat defines the normalized chat-message model consumed by the
// rendering layer.
package chat

import (
	"errors"
	"fmt"

	"github.com/kadirpekel/a2achat/pkg/protocol"
)

// ResponseKind tags which payload a Message carries.
type ResponseKind string

const (
	KindText           ResponseKind = "text"
	KindReasoningSteps ResponseKind = "reasoning_steps"
	KindChainOfThought ResponseKind = "chain_of_thought"
	KindImage          ResponseKind = "image"
	KindUserDefined    ResponseKind = "user_defined"
)

// StepStatus is the lifecycle of a reasoning or chain-of-thought step.
type StepStatus string

const (
	StepProcessing StepStatus = "processing"
	StepSuccess    StepStatus = "success"
	StepError      StepStatus = "error"
)

// IsTerminal reports whether the status can no longer change.
func (s StepStatus) IsTerminal() bool {
	return s == StepSuccess || s == StepError
}

// UserDefinedType discriminates UserDefinedPayload.
type UserDefinedType string

const (
	UserDefinedStatus     UserDefinedType = "status"
	UserDefinedAttachment UserDefinedType = "attachment"
	UserDefinedChart      UserDefinedType = "chart"
	UserDefinedTable      UserDefinedType = "table"
	UserDefinedData       UserDefinedType = "data"
	UserDefinedError      UserDefinedType = "error"
	UserDefinedForm       UserDefinedType = "form"
)

// ErrInvalidMessage is returned by Validate.
var ErrInvalidMessage = errors.New("invalid chat message")

// Message is the translator's output unit. Exactly one payload field is set
// and it matches Kind.
type Message struct {
	ID             string              `json:"id"`
	Kind           ResponseKind        `json:"kind"`
	Text           *TextPayload        `json:"text,omitempty"`
	Reasoning      *StepsPayload       `json:"reasoning,omitempty"`
	ChainOfThought *StepsPayload       `json:"chain_of_thought,omitempty"`
	Image          *ImagePayload       `json:"image,omitempty"`
	UserDefined    *UserDefinedPayload `json:"user_defined,omitempty"`
	From           *AgentProfile       `json:"from,omitempty"`
	Metadata       map[string]any      `json:"metadata,omitempty"`
}

// AgentProfile identifies the agent a message is attributed to.
type AgentProfile struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	IconURL     string `json:"icon_url,omitempty" yaml:"icon_url,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsZero reports whether no identity field is set.
func (a AgentProfile) IsZero() bool {
	return a == AgentProfile{}
}

// TextPayload is plain agent text.
type TextPayload struct {
	Text      string              `json:"text"`
	Citations []protocol.Citation `json:"citations,omitempty"`
}

// StepsPayload holds reasoning or chain-of-thought steps.
type StepsPayload struct {
	Steps []Step `json:"steps"`
}

// Step is one reasoning or tool-use step.
type Step struct {
	Title       string        `json:"title,omitempty"`
	ToolName    string        `json:"tool_name,omitempty"`
	Description string        `json:"description,omitempty"`
	Request     *StepRequest  `json:"request,omitempty"`
	Response    *StepResponse `json:"response,omitempty"`
	Status      StepStatus    `json:"status"`
}

// StepRequest carries structured tool arguments.
type StepRequest struct {
	Args map[string]any `json:"args,omitempty"`
}

// StepResponse carries structured tool output.
type StepResponse struct {
	Content any `json:"content,omitempty"`
}

// ImagePayload is an inline or linked image.
type ImagePayload struct {
	Source   string `json:"source"`
	MimeType string `json:"mime_type,omitempty"`
	Title    string `json:"title,omitempty"`
	AltText  string `json:"alt_text,omitempty"`
}

// UserDefinedPayload carries application-specific content. Exactly one
// field matching Type is set.
type UserDefinedPayload struct {
	Type       UserDefinedType       `json:"type"`
	Status     *StatusNotice         `json:"status,omitempty"`
	Attachment *Attachment           `json:"attachment,omitempty"`
	Chart      *Chart                `json:"chart,omitempty"`
	Table      *Table                `json:"table,omitempty"`
	Data       any                   `json:"data,omitempty"`
	Error      *ErrorPayload         `json:"error,omitempty"`
	Form       *protocol.FormRequest `json:"form,omitempty"`
}

// StatusNotice is a transient progress notice.
type StatusNotice struct {
	Text    string `json:"text"`
	GroupID string `json:"group_id,omitempty"`
}

// Attachment is a downloadable file.
type Attachment struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Source   string `json:"source,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Chart is an image-like file the agent labelled as a chart or graph.
type Chart struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Table is tabular data. Columns come from the first row only.
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// ErrorPayload is an agent-reported error.
type ErrorPayload struct {
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Steps returns the steps of a reasoning or chain-of-thought message.
func (m Message) Steps() []Step {
	switch m.Kind {
	case KindReasoningSteps:
		if m.Reasoning != nil {
			return m.Reasoning.Steps
		}
	case KindChainOfThought:
		if m.ChainOfThought != nil {
			return m.ChainOfThought.Steps
		}
	}
	return nil
}

// Validate checks the one-payload invariant.
func (m Message) Validate() error {
	set := 0
	for _, populated := range []bool{
		m.Text != nil,
		m.Reasoning != nil,
		m.ChainOfThought != nil,
		m.Image != nil,
		m.UserDefined != nil,
	} {
		if populated {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: %d payloads set", ErrInvalidMessage, set)
	}

	var ok bool
	switch m.Kind {
	case KindText:
		ok = m.Text != nil
	case KindReasoningSteps:
		ok = m.Reasoning != nil
	case KindChainOfThought:
		ok = m.ChainOfThought != nil
	case KindImage:
		ok = m.Image != nil
	case KindUserDefined:
		ok = m.UserDefined != nil && m.UserDefined.valid()
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: payload does not match kind %q", ErrInvalidMessage, m.Kind)
	}
	return nil
}

func (u *UserDefinedPayload) valid() bool {
	switch u.Type {
	case UserDefinedStatus:
		return u.Status != nil
	case UserDefinedAttachment:
		return u.Attachment != nil
	case UserDefinedChart:
		return u.Chart != nil
	case UserDefinedTable:
		return u.Table != nil
	case UserDefinedData:
		return true
	case UserDefinedError:
		return u.Error != nil
	case UserDefinedForm:
		return u.Form != nil
	}
	return false
}
