package agui

import (
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/kadirpekel/a2achat/pkg/chat"
)

// DeltaType is the lifecycle transition a delta reports.
type DeltaType string

const (
	DeltaOpened    DeltaType = "opened"
	DeltaUpdated   DeltaType = "updated"
	DeltaFinalized DeltaType = "finalized"
)

// Delta reports one change to a chat item. Message is the full current
// snapshot of the item, so applying the same delta twice is harmless.
type Delta struct {
	Seq     int          `json:"seq"`
	Type    DeltaType    `json:"type"`
	ItemID  string       `json:"item_id"`
	Message chat.Message `json:"message"`
}

// ============================================================================
// Run lifecycle events
// ============================================================================

// RunEventType names a lifecycle frame sent around the deltas of one run.
type RunEventType string

const (
	RunStarted  RunEventType = "run_started"
	RunFinished RunEventType = "run_finished"
	RunError    RunEventType = "run_error"
)

// RunEvent brackets the deltas of one request/response exchange.
type RunEvent struct {
	EventID   string       `json:"event_id"`
	Type      RunEventType `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	TaskID    string       `json:"task_id,omitempty"`
	ContextID string       `json:"context_id,omitempty"`
	State     string       `json:"state,omitempty"`
	Message   string       `json:"message,omitempty"`
	Code      string       `json:"code,omitempty"`
}

// NewRunStartedEvent creates a run_started event
func NewRunStartedEvent(taskID, contextID string) RunEvent {
	return RunEvent{
		EventID:   uuid.NewString(),
		Type:      RunStarted,
		Timestamp: time.Now().UTC(),
		TaskID:    taskID,
		ContextID: contextID,
	}
}

// NewRunFinishedEvent creates a run_finished event
func NewRunFinishedEvent(taskID, contextID string, state a2a.TaskState) RunEvent {
	return RunEvent{
		EventID:   uuid.NewString(),
		Type:      RunFinished,
		Timestamp: time.Now().UTC(),
		TaskID:    taskID,
		ContextID: contextID,
		State:     string(state),
	}
}

// NewRunErrorEvent creates a run_error event
func NewRunErrorEvent(taskID, message, code string) RunEvent {
	return RunEvent{
		EventID:   uuid.NewString(),
		Type:      RunError,
		Timestamp: time.Now().UTC(),
		TaskID:    taskID,
		Message:   message,
		Code:      code,
	}
}
