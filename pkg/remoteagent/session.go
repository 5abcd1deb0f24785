package remoteagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/a2achat/pkg/agui"
	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/forms"
	"github.com/kadirpekel/a2achat/pkg/observability"
	"github.com/kadirpekel/a2achat/pkg/translator"
)

// Result summarizes one Send.
type Result struct {
	Canceled  bool
	State     a2a.TaskState
	TaskID    string
	ContextID string
	Messages  []chat.Message
}

// Snapshot is the persistent part of a session: where the conversation
// stands with the agent and what has been rendered so far.
type Snapshot struct {
	ContextID string         `json:"context_id,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	State     a2a.TaskState  `json:"state,omitempty"`
	History   []chat.Message `json:"history"`
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// ID identifies the session. A random id is used when empty.
	ID         string
	Translator *translator.Translator
	Tracer     trace.Tracer

	// Restore resumes a previously saved session.
	Restore *Snapshot
}

// Session is one chat with a remote agent. At most one stream is active at
// a time; starting a new one cancels the previous.
type Session struct {
	id       string
	streamer Streamer
	tr       *translator.Translator
	tracer   trace.Tracer
	logger   *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	gen       uint64
	contextID string
	taskID    string
	state     a2a.TaskState
	history   []chat.Message
}

// NewSession creates a session that sends through streamer.
func NewSession(streamer Streamer, cfg SessionConfig) *Session {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	tr := cfg.Translator
	if tr == nil {
		tr = translator.New(translator.Config{})
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NoopTracer("remoteagent")
	}
	s := &Session{
		id:       id,
		streamer: streamer,
		tr:       tr,
		tracer:   tracer,
		logger:   tr.Logger().With("session_id", id),
	}
	if r := cfg.Restore; r != nil {
		s.contextID = r.ContextID
		s.taskID = r.TaskID
		s.state = r.State
		s.history = slices.Clone(r.History)
	}
	return s
}

// Snapshot captures the session's persistent state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ContextID: s.contextID,
		TaskID:    s.taskID,
		State:     s.state,
		History:   slices.Clone(s.history),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ContextID returns the conversation context assigned by the agent.
func (s *Session) ContextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextID
}

// History returns every message produced so far, oldest first.
func (s *Session) History() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Send streams msg to the agent and passes every delta to emit as it is
// produced. A send that is canceled, by ctx, by Cancel, or by a newer Send,
// returns a Result with Canceled set and no error; partial items are
// discarded without being finalized.
func (s *Session) Send(ctx context.Context, msg *a2a.Message, emit func(agui.Delta) error) (Result, error) {
	if msg == nil {
		return Result{}, errors.New("message is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := *msg
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	if out.ContextID == "" {
		out.ContextID = s.contextID
	}
	if out.TaskID == "" && s.state == a2a.TaskStateInputRequired {
		out.TaskID = a2a.TaskID(s.taskID)
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	ctx, span := s.tracer.Start(ctx, observability.SpanStream,
		trace.WithAttributes(attribute.String(observability.AttrSessionID, s.id)))
	defer span.End()

	start := time.Now()
	acc := agui.NewAccumulator(s.tr)
	res, err := s.consume(ctx, acc, &out, emit)
	if err == nil && !res.Canceled {
		s.mu.Lock()
		s.contextID = res.ContextID
		s.taskID = res.TaskID
		s.state = res.State
		s.history = append(s.history, res.Messages...)
		s.mu.Unlock()
	}

	span.SetAttributes(attribute.String(observability.AttrTaskState, string(res.State)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.tr.Metrics().RecordStream(time.Since(start), string(res.State), err)
	s.logger.Debug("Stream finished",
		"state", string(res.State),
		"canceled", res.Canceled,
		"messages", len(res.Messages),
		"duration", time.Since(start))
	return res, err
}

func (s *Session) consume(ctx context.Context, acc *agui.Accumulator, msg *a2a.Message, emit func(agui.Delta) error) (Result, error) {
	params := &a2a.MessageSendParams{Message: msg}

	var streamErr, emitErr error
	for event, err := range s.streamer.SendStreamingMessage(ctx, params) {
		if err != nil {
			streamErr = err
			break
		}
		for _, d := range acc.Apply(event) {
			if emitErr = emit(d); emitErr != nil {
				break
			}
		}
		if emitErr != nil {
			break
		}
	}

	if ctx.Err() != nil {
		acc.Discard()
		return Result{Canceled: true, State: a2a.TaskStateCanceled, TaskID: acc.TaskID(), ContextID: acc.ContextID()}, nil
	}
	if emitErr != nil {
		acc.Discard()
		return Result{State: acc.State()}, fmt.Errorf("failed to emit delta: %w", emitErr)
	}
	if streamErr != nil {
		// Close what the user has already seen before reporting the failure.
		for _, d := range acc.Finish(a2a.TaskStateFailed) {
			if err := emit(d); err != nil {
				break
			}
		}
		return Result{State: a2a.TaskStateFailed, TaskID: acc.TaskID(), ContextID: acc.ContextID()},
			&TransportError{Op: "stream", Err: streamErr}
	}

	for _, d := range acc.Finish(acc.State()) {
		if err := emit(d); err != nil {
			return Result{State: acc.State()}, fmt.Errorf("failed to emit delta: %w", err)
		}
	}

	contextID := acc.ContextID()
	if contextID == "" {
		contextID = msg.ContextID
	}
	return Result{
		State:     acc.State(),
		TaskID:    acc.TaskID(),
		ContextID: contextID,
		Messages:  acc.Messages(),
	}, nil
}

// SubmitForm validates values against form and sends them as the answer.
func (s *Session) SubmitForm(ctx context.Context, form chat.Message, values map[string]any, emit func(agui.Delta) error) (Result, error) {
	if form.UserDefined == nil || form.UserDefined.Form == nil {
		return Result{}, fmt.Errorf("message %s is not a form: %w", form.ID, chat.ErrInvalidMessage)
	}
	msg, err := forms.BuildSubmission(s.tr.Extensions(), *form.UserDefined.Form, values)
	if err != nil {
		return Result{}, err
	}
	return s.Send(ctx, msg, emit)
}

// Cancel aborts the active stream.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return ErrNoActiveStream
	}
	s.cancel()
	s.cancel = nil
	return nil
}

// Active reports whether a stream is in flight.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
