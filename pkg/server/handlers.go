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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/a2achat/pkg/agui"
	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/forms"
	"github.com/kadirpekel/a2achat/pkg/history"
	"github.com/kadirpekel/a2achat/pkg/remoteagent"
	"github.com/kadirpekel/a2achat/pkg/translator"
)

type messagesResponse struct {
	Messages []chat.Message `json:"messages"`
}

// sendRequest carries either plain text or a full A2A message.
type sendRequest struct {
	Text    string       `json:"text,omitempty"`
	Message *a2a.Message `json:"message,omitempty"`
}

type formRequest struct {
	FormID string         `json:"form_id"`
	Values map[string]any `json:"values"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message  string             `json:"message"`
	Problems []forms.FieldError `json:"problems,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTranslate accepts a task or message document, selected by its
// "kind" field, and returns the rendered chat messages.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read request body: %v", err))
		return
	}

	msgs, err := DecodeAndTranslate(s.tr.Load(), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: msgs})
}

// DecodeAndTranslate decodes a task or message document and translates it
// in final mode. Documents without a kind are read as tasks.
func DecodeAndTranslate(tr *translator.Translator, body []byte) ([]chat.Message, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}

	switch head.Kind {
	case "message":
		var msg a2a.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			return nil, fmt.Errorf("invalid message: %w", err)
		}
		return nonNil(tr.TranslateMessage(&msg, translator.ModeFinal)), nil
	case "task", "":
		var task a2a.Task
		if err := json.Unmarshal(body, &task); err != nil {
			return nil, fmt.Errorf("invalid task: %w", err)
		}
		return nonNil(tr.TranslateTask(&task)), nil
	default:
		return nil, fmt.Errorf("unsupported kind %q (want task or message)", head.Kind)
	}
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if s.streamer == nil {
		writeError(w, http.StatusServiceUnavailable, "no remote agent configured")
		return
	}

	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	msg := req.Message
	if msg == nil {
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, http.StatusBadRequest, "text or message is required")
			return
		}
		msg = a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: req.Text})
	}

	id := chi.URLParam(r, "id")
	key := sessionKey(r.Context(), id)
	sess := s.sessions.getOrCreate(key, func() *remoteagent.Session {
		return s.newSession(r.Context(), key, id)
	})
	s.stream(w, r, key, sess, func(emit func(agui.Delta) error) (remoteagent.Result, error) {
		return sess.Send(r.Context(), msg, emit)
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: nonNil(sess.History())})
}

func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	if s.streamer == nil {
		writeError(w, http.StatusServiceUnavailable, "no remote agent configured")
		return
	}
	sess, key, ok := s.lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req formRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	form, ok := findForm(sess.History(), req.FormID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("form %q not found in session", req.FormID))
		return
	}

	// Validate before the stream opens so problems can be answered with a
	// plain status code.
	request := *form.UserDefined.Form
	if err := forms.Validate(request, forms.ApplyDefaults(request, req.Values)); err != nil {
		var verr *forms.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: errorBody{
				Message:  err.Error(),
				Problems: verr.Problems,
			}})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.stream(w, r, key, sess, func(emit func(agui.Delta) error) (remoteagent.Result, error) {
		return sess.SubmitForm(r.Context(), form, req.Values, emit)
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.get(sessionKey(r.Context(), chi.URLParam(r, "id")))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := sess.Cancel(); err != nil {
		if errors.Is(err, remoteagent.ErrNoActiveStream) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSession forgets a session, canceling its stream and removing
// any saved transcript.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(r.Context(), chi.URLParam(r, "id"))
	sess, found := s.sessions.remove(key)
	if found {
		_ = sess.Cancel()
	}
	if s.history != nil {
		_, err := s.history.Load(r.Context(), key)
		switch {
		case err == nil:
			found = true
			if err := s.history.Delete(r.Context(), key); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		case !errors.Is(err, history.ErrNotFound):
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stream runs one exchange and writes it as SSE: run_started, the deltas,
// then run_finished or run_error. The session is saved afterwards.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, key string, sess *remoteagent.Session, run func(func(agui.Delta) error) (remoteagent.Result, error)) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sse := agui.NewSSEWriter(w)
	if err := sse.WriteRunEvent(agui.NewRunStartedEvent("", sess.ContextID())); err != nil {
		return
	}

	res, err := run(sse.WriteDelta)
	s.persist(context.WithoutCancel(r.Context()), key, sess)
	switch {
	case err != nil:
		code := "internal"
		var terr *remoteagent.TransportError
		if errors.As(err, &terr) {
			code = "transport"
		}
		slog.Warn("Stream failed", "session", sess.ID(), "error", err)
		_ = sse.WriteRunEvent(agui.NewRunErrorEvent(res.TaskID, err.Error(), code))
	case r.Context().Err() != nil:
		// Client went away; nothing left to write to.
	default:
		_ = sse.WriteRunEvent(agui.NewRunFinishedEvent(res.TaskID, res.ContextID, res.State))
	}
}

func findForm(history []chat.Message, formID string) (chat.Message, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.UserDefined == nil || msg.UserDefined.Form == nil {
			continue
		}
		if formID == "" || msg.UserDefined.Form.ID == formID || msg.ID == formID {
			return msg, true
		}
	}
	return chat.Message{}, false
}

func nonNil(msgs []chat.Message) []chat.Message {
	if msgs == nil {
		return []chat.Message{}
	}
	return msgs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Message: message}})
}
