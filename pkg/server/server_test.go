package server

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2achat/pkg/auth"
	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/config"
	"github.com/kadirpekel/a2achat/pkg/history"
	"github.com/kadirpekel/a2achat/pkg/observability"
	"github.com/kadirpekel/a2achat/pkg/protocol"
	"github.com/kadirpekel/a2achat/pkg/remoteagent"
	"github.com/kadirpekel/a2achat/pkg/translator"
)

// scriptedStreamer replays one event script per call. When block is set it
// waits for cancellation after the script.
type scriptedStreamer struct {
	mu      sync.Mutex
	scripts [][]a2a.Event
	block   bool
	calls   []*a2a.MessageSendParams
}

func (f *scriptedStreamer) SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, params)
	var events []a2a.Event
	if n < len(f.scripts) {
		events = f.scripts[n]
	}
	block := f.block
	f.mu.Unlock()

	return func(yield func(a2a.Event, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
		if block {
			<-ctx.Done()
			yield(nil, ctx.Err())
		}
	}
}

func (f *scriptedStreamer) call(i int) *a2a.MessageSendParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func newTestServer(streamer *scriptedStreamer) *Server {
	opts := Options{
		Config:     config.ServerConfig{},
		Translator: translator.New(translator.Config{Agent: chat.AgentProfile{Name: "Tester"}}),
	}
	if streamer != nil {
		opts.Streamer = streamer
	}
	return New(opts)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func completedScript(text string) []a2a.Event {
	return []a2a.Event{
		&a2a.TaskArtifactUpdateEvent{
			TaskID:    "t1",
			ContextID: "c1",
			LastChunk: true,
			Artifact:  &a2a.Artifact{ID: "a1", Parts: []a2a.Part{a2a.TextPart{Text: text}}},
		},
		&a2a.TaskStatusUpdateEvent{
			TaskID:    "t1",
			ContextID: "c1",
			Final:     true,
			Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
		},
	}
}

func formScript() []a2a.Event {
	msg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "Need details"})
	msg.Metadata = map[string]any{
		protocol.FormRequestExtensionURI: map[string]any{
			"id":    "contact",
			"title": "Contact details",
			"fields": []any{
				map[string]any{"id": "email", "type": "text", "label": "Email", "required": true},
			},
		},
	}
	return []a2a.Event{&a2a.TaskStatusUpdateEvent{
		TaskID:    "t1",
		ContextID: "c1",
		Final:     true,
		Status:    a2a.TaskStatus{State: a2a.TaskStateInputRequired, Message: msg},
	}}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(nil).Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTranslate(t *testing.T) {
	h := newTestServer(nil).Handler()

	tests := []struct {
		name   string
		body   string
		status int
		text   string
	}{
		{
			name:   "task",
			body:   `{"kind":"task","id":"t1","contextId":"c1","status":{"state":"completed"},"artifacts":[{"artifactId":"a1","parts":[{"kind":"text","text":"Hello"}]}]}`,
			status: http.StatusOK,
			text:   "Hello",
		},
		{
			name:   "message",
			body:   `{"kind":"message","messageId":"m1","role":"agent","parts":[{"kind":"text","text":"Hi there"}]}`,
			status: http.StatusOK,
			text:   "Hi there",
		},
		{name: "unsupported kind", body: `{"kind":"status-update"}`, status: http.StatusBadRequest},
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/translate", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				var resp errorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Error.Message)
				return
			}

			var resp messagesResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Len(t, resp.Messages, 1)
			require.NotNil(t, resp.Messages[0].Text)
			assert.Equal(t, tt.text, resp.Messages[0].Text.Text)
			require.NotNil(t, resp.Messages[0].From)
			assert.Equal(t, "Tester", resp.Messages[0].From.Name)
		})
	}
}

func TestTranslate_EmptyTaskYieldsEmptyList(t *testing.T) {
	rec := do(t, newTestServer(nil).Handler(), http.MethodPost, "/v1/translate", `{"kind":"task","id":"t1","status":{"state":"working"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestSetTranslator(t *testing.T) {
	s := newTestServer(nil)
	s.SetTranslator(translator.New(translator.Config{Agent: chat.AgentProfile{Name: "Swapped"}}))
	s.SetTranslator(nil)
	assert.Equal(t, "Swapped", s.Translator().Agent().Name)

	rec := do(t, s.Handler(), http.MethodPost, "/v1/translate", `{"kind":"message","messageId":"m1","role":"agent","parts":[{"kind":"text","text":"x"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Swapped"`)
}

func TestSendMessage_StreamsDeltas(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]a2a.Event{completedScript("Hi")}}
	s := newTestServer(streamer)

	rec := do(t, s.Handler(), http.MethodPost, "/v1/sessions/s1/messages", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)

	body := rec.Body.String()
	started := strings.Index(body, "event: run_started")
	opened := strings.Index(body, "event: opened")
	finalized := strings.Index(body, "event: finalized")
	finished := strings.Index(body, "event: run_finished")
	require.True(t, started >= 0 && opened > started && finalized > opened && finished > finalized, body)
	assert.Contains(t, body, `"state":"completed"`)
	assert.Contains(t, body, `"text":"Hi"`)

	sent := streamer.call(0).Message
	require.Len(t, sent.Parts, 1)
	assert.Equal(t, a2a.TextPart{Text: "hello"}, sent.Parts[0])
	assert.Equal(t, a2a.MessageRoleUser, sent.Role)

	hist := do(t, s.Handler(), http.MethodGet, "/v1/sessions/s1/messages", "")
	require.Equal(t, http.StatusOK, hist.Code)
	var resp messagesResponse
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Hi", resp.Messages[0].Text.Text)
}

func TestSendMessage_SecondTurnReusesContext(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]a2a.Event{completedScript("one"), completedScript("two")}}
	h := newTestServer(streamer).Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/sessions/s1/messages", `{"text":"first"}`).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/sessions/s1/messages", `{"text":"second"}`).Code)

	assert.Empty(t, streamer.call(0).Message.ContextID)
	assert.Equal(t, "c1", streamer.call(1).Message.ContextID)
}

func TestSendMessage_Errors(t *testing.T) {
	rec := do(t, newTestServer(nil).Handler(), http.MethodPost, "/v1/sessions/s1/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h := newTestServer(&scriptedStreamer{}).Handler()
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/sessions/s1/messages", `{"text":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/sessions/s1/messages", `nope`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/sessions/missing/messages", "").Code)
}

func TestCancel(t *testing.T) {
	streamer := &scriptedStreamer{block: true}
	s := newTestServer(streamer)
	h := s.Handler()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/sessions/s1/stream", "").Code)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- do(t, h, http.MethodPost, "/v1/sessions/s1/messages", `{"text":"long"}`)
	}()

	require.Eventually(t, func() bool {
		sess, ok := s.sessions.get("s1")
		return ok && sess.Active()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/sessions/s1/stream", "").Code)

	select {
	case rec := <-done:
		body := rec.Body.String()
		assert.Contains(t, body, "event: run_finished")
		assert.Contains(t, body, `"state":"canceled"`)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodDelete, "/v1/sessions/s1/stream", "").Code)
}

func TestSubmitForm(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]a2a.Event{formScript(), completedScript("Thanks")}}
	h := newTestServer(streamer).Handler()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/sessions/s1/forms", `{"form_id":"contact"}`).Code)

	rec := do(t, h, http.MethodPost, "/v1/sessions/s1/messages", `{"text":"sign me up"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"input-required"`)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/sessions/s1/forms", `{"form_id":"other","values":{}}`).Code)

	invalid := do(t, h, http.MethodPost, "/v1/sessions/s1/forms", `{"form_id":"contact","values":{}}`)
	require.Equal(t, http.StatusUnprocessableEntity, invalid.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(invalid.Body.Bytes(), &resp))
	require.Len(t, resp.Error.Problems, 1)
	assert.Equal(t, "email", resp.Error.Problems[0].Field)

	ok := do(t, h, http.MethodPost, "/v1/sessions/s1/forms", `{"form_id":"contact","values":{"email":"a@b.test"}}`)
	require.Equal(t, http.StatusOK, ok.Code)
	assert.Contains(t, ok.Body.String(), `"text":"Thanks"`)

	sent := streamer.call(1).Message
	assert.Equal(t, a2a.TaskID("t1"), sent.TaskID)
	assert.Equal(t, "c1", sent.ContextID)
	require.Len(t, sent.Parts, 1)
	data, isData := sent.Parts[0].(a2a.DataPart)
	require.True(t, isData)
	assert.Equal(t, "a@b.test", data.Data["email"])
}

func TestCORS(t *testing.T) {
	s := New(Options{Config: config.ServerConfig{CORSOrigins: []string{"http://ui.test"}}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/translate", nil)
	req.Header.Set("Origin", "http://ui.test")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://ui.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	metrics, err := observability.InitMetrics(observability.MetricsConfig{Enabled: true, Namespace: "a2achat_server_test"})
	require.NoError(t, err)
	defer func() { _ = metrics.Shutdown(context.Background()) }()

	s := New(Options{Metrics: metrics})
	require.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/healthz", "").Code)

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a2achat_server_test")

	assert.Equal(t, http.StatusNotFound, do(t, New(Options{}).Handler(), http.MethodGet, "/metrics", "").Code)
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	s := New(Options{Config: config.ServerConfig{Address: "127.0.0.1:0", ShutdownTimeout: time.Second}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// tokenTable accepts tokens that name a subject.
type tokenTable map[string]string

func (t tokenTable) ValidateToken(_ context.Context, token string) (*auth.Claims, error) {
	subject, ok := t[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{Subject: subject}, nil
}

func TestAuth_ScopesSessionsToSubject(t *testing.T) {
	streamer := &scriptedStreamer{scripts: [][]a2a.Event{completedScript("for alice")}}
	cfg := config.ServerConfig{}
	cfg.SetDefaults()
	s := New(Options{
		Config:   cfg,
		Streamer: streamer,
		Auth:     tokenTable{"tok-a": "alice", "tok-b": "bob"},
	})
	h := s.Handler()

	as := func(token, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, as("", http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusUnauthorized, as("", http.MethodPost, "/v1/translate", `{}`).Code)
	assert.Equal(t, http.StatusUnauthorized, as("forged", http.MethodGet, "/v1/sessions/s1/messages", "").Code)

	require.Equal(t, http.StatusOK, as("tok-a", http.MethodPost, "/v1/sessions/s1/messages", `{"text":"hi"}`).Code)
	assert.Equal(t, http.StatusOK, as("tok-a", http.MethodGet, "/v1/sessions/s1/messages", "").Code)
	assert.Equal(t, http.StatusNotFound, as("tok-b", http.MethodGet, "/v1/sessions/s1/messages", "").Code)
}

type memHistory struct {
	mu    sync.Mutex
	snaps map[string]remoteagent.Snapshot
}

func (m *memHistory) Load(_ context.Context, key string) (remoteagent.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[key]
	if !ok {
		return remoteagent.Snapshot{}, history.ErrNotFound
	}
	return snap, nil
}

func (m *memHistory) Save(_ context.Context, key string, snap remoteagent.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[key] = snap
	return nil
}

func (m *memHistory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, key)
	return nil
}

func (m *memHistory) Close() error { return nil }

func TestHistory_SessionsSurviveRestart(t *testing.T) {
	store := &memHistory{snaps: map[string]remoteagent.Snapshot{}}
	streamer := &scriptedStreamer{scripts: [][]a2a.Event{completedScript("one"), completedScript("two")}}

	first := New(Options{Streamer: streamer, History: store})
	require.Equal(t, http.StatusOK, do(t, first.Handler(), http.MethodPost, "/v1/sessions/s1/messages", `{"text":"first"}`).Code)
	require.Contains(t, store.snaps, "s1")
	assert.Equal(t, "c1", store.snaps["s1"].ContextID)

	restarted := New(Options{Streamer: streamer, History: store})
	h := restarted.Handler()

	hist := do(t, h, http.MethodGet, "/v1/sessions/s1/messages", "")
	require.Equal(t, http.StatusOK, hist.Code)
	var resp messagesResponse
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "one", resp.Messages[0].Text.Text)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/sessions/s1/messages", `{"text":"second"}`).Code)
	assert.Equal(t, "c1", streamer.call(1).Message.ContextID)
	assert.Len(t, store.snaps["s1"].History, 2)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/sessions/s1", "").Code)
	assert.NotContains(t, store.snaps, "s1")
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/sessions/s1/messages", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/sessions/s1", "").Code)
}
