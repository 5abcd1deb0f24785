package agui

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2achat/pkg/chat"
)

func TestSSEWriter_WritesDeltaFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	msg := chat.NewText("hello")
	require.NoError(t, w.WriteDelta(Delta{Seq: 1, Type: DeltaOpened, ItemID: "artifact:a1", Message: msg}))
	assert.True(t, rec.Flushed)

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "event: opened\ndata: "))
	require.True(t, strings.HasSuffix(body, "\n\n"))

	payload := strings.TrimSuffix(strings.TrimPrefix(body, "event: opened\ndata: "), "\n\n")
	var decoded struct {
		Seq     int    `json:"seq"`
		Type    string `json:"type"`
		ItemID  string `json:"item_id"`
		Message struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, 1, decoded.Seq)
	assert.Equal(t, "opened", decoded.Type)
	assert.Equal(t, "artifact:a1", decoded.ItemID)
	assert.Equal(t, msg.ID, decoded.Message.ID)
	assert.Equal(t, "text", decoded.Message.Kind)
}

func TestSSEWriter_WritesRunEvents(t *testing.T) {
	var sb strings.Builder
	w := NewSSEWriter(&sb)

	require.NoError(t, w.WriteRunEvent(NewRunStartedEvent("task-1", "ctx-1")))
	require.NoError(t, w.WriteRunEvent(NewRunFinishedEvent("task-1", "ctx-1", a2a.TaskStateCompleted)))
	require.NoError(t, w.WriteRunEvent(NewRunErrorEvent("task-1", "connection reset", "transport")))

	frames := strings.Split(strings.TrimSuffix(sb.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 3)
	assert.True(t, strings.HasPrefix(frames[0], "event: run_started\n"))
	assert.Contains(t, frames[1], `"state":"completed"`)
	assert.Contains(t, frames[2], `"code":"transport"`)
}
