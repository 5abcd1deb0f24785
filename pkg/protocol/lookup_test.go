package protocol

import (
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_Shapes(t *testing.T) {
	record := map[string]any{"title": "Searching", "content": "query"}
	want := []map[string]any{record}

	tests := []struct {
		name string
		meta map[string]any
		want []map[string]any
	}{
		{name: "bare object", meta: map[string]any{TrajectoryExtensionURI: record}, want: want},
		{name: "array of objects", meta: map[string]any{TrajectoryExtensionURI: []any{record}}, want: want},
		{name: "single field wrapper", meta: map[string]any{TrajectoryExtensionURI: map[string]any{"list": []any{record}}}, want: want},
		{name: "non objects skipped", meta: map[string]any{TrajectoryExtensionURI: []any{"x", record, 3}}, want: want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lookup(tt.meta, TrajectoryExtensionURI))
		})
	}
}

func TestLookup_NoMatch(t *testing.T) {
	assert.Nil(t, Lookup(nil, TrajectoryExtensionURI))
	assert.Nil(t, Lookup(map[string]any{}, TrajectoryExtensionURI))
	assert.Nil(t, Lookup(map[string]any{TrajectoryExtensionURI: "scalar"}, TrajectoryExtensionURI))
	assert.Nil(t, Lookup(map[string]any{TrajectoryExtensionURI: nil}, TrajectoryExtensionURI))
	assert.Nil(t, Lookup(map[string]any{TrajectoryExtensionURI: []any{}}, TrajectoryExtensionURI))
	assert.Nil(t, LookupOne(map[string]any{"other": map[string]any{}}, TrajectoryExtensionURI))
}

func TestLookup_RecordWithArrayFieldIsNotAWrapper(t *testing.T) {
	rec := map[string]any{
		"title":   "Search",
		"results": []any{map[string]any{"url": "https://example.com"}},
	}
	got := Lookup(map[string]any{TrajectoryExtensionURI: rec}, TrajectoryExtensionURI)
	require.Len(t, got, 1)
	assert.Equal(t, "Search", got[0]["title"])
}

func TestLookup_RecordWithListFieldKeepsTitle(t *testing.T) {
	for _, field := range []string{"items", "data", "steps"} {
		rec := map[string]any{
			"title":   "Plan",
			"content": "three steps",
			field:     []any{map[string]any{"title": "one"}},
		}
		got := Lookup(map[string]any{TrajectoryExtensionURI: rec}, TrajectoryExtensionURI)
		require.Len(t, got, 1, field)
		assert.Equal(t, "Plan", got[0]["title"])
		assert.Equal(t, "three steps", got[0]["content"])
	}

	frags := DefaultExtensions().Trajectories(map[string]any{TrajectoryExtensionURI: map[string]any{
		"title": "Plan",
		"items": []any{map[string]any{"title": "one"}},
	}})
	require.Len(t, frags, 1)
	assert.Equal(t, "Plan", frags[0].Title)
}

func TestExtensions_Trajectories(t *testing.T) {
	ext := DefaultExtensions()
	meta := map[string]any{
		TrajectoryExtensionURI: []any{
			map[string]any{"title": "Calling search_web", "groupId": "g1", "contentType": "tool_call"},
			map[string]any{},
			map[string]any{"content": map[string]any{"query": "go"}},
		},
	}

	frags := ext.Trajectories(meta)
	require.Len(t, frags, 2)
	assert.Equal(t, "g1", frags[0].GroupID)
	assert.Equal(t, "tool_call", frags[0].ContentType)
	assert.JSONEq(t, `{"query":"go"}`, frags[1].Content)
}

func TestExtensions_Citations(t *testing.T) {
	meta := map[string]any{
		CitationExtensionURI: map[string]any{
			"citations": []any{
				map[string]any{"url": "https://a2a-protocol.org", "title": "A2A", "start_index": float64(0), "endIndex": float64(4)},
				map[string]any{"description": "no url or title"},
			},
		},
	}

	got := DefaultExtensions().Citations(meta)
	require.Len(t, got, 1)
	assert.Equal(t, "https://a2a-protocol.org", got[0].URL)
	require.NotNil(t, got[0].StartIndex)
	require.NotNil(t, got[0].EndIndex)
	assert.Equal(t, 0, *got[0].StartIndex)
	assert.Equal(t, 4, *got[0].EndIndex)
}

func TestExtensions_Error(t *testing.T) {
	ext := DefaultExtensions()

	nested := map[string]any{ErrorExtensionURI: map[string]any{
		"error":   map[string]any{"title": "Tool failed", "message": "timeout"},
		"context": map[string]any{"tool": "search"},
	}}
	detail := ext.ErrorDetail(nested)
	require.NotNil(t, detail)
	assert.Equal(t, "Tool failed", detail.Title)
	assert.Equal(t, "timeout", detail.Message)
	assert.Equal(t, "search", detail.Context["tool"])

	flat := map[string]any{ErrorExtensionURI: map[string]any{"error": "boom"}}
	detail = ext.ErrorDetail(flat)
	require.NotNil(t, detail)
	assert.Equal(t, "boom", detail.Message)

	assert.Nil(t, ext.ErrorDetail(map[string]any{ErrorExtensionURI: map[string]any{"code": "E1"}}))
}

func TestExtensions_FormRequest(t *testing.T) {
	meta := map[string]any{FormRequestExtensionURI: map[string]any{
		"id":          "trip",
		"title":       "Plan a trip",
		"submitLabel": "Go",
		"fields": []any{
			map[string]any{"id": "city", "type": "text", "label": "City", "required": true},
			map[string]any{"id": "mode", "type": "singleselect", "options": []any{
				map[string]any{"value": "car", "label": "Car"},
				map[string]any{"id": "train", "label": "Train"},
			}},
		},
	}}

	form := DefaultExtensions().Form(meta)
	require.NotNil(t, form)
	assert.Equal(t, "Go", form.SubmitLabel)
	require.Len(t, form.Fields, 2)
	assert.True(t, form.Fields[0].Required)
	require.Len(t, form.Fields[1].Options, 2)
	assert.Equal(t, "car", form.Fields[1].Options[0].ID)
	assert.Equal(t, "train", form.Fields[1].Options[1].ID)

	assert.Nil(t, DefaultExtensions().Form(map[string]any{FormRequestExtensionURI: map[string]any{"id": "empty"}}))
}

func TestExtensions_WithDefaults(t *testing.T) {
	ext := Extensions{Trajectory: "urn:custom:trajectory"}.WithDefaults()
	assert.Equal(t, "urn:custom:trajectory", ext.Trajectory)
	assert.Equal(t, CitationExtensionURI, ext.Citation)
	assert.Equal(t, ErrorExtensionURI, ext.Error)
	assert.Equal(t, FormRequestExtensionURI, ext.FormRequest)
}

func TestPartHelpers(t *testing.T) {
	meta := map[string]any{"k": "v"}
	assert.Equal(t, meta, PartMetadata(a2a.TextPart{Text: "hi", Metadata: meta}))
	assert.Equal(t, meta, PartMetadata(a2a.DataPart{Data: map[string]any{}, Metadata: meta}))
	assert.Equal(t, "hi", PartText(a2a.TextPart{Text: "hi"}))
	assert.Equal(t, "", PartText(a2a.DataPart{}))

	msg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "a"}, a2a.DataPart{}, a2a.TextPart{Text: "b"})
	assert.Equal(t, "ab", MessageText(msg))

	data := map[string]any{"name": "", "tool_name": "search", "count": float64(2), "obj": map[string]any{"a": 1}}
	assert.Equal(t, "search", DataString(data, "name", "tool_name"))
	assert.Equal(t, "2", DataString(data, "count"))
	assert.Equal(t, "", DataString(data, "obj"))
	assert.NotNil(t, DataMap(data, "obj"))

	v, ok := DataBool(map[string]any{"is_error": "true"}, "is_error")
	assert.True(t, v)
	assert.True(t, ok)
	_, ok = DataBool(map[string]any{}, "is_error")
	assert.False(t, ok)
}
