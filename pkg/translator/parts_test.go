package translator

import (
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/protocol"
)

// TestTextPartProperty checks that every non-empty text part, whitespace
// included, yields exactly one text message carrying the input unchanged.
func TestTextPartProperty(t *testing.T) {
	tr := New(Config{})

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("text part translates to one identical text message", prop.ForAll(
		func(text string) bool {
			msgs := tr.TranslatePart(a2a.TextPart{Text: text}, ModeFinal)
			if len(msgs) != 1 {
				return false
			}
			msg := msgs[0]
			return msg.Kind == chat.KindText &&
				msg.Text != nil &&
				msg.Text.Text == text &&
				msg.Validate() == nil
		},
		gen.OneGenOf(
			gen.AnyString(),
			gen.OneConstOf(" ", "\n\n", "\t", " \n "),
		).SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}

// TestTableColumnsProperty checks that columns are exactly the sorted keys of
// the first row and rows pass through untouched.
func TestTableColumnsProperty(t *testing.T) {
	tr := New(Config{})

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("table columns come from the first row", prop.ForAll(
		func(raw []map[string]int) bool {
			rows := make([]any, len(raw)+1)
			rows[0] = map[string]any{"first": 1}
			for i, r := range raw {
				row := make(map[string]any, len(r))
				for k, v := range r {
					row[k] = v
				}
				rows[i+1] = row
			}

			msg := tr.TranslateData(rows)
			if msg.UserDefined == nil || msg.UserDefined.Table == nil {
				return false
			}
			table := msg.UserDefined.Table
			if len(table.Columns) != 1 || table.Columns[0] != "first" {
				return false
			}
			return len(table.Rows) == len(rows)
		},
		gen.SliceOfN(4, gen.MapOf(gen.Identifier(), gen.Int())),
	))

	properties.TestingRun(t)
}

func TestTranslateData_FirstRowColumns(t *testing.T) {
	tr := New(Config{})
	rows := []any{
		map[string]any{"a": 1, "b": 2},
		map[string]any{"a": 3, "c": 4},
	}

	msg := tr.TranslateData(rows)
	require.NoError(t, msg.Validate())
	require.Equal(t, chat.UserDefinedTable, msg.UserDefined.Type)
	assert.Equal(t, []string{"a", "b"}, msg.UserDefined.Table.Columns)
	assert.Equal(t, []map[string]any{
		{"a": 1, "b": 2},
		{"a": 3, "c": 4},
	}, msg.UserDefined.Table.Rows)
}

func TestTranslatePart_DataShapes(t *testing.T) {
	tr := New(Config{})

	tests := []struct {
		name    string
		data    map[string]any
		want    chat.UserDefinedType
		columns []string
	}{
		{
			name:    "wrapped single field",
			data:    map[string]any{"results": []any{map[string]any{"z": 1, "y": 2}}},
			want:    chat.UserDefinedTable,
			columns: []string{"y", "z"},
		},
		{
			name: "rows beside other fields stay opaque",
			data: map[string]any{"results": []any{map[string]any{"a": 1}}, "total": 42, "next_page": "p2"},
			want: chat.UserDefinedData,
		},
		{
			name: "mixed array stays opaque",
			data: map[string]any{"rows": []any{map[string]any{"a": 1}, "oops", 7}},
			want: chat.UserDefinedData,
		},
		{
			name: "array of scalars is opaque",
			data: map[string]any{"values": []any{1, 2, 3}},
			want: chat.UserDefinedData,
		},
		{
			name: "plain object is opaque",
			data: map[string]any{"temperature": 21.5, "unit": "C"},
			want: chat.UserDefinedData,
		},
		{
			name: "empty array is opaque",
			data: map[string]any{"rows": []any{}},
			want: chat.UserDefinedData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := tr.TranslatePart(a2a.DataPart{Data: tt.data}, ModeFinal)
			require.Len(t, msgs, 1)
			msg := msgs[0]
			require.NoError(t, msg.Validate())
			assert.Equal(t, tt.want, msg.UserDefined.Type)
			if tt.want == chat.UserDefinedTable {
				assert.Equal(t, tt.columns, msg.UserDefined.Table.Columns)
			} else {
				assert.Equal(t, tt.data, msg.UserDefined.Data)
			}
		})
	}
}

func TestTranslatePart_Files(t *testing.T) {
	tr := New(Config{})

	tests := []struct {
		name  string
		part  a2a.Part
		check func(t *testing.T, msg chat.Message)
	}{
		{
			name: "inline image",
			part: a2a.FilePart{File: a2a.FileBytes{
				FileMeta: a2a.FileMeta{Name: "cat.png", MimeType: "image/png"},
				Bytes:    "aGVsbG8=",
			}},
			check: func(t *testing.T, msg chat.Message) {
				require.Equal(t, chat.KindImage, msg.Kind)
				assert.Equal(t, "data:image/png;base64,aGVsbG8=", msg.Image.Source)
				assert.Equal(t, "cat.png", msg.Image.Title)
			},
		},
		{
			name: "image wins over chart name",
			part: a2a.FilePart{File: a2a.FileURI{
				FileMeta: a2a.FileMeta{Name: "sales_chart.png", MimeType: "image/png"},
				URI:      "https://x/sales_chart.png",
			}},
			check: func(t *testing.T, msg chat.Message) {
				assert.Equal(t, chat.KindImage, msg.Kind)
			},
		},
		{
			name: "chart by name",
			part: a2a.FilePart{File: a2a.FileURI{
				FileMeta: a2a.FileMeta{Name: "revenue_graph.html", MimeType: "text/html"},
				URI:      "https://x/revenue_graph.html",
			}},
			check: func(t *testing.T, msg chat.Message) {
				require.Equal(t, chat.UserDefinedChart, msg.UserDefined.Type)
				assert.Equal(t, "https://x/revenue_graph.html", msg.UserDefined.Chart.Source)
			},
		},
		{
			name: "chart match is case sensitive",
			part: a2a.FilePart{File: a2a.FileURI{
				FileMeta: a2a.FileMeta{Name: "Chart.html", MimeType: "text/html"},
				URI:      "https://x/Chart.html",
			}},
			check: func(t *testing.T, msg chat.Message) {
				assert.Equal(t, chat.UserDefinedAttachment, msg.UserDefined.Type)
			},
		},
		{
			name: "attachment size from payload",
			part: a2a.FilePart{File: a2a.FileBytes{
				FileMeta: a2a.FileMeta{Name: "notes.txt", MimeType: "text/plain"},
				Bytes:    "aGVsbG8=",
			}},
			check: func(t *testing.T, msg chat.Message) {
				require.Equal(t, chat.UserDefinedAttachment, msg.UserDefined.Type)
				assert.Equal(t, int64(5), msg.UserDefined.Attachment.Size)
			},
		},
		{
			name: "attachment size from metadata",
			part: a2a.FilePart{
				File: a2a.FileURI{
					FileMeta: a2a.FileMeta{Name: "report.pdf", MimeType: "application/pdf"},
					URI:      "https://x/report.pdf",
				},
				Metadata: map[string]any{"size": float64(2048)},
			},
			check: func(t *testing.T, msg chat.Message) {
				assert.Equal(t, int64(2048), msg.UserDefined.Attachment.Size)
			},
		},
		{
			name: "undecodable payload uses raw length",
			part: a2a.FilePart{File: a2a.FileBytes{
				FileMeta: a2a.FileMeta{Name: "blob.bin"},
				Bytes:    "!!!",
			}},
			check: func(t *testing.T, msg chat.Message) {
				assert.Equal(t, int64(3), msg.UserDefined.Attachment.Size)
				assert.Equal(t, "data:application/octet-stream;base64,!!!", msg.UserDefined.Attachment.Source)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := tr.TranslatePart(tt.part, ModeFinal)
			require.Len(t, msgs, 1)
			require.NoError(t, msgs[0].Validate())
			tt.check(t, msgs[0])
		})
	}
}

func TestTranslatePart_TextWithCitationsAndTrajectory(t *testing.T) {
	tr := New(Config{})
	part := a2a.TextPart{
		Text: "Go was released in 2009.",
		Metadata: map[string]any{
			protocol.TrajectoryExtensionURI: map[string]any{"title": "Calling search_web", "group_id": "g1"},
			protocol.CitationExtensionURI: map[string]any{"citations": []any{
				map[string]any{"url": "https://go.dev/doc", "title": "Go docs", "start_index": 0, "end_index": 2},
			}},
		},
	}

	msgs := tr.TranslatePart(part, ModeStreaming)
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.KindChainOfThought, msgs[0].Kind)
	require.Equal(t, chat.KindText, msgs[1].Kind)
	require.Len(t, msgs[1].Text.Citations, 1)
	assert.Equal(t, "https://go.dev/doc", msgs[1].Text.Citations[0].URL)
}

func TestTranslatePart_EmptyTextDropped(t *testing.T) {
	metrics := newCountingMetrics()
	tr := New(Config{Metrics: metrics})

	assert.Empty(t, tr.TranslatePart(a2a.TextPart{Text: ""}, ModeFinal))
	assert.Equal(t, 1, metrics.dropped["empty_text"])
	assert.Empty(t, metrics.messages)
}

func TestTranslatePart_WhitespaceTextKept(t *testing.T) {
	tr := New(Config{})

	for _, text := range []string{" ", "\n\n", "  \n"} {
		msgs := tr.TranslatePart(a2a.TextPart{Text: text}, ModeStreaming)
		require.Len(t, msgs, 1, "%q", text)
		assert.Equal(t, text, msgs[0].Text.Text)
	}
}

func TestTranslateData_MixedArrayIsOpaque(t *testing.T) {
	tr := New(Config{})
	data := []any{map[string]any{"a": 1}, "oops", 7}

	msg := tr.TranslateData(data)
	require.Equal(t, chat.UserDefinedData, msg.UserDefined.Type)
	assert.Equal(t, data, msg.UserDefined.Data)
}

func TestPartItems_LegacyToolEvents(t *testing.T) {
	tr := New(Config{})

	call := a2a.DataPart{
		Data:     map[string]any{"id": "c1", "name": "calc", "arguments": map[string]any{"x": float64(1)}},
		Metadata: map[string]any{"event_type": "tool_call"},
	}
	items := tr.PartItems(call, ModeStreaming)
	require.Len(t, items, 1)
	assert.Equal(t, "calc", items[0].ToolName)
	assert.Equal(t, "c1", items[0].ToolCallID)
	callStep := items[0].Message.Steps()[0]
	assert.Equal(t, chat.StepProcessing, callStep.Status)
	assert.Equal(t, map[string]any{"x": float64(1)}, callStep.Request.Args)

	result := a2a.DataPart{
		Data:     map[string]any{"tool_call_id": "c1", "content": "4"},
		Metadata: map[string]any{"event_type": "tool_call", "is_error": false, "tool_name": "calc"},
	}
	items = tr.PartItems(result, ModeStreaming)
	require.Len(t, items, 1)
	assert.Equal(t, "c1", items[0].ToolCallID)
	resultStep := items[0].Message.Steps()[0]
	assert.Equal(t, chat.StepSuccess, resultStep.Status)
	assert.Equal(t, "4", resultStep.Response.Content)
}

func TestTranslatePart_TypedDataParts(t *testing.T) {
	tr := New(Config{})

	msgs := tr.TranslatePart(a2a.DataPart{Data: map[string]any{"type": "thinking", "text": "Considering caching."}}, ModeStreaming)
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.KindReasoningSteps, msgs[0].Kind)

	msgs = tr.TranslatePart(a2a.DataPart{Data: map[string]any{"type": "progress", "message": "50%", "group_id": "g"}}, ModeStreaming)
	require.Len(t, msgs, 1)
	assert.Equal(t, "50%", msgs[0].UserDefined.Status.Text)
	assert.Equal(t, "g", msgs[0].UserDefined.Status.GroupID)

	msgs = tr.TranslatePart(a2a.DataPart{Data: map[string]any{"type": "error", "message": "quota", "code": "429"}}, ModeFinal)
	require.Len(t, msgs, 1)
	assert.Equal(t, "quota", msgs[0].UserDefined.Error.Message)
	assert.Equal(t, "429", msgs[0].UserDefined.Error.Code)
}

func TestTabularRows(t *testing.T) {
	rows, ok := tabularRows([]map[string]any{{"k": 1}})
	require.True(t, ok)
	assert.Len(t, rows, 1)

	_, ok = tabularRows([]any{map[string]any{"k": 1}, "stray", map[string]any{"k": 2}})
	assert.False(t, ok)

	rows, ok = tabularRows(map[string]any{"items": []any{map[string]any{"k": 1}, map[string]any{"k": 2}}})
	require.True(t, ok)
	assert.Len(t, rows, 2)

	_, ok = tabularRows(map[string]any{"items": []any{map[string]any{"k": 1}}, "total": 1})
	assert.False(t, ok)

	_, ok = tabularRows([]any{"a", map[string]any{"k": 1}})
	assert.False(t, ok)

	_, ok = tabularRows(nil)
	assert.False(t, ok)
}
