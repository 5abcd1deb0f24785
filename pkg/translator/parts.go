package translator

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/classifier"
	"github.com/kadirpekel/a2achat/pkg/protocol"
)

// TranslatePart translates one part: part-level trajectory metadata first,
// then the part content.
func (t *Translator) TranslatePart(part a2a.Part, mode Mode) []chat.Message {
	return messages(t.PartItems(part, mode))
}

// PartItems is TranslatePart with correlation hints.
func (t *Translator) PartItems(part a2a.Part, mode Mode) []Item {
	if part == nil {
		return nil
	}
	meta := protocol.PartMetadata(part)

	var items []Item
	items = append(items, t.MetadataItems(meta, mode)...)

	if item, ok := t.partContent(part, meta, mode); ok {
		if item.GroupID == "" {
			item.GroupID = protocol.DataString(meta, protocol.MetaBlockID)
		}
		items = append(items, item)
	}
	return items
}

// MetadataItems translates trajectory and error extension payloads found in
// a metadata map, in that order.
func (t *Translator) MetadataItems(meta map[string]any, mode Mode) []Item {
	if len(meta) == 0 {
		return nil
	}
	var items []Item
	for _, frag := range t.ext.Trajectories(meta) {
		if item, ok := t.TrajectoryItem(frag, mode); ok {
			items = append(items, item)
		}
	}
	if detail := t.ext.ErrorDetail(meta); detail != nil {
		items = append(items, t.errorItem(*detail))
	}
	return items
}

func (t *Translator) partContent(part a2a.Part, meta map[string]any, mode Mode) (Item, bool) {
	cls := t.classifier.ClassifyPart(part)

	switch cls.Kind {
	case classifier.KindText:
		return t.textPart(protocol.PartText(part), meta)
	case classifier.KindFile:
		return t.filePart(part, meta)
	case classifier.KindData:
		data := partData(part)
		if len(data) == 0 {
			t.drop("empty_data")
			return Item{}, false
		}
		return t.emit(t.dataMessage(data), cls.Kind), true
	case classifier.KindToolCall, classifier.KindToolResult:
		return t.toolPart(part, meta, cls, mode), true
	case classifier.KindReasoning:
		text := partBody(part)
		if strings.TrimSpace(text) == "" {
			t.drop("empty_reasoning")
			return Item{}, false
		}
		return t.emit(chat.NewReasoning("", text, stepStatus(cls.Status, mode.defaultStatus())), cls.Kind), true
	case classifier.KindStatus:
		text := partBody(part)
		if text == "" {
			t.drop("empty_status")
			return Item{}, false
		}
		groupID := protocol.DataString(partData(part), "group_id", "groupId")
		item := t.emit(chat.NewStatus(text, groupID), cls.Kind)
		item.GroupID = groupID
		return item, true
	case classifier.KindError:
		data := partData(part)
		msg := chat.NewError(
			protocol.DataString(data, "title"),
			firstNonEmpty(partBody(part), "unknown error"),
			protocol.DataString(data, "code"),
			nil,
		)
		return t.emit(msg, cls.Kind), true
	}

	t.drop("unsupported_part", "type", fmt.Sprintf("%T", part))
	return Item{}, false
}

// textPart keeps whitespace verbatim; streamed separators such as " " or
// "\n\n" are content.
func (t *Translator) textPart(text string, meta map[string]any) (Item, bool) {
	if text == "" {
		t.drop("empty_text")
		return Item{}, false
	}
	return t.emit(chat.NewText(text, t.ext.Citations(meta)...), classifier.KindText), true
}

// toolPart translates tool calls and results carried as data parts or
// flagged by legacy event_type metadata.
func (t *Translator) toolPart(part a2a.Part, meta map[string]any, cls classifier.Classification, mode Mode) Item {
	data := partData(part)
	name := firstNonEmpty(cls.ToolName, fallbackToolName)
	callID := firstNonEmpty(
		protocol.DataString(meta, protocol.MetaToolCallID),
		protocol.DataString(data, "tool_call_id", "call_id", "id"),
	)

	var msg chat.Message
	if cls.Kind == classifier.KindToolCall {
		msg = chat.NewToolCall(name, "", cls.Arguments, stepStatus(cls.Status, mode.defaultStatus()))
	} else {
		var content any
		if cls.HasResult {
			content = cls.Result
		} else if text := protocol.PartText(part); text != "" {
			content = text
		}
		msg = chat.NewToolResult(name, "", content, cls.IsError())
	}

	item := t.emit(msg, cls.Kind)
	item.ToolName = name
	item.ToolCallID = callID
	return item
}

func (t *Translator) filePart(part a2a.Part, meta map[string]any) (Item, bool) {
	file, ok := fileOf(part)
	if !ok {
		t.drop("empty_file")
		return Item{}, false
	}

	var (
		name, mimeType, source string
		raw                    string
		inline                 bool
	)
	switch f := file.(type) {
	case a2a.FileBytes:
		name, mimeType, raw, inline = f.Name, f.MimeType, f.Bytes, true
	case *a2a.FileBytes:
		name, mimeType, raw, inline = f.Name, f.MimeType, f.Bytes, true
	case a2a.FileURI:
		name, mimeType, source = f.Name, f.MimeType, f.URI
	case *a2a.FileURI:
		name, mimeType, source = f.Name, f.MimeType, f.URI
	}
	if inline {
		source = dataURI(mimeType, raw)
	}
	if source == "" {
		t.drop("empty_file", "name", name)
		return Item{}, false
	}

	switch {
	case strings.HasPrefix(strings.ToLower(mimeType), "image/"):
		return t.emit(chat.NewImage(source, mimeType, name), classifier.KindFile), true
	case strings.Contains(name, "chart"), strings.Contains(name, "graph"):
		return t.emit(chat.NewChart(name, mimeType, source), classifier.KindFile), true
	}
	return t.emit(chat.NewAttachment(name, mimeType, source, fileSize(meta, raw)), classifier.KindFile), true
}

// fileSize prefers size metadata, then the decoded length of the inline
// payload, then its raw length.
func fileSize(meta map[string]any, raw string) int64 {
	switch v := meta[protocol.MetaSize].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if raw == "" {
		return 0
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return int64(len(decoded))
	}
	return int64(len(raw))
}

func dataURI(mimeType, b64 string) string {
	if b64 == "" {
		return ""
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + b64
}

// TranslateData translates a structured payload. A non-empty array of
// objects, bare or as the only field of a wrapper object, becomes a table;
// anything else is passed through as opaque data.
func (t *Translator) TranslateData(data any) chat.Message {
	return t.emit(t.dataMessage(data), classifier.KindData).Message
}

func (t *Translator) dataMessage(data any) chat.Message {
	if rows, ok := tabularRows(data); ok {
		table := chat.TableFromRows(rows)
		return chat.NewTable(table.Columns, table.Rows)
	}
	return chat.NewData(data)
}

// tabularRows accepts a bare array of objects or an object whose single
// field holds one. Arrays with any non-object element are not tabular.
func tabularRows(data any) ([]map[string]any, bool) {
	switch v := data.(type) {
	case []map[string]any:
		return v, len(v) > 0
	case []any:
		if len(v) == 0 {
			return nil, false
		}
		rows := make([]map[string]any, 0, len(v))
		for _, el := range v {
			row, ok := el.(map[string]any)
			if !ok {
				return nil, false
			}
			rows = append(rows, row)
		}
		return rows, true
	case map[string]any:
		if len(v) != 1 {
			return nil, false
		}
		for _, inner := range v {
			return tabularRows(inner)
		}
	}
	return nil, false
}

func partData(part a2a.Part) map[string]any {
	switch p := part.(type) {
	case a2a.DataPart:
		return p.Data
	case *a2a.DataPart:
		if p != nil {
			return p.Data
		}
	}
	return nil
}

// partBody returns the text of a text part, or the textual field of a data
// part.
func partBody(part a2a.Part) string {
	if text := protocol.PartText(part); text != "" {
		return text
	}
	return protocol.DataString(partData(part), "text", "content", "message", "thinking")
}

func fileOf(part a2a.Part) (any, bool) {
	switch p := part.(type) {
	case a2a.FilePart:
		return p.File, p.File != nil
	case *a2a.FilePart:
		if p != nil {
			return p.File, p.File != nil
		}
	}
	return nil, false
}
