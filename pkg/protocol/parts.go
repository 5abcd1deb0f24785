package protocol

import (
	"fmt"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
)

// PartMetadata returns the metadata map attached to a part.
func PartMetadata(part a2a.Part) map[string]any {
	switch p := part.(type) {
	case a2a.TextPart:
		return p.Metadata
	case *a2a.TextPart:
		if p != nil {
			return p.Metadata
		}
	case a2a.FilePart:
		return p.Metadata
	case *a2a.FilePart:
		if p != nil {
			return p.Metadata
		}
	case a2a.DataPart:
		return p.Metadata
	case *a2a.DataPart:
		if p != nil {
			return p.Metadata
		}
	}
	return nil
}

// PartText returns the text of a text part, or "".
func PartText(part a2a.Part) string {
	switch p := part.(type) {
	case a2a.TextPart:
		return p.Text
	case *a2a.TextPart:
		if p != nil {
			return p.Text
		}
	}
	return ""
}

// MessageText concatenates the text parts of a message.
func MessageText(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range msg.Parts {
		sb.WriteString(PartText(part))
	}
	return sb.String()
}

// DataString returns the first non-empty string value found under keys.
// Non-string scalars are formatted.
func DataString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := data[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case map[string]any, []any:
			continue
		default:
			return fmt.Sprint(s)
		}
	}
	return ""
}

// DataValue returns the first present value found under keys.
func DataValue(data map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := data[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// DataMap returns the first object value found under keys.
func DataMap(data map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if m, ok := data[key].(map[string]any); ok {
			return m
		}
	}
	return nil
}

// DataBool reports whether the value under key is a true boolean or a
// "true" string.
func DataBool(data map[string]any, key string) (value bool, present bool) {
	v, ok := data[key]
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return strings.EqualFold(b, "true"), true
	}
	return false, true
}
