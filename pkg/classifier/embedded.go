package classifier

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \\t]*\\n?(.*?)```")

// ExtractFencedJSON parses the first fenced code block that holds a JSON
// object. Malformed blocks are skipped silently.
func ExtractFencedJSON(content string) (map[string]any, bool) {
	for _, match := range fencedBlockPattern.FindAllStringSubmatch(content, -1) {
		if m, ok := parseObject(match[1]); ok {
			return m, true
		}
	}
	return nil, false
}

// ExtractEmbeddedJSON looks for a fenced JSON block first, then accepts
// content that is itself a JSON object.
func ExtractEmbeddedJSON(content string) (map[string]any, bool) {
	if !strings.Contains(content, "{") {
		return nil, false
	}
	if m, ok := ExtractFencedJSON(content); ok {
		return m, true
	}
	return parseObject(content)
}

// StripFencedBlocks removes every fenced code block and trims the rest.
func StripFencedBlocks(content string) string {
	return strings.TrimSpace(fencedBlockPattern.ReplaceAllString(content, ""))
}

// ArgumentsLine parses a JSON object following an "Arguments:" marker.
func ArgumentsLine(content string) (map[string]any, bool) {
	idx := strings.Index(strings.ToLower(content), "arguments:")
	if idx < 0 {
		return nil, false
	}
	rest := strings.TrimSpace(content[idx+len("arguments:"):])
	if m, ok := ExtractFencedJSON(rest); ok {
		return m, true
	}
	start := strings.Index(rest, "{")
	end := strings.LastIndex(rest, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return parseObject(rest[start : end+1])
}

func parseObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}
