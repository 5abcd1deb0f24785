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

package protocol

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// TrajectoryFragment is the normalized view of one trajectory extension
// record: one step of agent reasoning or tool use.
type TrajectoryFragment struct {
	Title       string `mapstructure:"title" json:"title,omitempty"`
	Content     string `mapstructure:"content" json:"content,omitempty"`
	GroupID     string `mapstructure:"group_id" json:"group_id,omitempty"`
	ContentType string `mapstructure:"content_type" json:"content_type,omitempty"`
	Status      string `mapstructure:"status" json:"status,omitempty"`
}

// IsEmpty reports whether the fragment carries neither title nor content.
func (f TrajectoryFragment) IsEmpty() bool {
	return strings.TrimSpace(f.Title) == "" && strings.TrimSpace(f.Content) == ""
}

// Citation points at a source backing part of a text response.
type Citation struct {
	URL         string `mapstructure:"url" json:"url,omitempty"`
	Title       string `mapstructure:"title" json:"title,omitempty"`
	Description string `mapstructure:"description" json:"description,omitempty"`
	StartIndex  *int   `mapstructure:"start_index" json:"start_index,omitempty"`
	EndIndex    *int   `mapstructure:"end_index" json:"end_index,omitempty"`
}

// ErrorDetail is an agent-reported error attached through the error extension.
type ErrorDetail struct {
	Title      string         `mapstructure:"title" json:"title,omitempty"`
	Message    string         `mapstructure:"message" json:"message,omitempty"`
	Code       string         `mapstructure:"code" json:"code,omitempty"`
	Stacktrace string         `mapstructure:"stacktrace" json:"stacktrace,omitempty"`
	Context    map[string]any `mapstructure:"context" json:"context,omitempty"`
}

// FormRequest describes a form the agent asks the user to fill in.
type FormRequest struct {
	ID          string         `mapstructure:"id" json:"id,omitempty"`
	Title       string         `mapstructure:"title" json:"title,omitempty"`
	Description string         `mapstructure:"description" json:"description,omitempty"`
	SubmitLabel string         `mapstructure:"submit_label" json:"submit_label,omitempty"`
	Fields      []FormField    `mapstructure:"fields" json:"fields"`
	Schema      map[string]any `mapstructure:"schema" json:"schema,omitempty"`
}

// FormField is a single input of a FormRequest.
type FormField struct {
	ID          string         `mapstructure:"id" json:"id"`
	Type        string         `mapstructure:"type" json:"type,omitempty"`
	Label       string         `mapstructure:"label" json:"label,omitempty"`
	Description string         `mapstructure:"description" json:"description,omitempty"`
	Required    bool           `mapstructure:"required" json:"required,omitempty"`
	Default     any            `mapstructure:"default_value" json:"default_value,omitempty"`
	Options     []FormOption   `mapstructure:"options" json:"options,omitempty"`
	Schema      map[string]any `mapstructure:"schema" json:"schema,omitempty"`
}

// FormOption is one choice of a select-like FormField.
type FormOption struct {
	ID    string `mapstructure:"id" json:"id"`
	Label string `mapstructure:"label" json:"label,omitempty"`
}

var keyAliases = map[string]string{
	"groupId":      "group_id",
	"contentType":  "content_type",
	"startIndex":   "start_index",
	"endIndex":     "end_index",
	"submitLabel":  "submit_label",
	"defaultValue": "default_value",
	"default":      "default_value",
	"value":        "id",
}

// DecodeTrajectory decodes a trajectory record.
func DecodeTrajectory(rec map[string]any) (TrajectoryFragment, error) {
	var frag TrajectoryFragment
	if err := decode(rec, &frag); err != nil {
		return TrajectoryFragment{}, fmt.Errorf("decode trajectory: %w", err)
	}
	return frag, nil
}

// DecodeCitation decodes a citation record.
func DecodeCitation(rec map[string]any) (Citation, error) {
	var c Citation
	if err := decode(rec, &c); err != nil {
		return Citation{}, fmt.Errorf("decode citation: %w", err)
	}
	return c, nil
}

// DecodeError decodes an error record. Both the flat shape and the nested
// {"error": {...}, "context": {...}} shape are accepted.
func DecodeError(rec map[string]any) (ErrorDetail, error) {
	flat := make(map[string]any, len(rec))
	for k, v := range rec {
		flat[k] = v
	}
	switch nested := rec["error"].(type) {
	case map[string]any:
		delete(flat, "error")
		for k, v := range nested {
			if _, exists := flat[k]; !exists {
				flat[k] = v
			}
		}
	case string:
		delete(flat, "error")
		if _, exists := flat["message"]; !exists {
			flat["message"] = nested
		}
	}

	var d ErrorDetail
	if err := decode(flat, &d); err != nil {
		return ErrorDetail{}, fmt.Errorf("decode error detail: %w", err)
	}
	return d, nil
}

// DecodeFormRequest decodes a form request record.
func DecodeFormRequest(rec map[string]any) (FormRequest, error) {
	var f FormRequest
	if err := decode(rec, &f); err != nil {
		return FormRequest{}, fmt.Errorf("decode form request: %w", err)
	}
	return f, nil
}

func decode(input map[string]any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			aliasHook,
			stringifyHook,
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(input)
}

// aliasHook rewrites camelCase keys to their snake_case field names before a
// map is decoded into a struct.
func aliasHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Map || to.Kind() != reflect.Struct {
		return data, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return data, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for alias, canonical := range keyAliases {
		v, ok := m[alias]
		if !ok {
			continue
		}
		if _, exists := m[canonical]; !exists {
			out[canonical] = v
		}
		delete(out, alias)
	}
	return out, nil
}

// stringifyHook renders object and array values as JSON when the target is a
// string, so structured trajectory content survives decoding.
func stringifyHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Map, reflect.Slice:
		b, err := json.Marshal(data)
		if err != nil {
			return data, nil
		}
		return string(b), nil
	}
	return data, nil
}
