// Package forms validates values entered into a form request and turns
// them into the user message that answers it.
package forms

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/kadirpekel/a2achat/pkg/protocol"
)

// FieldError describes one invalid field. Field is empty for problems
// reported by the form-level schema.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a submission.
type ValidationError struct {
	FormID   string       `json:"form_id,omitempty"`
	Problems []FieldError `json:"problems"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		if p.Field == "" {
			parts[i] = p.Message
			continue
		}
		parts[i] = p.Field + ": " + p.Message
	}
	return fmt.Sprintf("invalid submission for form %q: %s", e.FormID, strings.Join(parts, "; "))
}

// ApplyDefaults returns a copy of values with field defaults filled in for
// fields that have no value.
func ApplyDefaults(form protocol.FormRequest, values map[string]any) map[string]any {
	out := maps.Clone(values)
	if out == nil {
		out = map[string]any{}
	}
	for _, f := range form.Fields {
		if f.Default == nil {
			continue
		}
		if v, ok := out[f.ID]; !ok || isEmpty(v) {
			out[f.ID] = f.Default
		}
	}
	return out
}

// Validate checks values against the form: required fields, option
// membership, field types, and any JSON Schema attached to a field or to
// the form itself.
func Validate(form protocol.FormRequest, values map[string]any) error {
	var problems []FieldError
	add := func(field, format string, args ...any) {
		problems = append(problems, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	for _, f := range form.Fields {
		v, ok := values[f.ID]
		if !ok || isEmpty(v) {
			if f.Required {
				add(f.ID, "is required")
			}
			continue
		}
		if msg := typeProblem(f.Type, v); msg != "" {
			add(f.ID, "%s", msg)
			continue
		}
		if len(f.Options) > 0 {
			if bad := unknownOptions(f.Options, v); len(bad) > 0 {
				add(f.ID, "must be one of %s", strings.Join(optionIDs(f.Options), ", "))
				continue
			}
		}
		if len(f.Schema) > 0 {
			if err := validateSchema(f.Schema, v); err != nil {
				add(f.ID, "%s", err)
			}
		}
	}

	if len(form.Schema) > 0 {
		if err := validateSchema(form.Schema, values); err != nil {
			add("", "%s", err)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{FormID: form.ID, Problems: problems}
	}
	return nil
}

// BuildSubmission validates values and wraps them in a user message. The
// message carries the values as a data part and names the answered form in
// the form-request extension metadata.
func BuildSubmission(ext protocol.Extensions, form protocol.FormRequest, values map[string]any) (*a2a.Message, error) {
	values = ApplyDefaults(form, values)
	if err := Validate(form, values); err != nil {
		return nil, err
	}

	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.DataPart{Data: values})
	msg.Metadata = map[string]any{
		ext.WithDefaults().FormRequest: map[string]any{
			"form_id": form.ID,
			"values":  values,
		},
	}
	return msg, nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

func typeProblem(fieldType string, v any) string {
	switch strings.ToLower(fieldType) {
	case "number", "integer":
		switch v.(type) {
		case float64, float32, int, int64, int32, json.Number:
			return ""
		}
		return "must be a number"
	case "boolean", "checkbox", "toggle":
		if _, ok := v.(bool); !ok {
			return "must be true or false"
		}
	}
	return ""
}

func unknownOptions(options []protocol.FormOption, v any) []string {
	ids := optionIDs(options)
	var chosen []string
	switch x := v.(type) {
	case []any:
		for _, el := range x {
			chosen = append(chosen, fmt.Sprint(el))
		}
	case []string:
		chosen = x
	default:
		chosen = []string{fmt.Sprint(x)}
	}

	var bad []string
	for _, c := range chosen {
		if !slices.Contains(ids, c) {
			bad = append(bad, c)
		}
	}
	return bad
}

func optionIDs(options []protocol.FormOption) []string {
	ids := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID
	}
	return ids
}

// validateSchema compiles schema and validates instance against it. Both
// are normalized through JSON first so Go-native values validate the same
// way decoded ones do.
func validateSchema(schema map[string]any, instance any) error {
	schemaDoc, err := normalize(schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	doc, err := normalize(instance)
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("%s", strings.Join(strings.Fields(err.Error()), " "))
	}
	return nil
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
