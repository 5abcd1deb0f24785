package forms

import (
	"errors"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2achat/pkg/protocol"
)

func contactForm() protocol.FormRequest {
	return protocol.FormRequest{
		ID:    "contact",
		Title: "Contact details",
		Fields: []protocol.FormField{
			{ID: "email", Type: "text", Required: true, Schema: map[string]any{"type": "string", "pattern": "^[^@]+@[^@]+$"}},
			{ID: "plan", Type: "select", Options: []protocol.FormOption{{ID: "basic"}, {ID: "pro"}}, Default: "basic"},
			{ID: "seats", Type: "number"},
			{ID: "newsletter", Type: "checkbox"},
		},
	}
}

func problemFields(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	fields := make([]string, len(verr.Problems))
	for i, p := range verr.Problems {
		fields[i] = p.Field
	}
	return fields
}

func TestValidate(t *testing.T) {
	form := contactForm()

	tests := []struct {
		name   string
		values map[string]any
		fields []string
	}{
		{
			name:   "valid",
			values: map[string]any{"email": "a@b.c", "plan": "pro", "seats": float64(3), "newsletter": true},
		},
		{
			name:   "missing required",
			values: map[string]any{"plan": "pro"},
			fields: []string{"email"},
		},
		{
			name:   "blank required",
			values: map[string]any{"email": "   "},
			fields: []string{"email"},
		},
		{
			name:   "unknown option",
			values: map[string]any{"email": "a@b.c", "plan": "enterprise"},
			fields: []string{"plan"},
		},
		{
			name:   "wrong types",
			values: map[string]any{"email": "a@b.c", "seats": "three", "newsletter": "yes"},
			fields: []string{"seats", "newsletter"},
		},
		{
			name:   "field schema",
			values: map[string]any{"email": "not-an-address"},
			fields: []string{"email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(form, tt.values)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.fields, problemFields(t, err))
		})
	}
}

func TestValidate_MultiSelect(t *testing.T) {
	form := protocol.FormRequest{
		ID: "tags",
		Fields: []protocol.FormField{
			{ID: "tags", Type: "multiselect", Options: []protocol.FormOption{{ID: "go"}, {ID: "rust"}}},
		},
	}
	assert.NoError(t, Validate(form, map[string]any{"tags": []any{"go", "rust"}}))
	assert.Equal(t, []string{"tags"}, problemFields(t, Validate(form, map[string]any{"tags": []string{"go", "zig"}})))
}

func TestValidate_FormSchema(t *testing.T) {
	form := protocol.FormRequest{
		ID:     "range",
		Fields: []protocol.FormField{{ID: "min", Type: "number"}, {ID: "max", Type: "number"}},
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"min", "max"},
		},
	}
	assert.NoError(t, Validate(form, map[string]any{"min": 1, "max": 2}))

	err := Validate(form, map[string]any{"min": 1})
	assert.Equal(t, []string{""}, problemFields(t, err))
	assert.Contains(t, err.Error(), `form "range"`)
}

func TestApplyDefaults(t *testing.T) {
	values := map[string]any{"email": "a@b.c"}
	out := ApplyDefaults(contactForm(), values)

	assert.Equal(t, "basic", out["plan"])
	assert.NotContains(t, values, "plan")
}

func TestBuildSubmission(t *testing.T) {
	ext := protocol.DefaultExtensions()
	msg, err := BuildSubmission(ext, contactForm(), map[string]any{"email": "a@b.c"})
	require.NoError(t, err)

	assert.Equal(t, a2a.MessageRoleUser, msg.Role)
	require.Len(t, msg.Parts, 1)
	part, ok := msg.Parts[0].(a2a.DataPart)
	require.True(t, ok)
	assert.Equal(t, "a@b.c", part.Data["email"])
	assert.Equal(t, "basic", part.Data["plan"])

	meta, ok := msg.Metadata[protocol.FormRequestExtensionURI].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "contact", meta["form_id"])

	assert.Nil(t, ext.Form(msg.Metadata))
}

func TestBuildSubmission_Invalid(t *testing.T) {
	msg, err := BuildSubmission(protocol.DefaultExtensions(), contactForm(), nil)
	assert.Nil(t, msg)
	assert.Equal(t, []string{"email"}, problemFields(t, err))
}
