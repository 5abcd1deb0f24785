package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaID identifies the generated configuration schema.
const SchemaID = "https://github.com/kadirpekel/a2achat/schema/config.json"

// Schema reflects Config into a JSON schema for editor completion.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}
	s := r.Reflect(&Config{})
	s.ID = jsonschema.ID(SchemaID)
	s.Title = "a2achat configuration"
	s.Version = "http://json-schema.org/draft-07/schema#"
	return s
}

// SchemaJSON returns the indented schema document.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
