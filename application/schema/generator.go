// Package schema generates JSON schemas for the documents modbridge reads
// and writes: module manifests and the guest-to-host wire requests.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/log"
	"github.com/reglet-dev/modbridge/wireformat"
)

// SchemaID is the $id prefix of generated documents.
const SchemaID = "https://github.com/reglet-dev/modbridge/schema/"

// GenerateSchema reflects v into an indented JSON Schema (Draft 2020-12).
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}

// Documents lists every document with a published schema, by name.
var Documents = map[string]any{
	"manifest":     &entities.Manifest{},
	"call-request": &wireformat.CallRequestWire{},
	"call-reply":   &wireformat.CallResponseWire{},
	"log-message":  &log.LogMessageWire{},
}

// Generate returns the schema for the named document with its $id set.
func Generate(name string) ([]byte, error) {
	v, ok := Documents[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	reflector := jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(v)
	schema.ID = jsonschema.ID(SchemaID + name + ".json")

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s schema: %w", name, err)
	}
	return out, nil
}
