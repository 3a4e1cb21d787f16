// Package schema generates the JSON Schema of the plugin manifest document.
package schema

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"

	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

const (
	schemaURI = "https://json-schema.org/draft/2020-12/schema"
	title     = "edgeplug plugin manifest"
)

// Generate produces a JSON Schema from the plugin.Manifest struct.
func Generate() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
	}

	s := r.Reflect(&plugin.Manifest{})
	s.Version = schemaURI
	s.Title = title

	return s
}

// GenerateJSON produces the schema as indented JSON with a trailing newline.
func GenerateJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Generate(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshaling schema to JSON")
	}
	return append(data, '\n'), nil
}
