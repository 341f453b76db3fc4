// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the config schema.
const SchemaID = "https://holomush.dev/schemas/arcade-config.schema.json"

// compiled is built from Config once per process.
var compiled = sync.OnceValues(func() (*jschema.Schema, error) {
	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.In("config").Wrap(err)
	}
	c := jschema.NewCompiler()
	if err := c.AddResource(SchemaID, doc); err != nil {
		return nil, oops.In("config").Wrap(err)
	}
	sch, err := c.Compile(SchemaID)
	if err != nil {
		return nil, oops.In("config").Wrap(err)
	}
	return sch, nil
})

// GenerateSchema reflects the JSON Schema of config.yaml from Config.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Arcade Configuration"
	schema.Description = "Schema for arcade config.yaml files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("config").Hint("failed to marshal schema").Wrap(err)
	}
	return data, nil
}

// ValidateSchema checks a YAML config document against the schema. An
// empty document is valid.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.In("config").Wrapf(err, "invalid YAML")
	}
	if doc == nil {
		return nil
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return oops.In("config").Wrapf(err, "invalid YAML")
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return oops.In("config").Wrap(err)
	}

	sch, err := compiled()
	if err != nil {
		return oops.In("config").Wrapf(err, "failed to compile schema")
	}
	if err := sch.Validate(inst); err != nil {
		return oops.In("config").
			Hint("run 'arcade schema' to see the accepted keys").
			Wrapf(err, "schema validation failed")
	}
	return nil
}
