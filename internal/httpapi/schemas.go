package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const associateSchemaJSON = `{
	"type": "object",
	"properties": {
		"folderId": {"type": "string", "minLength": 1},
		"folderTitle": {"type": "string"}
	},
	"required": ["folderId"],
	"additionalProperties": false
}`

const createFolderSchemaJSON = `{
	"type": "object",
	"properties": {
		"title": {"type": "string", "minLength": 1}
	},
	"required": ["title"],
	"additionalProperties": false
}`

const openFolderSchemaJSON = `{
	"type": "object",
	"properties": {
		"folderTitle": {"type": "string"}
	},
	"additionalProperties": false
}`

type requestSchemas struct {
	associate    *jsonschema.Schema
	createFolder *jsonschema.Schema
	openFolder   *jsonschema.Schema
}

func compileRequestSchemas() (*requestSchemas, error) {
	compiler := jsonschema.NewCompiler()
	compile := func(name, raw string) (*jsonschema.Schema, error) {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		return schema, nil
	}

	s := &requestSchemas{}
	var err error
	if s.associate, err = compile("associate.json", associateSchemaJSON); err != nil {
		return nil, err
	}
	if s.createFolder, err = compile("create_folder.json", createFolderSchemaJSON); err != nil {
		return nil, err
	}
	if s.openFolder, err = compile("open_folder.json", openFolderSchemaJSON); err != nil {
		return nil, err
	}
	return s, nil
}

// validateBody checks the raw request body against a compiled schema and
// returns a one-line description of the first violation.
func validateBody(schema *jsonschema.Schema, body []byte) error {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid json body")
	}
	if err := schema.Validate(instance); err != nil {
		return err
	}
	return nil
}
