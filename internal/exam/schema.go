package exam

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const payloadSchemaURL = "schema://exam-payload.json"

// payloadSchema describes the accepted wire form. Entries are loosely typed:
// an entry without a resolvable skill is dropped later, not rejected here.
const payloadSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["user_id"],
	"properties": {
		"user_id":         {"type": "string", "minLength": 1},
		"exam_id":         {"type": ["string", "null"]},
		"exam_type":       {"type": ["string", "null"]},
		"final_status":    {"type": ["string", "null"]},
		"status":          {"type": ["string", "null"]},
		"passed":          {"type": ["boolean", "null"]},
		"skills":          {"$ref": "#/$defs/entries"},
		"verified_skills": {"$ref": "#/$defs/entries"},
		"verifiedSkills":  {"$ref": "#/$defs/entries"}
	},
	"$defs": {
		"entries": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"properties": {
					"skill_id":   {"type": ["string", "null"]},
					"skill_name": {"type": ["string", "null"]},
					"status":     {"type": ["string", "null"]},
					"score":      {"type": ["number", "null"]}
				}
			}
		}
	}
}`

var compiledPayloadSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	var def any
	if err := json.Unmarshal([]byte(payloadSchema), &def); err != nil {
		return nil, fmt.Errorf("parse payload schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(payloadSchemaURL, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(payloadSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}
	return compiled, nil
})

// validatePayload validates a parsed JSON document against the payload schema.
func validatePayload(doc any) error {
	sch, err := compiledPayloadSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
