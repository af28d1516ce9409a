package api

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// decisionRequestSchema is the outer shape of a decision write. Payload
// fields are validated per action by the contracts package; the schema
// only pins the envelope.
const decisionRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["action", "payload"],
  "additionalProperties": false,
  "properties": {
    "finding_id": {"type": "string", "minLength": 1},
    "action": {
      "type": "string",
      "enum": ["ACCEPT_DEVIATION", "APPLY_FALLBACK", "EDIT_MANUAL", "ESCALATE", "ADD_NOTE", "UNDO", "REVERT"]
    },
    "payload": {"type": "object"},
    "last_seen": {"type": "string", "format": "date-time"}
  }
}`

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://redline.schemas.local/api/%s.schema.json", name)
	if err := c.AddResource(schemaURL, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("schema %s load failed: %v", name, err))
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("schema %s compile failed: %v", name, err))
	}
	return compiled
}

var compiledDecisionSchema = mustCompileSchema("decision_request", decisionRequestSchema)
