package api

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// triggerSchema validates incoming trigger payloads before any filter
// evaluation happens. Rejected payloads never reach the coordinator.
const triggerSchema = `{
	"type": "object",
	"required": ["event", "branch"],
	"additionalProperties": false,
	"properties": {
		"event": {
			"type": "string",
			"enum": ["push", "pull_request", "tag", "manual"]
		},
		"branch": {
			"type": "string",
			"minLength": 1
		},
		"commit_sha": {
			"type": "string",
			"pattern": "^[0-9a-fA-F]*$"
		},
		"actor": {
			"type": "string"
		}
	}
}`

var compiledTriggerSchema = gojsonschema.NewStringLoader(triggerSchema)

// validateTriggerPayload checks the raw JSON body against the trigger
// schema and returns the collected violations.
func validateTriggerPayload(body []byte) error {
	result, err := gojsonschema.Validate(compiledTriggerSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("validate trigger payload: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid trigger payload: %s", strings.Join(msgs, "; "))
}
