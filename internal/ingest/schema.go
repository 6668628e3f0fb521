package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// Submission is the JSON body accepted for job submission.
type Submission struct {
	OwnerID  string            `json:"owner_id"`
	Name     string            `json:"name,omitempty"`
	Strategy string            `json:"strategy,omitempty"`
	Items    []entity.WorkItem `json:"items"`
}

var submissionSchema = map[string]any{
	"$schema":  "https://json-schema.org/draft/2020-12/schema",
	"type":     "object",
	"required": []string{"owner_id", "items"},
	"properties": map[string]any{
		"owner_id": map[string]any{"type": "string", "minLength": 1, "maxLength": 128},
		"name":     map[string]any{"type": "string", "maxLength": 256},
		"strategy": map[string]any{"type": "string"},
		"items": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []string{"description"},
				"properties": map[string]any{
					"row_number":      map[string]any{"type": "integer", "minimum": 0},
					"description":     map[string]any{"type": "string", "minLength": 1},
					"quantity":        map[string]any{"type": "number", "minimum": 0},
					"unit":            map[string]any{"type": "string"},
					"context_headers": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
	},
}

var compiledSubmission = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(submissionSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("submission.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("submission.json")
})

// DecodeSubmission validates data against the submission schema and decodes
// it. Schema violations are InvalidInput.
func DecodeSubmission(data []byte) (Submission, error) {
	schema, err := compiledSubmission()
	if err != nil {
		return Submission{}, fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Submission{}, common.InvalidInputf("malformed JSON: %v", err)
	}
	if err := schema.Validate(v); err != nil {
		return Submission{}, common.InvalidInputf("submission does not match schema: %v", err)
	}
	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return Submission{}, common.InvalidInputf("decode submission: %v", err)
	}
	return sub, nil
}
