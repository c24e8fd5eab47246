package query

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// querySchema declares the shape of an inbound Query payload before it is
// decoded into the typed Query struct.
func querySchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"query_type"},
		Properties: map[string]*jsonschema.Schema{
			"query_type": {
				Type: "string",
				Enum: []any{
					string(TypeTargetPrioritization),
					string(TypeEvidenceLookup),
					string(TypeSimilarity),
				},
			},
			"entities": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"cancer_entity_id": {Type: "string"},
					"gene_entity_id":   {Type: "string"},
					"query_text":       {Type: "string"},
				},
			},
			"constraints": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"min_structural_tractability": {Type: "number"},
					"max_inhibitor_count":         {Type: "integer"},
					"min_confidence":              {Type: "number"},
				},
			},
			"output": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"top_n":           {Type: "integer"},
					"chunks_per_item": {Type: "integer"},
				},
			},
		},
	}
}

// Validator resolves the Query JSON Schema once and reuses it across
// requests, validating the request shape before entity references are
// resolved and normalized.
type Validator struct {
	resolved *jsonschema.Resolved
}

// NewValidator resolves the declared Query schema.
func NewValidator() (*Validator, error) {
	resolved, err := querySchema().Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("query: resolve schema: %w", err)
	}
	return &Validator{resolved: resolved}, nil
}

// ValidatePayload checks a raw inbound Query JSON document against the
// declared schema before it is unmarshaled into a Query.
func (v *Validator) ValidatePayload(raw []byte) error {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("query: decode payload: %w", err)
	}
	if err := v.resolved.Validate(instance); err != nil {
		return fmt.Errorf("query: schema validation: %w", err)
	}
	return nil
}

// DecodeQuery validates raw against the declared schema and, on success,
// unmarshals it into a typed Query — the boundary every inbound request
// crosses before Service.Execute sees it.
func (v *Validator) DecodeQuery(raw []byte) (Query, error) {
	if err := v.ValidatePayload(raw); err != nil {
		return Query{}, err
	}
	var q Query
	if err := json.Unmarshal(raw, &q); err != nil {
		return Query{}, fmt.Errorf("query: decode query: %w", err)
	}
	return q, nil
}
