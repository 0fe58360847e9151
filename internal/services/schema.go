package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// reportSchemaJSON is the contract every normalized report satisfies,
// regardless of what the classifier produced. Normalize guarantees
// conformance; the schema is the executable statement of that guarantee.
const reportSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["risk_score", "risk_label", "confidence", "tactics", "receipts", "kpis"],
  "properties": {
    "risk_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "risk_label": {"type": "string", "minLength": 1},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "tactics": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "name", "likelihood", "severity", "frequency", "examples", "score", "contribution_pct"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "likelihood": {"type": "number", "minimum": 0, "maximum": 1},
          "severity": {"type": "number", "minimum": 1, "maximum": 5},
          "frequency": {"type": "number", "minimum": 0, "maximum": 5},
          "examples": {"type": "array", "maxItems": 5, "items": {"type": "string"}},
          "score": {"type": "integer", "minimum": 0, "maximum": 100},
          "contribution_pct": {"type": "number", "minimum": 0, "maximum": 100}
        },
        "additionalProperties": false
      }
    },
    "receipts": {
      "type": "array",
      "maxItems": 30,
      "items": {
        "type": "object",
        "required": ["quote", "severity"],
        "properties": {
          "quote": {"type": "string"},
          "category": {"type": "string"},
          "source": {"type": "string"},
          "severity": {"type": "number", "minimum": 1, "maximum": 5}
        },
        "additionalProperties": false
      }
    },
    "kpis": {"type": "object"},
    "narrative": {"type": "string"}
  },
  "additionalProperties": false
}`

// ValidateReportJSON validates a marshaled report against the report schema.
func ValidateReportJSON(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("report.json", strings.NewReader(reportSchemaJSON)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("report.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal report: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("report schema validation: %w", err)
	}
	return nil
}
