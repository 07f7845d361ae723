package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"vaultmesh/internal/domain"
)

// Minimal structural guards; refined over time. Content-level checks
// (digest equality, signature validity) live with the verifier, not here.

const receiptSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://vaultmesh.dev/schema/receipt.json",
  "type": "object",
  "required": ["actor", "env", "ts", "subject"],
  "properties": {
    "v": {"type": "string"},
    "id": {"type": "string"},
    "actor": {
      "type": "object",
      "required": ["id"],
      "properties": {"id": {"type": "string", "minLength": 1}}
    },
    "env": {"type": "object"},
    "ts": {"type": "string", "format": "date-time"},
    "kind": {"type": "string"},
    "subject": {
      "type": "object",
      "required": ["kind", "digest"],
      "properties": {
        "kind": {"type": "string"},
        "digest": {"type": "string"}
      }
    },
    "leaf": {"type": "string"},
    "sign": {"type": ["object", "null"]},
    "merkle": {"type": ["object", "null"]},
    "provenance": {"type": ["object", "null"]},
    "provenance_ref": {"type": ["object", "null"]}
  },
  "additionalProperties": true
}`

const provenanceSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://vaultmesh.dev/schema/provenance.json",
  "type": "object",
  "required": ["artifact", "artifact_hash", "actor", "build", "ci", "ts"],
  "properties": {
    "artifact": {"type": "string"},
    "artifact_hash": {"type": "string"},
    "actor": {
      "type": "object",
      "required": ["id"],
      "properties": {"id": {"type": "string", "minLength": 1}}
    },
    "build": {"type": "object"},
    "ci": {"type": "object"},
    "ts": {
      "type": "object",
      "required": ["built"],
      "properties": {"built": {"type": "string", "format": "date-time"}}
    },
    "receipt_digest": {"type": "string"}
  },
  "additionalProperties": true
}`

var (
	receiptGuard    = mustCompile("receipt.json", receiptSchema)
	provenanceGuard = mustCompile("provenance.json", provenanceSchema)
)

func mustCompile(name, doc string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(name, strings.NewReader(doc)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}

// ValidateReceipt checks the structural shape of a receipt document.
func ValidateReceipt(raw []byte) error {
	return validate(receiptGuard, "receipt", raw)
}

// ValidateProvenance checks the structural shape of a provenance document.
func ValidateProvenance(raw []byte) error {
	return validate(provenanceGuard, "provenance", raw)
}

func validate(guard *jsonschema.Schema, kind string, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %s is not valid JSON: %v", domain.ErrSchema, kind, err)
	}
	if err := guard.Validate(v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrSchema, kind, err)
	}
	return nil
}

// Classify tags raw ledger bytes by which guard they satisfy.
func Classify(raw []byte) string {
	if ValidateReceipt(raw) == nil {
		return "receipt"
	}
	if ValidateProvenance(raw) == nil {
		return "provenance"
	}
	return "unknown"
}
