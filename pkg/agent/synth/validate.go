package synth

import (
	"fmt"
	"strings"
)

// clause keys whose child map keys name index fields
var fieldKeyedClauses = map[string]bool{
	"match":        true,
	"match_phrase": true,
	"term":         true,
	"terms":        false, // terms agg uses "field", terms query uses field keys
	"range":        true,
	"exists":       false,
	"wildcard":     true,
	"prefix":       true,
}

// ValidateBody checks that every field the body references exists in the
// index schema. It walks the body structurally; unknown clause types are
// allowed as long as their field references resolve.
func ValidateBody(body map[string]interface{}, knownFields []string) error {
	if len(knownFields) == 0 {
		return nil // no schema to validate against
	}

	known := map[string]bool{}
	for _, field := range knownFields {
		known[field] = true
	}

	var unknown []string
	walkFields(body, func(field string) {
		if !fieldKnown(field, known) {
			unknown = append(unknown, field)
		}
	})

	if len(unknown) > 0 {
		return fmt.Errorf("unknown fields: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// fieldKnown resolves multi-field suffixes: "product.keyword" is valid
// when "product" is a known field.
func fieldKnown(field string, known map[string]bool) bool {
	if known[field] {
		return true
	}
	if idx := strings.LastIndex(field, "."); idx > 0 {
		if known[field[:idx]] {
			return true
		}
	}
	return false
}

func walkFields(node interface{}, visit func(field string)) {
	obj, ok := node.(map[string]interface{})
	if !ok {
		if arr, ok := node.([]interface{}); ok {
			for _, item := range arr {
				walkFields(item, visit)
			}
		}
		return
	}

	for key, value := range obj {
		// Explicit field reference: {"field": "revenue"}
		if key == "field" {
			if name, ok := value.(string); ok {
				visit(name)
				continue
			}
		}

		// Field-keyed clause: {"match": {"category": "electronics"}}
		if fieldKeyedClauses[key] {
			if clause, ok := value.(map[string]interface{}); ok {
				for field := range clause {
					visit(field)
				}
				continue
			}
		}

		walkFields(value, visit)
	}
}
