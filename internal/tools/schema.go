package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
)

// Primitive types a property may declare.
var knownTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"object":  true,
	"array":   true,
}

// checkSchema verifies a tool's input schema is usable before the tool is
// registered, so malformed schemas fail at startup rather than per call.
func checkSchema(schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	if t, ok := schema["type"]; ok && t != "object" {
		return fmt.Errorf("input schema type must be \"object\", got %v", t)
	}
	props, err := schemaProperties(schema)
	if err != nil {
		return err
	}
	for name, p := range props {
		typ, err := propertyType(p)
		if err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		if typ != "" && !knownTypes[typ] {
			return fmt.Errorf("property %q: unsupported type %q", name, typ)
		}
	}
	required, err := requiredFields(schema["required"])
	if err != nil {
		return err
	}
	for _, r := range required {
		if props != nil {
			if _, ok := props[r]; !ok {
				return fmt.Errorf("required field %q is not a declared property", r)
			}
		}
	}
	return nil
}

// validateArgs collects every mismatch between args and schema. It
// returns nil when the arguments are acceptable.
func validateArgs(name string, schema, args map[string]any) *ValidationError {
	if len(schema) == 0 {
		return nil
	}

	verr := &ValidationError{ToolName: name}

	// Schemas were checked at registration; errors here cannot occur.
	required, _ := requiredFields(schema["required"])
	props, _ := schemaProperties(schema)

	for _, field := range required {
		if v, ok := args[field]; !ok || v == nil {
			verr.Fields = append(verr.Fields, FieldError{Field: field, Reason: "missing required field"})
		}
	}

	for key, value := range args {
		p, ok := props[key]
		if !ok || value == nil {
			continue
		}
		typ, _ := propertyType(p)
		if typ == "" {
			continue
		}
		if !matchesType(typ, value) {
			verr.Fields = append(verr.Fields, FieldError{
				Field:  key,
				Reason: fmt.Sprintf("must be %s, got %s", typ, describe(value)),
			})
		}
	}

	if len(verr.Fields) == 0 {
		return nil
	}
	verr.sort()
	return verr
}

func schemaProperties(schema map[string]any) (map[string]any, error) {
	raw, ok := schema["properties"]
	if !ok || raw == nil {
		return nil, nil
	}
	props, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New(`input schema "properties" must be an object`)
	}
	return props, nil
}

func requiredFields(raw any) ([]string, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return value, nil
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			field, ok := item.(string)
			if !ok {
				return nil, errors.New(`input schema "required" entries must be strings`)
			}
			out = append(out, field)
		}
		return out, nil
	default:
		return nil, errors.New(`input schema "required" must be an array`)
	}
}

func propertyType(prop any) (string, error) {
	m, ok := prop.(map[string]any)
	if !ok {
		return "", errors.New("property schema must be an object")
	}
	raw, ok := m["type"]
	if !ok {
		return "", nil
	}
	typ, ok := raw.(string)
	if !ok {
		return "", errors.New(`property "type" must be a string`)
	}
	return typ, nil
}

func matchesType(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		_, ok := number(value)
		return ok
	case "integer":
		f, ok := number(value)
		return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
	case "object":
		return reflect.TypeOf(value).Kind() == reflect.Map
	case "array":
		kind := reflect.TypeOf(value).Kind()
		return kind == reflect.Slice || kind == reflect.Array
	default:
		return true
	}
}

// number reports value as a float64. Arguments decoded from JSON arrive
// as float64 or json.Number; Go callers may pass native integers.
func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func describe(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := number(value); ok {
		return "number"
	}
	return reflect.TypeOf(value).String()
}
