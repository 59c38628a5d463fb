// Package validation implements strict structural validation of JSON
// payloads against closed per-kind schemas. Unknown fields are rejected
// rather than ignored, and every fault is reported with the path of the
// offending field (e.g. "questions[2].options[0].points").
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Fault is one field-level violation
type Fault struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ValidationError aggregates every fault found in a payload
type ValidationError struct {
	Faults []Fault `json:"faults"`
}

func (e *ValidationError) Error() string {
	if len(e.Faults) == 0 {
		return "invalid payload"
	}
	parts := make([]string, len(e.Faults))
	for i, f := range e.Faults {
		if f.Path == "" {
			parts[i] = f.Reason
			continue
		}
		parts[i] = f.Path + ": " + f.Reason
	}
	return fmt.Sprintf("invalid payload: %s", strings.Join(parts, "; "))
}

// Schema checks one node of a decoded JSON value
type Schema interface {
	check(path string, v any) []Fault
}

// Check validates raw JSON against a schema. It returns nil on success or a
// *ValidationError listing every fault.
func Check(s Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return &ValidationError{Faults: []Fault{{Path: "", Reason: "malformed JSON: " + err.Error()}}}
	}
	if faults := s.check("", v); len(faults) > 0 {
		return &ValidationError{Faults: faults}
	}
	return nil
}

// String accepts JSON strings, optionally with a minimum length
type String struct {
	MinLen int
}

func (s String) check(path string, v any) []Fault {
	str, ok := v.(string)
	if !ok {
		return []Fault{{Path: path, Reason: "expected string"}}
	}
	if len(str) < s.MinLen {
		return []Fault{{Path: path, Reason: fmt.Sprintf("string shorter than %d", s.MinLen)}}
	}
	return nil
}

// Number accepts finite JSON numbers
type Number struct{}

func (Number) check(path string, v any) []Fault {
	f, ok := v.(float64)
	if !ok {
		return []Fault{{Path: path, Reason: "expected number"}}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []Fault{{Path: path, Reason: "number must be finite"}}
	}
	return nil
}

// Bool accepts JSON booleans
type Bool struct{}

func (Bool) check(path string, v any) []Fault {
	if _, ok := v.(bool); !ok {
		return []Fault{{Path: path, Reason: "expected boolean"}}
	}
	return nil
}

// Literal accepts exactly one string value, used for kind discriminators
type Literal struct {
	Value string
}

func (l Literal) check(path string, v any) []Fault {
	str, ok := v.(string)
	if !ok || str != l.Value {
		return []Fault{{Path: path, Reason: fmt.Sprintf("expected %q", l.Value)}}
	}
	return nil
}

// Array validates every element against Elem
type Array struct {
	Elem Schema
}

func (a Array) check(path string, v any) []Fault {
	items, ok := v.([]any)
	if !ok {
		return []Fault{{Path: path, Reason: "expected array"}}
	}
	var faults []Fault
	for i, item := range items {
		faults = append(faults, a.Elem.check(fmt.Sprintf("%s[%d]", path, i), item)...)
	}
	return faults
}

// MapOf validates a JSON object as a homogeneous map. Keys must be at least
// MinKeyLen long and every value is checked against Elem.
type MapOf struct {
	MinKeyLen int
	Elem      Schema
}

func (m MapOf) check(path string, v any) []Fault {
	obj, ok := v.(map[string]any)
	if !ok {
		return []Fault{{Path: path, Reason: "expected object"}}
	}
	var faults []Fault
	for key, val := range obj {
		keyPath := joinPath(path, key)
		if len(key) < m.MinKeyLen {
			faults = append(faults, Fault{Path: keyPath, Reason: fmt.Sprintf("key shorter than %d", m.MinKeyLen)})
		}
		faults = append(faults, m.Elem.check(keyPath, val)...)
	}
	return faults
}

// Field declares one object field
type Field struct {
	Schema   Schema
	Optional bool
}

// Object is a strict JSON object schema: declared fields are required unless
// marked optional, and any undeclared field is a fault.
type Object struct {
	Fields map[string]Field
}

func (o *Object) check(path string, v any) []Fault {
	obj, ok := v.(map[string]any)
	if !ok {
		return []Fault{{Path: path, Reason: "expected object"}}
	}
	var faults []Fault
	for name, field := range o.Fields {
		val, present := obj[name]
		if !present {
			if !field.Optional {
				faults = append(faults, Fault{Path: joinPath(path, name), Reason: "missing required field"})
			}
			continue
		}
		faults = append(faults, field.Schema.check(joinPath(path, name), val)...)
	}
	for name := range obj {
		if _, declared := o.Fields[name]; !declared {
			faults = append(faults, Fault{Path: joinPath(path, name), Reason: "unrecognized field"})
		}
	}
	return faults
}

// Union dispatches on a string discriminator field to one of its variants.
type Union struct {
	Tag      string
	Variants map[string]*Object
}

func (u Union) check(path string, v any) []Fault {
	obj, ok := v.(map[string]any)
	if !ok {
		return []Fault{{Path: path, Reason: "expected object"}}
	}
	tag, ok := obj[u.Tag].(string)
	if !ok {
		return []Fault{{Path: joinPath(path, u.Tag), Reason: "missing discriminator"}}
	}
	variant, ok := u.Variants[tag]
	if !ok {
		return []Fault{{Path: joinPath(path, u.Tag), Reason: fmt.Sprintf("unknown kind %q", tag)}}
	}
	return variant.check(path, v)
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
