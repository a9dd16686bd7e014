// Package schema validates JSON documents against JSON Schema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator is a compiled schema. A nil *Validator accepts everything.
type Validator struct {
	s *jsonschema.Schema
}

// Compile compiles schemaJSON. An empty schema yields a nil Validator.
func Compile(schemaJSON json.RawMessage) (*Validator, error) {
	if len(bytes.TrimSpace(schemaJSON)) == 0 {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("schema resource: %w", err)
	}
	s, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{s: s}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(schemaJSON json.RawMessage) *Validator {
	v, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks raw against the schema.
func (v *Validator) Validate(raw json.RawMessage) error {
	if v == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("empty json")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return v.ValidateValue(doc)
}

// ValidateValue checks an already decoded document (as produced by
// encoding/json into an any).
func (v *Validator) ValidateValue(doc any) error {
	if v == nil {
		return nil
	}
	return v.s.Validate(doc)
}

// Validate compiles schemaJSON and checks raw against it.
func Validate(schemaJSON json.RawMessage, raw json.RawMessage) error {
	v, err := Compile(schemaJSON)
	if err != nil {
		return err
	}
	return v.Validate(raw)
}
