package schema

import (
	"encoding/json"
	"testing"
)

const pathSchema = `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"],"additionalProperties":false}`

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", `{"path":"/tmp"}`, false},
		{"missing required", `{}`, true},
		{"wrong type", `{"path":3}`, true},
		{"extra property", `{"path":"/tmp","x":1}`, true},
		{"not json", `{path`, true},
		{"empty", ``, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(json.RawMessage(pathSchema), json.RawMessage(tc.doc))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestCompile_EmptySchemaAcceptsAnything(t *testing.T) {
	v, err := Compile(nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("expected nil validator")
	}
	if err := v.Validate(json.RawMessage(`[1,2]`)); err != nil {
		t.Fatalf("nil validator rejected input: %v", err)
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	if _, err := Compile(json.RawMessage(`{"type":`)); err == nil {
		t.Fatalf("expected error for malformed schema")
	}
}

func TestValidator_ValidateValue(t *testing.T) {
	v := MustCompile(json.RawMessage(pathSchema))
	if err := v.ValidateValue(map[string]any{"path": "a"}); err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateValue(nil); err == nil {
		t.Fatalf("expected null to be rejected")
	}
}
