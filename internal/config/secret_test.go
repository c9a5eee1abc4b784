package config

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestSecretMasksAllTextForms(t *testing.T) {
	s := Secret("hunter2")

	if got := s.String(); got != "[REDACTED]" {
		t.Errorf("String() = %q, want [REDACTED]", got)
	}
	if got := fmt.Sprintf("%v", s); got != "[REDACTED]" {
		t.Errorf("Sprintf(%%v) = %q, want [REDACTED]", got)
	}

	text, err := s.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(text) == "hunter2" {
		t.Error("MarshalText() leaked the raw value")
	}

	data, err := json.Marshal(struct {
		APIKey Secret `json:"api_key"`
	}{APIKey: s})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(data) != `{"api_key":"[REDACTED]"}` {
		t.Errorf("json.Marshal() = %s, want masked", data)
	}
}

func TestSecretValueAndIsSet(t *testing.T) {
	s := Secret("hunter2")
	if s.Value() != "hunter2" {
		t.Errorf("Value() = %q, want hunter2", s.Value())
	}
	if !s.IsSet() {
		t.Error("IsSet() = false for non-empty secret")
	}

	var empty Secret
	if empty.IsSet() {
		t.Error("IsSet() = true for empty secret")
	}
	if empty.String() != "" {
		t.Errorf("empty String() = %q, want empty", empty.String())
	}
}

func TestSecretUnmarshalText(t *testing.T) {
	var s Secret
	if err := s.UnmarshalText([]byte("from-env")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if s.Value() != "from-env" {
		t.Errorf("Value() = %q, want from-env", s.Value())
	}
}
