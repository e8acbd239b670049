package logger

import (
	"bytes"
	"testing"
)

func TestRedact_ValueAttributes(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Info("set", "key", "foo", "value", []byte("super secret payload"))
	entry := decode(t, &buf)

	if entry["key"] != "foo" {
		t.Errorf("key = %v, want foo", entry["key"])
	}
	if entry["value"] != "<20 bytes>" {
		t.Errorf("value = %v, want <20 bytes>", entry["value"])
	}
}

func TestRedact_StringSecrets(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Info("config", "password", "hunter2", "empty_secret", "")
	entry := decode(t, &buf)

	if entry["password"] != redactedValue {
		t.Errorf("password = %v, want redacted", entry["password"])
	}
	if entry["empty_secret"] != "" {
		t.Errorf("empty_secret = %v, want empty", entry["empty_secret"])
	}
}

func TestRedact_Groups(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Slog().WithGroup("req").Info("cmd", "value", "abc", "name", "SET")
	entry := decode(t, &buf)

	group, ok := entry["req"].(map[string]any)
	if !ok {
		t.Fatalf("req group missing: %v", entry)
	}
	if group["value"] != redactedValue {
		t.Errorf("req.value = %v, want redacted", group["value"])
	}
	if group["name"] != "SET" {
		t.Errorf("req.name = %v", group["name"])
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := map[string]bool{
		"value":        true,
		"Value":        true,
		"old_value":    true,
		"password":     true,
		"key":          false,
		"remote":       false,
		"conn_id":      false,
		"clientSecret": true,
	}

	for key, want := range tests {
		if got := IsSensitiveKey(key); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
