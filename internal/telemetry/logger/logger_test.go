package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"default config", DefaultConfig()},
		{"text format", Config{Level: "debug", Format: "text"}},
		{"console format", Config{Level: "info", Format: "console"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if l == nil || l.Slog() == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		level   string
		logFunc func(string, ...any)
	}{
		{"DEBUG", l.Debug},
		{"INFO", l.Info},
		{"WARN", l.Warn},
		{"ERROR", l.Error},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("test message", "component", "kvserver")

			entry := decode(t, &buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["msg"] != "test message" {
				t.Errorf("msg = %v", entry["msg"])
			}
			if entry["component"] != "kvserver" {
				t.Errorf("component = %v", entry["component"])
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})
	defer SetLevel("info")

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug message written at info level: %s", buf.String())
	}

	SetLevel("debug")
	if GetLevel() != "debug" {
		t.Errorf("GetLevel() = %q, want debug", GetLevel())
	}
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug message missing after SetLevel(debug)")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"DEBUG":   "debug",
		"warn":    "warn",
		"warning": "warn",
		"error":   "error",
		"info":    "info",
		"bogus":   "info",
		"":        "info",
	}
	defer SetLevel("info")

	for in, want := range tests {
		SetLevel(in)
		if got := GetLevel(); got != want {
			t.Errorf("SetLevel(%q) → GetLevel() = %q, want %q", in, got, want)
		}
	}
}

func TestLogger_WithAndContext(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithLogger(context.Background(), l)
	ctx = WithConnID(ctx, "01HZX")

	L(ctx).With("remote", "127.0.0.1:5000").Info("accepted")

	entry := decode(t, &buf)
	if entry["conn_id"] != "01HZX" {
		t.Errorf("conn_id = %v", entry["conn_id"])
	}
	if entry["remote"] != "127.0.0.1:5000" {
		t.Errorf("remote = %v", entry["remote"])
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) != Default() {
		t.Error("FromContext() without logger should return Default()")
	}
	if ConnIDFromContext(context.Background()) != "" {
		t.Error("ConnIDFromContext() without id should be empty")
	}
}

func TestWrap(t *testing.T) {
	var buf bytes.Buffer
	s := NewSlog(Config{Level: "info", Format: "json", Output: &buf})

	Wrap(s).Info("wrapped", "k", "v")
	entry := decode(t, &buf)
	if entry["k"] != "v" {
		t.Errorf("k = %v", entry["k"])
	}

	if Wrap(nil) == nil {
		t.Error("Wrap(nil) returned nil")
	}
}
