package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func newJSONLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := New(&Config{Level: level, Format: "json", Writer: &buf}, "gateway")
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line is not JSON: %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("console")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.Service() != "console" {
		t.Errorf("expected service 'console', got %q", l.Service())
	}
}

func TestLogger_JSONFields(t *testing.T) {
	l, buf := newJSONLogger(t, "debug")
	l.WithComponent("proxy").Info("forwarded", Fields(FieldPath, "/api/run", FieldStatus, 200))

	m := decodeLine(t, buf)
	if m["message"] != "forwarded" {
		t.Errorf("message = %v", m["message"])
	}
	if m[FieldComponent] != "proxy" {
		t.Errorf("component = %v", m[FieldComponent])
	}
	if m[FieldPath] != "/api/run" {
		t.Errorf("path = %v", m[FieldPath])
	}
	if m["service"] != "gateway" {
		t.Errorf("service = %v", m["service"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newJSONLogger(t, "warn")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn should pass, got %q", buf.String())
	}
}

func TestLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, buf := newJSONLogger(t, "loud")
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestLogger_WithContextRequestID(t *testing.T) {
	l, buf := newJSONLogger(t, "info")
	ctx := ContextWithRequestID(context.Background(), "req-42")
	l.WithContext(ctx).Info("hello")

	m := decodeLine(t, buf)
	if m[FieldRequestID] != "req-42" {
		t.Errorf("request_id = %v", m[FieldRequestID])
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Error("empty context should carry no request id")
	}
}

func TestRegistry_GetFallsBackToComponent(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(New(&Config{Level: "info", Format: "json", Writer: &buf}, "ylai"))
	defer SetGlobalLogger(nil)

	Get("runner").Info("tick")
	m := decodeLine(t, &buf)
	if m[FieldComponent] != "runner" {
		t.Errorf("component = %v", m[FieldComponent])
	}

	named := NewNop()
	Register("quiet", named)
	if Get("quiet") != named {
		t.Error("Get should return the registered logger")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json", Output: "stdout"}, false},
		{"bad level", Config{Level: "loud", Format: "json", Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"bad output", Config{Level: "info", Format: "json", Output: "file"}, true},
		{"writer overrides output", Config{Level: "info", Format: "json", Output: "file", Writer: &bytes.Buffer{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stdout" || !cfg.Timestamp {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestFields_IgnoresOddTrailingKey(t *testing.T) {
	m := Fields("a", 1, "b")
	if len(m) != 1 || m["a"] != 1 {
		t.Errorf("Fields = %v", m)
	}
}
