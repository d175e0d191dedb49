package sendero

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSimpleLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{logger: log.New(&buf, "", 0)}

	l.Info("dispatching", "provider", "primary", "attempt", 2)

	got := strings.TrimSpace(buf.String())
	want := "INFO dispatching provider=primary attempt=2"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSimpleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{logger: log.New(&buf, "", 0)}

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	wantPrefixes := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if len(lines) != len(wantPrefixes) {
		t.Fatalf("Expected %d lines, got %d", len(wantPrefixes), len(lines))
	}
	for i, prefix := range wantPrefixes {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d: expected prefix %s, got %q", i, prefix, lines[i])
		}
	}
}

func TestSimpleLoggerOddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{logger: log.New(&buf, "", 0)}

	// A dangling key without a value is dropped rather than panicking.
	l.Info("msg", "key")

	got := strings.TrimSpace(buf.String())
	if got != "INFO msg" {
		t.Errorf("Expected dangling key to be dropped, got %q", got)
	}
}

func TestZerologLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(zerolog.New(&buf))

	l.Warn("breaker opened", "provider", "primary", "failures", 5)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" {
		t.Errorf("Expected level=warn, got %v", entry["level"])
	}
	if entry["message"] != "breaker opened" {
		t.Errorf("Expected message field, got %v", entry["message"])
	}
	if entry["provider"] != "primary" {
		t.Errorf("Expected provider field, got %v", entry["provider"])
	}
	if entry["failures"] != float64(5) {
		t.Errorf("Expected failures field, got %v", entry["failures"])
	}
}

func TestDispatcherLogsThroughInterface(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(zerolog.New(&buf))

	p := &stubProvider{name: "primary"}
	d := fastDispatcher(WithProviders(p), WithLogger(l))

	if _, err := d.Send(context.Background(), testRequest("logged")); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Expected dispatch to emit log output")
	}
}
