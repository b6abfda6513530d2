package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	logger, err := New(path, false)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("printed job=%s copies=%d", "abc", 2)
	logger.Debug("hidden")
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "printed job=abc copies=2") {
		t.Fatalf("expected info line, got %q", out)
	}
	if !strings.Contains(out, "level=info") {
		t.Fatalf("expected level field, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written without verbose mode: %q", out)
	}
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, true).With("job", "42")
	logger.Debug("sending")
	logger.Warn("slow")

	out := buf.String()
	if strings.Count(out, "job=42") != 2 {
		t.Fatalf("expected job field on both lines, got %q", out)
	}
	if !strings.Contains(out, "level=debug") || !strings.Contains(out, "level=warning") {
		t.Fatalf("unexpected levels in %q", out)
	}
}
