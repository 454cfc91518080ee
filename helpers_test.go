package geodata

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureLogger returns a debug-level text logger writing to the returned buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// countLevel counts the records logged at level (DEBUG, INFO, WARN, ERROR).
func countLevel(logs *bytes.Buffer, level string) int {
	return strings.Count(logs.String(), "level="+level+" ")
}

// writeTree creates files under root; keys are slash-separated relative paths.
func writeTree(root string, files map[string]string) error {
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

func mustWriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	if err := writeTree(root, files); err != nil {
		t.Fatalf("writeTree() error = %v", err)
	}
}

// sampleTree is the two-language example input.
var sampleTree = map[string]string{
	"en/1.txt": "212|New York\n650|San Francisco\n# comment\nbadline\n",
	"fr/1.txt": "212|New York (fr)\n",
}

// newTestGenerator returns a generator over a fresh copy of files, logging to
// the returned buffer.
func newTestGenerator(t *testing.T, files map[string]string, opts ...Option) (*Generator, *bytes.Buffer) {
	t.Helper()
	input := t.TempDir()
	mustWriteTree(t, input, files)
	logger, logs := captureLogger()
	opts = append([]Option{WithLogger(logger)}, opts...)
	g, err := NewGenerator(input, filepath.Join(t.TempDir(), "geocoder.jar"), opts...)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	return g, logs
}
