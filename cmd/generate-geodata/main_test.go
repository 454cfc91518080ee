package main

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeInput(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"en/1.txt": "212|New York\n650|San Francisco\n",
		"fr/1.txt": "212|New York (fr)\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"two arguments", []string{"in", "out.jar"}},
		{"four arguments", []string{"in", "out.jar", "false", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(tt.args, &stdout, &stderr)
			if err == nil || !strings.Contains(err.Error(), "usage:") {
				t.Errorf("run(%v) error = %v, want usage", tt.args, err)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"-help"}, &stdout, &stderr); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("run(-help) error = %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(stderr.String(), "-workers") {
		t.Errorf("help output missing flags:\n%s", stderr.String())
	}
}

func TestRun_BadForTesting(t *testing.T) {
	for _, value := range []string{"maybe", "yes", ""} {
		t.Run(value, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run([]string{writeInput(t), filepath.Join(t.TempDir(), "out.jar"), value}, &stdout, &stderr)
			if err == nil || !strings.Contains(err.Error(), "forTesting") {
				t.Errorf("run(forTesting=%q) error = %v, want forTesting error", value, err)
			}
		})
	}
}

func TestRun_MissingInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "out.jar"), "false"}, &stdout, &stderr)
	if err == nil {
		t.Error("run() with a missing input succeeded, want error")
	}
}

func TestRun_GenerateAndVerify(t *testing.T) {
	out := filepath.Join(t.TempDir(), "geocoder.jar")
	var stdout, stderr bytes.Buffer
	args := []string{"-workers", "2", "-verify", "-log-level", "warn", writeInput(t), out, "true"}
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v\n%s", err, stderr.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("archive not written: %v", err)
	}
	for _, want := range []string{"2 tables, 0 failed, 0 ignored files", "Verified 2 tables for 1 country codes"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout.String())
		}
	}
	if strings.Contains(stderr.String(), "level=INFO") {
		t.Errorf("info records logged at -log-level warn:\n%s", stderr.String())
	}
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "build", "geocoder.jar")
	metrics := filepath.Join(dir, "geodata.prom")
	cfg := "input: " + writeInput(t) + "\n" +
		"output: " + out + "\n" +
		"format: gob\n" +
		"metrics_file: " + metrics + "\n"
	cfgPath := filepath.Join(dir, "geodata.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-config", cfgPath, "-verify"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v\n%s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Verified 2 tables") {
		t.Errorf("stdout = %q", stdout.String())
	}
	if _, err := os.Stat(metrics); err != nil {
		t.Errorf("metrics file not written: %v", err)
	}
}

func TestRun_FlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "geodata.yaml")
	if err := os.WriteFile(cfgPath, []byte("format: gob\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	args := []string{"-config", cfgPath, "-format", "xml", writeInput(t), filepath.Join(dir, "out.jar"), "false"}
	if err := run(args, &stdout, &stderr); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Errorf("run() error = %v, want unknown format xml", err)
	}
}
