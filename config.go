package geodata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/andreiashu/geodata/prefixmap"
)

// FileConfig is the YAML form of a generator run:
//
//	input: resources/geocoding
//	output: build/geocoder.jar
//	testing: false
//	format: binary
//	workers: 4
//	cache_dir: .geodata-cache
//	log_level: info
type FileConfig struct {
	Input          string `yaml:"input"`
	Output         string `yaml:"output"`
	Testing        bool   `yaml:"testing"`
	PackageRoot    string `yaml:"package_root"`
	Format         string `yaml:"format"`
	Workers        int    `yaml:"workers"`
	WorkDir        string `yaml:"work_dir"`
	CacheDir       string `yaml:"cache_dir"`
	MetricsFile    string `yaml:"metrics_file"`
	StrictPrefixes bool   `yaml:"strict_prefixes"`
	EntryTime      string `yaml:"entry_time"` // RFC 3339
	LogLevel       string `yaml:"log_level"`
}

// LoadConfigFile reads a YAML configuration. Unknown keys are an error.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &FileConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Options converts the file settings into generator options. Zero values
// keep the generator defaults.
func (fc *FileConfig) Options() ([]Option, error) {
	opts := []Option{
		WithTesting(fc.Testing),
		WithStrictPrefixes(fc.StrictPrefixes),
	}
	if fc.PackageRoot != "" {
		opts = append(opts, WithPackageRoot(strings.Trim(fc.PackageRoot, "/")))
	}
	if fc.Format != "" {
		if _, err := prefixmap.CodecFor(prefixmap.Format(fc.Format)); err != nil {
			return nil, err
		}
		opts = append(opts, WithFormat(prefixmap.Format(fc.Format)))
	}
	if fc.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", fc.Workers)
	}
	if fc.Workers > 0 {
		opts = append(opts, WithWorkers(fc.Workers))
	}
	if fc.WorkDir != "" {
		opts = append(opts, WithWorkDir(fc.WorkDir))
	}
	if fc.CacheDir != "" {
		opts = append(opts, WithCacheDir(fc.CacheDir))
	}
	if fc.MetricsFile != "" {
		opts = append(opts, WithMetricsFile(fc.MetricsFile))
	}
	if fc.EntryTime != "" {
		t, err := time.Parse(time.RFC3339, fc.EntryTime)
		if err != nil {
			return nil, fmt.Errorf("entry_time: %w", err)
		}
		opts = append(opts, WithEntryTime(t))
	}
	return opts, nil
}

// ParseLogLevel parses debug, info, warn or error (case-insensitive). An
// empty string is info.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
