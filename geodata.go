// Package geodata generates the binary geocoding data shipped with the phone
// number geocoder.
//
// The input is a tree of human-maintained text files:
//
//	<input>/<language>/<countryCallingCode>.txt
//
// where every line maps a phone number prefix to a location description:
//
//	# comment
//	1212|New York, NY
//	1650|California
//
// Each file is converted to a binary prefix table named
// countryCallingCode_language. A configuration file named "config" lists the
// languages available for every country calling code. All generated files are
// stored in a single archive (a JAR file) under
// <package root>/geocoding_data/, or geocoding_testing_data/ for test data.
//
// Example:
//
//	g, err := geodata.NewGenerator("resources/geocoding", "build/geocoder.jar")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := g.Run()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d tables, digest %s\n", res.Converted, res.Digest)
package geodata

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/andreiashu/geodata/prefixmap"
)

// DefaultPackageRoot is the archive directory the runtime geocoder loads its
// data from.
const DefaultPackageRoot = "com/google/i18n/phonenumbers"

const (
	dataDirName        = "geocoding_data"
	testingDataDirName = "geocoding_testing_data"
	// configName is the archive entry holding the country code → languages index.
	configName = "config"
)

var (
	// ErrNotDirectory is returned when the input path, or the parent of the
	// output path, exists but is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrInvalidOutputName is returned for output names not of the form
	// countryCode_language.
	ErrInvalidOutputName = errors.New("invalid output name")
	// ErrMalformedPrefix is returned in strict mode when a prefix is not a
	// non-negative 32-bit decimal integer.
	ErrMalformedPrefix = errors.New("malformed prefix")
	// ErrArchiveInvalid is returned when a generated archive is inconsistent.
	ErrArchiveInvalid = errors.New("invalid geocoding archive")
)

// Config contains the options of a generator run.
type Config struct {
	Testing        bool             // Namespace entries under geocoding_testing_data
	PackageRoot    string           // Archive directory containing the data directory
	Format         prefixmap.Format // Encoding of tables and config
	Workers        int              // Files converted in parallel (default: 1)
	WorkDir        string           // Directory for intermediate files (default: temporary)
	CacheDir       string           // Badger directory for the incremental cache (default: disabled)
	MetricsFile    string           // Prometheus textfile written after the run (default: none)
	StrictPrefixes bool             // Abort a file, not just a line, on a non-numeric prefix
	EntryTime      time.Time        // Fixed archive entry time (default: intermediate file mtime)
	Logger         *slog.Logger
}

// Option is a functional option for configuring a Generator.
type Option func(*Config)

// WithTesting selects the testing data namespace.
func WithTesting(testing bool) Option {
	return func(c *Config) {
		c.Testing = testing
	}
}

// WithPackageRoot sets the archive directory containing the data directory.
func WithPackageRoot(root string) Option {
	return func(c *Config) {
		c.PackageRoot = root
	}
}

// WithFormat sets the encoding of tables and config.
func WithFormat(f prefixmap.Format) Option {
	return func(c *Config) {
		c.Format = f
	}
}

// WithWorkers sets how many files are converted in parallel. Archive and
// index insertion order does not depend on it.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithWorkDir keeps the intermediate binary files in dir.
func WithWorkDir(dir string) Option {
	return func(c *Config) {
		c.WorkDir = dir
	}
}

// WithCacheDir enables the incremental build cache stored in dir.
func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithMetricsFile writes the run metrics in Prometheus text format to path.
func WithMetricsFile(path string) Option {
	return func(c *Config) {
		c.MetricsFile = path
	}
}

// WithStrictPrefixes makes a non-numeric prefix fail the whole file.
func WithStrictPrefixes(strict bool) Option {
	return func(c *Config) {
		c.StrictPrefixes = strict
	}
}

// WithEntryTime stamps every archive entry with t.
func WithEntryTime(t time.Time) Option {
	return func(c *Config) {
		c.EntryTime = t
	}
}

// WithLogger sets the logger warnings and progress are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// defaultConfig returns the default configuration.
func defaultConfig() *Config {
	return &Config{
		PackageRoot: DefaultPackageRoot,
		Format:      prefixmap.FormatBinary,
		Workers:     1,
	}
}

func newConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// namespace returns the archive directory entries are stored under.
func (c *Config) namespace() string {
	if c.Testing {
		return path.Join(c.PackageRoot, testingDataDirName)
	}
	return path.Join(c.PackageRoot, dataDirName)
}

// Generator converts an input tree into a geocoding data archive.
type Generator struct {
	inputDir   string
	outputPath string
	config     *Config
	codec      prefixmap.Codec
	metrics    *buildMetrics
}

// Result summarizes a successful run.
type Result struct {
	Converted int      // Tables stored in the archive
	Failed    int      // Input files that could not be converted or stored
	Ignored   int      // Input files rejected by name
	Entries   []string // Archive entry names, in archive order
	Digest    string   // xxh3 digest of entry names and contents
}

// NewGenerator validates the input directory, creates the output directory
// if needed and returns a Generator ready to Run.
func NewGenerator(inputDir, outputPath string, opts ...Option) (*Generator, error) {
	cfg := newConfig(opts)

	fi, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("the provided input path does not exist: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("input path %s: %w", absPath(inputDir), ErrNotDirectory)
	}

	parent := filepath.Dir(outputPath)
	if fi, err := os.Stat(parent); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("expected directory %s: %w", absPath(parent), ErrNotDirectory)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return nil, fmt.Errorf("could not create directory %s: %w", absPath(parent), err)
		}
	} else {
		return nil, fmt.Errorf("checking output directory: %w", err)
	}

	codec, err := prefixmap.CodecFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	return &Generator{
		inputDir:   inputDir,
		outputPath: outputPath,
		config:     cfg,
		codec:      codec,
		metrics:    newBuildMetrics(),
	}, nil
}

// Registry returns the registry holding the run metrics.
func (g *Generator) Registry() *prometheus.Registry {
	return g.metrics.registry
}

// Run converts every input file and writes the archive. Individual files that
// cannot be converted are logged and left out of both the archive and the
// config. An error is returned only when no valid archive could be produced;
// the partial output file is removed in that case.
func (g *Generator) Run() (res *Result, err error) {
	start := time.Now()
	log := g.config.Logger.With("run", uuid.NewString())
	defer func() {
		g.metrics.runDuration.Set(time.Since(start).Seconds())
		if g.config.MetricsFile == "" {
			return
		}
		if merr := g.metrics.writeTextfile(g.config.MetricsFile); merr != nil {
			log.Warn("failed to write metrics", "path", g.config.MetricsFile, "err", merr)
		}
	}()

	workDir, cleanup, err := g.prepareWorkDir()
	if err != nil {
		return nil, err
	}
	defer cleanup(log)

	var cache *buildCache
	if g.config.CacheDir != "" {
		cache, err = openBuildCache(g.config.CacheDir, g.codec.Format(), g.config.StrictPrefixes)
		if err != nil {
			return nil, fmt.Errorf("opening build cache: %w", err)
		}
		defer closeFile(cache, log)
	}

	ar, err := createArchive(g.outputPath, g.config.namespace(), g.config.EntryTime, log)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	defer func() {
		if cerr := ar.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("finalizing archive: %w", cerr)
		}
		if err != nil {
			res = nil
			os.Remove(g.outputPath) // best-effort removal of the invalid archive
			return
		}
		res.Digest = ar.Digest()
		g.metrics.archiveBytes.Add(float64(ar.Bytes()))
		log.Info("geocoding data generated",
			"output", g.outputPath,
			"converted", res.Converted,
			"failed", res.Failed,
			"ignored", res.Ignored,
			"digest", res.Digest,
			"duration", time.Since(start))
	}()

	mappings, ignored, err := mapInputFiles(g.inputDir, log)
	if err != nil {
		return nil, err
	}
	g.metrics.filesIgnored.Add(float64(ignored))
	res = &Result{Ignored: ignored}

	index := prefixmap.NewIndex()
	for _, c := range g.convertAll(mappings, workDir, cache, log) {
		if c.err != nil {
			log.Error("skipping input file", "input", c.mapping.Input, "err", c.err)
			g.metrics.filesFailed.Inc()
			res.Failed++
			continue
		}
		if err := ar.AddFile(c.mapping.OutputName, c.output); err != nil {
			log.Error("skipping archive entry", "entry", c.mapping.OutputName, "err", err)
			g.metrics.filesFailed.Inc()
			res.Failed++
			continue
		}
		if err := recordOutput(index, c.mapping.OutputName); err != nil {
			// Names were validated before conversion; the archive already
			// holds the entry, so the run cannot stay consistent.
			return nil, err
		}
		g.metrics.filesConverted.Inc()
		g.metrics.observe(c)
		res.Converted++
	}

	var buf bytes.Buffer
	if err := g.codec.EncodeIndex(&buf, index); err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	if err := ar.Add(configName, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("adding configuration: %w", err)
	}

	res.Entries = ar.Entries()
	return res, nil
}

// convertAll converts every mapping using up to Workers goroutines and
// returns the results in mapping order.
func (g *Generator) convertAll(mappings []FileMapping, workDir string, cache *buildCache, log *slog.Logger) []conversion {
	out := make([]conversion, len(mappings))
	var eg errgroup.Group
	eg.SetLimit(g.config.Workers)
	for i, m := range mappings {
		eg.Go(func() error {
			out[i] = g.convert(m, workDir, cache, log)
			return nil
		})
	}
	_ = eg.Wait() // per-file errors are carried in the results
	return out
}

// prepareWorkDir returns the directory intermediate files are written to and a
// cleanup function removing it when it is temporary.
func (g *Generator) prepareWorkDir() (string, func(*slog.Logger), error) {
	if g.config.WorkDir != "" {
		if err := os.MkdirAll(g.config.WorkDir, 0755); err != nil {
			return "", nil, fmt.Errorf("creating work directory: %w", err)
		}
		return g.config.WorkDir, func(*slog.Logger) {}, nil
	}
	dir, err := os.MkdirTemp(filepath.Dir(g.outputPath), ".geodata-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating work directory: %w", err)
	}
	return dir, func(log *slog.Logger) {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove work directory", "dir", dir, "err", err)
		}
	}, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
