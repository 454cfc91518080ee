// Command generate-geodata builds the phone number geocoding data archive
// from the per-language text files.
//
// Usage:
//
//	generate-geodata [flags] /path/to/input/directory /path/to/output.jar forTesting
//
// The input directory contains one sub-directory per language, each holding
// countryCallingCode.txt files. The positional arguments may be omitted when
// a -config file provides input, output and testing.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/andreiashu/geodata"
)

const usage = "usage: generate-geodata [flags] /path/to/input/directory /path/to/output.jar forTesting"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, generates the archive and optionally verifies it.
func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("generate-geodata", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "Path to a YAML config file")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	workers := fs.Int("workers", 0, "Files converted in parallel")
	format := fs.String("format", "", "Table encoding (binary, gob)")
	cacheDir := fs.String("cache-dir", "", "Directory of the incremental build cache")
	metricsFile := fs.String("metrics-file", "", "Write Prometheus metrics to this file")
	strict := fs.Bool("strict", false, "Fail a whole file on a non-numeric prefix")
	verify := fs.Bool("verify", false, "Reload and check the archive after generating it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fc := &geodata.FileConfig{}
	if *configPath != "" {
		var err error
		if fc, err = geodata.LoadConfigFile(*configPath); err != nil {
			return err
		}
	}

	switch fs.NArg() {
	case 0:
	case 3:
		forTesting, err := strconv.ParseBool(fs.Arg(2))
		if err != nil {
			return fmt.Errorf("forTesting must be true or false, got %q\n%s", fs.Arg(2), usage)
		}
		fc.Input, fc.Output, fc.Testing = fs.Arg(0), fs.Arg(1), forTesting
	default:
		return errors.New(usage)
	}
	if fc.Input == "" || fc.Output == "" {
		return errors.New(usage)
	}

	// Explicit flags override the config file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			fc.LogLevel = *logLevel
		case "workers":
			fc.Workers = *workers
		case "format":
			fc.Format = *format
		case "cache-dir":
			fc.CacheDir = *cacheDir
		case "metrics-file":
			fc.MetricsFile = *metricsFile
		case "strict":
			fc.StrictPrefixes = *strict
		}
	})

	level, err := geodata.ParseLogLevel(fc.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	opts, err := fc.Options()
	if err != nil {
		return err
	}
	opts = append(opts, geodata.WithLogger(logger))

	gen, err := geodata.NewGenerator(fc.Input, fc.Output, opts...)
	if err != nil {
		return err
	}
	res, err := gen.Run()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Generated %s: %d tables, %d failed, %d ignored files.\n",
		fc.Output, res.Converted, res.Failed, res.Ignored)

	if *verify {
		ds, err := geodata.OpenDataset(fc.Output, opts...)
		if err != nil {
			return fmt.Errorf("verifying archive: %w", err)
		}
		if err := ds.Verify(); err != nil {
			return fmt.Errorf("verifying archive: %w", err)
		}
		fmt.Fprintf(stdout, "Verified %d tables for %d country codes.\n", len(ds.TableNames()), ds.Index.Len())
	}
	return nil
}
