package geodata

import (
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileMapping pairs an input text file with the name of the binary table
// generated from it.
type FileMapping struct {
	Input      string // Path of the text file
	OutputName string // countryCode_language
}

// mapInputFiles creates the input file/output name mappings for every
// <root>/<language>/<countryCode>.<ext> file. Files whose names do not match
// are logged and counted as ignored. Failing to list a directory is fatal.
func mapInputFiles(root string, log *slog.Logger) ([]FileMapping, int, error) {
	languageDirs, err := os.ReadDir(root)
	if err != nil {
		return nil, 0, fmt.Errorf("listing input directory: %w", err)
	}

	var mappings []FileMapping
	ignored := 0
	seen := make(map[string]string) // output name -> input path

	for _, ld := range languageDirs {
		langPath := filepath.Join(root, ld.Name())
		if isHidden(ld.Name()) || !isDirEntryDir(langPath, ld) {
			log.Info("skipping non-language entry", "path", langPath)
			continue
		}
		language := ld.Name()

		files, err := os.ReadDir(langPath)
		if err != nil {
			return nil, 0, fmt.Errorf("listing language directory: %w", err)
		}
		for _, f := range files {
			filePath := filepath.Join(langPath, f.Name())
			if isHidden(f.Name()) {
				log.Debug("skipping hidden file", "path", filePath)
				continue
			}
			if f.IsDir() {
				log.Info("skipping directory in language directory", "path", filePath)
				continue
			}
			code, err := countryCodeFromFileName(f.Name())
			if err != nil {
				log.Warn("ignoring unexpected file", "path", filePath, "err", err)
				ignored++
				continue
			}
			out := outputName(code, language)
			if prev, dup := seen[out]; dup {
				log.Warn("ignoring file with duplicate output name",
					"path", filePath, "output", out, "first", prev)
				ignored++
				continue
			}
			seen[out] = filePath
			mappings = append(mappings, FileMapping{Input: filePath, OutputName: out})
		}
	}
	return mappings, ignored, nil
}

// countryCodeFromFileName returns the part of name before the first '.',
// which must be a country calling code.
func countryCodeFromFileName(name string) (string, error) {
	dot := strings.IndexByte(name, '.')
	if dot == -1 {
		return "", fmt.Errorf("unexpected file name %s, expected pattern .*\\.txt", name)
	}
	code := name[:dot]
	if !isDigits(code) {
		return "", fmt.Errorf("unexpected file name %s, expected a country calling code before '.'", name)
	}
	if code[0] == '0' {
		return "", fmt.Errorf("country calling code %s has a leading zero", code)
	}
	if n, err := strconv.ParseUint(code, 10, 64); err != nil || n > math.MaxInt32 {
		return "", fmt.Errorf("country calling code %s out of range", code)
	}
	return code, nil
}

func outputName(countryCode, language string) string {
	return countryCode + "_" + language
}

// splitOutputName parses a countryCode_language output name.
func splitOutputName(name string) (int, string, error) {
	code, language, ok := strings.Cut(name, "_")
	if !ok || language == "" || !isDigits(code) {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidOutputName, name)
	}
	cc, err := strconv.ParseInt(code, 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q: %v", ErrInvalidOutputName, name, err)
	}
	return int(cc), language, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// isDirEntryDir reports whether d is a directory, following symbolic links.
func isDirEntryDir(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.IsDir()
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
