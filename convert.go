package geodata

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/andreiashu/geodata/prefixmap"
)

// typoDistance is the largest edit distance at which an overwritten location
// is reported as a probable correction rather than a conflict.
const typoDistance = 2

// maxLineLen bounds a single input line.
const maxLineLen = 1 << 20

// LineStats counts what happened to the lines of one input file.
type LineStats struct {
	Records         int // lines stored in the table, overwrites included
	Ignored         int // blank and comment lines
	MissingSep      int // lines without '|'
	MissingLocation int // lines ending with '|'
	LongLocation    int // lines whose location exceeds prefixmap.MaxStringLen
	BadPrefix       int // lines whose prefix is not a non-negative integer
	Overwritten     int // lines replacing an earlier line's location
}

// Skipped returns the number of lines left out because they were malformed.
func (s LineStats) Skipped() int {
	return s.MissingSep + s.MissingLocation + s.LongLocation + s.BadPrefix
}

// ParseTable reads prefix|location lines from r. Blank lines and lines
// starting with '#' are ignored. Malformed lines are logged and skipped; in
// strict mode a non-numeric prefix fails the whole input with
// ErrMalformedPrefix instead. A repeated prefix keeps the last location.
func ParseTable(r io.Reader, strict bool, log *slog.Logger) (*prefixmap.Table, LineStats, error) {
	var stats LineStats
	table := prefixmap.NewTable()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLen)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		line = strings.TrimSpace(strings.ToValidUTF8(line, "\uFFFD"))
		if line == "" || strings.HasPrefix(line, "#") {
			stats.Ignored++
			continue
		}

		sep := strings.IndexByte(line, '|')
		if sep == -1 {
			log.Warn("malformed: expected separator '|'", "line", lineNo)
			stats.MissingSep++
			continue
		}
		rawPrefix := line[:sep]
		if sep == len(line)-1 {
			log.Warn(fmt.Sprintf("missing location for prefix %s", rawPrefix), "line", lineNo)
			stats.MissingLocation++
			continue
		}
		location := line[sep+1:]
		if len(location) > prefixmap.MaxStringLen {
			log.Warn(fmt.Sprintf("location for prefix %s too long", rawPrefix),
				"line", lineNo, "bytes", len(location), "limit", prefixmap.MaxStringLen)
			stats.LongLocation++
			continue
		}

		prefix, err := parsePrefix(rawPrefix)
		if err != nil {
			if strict {
				return nil, stats, fmt.Errorf("line %d: %w", lineNo, err)
			}
			log.Warn("skipping line with malformed prefix", "line", lineNo, "err", err)
			stats.BadPrefix++
			continue
		}

		stats.Records++
		prev, replaced := table.Put(prefix, location)
		if !replaced {
			continue
		}
		stats.Overwritten++
		switch d := levenshtein.ComputeDistance(prev, location); {
		case d == 0:
			log.Debug("duplicate line", "line", lineNo, "prefix", prefix)
		case d <= typoDistance:
			log.Warn("prefix redefined, probable typo fix",
				"line", lineNo, "prefix", prefix, "old", prev, "new", location)
		default:
			log.Warn("prefix redefined with conflicting location",
				"line", lineNo, "prefix", prefix, "old", prev, "new", location)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("reading line %d: %w", lineNo+1, err)
	}
	return table, stats, nil
}

// parsePrefix parses a non-negative decimal prefix that fits in 32 bits.
func parsePrefix(s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrMalformedPrefix, s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w %q: negative", ErrMalformedPrefix, s)
	}
	return int(n), nil
}

// ConvertData parses the text data read from r and writes the encoded table
// to w.
func ConvertData(r io.Reader, w io.Writer, enc prefixmap.TableEncoder, strict bool, log *slog.Logger) (LineStats, error) {
	table, stats, err := ParseTable(r, strict, log)
	if err != nil {
		return stats, err
	}
	if err := enc.EncodeTable(w, table); err != nil {
		return stats, fmt.Errorf("encoding table: %w", err)
	}
	return stats, nil
}

// conversion is the outcome of converting one mapping.
type conversion struct {
	mapping FileMapping
	output  string // intermediate file path
	stats   LineStats
	cached  bool
	err     error
}

// convert turns one input file into an intermediate binary file in workDir.
func (g *Generator) convert(m FileMapping, workDir string, cache *buildCache, log *slog.Logger) conversion {
	c := conversion{mapping: m, output: filepath.Join(workDir, m.OutputName)}
	log = log.With("input", m.Input)

	if _, _, err := splitOutputName(m.OutputName); err != nil {
		c.err = err
		return c
	}
	data, err := readInput(m.Input, log)
	if err != nil {
		c.err = err
		return c
	}

	var key []byte
	if cache != nil {
		key = cache.key(data)
		encoded, ok, err := cache.get(key)
		if err != nil {
			log.Warn("build cache lookup failed", "err", err)
		} else if ok {
			log.Debug("build cache hit", "output", m.OutputName)
			c.cached = true
			c.err = writeOutputFile(c.output, encoded)
			return c
		}
	}

	var buf bytes.Buffer
	c.stats, err = ConvertData(bytes.NewReader(data), &buf, g.codec, g.config.StrictPrefixes, log)
	if err != nil {
		c.err = err
		return c
	}
	if err := writeOutputFile(c.output, buf.Bytes()); err != nil {
		c.err = err
		return c
	}
	if cache != nil {
		if err := cache.put(key, buf.Bytes()); err != nil {
			log.Warn("build cache store failed", "err", err)
		}
	}
	return c
}

// readInput reads the whole input file, always releasing the handle.
func readInput(path string, log *slog.Logger) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer closeFile(fh, log)

	data, err := io.ReadAll(fh)
	if err != nil {
		return nil, fmt.Errorf("reading input %s: %w", path, err)
	}
	return data, nil
}

// writeOutputFile writes data to path, removing the file if anything fails.
func writeOutputFile(path string, data []byte) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}

	success := false
	defer func() {
		if !success {
			out.Close()
			os.Remove(path) // best-effort cleanup of partial file
		}
	}()

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	// Explicitly close to catch flush errors (e.g., on NFS)
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing file %s: %w", path, err)
	}
	success = true
	return nil
}

// closeFile closes c and logs any error.
func closeFile(c io.Closer, log *slog.Logger) {
	if err := c.Close(); err != nil {
		log.Warn("close failed", "err", err)
	}
}
