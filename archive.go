package geodata

import (
	"archive/zip"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/zeebo/xxh3"
)

// digestCommentPrefix starts the archive comment carrying the content digest.
const digestCommentPrefix = "xxh3:"

// archiveWriter stores generated files in a zip archive under a fixed
// namespace. Entries are appended in call order and never deduplicated.
type archiveWriter struct {
	f         *os.File
	zw        *zip.Writer
	namespace string
	entryTime time.Time
	log       *slog.Logger

	digest  *xxh3.Hasher // over (name, content hash) of every entry
	entries []string
	written *countingWriter
	closed  bool
	broken  error // set once an entry was left half written
}

// createArchive creates the archive file at path. Entry names are
// namespace/<relative path>. A zero entryTime stamps file entries with the
// source file's modification time.
func createArchive(path, namespace string, entryTime time.Time, log *slog.Logger) (*archiveWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	cw := &countingWriter{w: f}
	zw := zip.NewWriter(cw)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return &archiveWriter{
		f:         f,
		zw:        zw,
		namespace: namespace,
		entryTime: entryTime,
		log:       log,
		digest:    xxh3.New(),
		written:   cw,
	}, nil
}

// Add stores content under rel.
func (a *archiveWriter) Add(rel string, content []byte) error {
	modified := a.entryTime
	if modified.IsZero() {
		modified = time.Now()
	}
	return a.addEntry(rel, modified, content)
}

// AddFile copies the file at src into the archive under rel. The source is
// read completely before the entry is created, so a read failure leaves no
// trace in the archive. The source handle is released either way.
func (a *archiveWriter) AddFile(rel, src string) error {
	fh, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer closeFile(fh, a.log)

	modified := a.entryTime
	if modified.IsZero() {
		fi, err := fh.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", src, err)
		}
		modified = fi.ModTime()
	}
	content, err := io.ReadAll(fh)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	return a.addEntry(rel, modified, content)
}

// addEntry writes one entry. Once its header is written the entry cannot be
// taken back, so any later failure breaks the whole archive.
func (a *archiveWriter) addEntry(rel string, modified time.Time, content []byte) error {
	if a.closed {
		return fmt.Errorf("adding %s: archive closed", rel)
	}
	if a.broken != nil {
		return fmt.Errorf("adding %s: %w", rel, a.broken)
	}
	name := path.Join(a.namespace, rel)
	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified.UTC(),
	})
	if err != nil {
		a.broken = fmt.Errorf("creating entry %s: %w", name, err)
		return a.broken
	}
	if _, err := w.Write(content); err != nil {
		a.broken = fmt.Errorf("writing entry %s: %w", name, err)
		return a.broken
	}

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxh3.Hash(content))
	a.digest.WriteString(name)
	a.digest.Write([]byte{0})
	a.digest.Write(sum[:])
	a.entries = append(a.entries, name)
	return nil
}

// Entries returns the names of the entries added so far.
func (a *archiveWriter) Entries() []string {
	return append([]string(nil), a.entries...)
}

// Digest returns the hex xxh3-128 digest of all entry names and contents. It
// does not depend on entry timestamps or compression.
func (a *archiveWriter) Digest() string {
	sum := a.digest.Sum128().Bytes()
	return hex.EncodeToString(sum[:])
}

// Bytes returns the number of bytes written to the archive file so far.
func (a *archiveWriter) Bytes() int64 {
	return a.written.n
}

// Close writes the central directory, with the digest as archive comment, and
// closes the file. A broken archive is only closed and its error returned.
// Only the first call has an effect.
func (a *archiveWriter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	err := a.broken
	if err == nil {
		err = a.zw.SetComment(digestCommentPrefix + a.Digest())
	}
	if err == nil {
		err = a.zw.Close()
	}
	if cerr := a.f.Close(); err == nil {
		err = cerr
	}
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
