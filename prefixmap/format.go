package prefixmap

import (
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrBadMagic is returned when decoding data that does not start with the
	// expected format marker.
	ErrBadMagic = errors.New("prefixmap: bad magic")
	// ErrCorrupt is returned for truncated or inconsistent encoded data.
	ErrCorrupt = errors.New("prefixmap: corrupt data")
)

// TableEncoder serializes a Table. Output must depend only on the table's
// contents, never on insertion order.
type TableEncoder interface {
	EncodeTable(w io.Writer, t *Table) error
}

// IndexEncoder serializes an Index with the same determinism requirement.
type IndexEncoder interface {
	EncodeIndex(w io.Writer, x *Index) error
}

// Codec encodes and decodes both structures in one on-disk format.
type Codec interface {
	TableEncoder
	IndexEncoder
	DecodeTable(r io.Reader) (*Table, error)
	DecodeIndex(r io.Reader) (*Index, error)
	Format() Format
}

// Format names an encoding.
type Format string

const (
	// FormatBinary is the compact varint encoding (see binary.go).
	FormatBinary Format = "binary"
	// FormatGob stores the sorted entries with encoding/gob.
	FormatGob Format = "gob"
)

// CodecFor returns the codec implementing f.
func CodecFor(f Format) (Codec, error) {
	switch f {
	case FormatBinary, "":
		return Binary{}, nil
	case FormatGob:
		return Gob{}, nil
	default:
		return nil, fmt.Errorf("prefixmap: unknown format %q", f)
	}
}

// checkKey rejects keys that cannot be represented by the read side.
func checkKey(k int) error {
	if k < 0 || k > math.MaxInt32 {
		return fmt.Errorf("prefixmap: key %d out of range", k)
	}
	return nil
}
