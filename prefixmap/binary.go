package prefixmap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Binary is the compact encoding used by default.
//
// Table layout:
//
//	+-------------+-----------------+---------------------+-----------------+-------------------------------------+
//	| magic "GPT1"| pool size (uv)  | len (uv) | bytes ...| entry count (uv)| key delta (uv) | pool index (uv) ...|
//	+-------------+-----------------+---------------------+-----------------+-------------------------------------+
//
// Locations are stored once in a pool ordered by first use; entries are
// ascending prefixes, delta encoded against the previous prefix.
//
// Index layout:
//
//	+-------------+----------------+------------------------------------------------------------+
//	| magic "GPI1"| code count (uv)| code delta (uv) | lang count (uv) | len (uv) | bytes ... |
//	+-------------+----------------+------------------------------------------------------------+
//
// Languages of one code are written sorted.
type Binary struct{}

var (
	tableMagic = [4]byte{'G', 'P', 'T', '1'}
	indexMagic = [4]byte{'G', 'P', 'I', '1'}
)

// MaxStringLen bounds the byte length of a single location or language tag.
const MaxStringLen = 1 << 16

func (Binary) Format() Format { return FormatBinary }

// EncodeTable writes t in the binary table layout.
func (Binary) EncodeTable(w io.Writer, t *Table) error {
	pool := make(map[string]uint64)
	var order []string
	for _, loc := range t.All() {
		if _, ok := pool[loc]; !ok {
			pool[loc] = uint64(len(order))
			order = append(order, loc)
		}
	}

	bw := bufio.NewWriter(w)
	e := &encoder{w: bw}
	e.bytes(tableMagic[:])
	e.uvarint(uint64(len(order)))
	for _, loc := range order {
		e.string(loc)
	}
	e.uvarint(uint64(t.Len()))
	prev := 0
	for p, loc := range t.All() {
		if err := checkKey(p); err != nil {
			return err
		}
		e.uvarint(uint64(p - prev))
		e.uvarint(pool[loc])
		prev = p
	}
	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

// DecodeTable reads a table written by EncodeTable.
func (Binary) DecodeTable(r io.Reader) (*Table, error) {
	d := newDecoder(r)
	if err := d.magic(tableMagic); err != nil {
		return nil, err
	}
	poolSize := d.uvarint()
	var pool []string
	for i := uint64(0); i < poolSize && d.err == nil; i++ {
		pool = append(pool, d.string())
	}
	count := d.uvarint()
	t := NewTable()
	key := uint64(0)
	for i := uint64(0); i < count && d.err == nil; i++ {
		delta := d.uvarint()
		idx := d.uvarint()
		if d.err != nil {
			break
		}
		if i > 0 && delta == 0 {
			return nil, fmt.Errorf("%w: duplicate prefix %d", ErrCorrupt, key)
		}
		key += delta
		if idx >= uint64(len(pool)) || checkKey(int(key)) != nil {
			return nil, fmt.Errorf("%w: entry %d out of range", ErrCorrupt, i)
		}
		t.Put(int(key), pool[idx])
	}
	if d.err != nil {
		return nil, d.err
	}
	return t, nil
}

// EncodeIndex writes x in the binary index layout.
func (Binary) EncodeIndex(w io.Writer, x *Index) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw}
	e.bytes(indexMagic[:])
	e.uvarint(uint64(x.Len()))
	prev := 0
	for cc, langs := range x.All() {
		if err := checkKey(cc); err != nil {
			return err
		}
		e.uvarint(uint64(cc - prev))
		e.uvarint(uint64(len(langs)))
		for _, l := range langs {
			e.string(l)
		}
		prev = cc
	}
	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

// DecodeIndex reads an index written by EncodeIndex.
func (Binary) DecodeIndex(r io.Reader) (*Index, error) {
	d := newDecoder(r)
	if err := d.magic(indexMagic); err != nil {
		return nil, err
	}
	count := d.uvarint()
	x := NewIndex()
	cc := uint64(0)
	for i := uint64(0); i < count && d.err == nil; i++ {
		cc += d.uvarint()
		n := d.uvarint()
		if d.err == nil && checkKey(int(cc)) != nil {
			return nil, fmt.Errorf("%w: country code %d out of range", ErrCorrupt, cc)
		}
		for j := uint64(0); j < n && d.err == nil; j++ {
			lang := d.string()
			if d.err == nil {
				x.Add(int(cc), lang)
			}
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return x, nil
}

// encoder accumulates the first write error so callers can check once.
type encoder struct {
	w   *bufio.Writer
	buf [binary.MaxVarintLen64]byte
	err error
}

func (e *encoder) bytes(b []byte) {
	if e.err == nil {
		_, e.err = e.w.Write(b)
	}
}

func (e *encoder) uvarint(v uint64) {
	n := binary.PutUvarint(e.buf[:], v)
	e.bytes(e.buf[:n])
}

func (e *encoder) string(s string) {
	if e.err == nil && len(s) > MaxStringLen {
		e.err = fmt.Errorf("prefixmap: string of %d bytes exceeds limit", len(s))
		return
	}
	e.uvarint(uint64(len(s)))
	if e.err == nil {
		_, e.err = e.w.WriteString(s)
	}
}

type decoder struct {
	r   *bufio.Reader
	err error
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{r: bufio.NewReader(r)}
}

func (d *decoder) magic(want [4]byte) error {
	var got [4]byte
	if _, err := io.ReadFull(d.r, got[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if got != want {
		return ErrBadMagic
	}
	return nil
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(d.r)
	if err != nil {
		d.fail(err)
	}
	return v
}

func (d *decoder) string() string {
	n := d.uvarint()
	if d.err != nil {
		return ""
	}
	if n > MaxStringLen {
		d.err = fmt.Errorf("%w: string length %d", ErrCorrupt, n)
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.fail(err)
		return ""
	}
	if !utf8.Valid(b) {
		d.err = fmt.Errorf("%w: invalid UTF-8", ErrCorrupt)
		return ""
	}
	return string(b)
}

func (d *decoder) fail(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		d.err = fmt.Errorf("%w: truncated", ErrCorrupt)
		return
	}
	d.err = fmt.Errorf("%w: %v", ErrCorrupt, err)
}
