package prefixmap

import (
	"encoding/gob"
	"fmt"
	"io"
)

// Gob stores both structures as sorted parallel slices with encoding/gob.
// Slices rather than maps keep the output byte-for-byte deterministic.
type Gob struct{}

type gobTable struct {
	Prefixes  []int32
	Locations []string
}

type gobIndex struct {
	CountryCodes []int32
	Languages    [][]string
}

func (Gob) Format() Format { return FormatGob }

func (Gob) EncodeTable(w io.Writer, t *Table) error {
	gt := gobTable{
		Prefixes:  make([]int32, 0, t.Len()),
		Locations: make([]string, 0, t.Len()),
	}
	for p, loc := range t.All() {
		if err := checkKey(p); err != nil {
			return err
		}
		gt.Prefixes = append(gt.Prefixes, int32(p))
		gt.Locations = append(gt.Locations, loc)
	}
	return gob.NewEncoder(w).Encode(gt)
}

func (Gob) DecodeTable(r io.Reader) (*Table, error) {
	var gt gobTable
	if err := gob.NewDecoder(r).Decode(&gt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(gt.Prefixes) != len(gt.Locations) {
		return nil, fmt.Errorf("%w: %d prefixes, %d locations", ErrCorrupt, len(gt.Prefixes), len(gt.Locations))
	}
	t := NewTable()
	for i, p := range gt.Prefixes {
		if p < 0 {
			return nil, fmt.Errorf("%w: negative prefix %d", ErrCorrupt, p)
		}
		t.Put(int(p), gt.Locations[i])
	}
	return t, nil
}

func (Gob) EncodeIndex(w io.Writer, x *Index) error {
	gi := gobIndex{
		CountryCodes: make([]int32, 0, x.Len()),
		Languages:    make([][]string, 0, x.Len()),
	}
	for cc, langs := range x.All() {
		if err := checkKey(cc); err != nil {
			return err
		}
		gi.CountryCodes = append(gi.CountryCodes, int32(cc))
		gi.Languages = append(gi.Languages, langs)
	}
	return gob.NewEncoder(w).Encode(gi)
}

func (Gob) DecodeIndex(r io.Reader) (*Index, error) {
	var gi gobIndex
	if err := gob.NewDecoder(r).Decode(&gi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(gi.CountryCodes) != len(gi.Languages) {
		return nil, fmt.Errorf("%w: %d codes, %d language sets", ErrCorrupt, len(gi.CountryCodes), len(gi.Languages))
	}
	x := NewIndex()
	for i, cc := range gi.CountryCodes {
		if cc < 0 {
			return nil, fmt.Errorf("%w: negative country code %d", ErrCorrupt, cc)
		}
		for _, l := range gi.Languages[i] {
			x.Add(int(cc), l)
		}
	}
	return x, nil
}
