package prefixmap

import (
	"bytes"
	"encoding/gob"
	"errors"
	"slices"
	"sync"
	"testing"
)

func TestTable_OrderedByPrefix(t *testing.T) {
	tbl := NewTable()
	tbl.Put(650, "San Francisco")
	tbl.Put(1, "Everywhere")
	tbl.Put(212, "New York")

	want := []int{1, 212, 650}
	if got := tbl.Prefixes(); !slices.Equal(got, want) {
		t.Errorf("Prefixes() = %v, want %v", got, want)
	}

	var gotLocs []string
	for _, loc := range tbl.All() {
		gotLocs = append(gotLocs, loc)
	}
	wantLocs := []string{"Everywhere", "New York", "San Francisco"}
	if !slices.Equal(gotLocs, wantLocs) {
		t.Errorf("All() locations = %v, want %v", gotLocs, wantLocs)
	}
}

func TestTable_PutOverwrites(t *testing.T) {
	tbl := NewTable()
	if _, replaced := tbl.Put(212, "New York"); replaced {
		t.Fatal("first Put reported a replacement")
	}
	prev, replaced := tbl.Put(212, "Manhattan")
	if !replaced || prev != "New York" {
		t.Fatalf("Put() = (%q, %v), want (\"New York\", true)", prev, replaced)
	}
	if got, _ := tbl.Get(212); got != "Manhattan" {
		t.Errorf("Get(212) = %q, want Manhattan", got)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
}

func TestTable_PrefixesInvalidatedOnInsert(t *testing.T) {
	tbl := NewTable()
	tbl.Put(5, "a")
	_ = tbl.Prefixes()
	tbl.Put(3, "b")
	if got := tbl.Prefixes(); !slices.Equal(got, []int{3, 5}) {
		t.Errorf("Prefixes() after insert = %v, want [3 5]", got)
	}
}

func TestTable_LongestMatch(t *testing.T) {
	tbl := NewTable()
	tbl.Put(1212, "New York")
	tbl.Put(1212555, "Manhattan")
	tbl.Put(1650, "California")

	tests := []struct {
		number string
		want   string
		ok     bool
	}{
		{"12125551234", "Manhattan", true},
		{"12124441234", "New York", true},
		{"16501234567", "California", true},
		{"19999999999", "", false},
		{"", "", false},
		{"12a", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			got, ok := tbl.LongestMatch(tt.number)
			if got != tt.want || ok != tt.ok {
				t.Errorf("LongestMatch(%q) = (%q, %v), want (%q, %v)", tt.number, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTable_ConcurrentLookups(t *testing.T) {
	tbl := NewTable()
	tbl.Put(1212, "New York")
	tbl.Put(1650, "California")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, ok := tbl.LongestMatch("12125550000"); !ok || got != "New York" {
				t.Errorf("LongestMatch() = %q, %v; want New York", got, ok)
			}
		}()
	}
	wg.Wait()
}

func TestIndex_SetSemantics(t *testing.T) {
	x := NewIndex()
	x.Add(44, "en")
	x.Add(1, "fr")
	x.Add(1, "en")
	x.Add(1, "en")

	if got := x.CountryCodes(); !slices.Equal(got, []int{1, 44}) {
		t.Errorf("CountryCodes() = %v, want [1 44]", got)
	}
	if got := x.Languages(1); !slices.Equal(got, []string{"en", "fr"}) {
		t.Errorf("Languages(1) = %v, want [en fr]", got)
	}
	if x.Pairs() != 3 {
		t.Errorf("Pairs() = %d, want 3", x.Pairs())
	}
	if !x.Has(44, "en") || x.Has(44, "fr") {
		t.Error("Has() does not reflect recorded pairs")
	}
}

func sampleTable() *Table {
	tbl := NewTable()
	tbl.Put(650, "San Francisco")
	tbl.Put(212, "New York")
	tbl.Put(718, "New York")
	tbl.Put(0, "Zürich")
	return tbl
}

func sampleIndex() *Index {
	x := NewIndex()
	x.Add(1, "fr")
	x.Add(1, "en")
	x.Add(86, "zh_Hant")
	x.Add(41, "de")
	return x
}

func TestCodecs(t *testing.T) {
	for _, f := range []Format{FormatBinary, FormatGob} {
		t.Run(string(f), func(t *testing.T) {
			codec, err := CodecFor(f)
			if err != nil {
				t.Fatalf("CodecFor(%q) error = %v", f, err)
			}
			if codec.Format() != f {
				t.Errorf("Format() = %q, want %q", codec.Format(), f)
			}

			var buf bytes.Buffer
			if err := codec.EncodeTable(&buf, sampleTable()); err != nil {
				t.Fatalf("EncodeTable() error = %v", err)
			}
			tbl, err := codec.DecodeTable(&buf)
			if err != nil {
				t.Fatalf("DecodeTable() error = %v", err)
			}
			if !slices.Equal(tbl.Prefixes(), []int{0, 212, 650, 718}) {
				t.Errorf("decoded prefixes = %v", tbl.Prefixes())
			}
			if loc, _ := tbl.Get(0); loc != "Zürich" {
				t.Errorf("decoded Get(0) = %q, want Zürich", loc)
			}
			if loc, _ := tbl.Get(718); loc != "New York" {
				t.Errorf("decoded Get(718) = %q, want New York", loc)
			}

			buf.Reset()
			if err := codec.EncodeIndex(&buf, sampleIndex()); err != nil {
				t.Fatalf("EncodeIndex() error = %v", err)
			}
			x, err := codec.DecodeIndex(&buf)
			if err != nil {
				t.Fatalf("DecodeIndex() error = %v", err)
			}
			if !slices.Equal(x.CountryCodes(), []int{1, 41, 86}) {
				t.Errorf("decoded codes = %v", x.CountryCodes())
			}
			if !slices.Equal(x.Languages(86), []string{"zh_Hant"}) {
				t.Errorf("decoded Languages(86) = %v", x.Languages(86))
			}
		})
	}
}

func TestCodecs_DeterministicRegardlessOfInsertionOrder(t *testing.T) {
	for _, f := range []Format{FormatBinary, FormatGob} {
		t.Run(string(f), func(t *testing.T) {
			codec, _ := CodecFor(f)
			a := NewTable()
			b := NewTable()
			keys := []int{9, 3, 7, 1}
			for _, k := range keys {
				a.Put(k, "loc")
			}
			for i := len(keys) - 1; i >= 0; i-- {
				b.Put(keys[i], "loc")
			}
			var ba, bb bytes.Buffer
			if err := codec.EncodeTable(&ba, a); err != nil {
				t.Fatal(err)
			}
			if err := codec.EncodeTable(&bb, b); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(ba.Bytes(), bb.Bytes()) {
				t.Error("encodings differ for tables with equal contents")
			}

			xa, xb := NewIndex(), NewIndex()
			xa.Add(1, "en")
			xa.Add(1, "fr")
			xb.Add(1, "fr")
			xb.Add(1, "en")
			ba.Reset()
			bb.Reset()
			_ = codec.EncodeIndex(&ba, xa)
			_ = codec.EncodeIndex(&bb, xb)
			if !bytes.Equal(ba.Bytes(), bb.Bytes()) {
				t.Error("encodings differ for indexes with equal contents")
			}
		})
	}
}

func TestBinary_Errors(t *testing.T) {
	var buf bytes.Buffer
	if err := (Binary{}).EncodeTable(&buf, sampleTable()); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()

	if _, err := (Binary{}).DecodeTable(bytes.NewReader([]byte("XXXX"))); !errors.Is(err, ErrBadMagic) {
		t.Errorf("DecodeTable(bad magic) error = %v, want ErrBadMagic", err)
	}
	if _, err := (Binary{}).DecodeTable(bytes.NewReader(full[:len(full)-1])); !errors.Is(err, ErrCorrupt) {
		t.Errorf("DecodeTable(truncated) error = %v, want ErrCorrupt", err)
	}
	if _, err := (Binary{}).DecodeIndex(bytes.NewReader(full)); !errors.Is(err, ErrBadMagic) {
		t.Errorf("DecodeIndex(table bytes) error = %v, want ErrBadMagic", err)
	}

	neg := NewTable()
	neg.Put(-1, "nowhere")
	if err := (Binary{}).EncodeTable(&bytes.Buffer{}, neg); err == nil {
		t.Error("EncodeTable() with negative prefix succeeded, want error")
	}
}

func TestCodecFor_Unknown(t *testing.T) {
	if _, err := CodecFor("protobuf"); err == nil {
		t.Error("CodecFor(protobuf) succeeded, want error")
	}
	if c, err := CodecFor(""); err != nil || c.Format() != FormatBinary {
		t.Errorf("CodecFor(\"\") = %v, %v; want binary codec", c, err)
	}
}

func TestGob_RejectsNegativeKeys(t *testing.T) {
	var tb bytes.Buffer
	if err := gob.NewEncoder(&tb).Encode(gobTable{Prefixes: []int32{-5}, Locations: []string{"nowhere"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := (Gob{}).DecodeTable(&tb); !errors.Is(err, ErrCorrupt) {
		t.Errorf("DecodeTable(negative prefix) error = %v, want ErrCorrupt", err)
	}

	var ib bytes.Buffer
	if err := gob.NewEncoder(&ib).Encode(gobIndex{CountryCodes: []int32{-1}, Languages: [][]string{{"en"}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := (Gob{}).DecodeIndex(&ib); !errors.Is(err, ErrCorrupt) {
		t.Errorf("DecodeIndex(negative country code) error = %v, want ErrCorrupt", err)
	}
}
