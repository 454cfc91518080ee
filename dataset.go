package geodata

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/andreiashu/geodata/prefixmap"
)

// Dataset is the content of a generated archive, loaded into memory the way
// the runtime geocoder sees it.
type Dataset struct {
	Index  *prefixmap.Index
	tables map[string]*prefixmap.Table // keyed by countryCode_language
}

// OpenDataset loads the config and every table stored under the namespace
// selected by opts (WithTesting, WithPackageRoot, WithFormat). Entries outside
// the namespace are ignored.
func OpenDataset(archivePath string, opts ...Option) (*Dataset, error) {
	cfg := newConfig(opts)
	codec, err := prefixmap.CodecFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	rz, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer rz.Close()

	prefix := cfg.namespace() + "/"
	ds := &Dataset{tables: make(map[string]*prefixmap.Table)}
	for _, f := range rz.File {
		rel, ok := strings.CutPrefix(f.Name, prefix)
		if !ok || rel == "" || strings.Contains(rel, "/") {
			continue
		}
		if rel == configName {
			err = decodeEntry(f, func(r io.Reader) (err error) {
				ds.Index, err = codec.DecodeIndex(r)
				return err
			})
		} else {
			err = decodeEntry(f, func(r io.Reader) error {
				t, err := codec.DecodeTable(r)
				ds.tables[rel] = t
				return err
			})
		}
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", f.Name, err)
		}
	}
	if ds.Index == nil {
		return nil, fmt.Errorf("%w: no %s entry under %s", ErrArchiveInvalid, configName, prefix)
	}
	return ds, nil
}

// decodeEntry opens a single archive entry and hands it to fn.
// Extracted to avoid defer-in-loop.
func decodeEntry(f *zip.File, fn func(io.Reader) error) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return fn(rc)
}

// TableNames returns the names of the loaded tables, sorted.
func (ds *Dataset) TableNames() []string {
	names := make([]string, 0, len(ds.tables))
	for name := range ds.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Table returns the table for countryCode and language.
func (ds *Dataset) Table(countryCode int, language string) (*prefixmap.Table, bool) {
	t, ok := ds.tables[outputName(strconv.Itoa(countryCode), language)]
	return t, ok
}

// Lookup returns the location of the longest prefix of number in the table
// for countryCode and language. number is matched as-is against the table
// prefixes, so it must be written the way the input files write them.
func (ds *Dataset) Lookup(countryCode int, number, language string) (string, bool) {
	if !ds.Index.Has(countryCode, language) {
		return "", false
	}
	t, ok := ds.Table(countryCode, language)
	if !ok {
		return "", false
	}
	return t.LongestMatch(number)
}

// Verify checks that the config and the tables describe the same set of
// country code/language pairs.
func (ds *Dataset) Verify() error {
	var errs []error
	for cc, langs := range ds.Index.All() {
		for _, lang := range langs {
			if _, ok := ds.Table(cc, lang); !ok {
				errs = append(errs, fmt.Errorf("%w: config lists %d/%s without a table", ErrArchiveInvalid, cc, lang))
			}
		}
	}
	for _, name := range ds.TableNames() {
		cc, lang, err := splitOutputName(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrArchiveInvalid, err))
			continue
		}
		if !ds.Index.Has(cc, lang) {
			errs = append(errs, fmt.Errorf("%w: table %s missing from config", ErrArchiveInvalid, name))
		}
	}
	return errors.Join(errs...)
}
