package prefixmap

import (
	"iter"
	"maps"
	"slices"
)

// Index maps country calling codes to the set of languages available for them.
type Index struct {
	languages map[int]map[string]struct{}
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{languages: make(map[int]map[string]struct{})}
}

// Add records that language is available for countryCode. Adding the same
// pair twice leaves the index unchanged.
func (x *Index) Add(countryCode int, language string) {
	set, ok := x.languages[countryCode]
	if !ok {
		set = make(map[string]struct{})
		x.languages[countryCode] = set
	}
	set[language] = struct{}{}
}

// Has reports whether language is recorded for countryCode.
func (x *Index) Has(countryCode int, language string) bool {
	_, ok := x.languages[countryCode][language]
	return ok
}

// Len returns the number of country codes in the index.
func (x *Index) Len() int { return len(x.languages) }

// Pairs returns the total number of (country code, language) pairs.
func (x *Index) Pairs() int {
	n := 0
	for _, set := range x.languages {
		n += len(set)
	}
	return n
}

// CountryCodes returns the country codes in ascending order.
func (x *Index) CountryCodes() []int {
	return slices.Sorted(maps.Keys(x.languages))
}

// Languages returns the languages recorded for countryCode, sorted.
func (x *Index) Languages(countryCode int) []string {
	return slices.Sorted(maps.Keys(x.languages[countryCode]))
}

// All yields every country code with its sorted languages, in ascending code order.
func (x *Index) All() iter.Seq2[int, []string] {
	return func(yield func(int, []string) bool) {
		for _, cc := range x.CountryCodes() {
			if !yield(cc, x.Languages(cc)) {
				return
			}
		}
	}
}
