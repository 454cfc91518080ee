// Package prefixmap holds the two data structures shipped in a geocoding data
// archive, together with their binary encodings:
//
//   - Table: phone-number prefix → location description, one per
//     (country calling code, language) pair.
//   - Index: country calling code → set of languages for which a Table exists.
//
// Both structures iterate in ascending key order regardless of insertion
// order; the read side relies on sorted prefixes for binary search.
package prefixmap

import (
	"iter"
	"slices"
	"sort"
	"strconv"
	"sync"
)

// Table is an ordered mapping from prefix to location description.
// The zero value is not usable; call NewTable. Once filled, a Table may be
// read from multiple goroutines; Put must not run concurrently with reads.
type Table struct {
	locations map[int]string

	mu     sync.Mutex
	sorted []int // cached ascending keys, nil when stale
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{locations: make(map[int]string)}
}

// Put stores location under prefix and returns the previous location, if any.
// A repeated prefix overwrites the earlier value.
func (t *Table) Put(prefix int, location string) (prev string, replaced bool) {
	prev, replaced = t.locations[prefix]
	if !replaced {
		t.mu.Lock()
		t.sorted = nil
		t.mu.Unlock()
	}
	t.locations[prefix] = location
	return prev, replaced
}

// Get returns the location stored for prefix.
func (t *Table) Get(prefix int) (string, bool) {
	loc, ok := t.locations[prefix]
	return loc, ok
}

// Len returns the number of prefixes in the table.
func (t *Table) Len() int { return len(t.locations) }

// Prefixes returns the prefixes in ascending order. The slice is shared; do not modify it.
func (t *Table) Prefixes() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sorted == nil {
		t.sorted = make([]int, 0, len(t.locations))
		for p := range t.locations {
			t.sorted = append(t.sorted, p)
		}
		slices.Sort(t.sorted)
	}
	return t.sorted
}

// All yields every (prefix, location) pair in ascending prefix order.
func (t *Table) All() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for _, p := range t.Prefixes() {
			if !yield(p, t.locations[p]) {
				return
			}
		}
	}
}

// LongestMatch returns the location of the longest prefix of number present in
// the table. number must consist of decimal digits only.
func (t *Table) LongestMatch(number string) (string, bool) {
	prefixes := t.Prefixes()
	for n := min(len(number), maxPrefixDigits); n > 0; n-- {
		p, err := strconv.Atoi(number[:n])
		if err != nil {
			return "", false
		}
		i := sort.SearchInts(prefixes, p)
		if i < len(prefixes) && prefixes[i] == p {
			return t.locations[p], true
		}
	}
	return "", false
}

// maxPrefixDigits is the number of decimal digits of the largest prefix a
// table can hold (math.MaxInt32).
const maxPrefixDigits = 10
