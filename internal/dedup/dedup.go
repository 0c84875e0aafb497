// Package dedup provides an order-preserving set for candidate endpoints.
package dedup

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// Set records strings in first-seen order. A Bloom filter answers most
// negative lookups; an exact map confirms positives.
type Set struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
	order  []string
}

// New creates a set sized for estimatedItems.
func New(estimatedItems int) *Set {
	if estimatedItems < 16 {
		estimatedItems = 16
	}
	return &Set{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
		order:  make([]string, 0, estimatedItems),
	}
}

// Add inserts s and reports whether it was new.
func (d *Set) Add(s string) bool {
	if d.Has(s) {
		return false
	}
	d.filter.AddString(s)
	d.exact[s] = struct{}{}
	d.order = append(d.order, s)
	return true
}

// Has reports whether s was added.
func (d *Set) Has(s string) bool {
	if !d.filter.TestString(s) {
		return false
	}
	_, exists := d.exact[s]
	return exists
}

// Len returns the number of unique entries.
func (d *Set) Len() int {
	return len(d.order)
}

// Items returns the entries in insertion order.
func (d *Set) Items() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Unique returns items with duplicates removed, keeping first occurrences.
func Unique(items []string) []string {
	set := New(len(items))
	for _, item := range items {
		set.Add(item)
	}
	return set.Items()
}
