package catalog

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// keyIndex tracks dedup keys with a Bloom filter in front of an exact set.
// The filter answers most "never seen" lookups; the set is authoritative.
// It is not safe for concurrent use; the Catalog serializes access.
type keyIndex struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func newKeyIndex(estimatedKeys int) *keyIndex {
	if estimatedKeys < 1000 {
		estimatedKeys = 1000
	}
	return &keyIndex{
		filter: bloom.NewWithEstimates(uint(estimatedKeys), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// seen reports whether key was added before.
func (i *keyIndex) seen(key string) bool {
	if !i.filter.TestString(key) {
		return false
	}
	_, ok := i.exact[key]
	return ok
}

// add inserts key and reports whether it was new.
func (i *keyIndex) add(key string) bool {
	if i.seen(key) {
		return false
	}
	i.filter.AddString(key)
	i.exact[key] = struct{}{}
	return true
}

func (i *keyIndex) len() int {
	return len(i.exact)
}
