package stripe

import (
	"fmt"
	"hash/maphash"

	"github.com/zeebo/xxh3"
)

type options struct {
	stripes int
	hasher  any
}

func defaultOptions() options {
	return options{stripes: DefaultStripes}
}

// Option configures a Pool.
type Option func(*options)

// WithStripes sets the number of stripes.
// Default: DefaultStripes. Values below 1 are ignored.
//
// More stripes mean fewer collisions between unrelated keys at the cost of a
// larger worst-case table.
func WithStripes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.stripes = n
		}
	}
}

// WithHasher sets the function used to map keys to stripes.
// The key type must match the type parameter of the pool it is passed to;
// New panics otherwise.
//
// Equal keys must produce equal hashes.
func WithHasher[K comparable](h func(K) uint64) Option {
	return func(o *options) {
		if h != nil {
			o.hasher = h
		}
	}
}

// StringHasher hashes string keys with XXH3. It is stable across processes,
// which makes stripe assignment reproducible in logs and tests.
func StringHasher(key string) uint64 {
	return xxh3.HashString(key)
}

// ComparableHasher returns a hasher for any comparable key, seeded randomly.
func ComparableHasher[K comparable]() func(K) uint64 {
	seed := maphash.MakeSeed()
	return func(key K) uint64 {
		return maphash.Comparable(seed, key)
	}
}

func resolveHasher[K comparable](h any) func(K) uint64 {
	if h == nil {
		return ComparableHasher[K]()
	}
	fn, ok := h.(func(K) uint64)
	if !ok {
		var zero K
		panic(fmt.Sprintf("stripe: hasher %T does not accept key type %T", h, zero))
	}
	return fn
}
