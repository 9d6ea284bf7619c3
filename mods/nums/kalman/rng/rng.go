// Package rng provides splittable, seedable random keys.
//
// A Key is a value: consuming randomness never mutates it. Independent streams
// are derived with Split or Fold and turned into a math/rand/v2 source with
// Source, which is what gonum's distributions consume.
package rng

import (
	"fmt"
	"math/rand/v2"
)

type Key struct {
	hi uint64
	lo uint64
}

// NewKey returns the root key for the given seed.
func NewKey(seed uint64) Key {
	hi := mix(seed ^ 0x6a09e667f3bcc908)
	lo := mix(hi ^ 0xbb67ae8584caa73b)
	return Key{hi: hi, lo: lo}
}

// Split derives n keys that are independent of each other and of k.
func (k Key) Split(n int) []Key {
	ret := make([]Key, n)
	for i := range ret {
		ret[i] = k.Fold(uint64(i) + 1)
	}
	return ret
}

// Fold derives a key from k and v. Folding the same value twice
// returns the same key.
func (k Key) Fold(v uint64) Key {
	hi := mix(k.hi ^ mix(v+0x3c6ef372fe94f82b))
	lo := mix(k.lo ^ mix(hi+0xa54ff53a5f1d36f1))
	return Key{hi: hi, lo: lo}
}

// Source returns a fresh PCG source seeded by the key.
func (k Key) Source() rand.Source {
	return rand.NewPCG(k.hi, k.lo)
}

// Rand is a shortcut for rand.New(k.Source()).
func (k Key) Rand() *rand.Rand {
	return rand.New(k.Source())
}

func (k Key) String() string {
	return fmt.Sprintf("%016x%016x", k.hi, k.lo)
}

// splitmix64 finalizer
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
