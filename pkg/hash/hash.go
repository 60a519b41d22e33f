// Package hash provides the deterministic 32-bit hash capability that PCSA
// keys off of.
package hash

import "github.com/spaolacci/murmur3"

// Source produces a deterministic 32-bit hash of a key. Implementations
// must be pure functions of their input: same key, same hash, every call,
// every process.
type Source interface {
	Hash(key []byte) uint32
}

// Murmur32 is the default Source, wrapping MurmurHash3's 32-bit variant.
type Murmur32 struct {
	// Seed lets callers derive independent hash families from the same
	// underlying key space (e.g. one PCSA sketch per seed).
	Seed uint32
}

// NewMurmur32 returns a Murmur32 source seeded with seed.
func NewMurmur32(seed uint32) Murmur32 {
	return Murmur32{Seed: seed}
}

// Hash implements Source.
func (m Murmur32) Hash(key []byte) uint32 {
	return murmur3.Sum32WithSeed(key, m.Seed)
}
