// Package hllbackend adapts pkg/alg/hll's HyperLogLog sketch to
// privsketch's narrow Cardinality capability, demonstrating that
// PrivSketch's ingest/estimate path is not tied to PCSA: any sketch with
// Add/Count/SizeBytes can back a category.
//
// HyperLogLog has no bit-level union contract compatible with PCSA's
// "same nmap/length/hash" rule, so Union here only ever merges two
// Sketch values — mixing an hllbackend.Sketch with a pcsa.Sketch is
// rejected by the caller before it reaches this package.
package hllbackend

import "github.com/dpsketch/privsketch/pkg/alg/hll"

// defaultPrecision balances memory (2^14 single-byte registers) against
// the ~0.8% standard error HyperLogLog provides at this precision.
const defaultPrecision = 14

// Sketch wraps hll.Sketch to satisfy privsketch.Cardinality.
type Sketch struct {
	inner *hll.Sketch
}

// New constructs an hllbackend.Sketch at the default precision.
func New() *Sketch {
	s, err := hll.New(defaultPrecision)
	if err != nil {
		// defaultPrecision is a compile-time constant within hll's
		// documented [4, 18] range; this cannot fail.
		panic(err)
	}

	return &Sketch{inner: s}
}

// Add implements privsketch.Cardinality.
func (s *Sketch) Add(data []byte) { s.inner.Add(data) }

// Count implements privsketch.Cardinality.
func (s *Sketch) Count() float64 { return float64(s.inner.Count()) }

// SizeBytes implements privsketch.Cardinality.
func (s *Sketch) SizeBytes() float64 { return s.inner.SizeBytes() }

// Union returns a new Sketch holding the register-wise maximum of a and
// b's registers (HyperLogLog's own union rule).
func Union(a, b *Sketch) (*Sketch, error) {
	merged := New()
	if err := merged.inner.Merge(a.inner); err != nil {
		return nil, err
	}

	if err := merged.inner.Merge(b.inner); err != nil {
		return nil, err
	}

	return merged, nil
}
