// Package rng implements the deterministic xorshift128+ generator used to
// produce reproducible pseudo-random position streams for tests and the
// benchmark driver. Seeding and output must match
// original_source/sparsedb/xorshift.h bit-for-bit across implementations.
package rng

import "github.com/colinmarc/sparsedb/dberr"

// Generator is a xorshift128+ pseudo-random source seeded from a single
// 64-bit value via the standard 64-bit avalanche mix, applied twice to
// derive the two state words.
type Generator struct {
	s0, s1 uint64
}

// New constructs a Generator seeded with seed. A zero seed is rejected:
// it would mix to an all-zero state, which xorshift128+ can never escape.
func New(seed uint64) (*Generator, error) {
	g := &Generator{}
	if err := g.Seed(seed); err != nil {
		return nil, err
	}
	return g, nil
}

// Seed reseeds the generator. A zero seed returns
// dberr.ErrPreconditionViolation and leaves the generator unchanged.
func (g *Generator) Seed(seed uint64) error {
	if seed == 0 {
		return dberr.ErrPreconditionViolation
	}
	g.s0 = avalanche(seed)
	g.s1 = avalanche(g.s0)
	return nil
}

// Uint64 draws the next 64-bit word from the stream.
func (g *Generator) Uint64() uint64 {
	s1 := g.s0
	s0 := g.s1
	g.s0 = s0
	s1 ^= s1 << 23
	g.s1 = s1 ^ s0 ^ (s1 >> 17) ^ (s0 >> 26)
	return g.s1 + s0
}

// avalanche is the 64-bit mixing function used to derive xorshift128+'s two
// state words from a single seed: xor-shift-33, multiply, xor-shift-33,
// multiply, xor-shift-33.
func avalanche(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
