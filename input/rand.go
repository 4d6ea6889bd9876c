// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package input

import (
	"math/rand"
)

// DefaultMaxSize bounds input growth when no explicit limit is configured.
const DefaultMaxSize = 1 << 20

type randGen struct {
	*rand.Rand
}

func newRand(rs rand.Source) *randGen {
	return &randGen{rand.New(rs)}
}

func (r *randGen) bin() bool {
	return r.Intn(2) == 0
}

func (r *randGen) oneOf(n int) bool {
	return r.Intn(n) == 0
}

func (r *randGen) randByte() byte {
	return byte(r.Intn(256))
}

// Ctx carries the randomness source and the read-only side inputs
// that some mutations need (dictionary tokens, crossover donors).
// All randomness of a mutation call flows through Ctx, which is what
// makes the whole stack reproducible from a single seed.
type Ctx struct {
	r       *randGen
	MaxSize int
	Dict    [][]byte
	Corpus  CorpusView
	Current int // corpus index of the input being mutated, -1 if unknown
}

func NewCtx(rs rand.Source, maxSize int) *Ctx {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Ctx{
		r:       newRand(rs),
		MaxSize: maxSize,
		Current: -1,
	}
}

// Boundary constants used by the interesting-value mutations.
// The wider tables include the narrower ones, so a dword substitution
// can still produce small boundary values.
var (
	interesting8 = []int8{-128, -1, 0, 1, 16, 32, 64, 100, 127}

	interesting16 = []int16{-128, -1, 0, 1, 16, 32, 64, 100, 127,
		-32768, -129, 128, 255, 256, 512, 1000, 1024, 4096, 32767}

	interesting32 = []int32{-128, -1, 0, 1, 16, 32, 64, 100, 127,
		-32768, -129, 128, 255, 256, 512, 1000, 1024, 4096, 32767,
		-2147483648, -100663046, -32769, 32768, 65535, 65536, 100663045, 2147483647}
)
