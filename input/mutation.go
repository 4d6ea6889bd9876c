// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package input

import (
	"encoding/binary"
	"fmt"
)

// Result of one mutation step. A mutation never fails: degenerate
// inputs (empty, below the minimum size for an operator, over the
// size limit after growth) resolve to Skipped.
type Result int

const (
	Skipped Result = iota
	Mutated
)

func (res Result) String() string {
	if res == Mutated {
		return "mutated"
	}
	return "skipped"
}

// Mutator is one entry of the mutation catalog: a named primitive
// transform over an input. Entries are addressed by their stable
// index in the catalog slice.
type Mutator struct {
	Name  string
	apply func(ctx *Ctx, in *Input) Result
}

func (m Mutator) Apply(ctx *Ctx, in *Input) Result {
	return m.apply(ctx, in)
}

const maxArith = 35

// Havoc returns the default mutation catalog. BlockDelete is present
// four times to skew the stack towards shrinking inputs.
func Havoc() []Mutator {
	return havocCatalog
}

var havocCatalog = []Mutator{
	{"BitFlip", bitFlip},
	{"ByteFlip", byteFlip},
	{"ByteInc", byteInc},
	{"ByteDec", byteDec},
	{"ByteNeg", byteNeg},
	{"ByteRand", byteRand},
	{"ByteAdd", arith(1)},
	{"WordAdd", arith(2)},
	{"DwordAdd", arith(4)},
	{"QwordAdd", arith(8)},
	{"ByteInteresting", interesting(1)},
	{"WordInteresting", interesting(2)},
	{"DwordInteresting", interesting(4)},
	{"BlockDelete", blockDelete},
	{"BlockDelete", blockDelete},
	{"BlockDelete", blockDelete},
	{"BlockDelete", blockDelete},
	{"BlockDuplicate", blockDuplicate},
	{"BlockInsert", blockInsert},
	{"BlockRandInsert", blockRandInsert},
	{"BlockSet", blockSet},
	{"BlockRandSet", blockRandSet},
	{"BlockCopy", blockCopy},
	{"BlockSwap", blockSwap},
	{"TokenInsert", tokenInsert},
	{"TokenReplace", tokenReplace},
	{"CrossoverInsert", crossoverInsert},
	{"CrossoverReplace", crossoverReplace},
}

func bitFlip(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n == 0 {
		return Skipped
	}
	pos := ctx.r.Intn(n)
	in.Data[pos] ^= 1 << uint(ctx.r.Intn(8))
	return Mutated
}

func byteFlip(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n == 0 {
		return Skipped
	}
	in.Data[ctx.r.Intn(n)] ^= 0xff
	return Mutated
}

func byteInc(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n == 0 {
		return Skipped
	}
	in.Data[ctx.r.Intn(n)]++
	return Mutated
}

func byteDec(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n == 0 {
		return Skipped
	}
	in.Data[ctx.r.Intn(n)]--
	return Mutated
}

func byteNeg(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n == 0 {
		return Skipped
	}
	pos := ctx.r.Intn(n)
	in.Data[pos] = -in.Data[pos]
	return Mutated
}

func byteRand(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n == 0 {
		return Skipped
	}
	in.Data[ctx.r.Intn(n)] = ctx.r.randByte()
	return Mutated
}

// arith adds a random small signed delta to a random aligned
// width-byte window. The addition wraps on overflow, which is how the
// stack reaches boundary values like 0 and ^0.
func arith(width int) func(ctx *Ctx, in *Input) Result {
	return func(ctx *Ctx, in *Input) Result {
		slots := in.Len() / width
		if slots == 0 {
			return Skipped
		}
		off := ctx.r.Intn(slots) * width
		delta := int64(ctx.r.Intn(2*maxArith+1) - maxArith)
		if delta == 0 {
			delta = 1
		}
		storeInt(in.Data[off:], loadInt(in.Data[off:], width)+uint64(delta), width)
		return Mutated
	}
}

func interesting(width int) func(ctx *Ctx, in *Input) Result {
	return func(ctx *Ctx, in *Input) Result {
		n := in.Len()
		if n < width {
			return Skipped
		}
		off := ctx.r.Intn(n - width + 1)
		var v uint64
		switch width {
		case 1:
			v = uint64(interesting8[ctx.r.Intn(len(interesting8))])
		case 2:
			v = uint64(interesting16[ctx.r.Intn(len(interesting16))])
		case 4:
			v = uint64(interesting32[ctx.r.Intn(len(interesting32))])
		default:
			panic(fmt.Sprintf("interesting: bad width %v", width))
		}
		storeInt(in.Data[off:], v, width)
		return Mutated
	}
}

func blockDelete(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n < 2 {
		return Skipped
	}
	off := ctx.r.Intn(n)
	l := ctx.r.Intn(n-off) + 1
	in.Data = append(in.Data[:off], in.Data[off+l:]...)
	return Mutated
}

func blockDuplicate(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n == 0 {
		return Skipped
	}
	off := ctx.r.Intn(n)
	l := ctx.r.Intn(n-off) + 1
	if n+l > ctx.MaxSize {
		return Skipped
	}
	block := append([]byte{}, in.Data[off:off+l]...)
	in.Data = insertBytes(in.Data, off+l, block)
	return Mutated
}

func blockInsert(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n == 0 {
		return Skipped
	}
	val := in.Data[ctx.r.Intn(n)]
	cnt := ctx.r.Intn(16) + 1
	if n+cnt > ctx.MaxSize {
		return Skipped
	}
	block := make([]byte, cnt)
	for i := range block {
		block[i] = val
	}
	in.Data = insertBytes(in.Data, ctx.r.Intn(n+1), block)
	return Mutated
}

func blockRandInsert(ctx *Ctx, in *Input) Result {
	n := in.Len()
	cnt := ctx.r.Intn(16) + 1
	if n+cnt > ctx.MaxSize {
		return Skipped
	}
	block := make([]byte, cnt)
	for i := range block {
		block[i] = ctx.r.randByte()
	}
	in.Data = insertBytes(in.Data, ctx.r.Intn(n+1), block)
	return Mutated
}

func blockSet(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n == 0 {
		return Skipped
	}
	off := ctx.r.Intn(n)
	l := ctx.r.Intn(n-off) + 1
	val := in.Data[ctx.r.Intn(n)]
	for i := off; i < off+l; i++ {
		in.Data[i] = val
	}
	return Mutated
}

func blockRandSet(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n == 0 {
		return Skipped
	}
	off := ctx.r.Intn(n)
	l := ctx.r.Intn(n-off) + 1
	val := ctx.r.randByte()
	for i := off; i < off+l; i++ {
		in.Data[i] = val
	}
	return Mutated
}

func blockCopy(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n < 2 {
		return Skipped
	}
	from := ctx.r.Intn(n)
	to := ctx.r.Intn(n)
	if from == to {
		return Skipped
	}
	l := ctx.r.Intn(n-max(from, to)) + 1
	copy(in.Data[to:to+l], in.Data[from:from+l])
	return Mutated
}

func blockSwap(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if n < 2 {
		return Skipped
	}
	first := ctx.r.Intn(n)
	second := ctx.r.Intn(n)
	if first == second {
		return Skipped
	}
	l := ctx.r.Intn(n-max(first, second)) + 1
	tmp := append([]byte{}, in.Data[first:first+l]...)
	copy(in.Data[first:first+l], in.Data[second:second+l])
	copy(in.Data[second:second+l], tmp)
	return Mutated
}

func tokenInsert(ctx *Ctx, in *Input) Result {
	if len(ctx.Dict) == 0 {
		return Skipped
	}
	tok := ctx.Dict[ctx.r.Intn(len(ctx.Dict))]
	n := in.Len()
	if n+len(tok) > ctx.MaxSize {
		return Skipped
	}
	in.Data = insertBytes(in.Data, ctx.r.Intn(n+1), tok)
	return Mutated
}

func tokenReplace(ctx *Ctx, in *Input) Result {
	n := in.Len()
	if len(ctx.Dict) == 0 || n == 0 {
		return Skipped
	}
	tok := ctx.Dict[ctx.r.Intn(len(ctx.Dict))]
	pos := ctx.r.Intn(n)
	copy(in.Data[pos:], tok)
	return Mutated
}

func crossoverInsert(ctx *Ctx, in *Input) Result {
	donor := pickDonor(ctx)
	if donor == nil || donor.Len() == 0 {
		return Skipped
	}
	from := ctx.r.Intn(donor.Len())
	l := ctx.r.Intn(donor.Len()-from) + 1
	n := in.Len()
	if n+l > ctx.MaxSize {
		return Skipped
	}
	block := append([]byte{}, donor.Data[from:from+l]...)
	in.Data = insertBytes(in.Data, ctx.r.Intn(n+1), block)
	return Mutated
}

// crossoverReplace splices the input with a donor corpus entry:
// everything from a random split point on is replaced by the donor's
// bytes at the same offsets.
func crossoverReplace(ctx *Ctx, in *Input) Result {
	donor := pickDonor(ctx)
	if donor == nil || donor.Len() == 0 || in.Len() == 0 {
		return Skipped
	}
	split := ctx.r.Intn(min(in.Len(), donor.Len()))
	out := append([]byte{}, in.Data[:split]...)
	in.Data = append(out, donor.Data[split:]...)
	return Mutated
}

// pickDonor selects a random corpus entry other than the one
// currently being mutated. Requires a corpus with at least 2 entries,
// otherwise crossover degenerates to a no-op.
func pickDonor(ctx *Ctx) *Input {
	view := ctx.Corpus
	if view == nil || view.Count() < 2 {
		return nil
	}
	if ctx.Current < 0 || ctx.Current >= view.Count() {
		return view.Input(ctx.r.Intn(view.Count()))
	}
	idx := ctx.r.Intn(view.Count() - 1)
	if idx >= ctx.Current {
		idx++
	}
	return view.Input(idx)
}

func insertBytes(data []byte, pos int, block []byte) []byte {
	data = append(data, block...)
	copy(data[pos+len(block):], data[pos:])
	copy(data[pos:], block)
	return data
}

func loadInt(data []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(data))
	case 4:
		return uint64(binary.LittleEndian.Uint32(data))
	case 8:
		return binary.LittleEndian.Uint64(data)
	default:
		panic(fmt.Sprintf("loadInt: bad width %v", width))
	}
}

func storeInt(data []byte, v uint64, width int) {
	switch width {
	case 1:
		data[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(data, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(data, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(data, v)
	default:
		panic(fmt.Sprintf("storeInt: bad width %v", width))
	}
}
