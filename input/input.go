// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package input contains the fuzzer's test case representation and the
// mutation engine that derives new test cases from existing ones.
package input

import (
	"bytes"
)

// Input is a single fuzzing test case: an ordered, opaque byte sequence.
// Inputs are owned by the corpus once accepted, borrowed mutably by the
// mutation engine and immutably by the executor during a run.
type Input struct {
	Data []byte
}

func New(data []byte) *Input {
	return &Input{Data: data}
}

func FromString(s string) *Input {
	return &Input{Data: []byte(s)}
}

func (in *Input) Len() int {
	return len(in.Data)
}

func (in *Input) Bytes() []byte {
	return in.Data
}

func (in *Input) Clone() *Input {
	return &Input{Data: append([]byte{}, in.Data...)}
}

// Equal compares inputs by content.
func (in *Input) Equal(other *Input) bool {
	return other != nil && bytes.Equal(in.Data, other.Data)
}

// CorpusView is the read-only corpus access that crossover mutations need.
type CorpusView interface {
	Count() int
	Input(idx int) *Input
}
