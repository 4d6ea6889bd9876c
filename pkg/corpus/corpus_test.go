// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/signal"
	"github.com/fuzzkit/fuzzkit/pkg/testutil"
)

func TestAddDedup(t *testing.T) {
	corpus := New()
	item, isNew := corpus.Add(input.FromString("one"), signal.FromRaw([]uint32{1}, 0))
	assert.True(t, isNew)
	assert.Equal(t, 1, corpus.Count())

	again, isNew := corpus.Add(input.FromString("one"), signal.FromRaw([]uint32{2}, 0))
	assert.False(t, isNew)
	assert.Same(t, item, again)
	assert.Equal(t, 1, corpus.Count())
	// The duplicate's signal is still absorbed.
	assert.Equal(t, 2, item.Signal.Len())
	assert.Equal(t, 2, corpus.Signal().Len())
}

func TestStableIndices(t *testing.T) {
	corpus := New()
	for i := 0; i < 100; i++ {
		corpus.Add(input.FromString(fmt.Sprint(i)), nil)
	}
	for i := 0; i < 100; i++ {
		assert.Equal(t, fmt.Sprint(i), string(corpus.Input(i).Bytes()))
		assert.Equal(t, corpus.Item(i).Input, corpus.Input(i))
	}
}

func TestAddCopiesInput(t *testing.T) {
	corpus := New()
	in := input.FromString("mutable")
	corpus.Add(in, nil)
	in.Data[0] = 'X'
	assert.Equal(t, "mutable", string(corpus.Input(0).Bytes()))
}

func TestChoose(t *testing.T) {
	corpus := New()
	r := rand.New(testutil.RandSource(t))
	idx, in := corpus.Choose(r)
	assert.Equal(t, -1, idx)
	assert.Nil(t, in)

	for i := 0; i < 10; i++ {
		corpus.Add(input.FromString(fmt.Sprint(i)), nil)
	}
	chosen := make(map[int]bool)
	for i := 0; i < testutil.IterCount(); i++ {
		idx, in := corpus.Choose(r)
		assert.Equal(t, fmt.Sprint(idx), string(in.Bytes()))
		chosen[idx] = true
	}
	assert.Len(t, chosen, 10)
}

func TestMutationLog(t *testing.T) {
	corpus := New()
	item, _ := corpus.Add(input.FromString("in"), nil)
	item.SetMutationLog([]string{"BitFlip", "BlockDelete"})
	assert.Equal(t, []string{"BitFlip", "BlockDelete"}, corpus.Item(0).Mutations)
}

func TestCorpusView(t *testing.T) {
	var view input.CorpusView = New()
	assert.Zero(t, view.Count())
}
