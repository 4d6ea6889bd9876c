// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package corpus maintains the set of interesting inputs found so far,
// together with the coverage signal each of them contributed.
package corpus

import (
	"math/rand"
	"sync"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/hash"
	"github.com/fuzzkit/fuzzkit/pkg/signal"
)

// Corpus is a deduplicated, ordered set of accepted inputs. Indices
// are stable: an input keeps its position for the lifetime of the
// corpus, which lets mutation metadata and crossover donors refer to
// entries by index.
type Corpus struct {
	mu     sync.RWMutex
	items  []*Item
	bySig  map[hash.Sig]*Item
	signal signal.Signal // total signal of all items
}

// Item is one accepted corpus entry. Everything except the mutation
// trail is immutable after Add; the trail is attached once right
// after acceptance.
type Item struct {
	Sig       hash.Sig
	Input     *input.Input
	Signal    signal.Signal
	Mutations []string // catalog entry names that produced this input
}

func (item *Item) SetMutationLog(names []string) {
	item.Mutations = names
}

func New() *Corpus {
	return &Corpus{
		bySig: make(map[hash.Sig]*Item),
	}
}

// Add stores the input unless an identical one is already present.
// The accepted (or existing) item is returned; its signal absorbs sig
// either way.
func (corpus *Corpus) Add(in *input.Input, sig signal.Signal) (*Item, bool) {
	corpus.mu.Lock()
	defer corpus.mu.Unlock()
	id := hash.Hash(in.Bytes())
	if old, ok := corpus.bySig[id]; ok {
		old.Signal.Merge(sig)
		corpus.signal.Merge(sig)
		return old, false
	}
	item := &Item{
		Sig:    id,
		Input:  in.Clone(),
		Signal: sig.Copy(),
	}
	corpus.items = append(corpus.items, item)
	corpus.bySig[id] = item
	corpus.signal.Merge(sig)
	return item, true
}

func (corpus *Corpus) Count() int {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	return len(corpus.items)
}

func (corpus *Corpus) Input(idx int) *input.Input {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	return corpus.items[idx].Input
}

func (corpus *Corpus) Item(idx int) *Item {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	return corpus.items[idx]
}

// Choose picks a uniformly random entry to mutate next.
// Returns index -1 when the corpus is empty.
func (corpus *Corpus) Choose(r *rand.Rand) (int, *input.Input) {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	if len(corpus.items) == 0 {
		return -1, nil
	}
	idx := r.Intn(len(corpus.items))
	return idx, corpus.items[idx].Input
}

// Signal returns a copy of the accumulated signal of all items.
func (corpus *Corpus) Signal() signal.Signal {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	return corpus.signal.Copy()
}

// Items returns a point-in-time snapshot of all entries.
func (corpus *Corpus) Items() []*Item {
	corpus.mu.RLock()
	defer corpus.mu.RUnlock()
	return append([]*Item{}, corpus.items...)
}
