// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package snapshot captures and restores the whole fuzzing state of a
// worker: progress counters, accumulated coverage signal and the
// corpus. A crashing worker serializes its snapshot from the signal
// handler, and the supervisor resumes a fresh worker from it.
package snapshot

import (
	"sync"
	"sync/atomic"

	"github.com/fuzzkit/fuzzkit/pkg/corpus"
	"github.com/fuzzkit/fuzzkit/pkg/signal"
)

// State holds the fuzzer's progress counters and accumulated maximum
// signal. All methods are safe to call concurrently, including from
// the crash handling goroutine.
type State struct {
	executions atomic.Uint64
	crashes    atomic.Uint64
	timeouts   atomic.Uint64

	mu        sync.RWMutex
	maxSignal signal.Signal
}

func (st *State) AddExecution() uint64 {
	return st.executions.Add(1)
}

func (st *State) Executions() uint64 {
	return st.executions.Load()
}

func (st *State) AddCrash() {
	st.crashes.Add(1)
}

func (st *State) Crashes() uint64 {
	return st.crashes.Load()
}

func (st *State) AddTimeout() {
	st.timeouts.Add(1)
}

func (st *State) Timeouts() uint64 {
	return st.timeouts.Load()
}

// GrabNewSignal computes which part of sig is new relative to the
// accumulated maximum signal and absorbs it. Returns nil when sig
// brought nothing new.
func (st *State) GrabNewSignal(sig signal.Signal) signal.Signal {
	st.mu.Lock()
	defer st.mu.Unlock()
	diff := st.maxSignal.Diff(sig)
	if diff.Empty() {
		return nil
	}
	st.maxSignal.Merge(diff)
	return diff
}

func (st *State) MaxSignal() signal.Signal {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.maxSignal.Copy()
}

// Context bundles everything one snapshot covers. The executor keeps
// a pointer to it for the duration of a fuzzing session.
type Context struct {
	State  *State
	Corpus *corpus.Corpus
}

func NewContext() *Context {
	return &Context{
		State:  new(State),
		Corpus: corpus.New(),
	}
}
