// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package executor

import (
	"sync/atomic"

	"github.com/fuzzkit/fuzzkit/input"
)

// runContext is what the signal handlers need to know about the
// execution in flight. It is published atomically so the handler
// goroutine always sees either a complete context or none.
type runContext struct {
	exec  *Executor
	input *input.Input
}

var (
	current    atomic.Pointer[runContext]
	generation atomic.Uint64
)

func publish(rc *runContext) {
	generation.Add(1)
	current.Store(rc)
}

func unpublish() {
	current.Store(nil)
}

// Running reports whether an execution is in flight. The watchdog
// uses it to tell a hung target apart from an idle worker.
func Running() bool {
	return current.Load() != nil
}

// Token returns the current run generation along with the running
// flag. A watchdog that observes the same generation still running
// across a whole timeout knows the target is hung rather than that
// the worker is merely busy with many fast runs.
func Token() (uint64, bool) {
	return generation.Load(), current.Load() != nil
}
