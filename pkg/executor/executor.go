// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package executor runs fuzz inputs against an in-process target and
// keeps the session recoverable when the target takes the whole
// process down with it.
package executor

import (
	"fmt"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/events"
	"github.com/fuzzkit/fuzzkit/pkg/log"
	"github.com/fuzzkit/fuzzkit/pkg/signal"
	"github.com/fuzzkit/fuzzkit/pkg/snapshot"
)

// ExitKind classifies how one execution of the target finished.
type ExitKind int

const (
	ExitNormal ExitKind = iota
	ExitCrash
	ExitTimeout
	// ExitOOM is reserved for memory limit enforcement.
	ExitOOM
)

func (kind ExitKind) String() string {
	switch kind {
	case ExitNormal:
		return "normal"
	case ExitCrash:
		return "crash"
	case ExitTimeout:
		return "timeout"
	case ExitOOM:
		return "oom"
	}
	return "unknown"
}

// Harness runs the target once on data. A well-behaved target returns
// ExitNormal or reports a detected failure via the returned kind; a
// misbehaving one crashes the process, which the signal handlers turn
// into a crash report.
type Harness func(env *Env, data []byte) ExitKind

// PreserveFunc receives the serialized session snapshot when the
// process is about to die. Implementations must only do async-safe
// work (write a file, a pipe) and return.
type PreserveFunc func(kind ExitKind, snapshot []byte)

// DefaultCoverSize is the number of edge counters in the cover map.
const DefaultCoverSize = 1 << 16

// Env is the execution environment handed to the harness. The cover
// map is the feedback channel: instrumented targets bump a counter
// per executed edge.
type Env struct {
	cover []byte
}

func (env *Env) Cover() []byte {
	return env.cover
}

func (env *Env) resetCover() {
	for i := range env.cover {
		env.cover[i] = 0
	}
}

type Config struct {
	// Snapshot is the session state preserved on crash or timeout.
	Snapshot *snapshot.Context
	Events   events.Manager
	Preserve PreserveFunc
	ClientID int
	// CoverSize overrides DefaultCoverSize when positive.
	CoverSize int
}

type Executor struct {
	cfg     Config
	harness Harness
	env     *Env
}

func New(cfg Config, harness Harness) *Executor {
	size := cfg.CoverSize
	if size <= 0 {
		size = DefaultCoverSize
	}
	return &Executor{
		cfg:     cfg,
		harness: harness,
		env:     &Env{cover: make([]byte, size)},
	}
}

// Run executes the target once on in. For the duration of the call
// the input is published to the signal handlers, so that a target
// that kills the process still gets its input and session preserved.
// An error means the run never happened and the input can be retried.
func (exec *Executor) Run(in *input.Input) (ExitKind, signal.Signal, error) {
	if exec.harness == nil {
		return ExitNormal, nil, fmt.Errorf("executor: no harness configured")
	}
	if in == nil {
		return ExitNormal, nil, fmt.Errorf("executor: nil input")
	}
	exec.env.resetCover()
	exec.cfg.Snapshot.State.AddExecution()
	publish(&runContext{exec: exec, input: in.Clone()})
	kind := exec.harness(exec.env, in.Bytes())
	unpublish()
	return kind, signal.FromCover(exec.env.cover), nil
}

func (exec *Executor) reportCrash(in *input.Input) {
	exec.cfg.Snapshot.State.AddCrash()
	if exec.cfg.Events != nil {
		if err := exec.cfg.Events.Crash(exec.cfg.ClientID, in); err != nil {
			log.Logf(0, "failed to report crash: %v", err)
		}
	}
	exec.preserve(ExitCrash)
}

func (exec *Executor) reportTimeout(in *input.Input) {
	exec.cfg.Snapshot.State.AddTimeout()
	if exec.cfg.Events != nil {
		if err := exec.cfg.Events.Timeout(exec.cfg.ClientID, in); err != nil {
			log.Logf(0, "failed to report timeout: %v", err)
		}
	}
	exec.preserve(ExitTimeout)
}

func (exec *Executor) preserve(kind ExitKind) {
	if exec.cfg.Preserve == nil {
		return
	}
	blob, err := snapshot.Serialize(exec.cfg.Snapshot)
	if err != nil {
		log.Logf(0, "failed to serialize snapshot: %v", err)
		return
	}
	exec.cfg.Preserve(kind, blob)
}
