// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzer implements the main fuzzing loop: pick a corpus
// entry, mutate it, run it, and keep it if it brought new coverage.
package fuzzer

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/events"
	"github.com/fuzzkit/fuzzkit/pkg/executor"
	"github.com/fuzzkit/fuzzkit/pkg/log"
	"github.com/fuzzkit/fuzzkit/pkg/signal"
	"github.com/fuzzkit/fuzzkit/pkg/snapshot"
	"github.com/fuzzkit/fuzzkit/pkg/stats"
)

type Config struct {
	Snapshot *snapshot.Context
	Events   events.Manager
	ClientID int
	// MaxInputSize bounds input growth during mutation.
	MaxInputSize int
	// Dict holds tokens for the dictionary mutations, may be empty.
	Dict [][]byte
	// Tracker, when set, receives execution latency samples.
	Tracker *stats.Tracker
	// StatsEvery is the number of executions between UpdateStats
	// events, 0 means a sensible default.
	StatsEvery uint64
	// GenLen is the length cap for generated bootstrap inputs.
	GenLen int
}

type Fuzzer struct {
	cfg    Config
	exec   *executor.Executor
	rnd    *rand.Rand
	mutCtx *input.Ctx
	logger *input.LoggerMutator
}

func New(cfg Config, exec *executor.Executor, rs rand.Source) *Fuzzer {
	if cfg.StatsEvery == 0 {
		cfg.StatsEvery = 64
	}
	if cfg.GenLen == 0 {
		cfg.GenLen = 64
	}
	mutCtx := input.NewCtx(rs, cfg.MaxInputSize)
	mutCtx.Dict = cfg.Dict
	mutCtx.Corpus = cfg.Snapshot.Corpus
	return &Fuzzer{
		cfg:    cfg,
		exec:   exec,
		rnd:    rand.New(rs),
		mutCtx: mutCtx,
		logger: input.NewLoggerMutator(input.NewScheduledMutator(input.Havoc())),
	}
}

// Loop fuzzes until the context is cancelled or an execution fails.
func (fuzzer *Fuzzer) Loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fuzzer.Step(); err != nil {
			return err
		}
	}
}

// Step runs one fuzzing iteration end to end.
func (fuzzer *Fuzzer) Step() error {
	corpus := fuzzer.cfg.Snapshot.Corpus
	idx, base := corpus.Choose(fuzzer.rnd)
	var candidate *input.Input
	fuzzer.mutCtx.Current = idx
	if base == nil {
		candidate = input.Generate(fuzzer.mutCtx, fuzzer.cfg.GenLen)
	} else {
		candidate = base.Clone()
		fuzzer.logger.Mutate(fuzzer.mutCtx, candidate)
		if fuzzer.cfg.Tracker != nil {
			fuzzer.cfg.Tracker.AddMutatorUses(fuzzer.logger.LogNames())
		}
	}

	start := time.Now()
	kind, sig, err := fuzzer.exec.Run(candidate)
	if err != nil {
		return fmt.Errorf("failed to execute input: %w", err)
	}
	if fuzzer.cfg.Tracker != nil {
		fuzzer.cfg.Tracker.ObserveExecTime(time.Since(start))
	}
	fuzzer.triage(candidate, kind, sig)

	execs := fuzzer.cfg.Snapshot.State.Executions()
	if execs%fuzzer.cfg.StatsEvery == 0 && fuzzer.cfg.Events != nil {
		if err := fuzzer.cfg.Events.UpdateStats(fuzzer.cfg.ClientID, execs); err != nil {
			log.Logf(0, "failed to report stats: %v", err)
		}
	}
	return nil
}

func (fuzzer *Fuzzer) triage(candidate *input.Input, kind executor.ExitKind, sig signal.Signal) {
	state := fuzzer.cfg.Snapshot.State
	switch kind {
	case executor.ExitCrash:
		// The target detected its own failure without dying.
		state.AddCrash()
		if fuzzer.cfg.Events != nil {
			if err := fuzzer.cfg.Events.Crash(fuzzer.cfg.ClientID, candidate); err != nil {
				log.Fatalf("failed to report crash: %v", err)
			}
		}
	case executor.ExitTimeout:
		state.AddTimeout()
		if fuzzer.cfg.Events != nil {
			if err := fuzzer.cfg.Events.Timeout(fuzzer.cfg.ClientID, candidate); err != nil {
				log.Fatalf("failed to report timeout: %v", err)
			}
		}
	}
	newSig := state.GrabNewSignal(sig)
	if newSig.Empty() || kind != executor.ExitNormal {
		fuzzer.logger.PostExec(nil)
		return
	}
	item, isNew := fuzzer.cfg.Snapshot.Corpus.Add(candidate, sig)
	if !isNew {
		fuzzer.logger.PostExec(nil)
		return
	}
	fuzzer.logger.PostExec(item)
	log.Logf(2, "new input of %v bytes, %v new signal, corpus size %v",
		candidate.Len(), newSig.Len(), fuzzer.cfg.Snapshot.Corpus.Count())
	if fuzzer.cfg.Events != nil {
		if err := fuzzer.cfg.Events.NewTestcase(fuzzer.cfg.ClientID, candidate); err != nil {
			log.Logf(0, "failed to report new testcase: %v", err)
		}
	}
}

// LoadSeeds executes every file in dir and adds it to the corpus with
// the signal it produced.
func (fuzzer *Fuzzer) LoadSeeds(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return err
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		seed := input.New(data)
		_, sig, err := fuzzer.exec.Run(seed)
		if err != nil {
			return err
		}
		fuzzer.cfg.Snapshot.State.GrabNewSignal(sig)
		fuzzer.cfg.Snapshot.Corpus.Add(seed, sig)
	}
	log.Logf(0, "loaded %v seed inputs from %v", len(files), dir)
	return nil
}
