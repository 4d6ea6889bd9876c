// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package worker

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/fuzzkit/fuzzkit/pkg/events"
	"github.com/fuzzkit/fuzzkit/pkg/executor"
	"github.com/fuzzkit/fuzzkit/pkg/fuzzer"
	"github.com/fuzzkit/fuzzkit/pkg/log"
	"github.com/fuzzkit/fuzzkit/pkg/osutil"
	"github.com/fuzzkit/fuzzkit/pkg/snapshot"
	"github.com/fuzzkit/fuzzkit/pkg/stats"
)

// RunConfig describes one worker process's fuzzing session.
type RunConfig struct {
	Handle  *Handle
	Harness executor.Harness
	// RunTimeout bounds a single target execution.
	RunTimeout   time.Duration
	MaxInputSize int
	Dict         [][]byte
	// SeedDir is only consulted when there is no snapshot to resume.
	SeedDir string
	// RandSeed 0 means seed from the clock.
	RandSeed int64
}

// Run is the worker process's main function: restore or bootstrap the
// session, arm the crash handlers and the watchdog, and fuzz until
// cancelled. It only returns on cancellation or a setup error; a
// misbehaving target exits the process through the handlers instead.
func Run(ctx context.Context, cfg RunConfig) error {
	snap, resumed, err := restore(cfg.Handle.SnapshotFile)
	if err != nil {
		return err
	}
	tracker := stats.NewTracker()
	mgr, err := events.NewLocalManager(cfg.Handle.CrashDir, tracker)
	if err != nil {
		return err
	}
	exec := executor.New(executor.Config{
		Snapshot: snap,
		Events:   mgr,
		ClientID: cfg.Handle.ClientID,
		Preserve: func(kind executor.ExitKind, blob []byte) {
			if err := osutil.WriteFileAtomically(cfg.Handle.SnapshotFile, blob); err != nil {
				log.Logf(0, "failed to preserve snapshot: %v", err)
			}
		},
	}, cfg.Harness)
	if err := executor.InstallHandlers(); err != nil {
		return err
	}

	seed := cfg.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	fz := fuzzer.New(fuzzer.Config{
		Snapshot:     snap,
		Events:       mgr,
		ClientID:     cfg.Handle.ClientID,
		MaxInputSize: cfg.MaxInputSize,
		Dict:         cfg.Dict,
		Tracker:      tracker,
	}, exec, rand.NewSource(seed))
	if !resumed && cfg.SeedDir != "" {
		if err := fz.LoadSeeds(cfg.SeedDir); err != nil {
			return err
		}
	}
	if cfg.RunTimeout > 0 {
		Watchdog(ctx, cfg.RunTimeout)
	}
	log.Logf(0, "worker %v (client %v) fuzzing, corpus size %v, %v executions so far",
		cfg.Handle.ID, cfg.Handle.ClientID, snap.Corpus.Count(), snap.State.Executions())
	err = fz.Loop(ctx)
	// Graceful shutdown preserves the session the same way a crash does.
	if blob, serr := snapshot.Serialize(snap); serr == nil {
		if werr := osutil.WriteFileAtomically(cfg.Handle.SnapshotFile, blob); werr != nil {
			log.Logf(0, "failed to save final snapshot: %v", werr)
		}
	}
	return err
}

func restore(file string) (*snapshot.Context, bool, error) {
	if !osutil.IsExist(file) {
		return snapshot.NewContext(), false, nil
	}
	snap, err := snapshot.LoadFile(file)
	if err != nil {
		// A corrupted snapshot must not wedge the worker in a
		// restart loop. Keep the evidence and start over.
		log.Logf(0, "discarding unusable snapshot %v: %v", file, err)
		os.Rename(file, file+".corrupted")
		return snapshot.NewContext(), false, nil
	}
	return snap, true, nil
}
