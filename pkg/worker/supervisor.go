// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/fuzzkit/fuzzkit/pkg/log"
	"github.com/fuzzkit/fuzzkit/pkg/osutil"
	"github.com/fuzzkit/fuzzkit/pkg/snapshot"
	"github.com/fuzzkit/fuzzkit/pkg/stats"
)

type SupervisorConfig struct {
	// Workers is the number of worker processes to keep alive.
	Workers int
	// Dir holds per-worker snapshots and the shared crash directory.
	Dir string
	// Args are passed to the re-executed worker binary.
	Args []string
	// RestartDelay throttles respawning of a repeatedly dying worker.
	RestartDelay time.Duration
	Tracker      *stats.Tracker
}

// Supervisor keeps a fleet of worker processes alive. Each worker
// owns one snapshot file; whenever the worker dies the supervisor
// inspects the snapshot it left behind and respawns the worker, which
// resumes from that snapshot.
type Supervisor struct {
	cfg SupervisorConfig
}

func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = time.Second
	}
	if cfg.Tracker == nil {
		cfg.Tracker = stats.NewTracker()
	}
	if err := osutil.MkdirAll(cfg.Dir); err != nil {
		return nil, err
	}
	return &Supervisor{cfg: cfg}, nil
}

func (sup *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < sup.cfg.Workers; i++ {
		id := i
		g.Go(func() error {
			return sup.superviseWorker(ctx, id)
		})
	}
	return g.Wait()
}

func (sup *Supervisor) superviseWorker(ctx context.Context, id int) error {
	handle := NewHandle(id,
		filepath.Join(sup.cfg.Dir, fmt.Sprintf("worker-%v.snap", id)),
		filepath.Join(sup.cfg.Dir, "crashes"))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		status, err := sup.spawn(ctx, handle)
		sup.collect(handle)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			return fmt.Errorf("worker %v failed to start: %w", id, err)
		case status == 0:
			log.Logf(0, "worker %v finished", id)
			return nil
		default:
			log.Logf(0, "worker %v died with status %v (%v), respawning",
				id, status, classifyStatus(status))
		}
		if elapsed := time.Since(start); elapsed < sup.cfg.RestartDelay {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sup.cfg.RestartDelay - elapsed):
			}
		}
	}
}

// spawn runs one worker process to completion and returns its exit
// status. The returned error covers failures to run the binary at
// all, not nonzero exits.
func (sup *Supervisor) spawn(ctx context.Context, handle *Handle) (int, error) {
	bin, err := os.Executable()
	if err != nil {
		return 0, err
	}
	cmd := exec.CommandContext(ctx, bin, sup.cfg.Args...)
	cmd.Env = append(os.Environ(), HandleEnv+"="+handle.Encode())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	log.Logf(1, "spawning worker %v as %v", handle.ClientID, handle.ID)
	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return osutil.ProcessExitStatus(ee.ProcessState), nil
	}
	return 0, err
}

// collect folds the worker's left-behind snapshot into the
// supervisor's aggregate stats.
func (sup *Supervisor) collect(handle *Handle) {
	snap, err := snapshot.LoadFile(handle.SnapshotFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Logf(0, "worker %v left no usable snapshot: %v", handle.ClientID, err)
		}
		return
	}
	id := handle.ClientID
	sup.cfg.Tracker.UpdateExecutions(id, snap.State.Executions(), time.Now())
	sup.cfg.Tracker.UpdateCorpusSize(id, uint64(snap.Corpus.Count()))
	log.Logf(0, "worker %v: %v executions, corpus size %v, %v crashes, %v timeouts",
		id, snap.State.Executions(), snap.Corpus.Count(),
		snap.State.Crashes(), snap.State.Timeouts())
}

// classifyStatus names the death of a worker from its exit status,
// assuming the 128+signal convention used by the crash handlers.
func classifyStatus(status int) string {
	if status < 128 {
		return "error"
	}
	switch unix.Signal(status - 128) {
	case unix.SIGABRT:
		return "timeout or abort"
	case unix.SIGSEGV, unix.SIGBUS, unix.SIGILL, unix.SIGFPE, unix.SIGPIPE:
		return "crash"
	case unix.SIGKILL:
		return "killed"
	}
	return "signal"
}
