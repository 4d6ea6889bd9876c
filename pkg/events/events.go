// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package events defines how fuzzing workers report progress and
// findings to whoever supervises them.
package events

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/hash"
	"github.com/fuzzkit/fuzzkit/pkg/log"
	"github.com/fuzzkit/fuzzkit/pkg/osutil"
	"github.com/fuzzkit/fuzzkit/pkg/stats"
)

// Manager receives events from fuzzing clients. Implementations must
// be safe for concurrent use; crash handlers call into the manager
// from a signal handling goroutine.
type Manager interface {
	// Crash reports the input that killed the target. It is called
	// before the process dies, so the implementation must not assume
	// it will ever be called again.
	Crash(clientID int, in *input.Input) error
	// Timeout reports the input that hung the target.
	Timeout(clientID int, in *input.Input) error
	// NewTestcase reports an input accepted into the corpus.
	NewTestcase(clientID int, in *input.Input) error
	// UpdateStats reports the client's current execution total.
	UpdateStats(clientID int, executions uint64) error
}

// LocalManager is the single-process Manager: findings go to a crash
// directory on disk and counters go to a stats.Tracker.
type LocalManager struct {
	mu       sync.Mutex
	crashdir string
	tracker  *stats.Tracker
	lastLog  time.Time
}

func NewLocalManager(crashdir string, tracker *stats.Tracker) (*LocalManager, error) {
	if err := osutil.MkdirAll(crashdir); err != nil {
		return nil, err
	}
	return &LocalManager{
		crashdir: crashdir,
		tracker:  tracker,
		lastLog:  time.Now(),
	}, nil
}

func (mgr *LocalManager) Crash(clientID int, in *input.Input) error {
	mgr.tracker.AddCrash(clientID)
	return mgr.saveFinding("crash", clientID, in)
}

func (mgr *LocalManager) Timeout(clientID int, in *input.Input) error {
	mgr.tracker.AddTimeout(clientID)
	return mgr.saveFinding("timeout", clientID, in)
}

func (mgr *LocalManager) NewTestcase(clientID int, in *input.Input) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.tracker.UpdateCorpusSize(clientID, mgr.tracker.Client(clientID).CorpusSize+1)
	return nil
}

func (mgr *LocalManager) UpdateStats(clientID int, executions uint64) error {
	now := time.Now()
	mgr.tracker.UpdateExecutions(clientID, executions, now)
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if now.Sub(mgr.lastLog) >= 10*time.Second {
		mgr.lastLog = now
		log.Logf(0, "%v", mgr.tracker.Summary(now))
	}
	return nil
}

func (mgr *LocalManager) saveFinding(kind string, clientID int, in *input.Input) error {
	sig := hash.Hash(in.Bytes())
	file := filepath.Join(mgr.crashdir, kind+"-"+sig.String())
	if osutil.IsExist(file) {
		return nil
	}
	log.Logf(0, "client %v: %v, input saved to %v", clientID, kind, file)
	return osutil.WriteFile(file, in.Bytes())
}

// CrashDirInputs loads previously saved findings, oldest first.
func CrashDirInputs(crashdir string) ([]*input.Input, error) {
	files, err := filepath.Glob(filepath.Join(crashdir, "*"))
	if err != nil {
		return nil, err
	}
	var inputs []*input.Input
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input.New(data))
	}
	return inputs, nil
}
