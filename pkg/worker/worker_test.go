// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/executor"
	"github.com/fuzzkit/fuzzkit/pkg/osutil"
	"github.com/fuzzkit/fuzzkit/pkg/snapshot"
)

func TestHandleRoundTrip(t *testing.T) {
	h := NewHandle(3, "/tmp/worker-3.snap", "/tmp/crashes")
	decoded, err := DecodeHandle(h.Encode())
	assert.NoError(t, err)
	assert.Equal(t, h, decoded)

	_, err = DecodeHandle("not json")
	assert.Error(t, err)
}

func TestCurrentHandle(t *testing.T) {
	t.Setenv(HandleEnv, "")
	h, err := CurrentHandle()
	assert.NoError(t, err)
	assert.Nil(t, h)

	want := NewHandle(1, "snap", "crashes")
	t.Setenv(HandleEnv, want.Encode())
	h, err = CurrentHandle()
	assert.NoError(t, err)
	assert.Equal(t, want, h)

	t.Setenv(HandleEnv, "{broken")
	_, err = CurrentHandle()
	assert.Error(t, err)
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "worker-0.snap")

	snap, resumed, err := restore(file)
	assert.NoError(t, err)
	assert.False(t, resumed)
	assert.Zero(t, snap.Corpus.Count())

	snap.Corpus.Add(input.FromString("kept"), nil)
	assert.NoError(t, snapshot.SaveFile(file, snap))

	snap, resumed, err = restore(file)
	assert.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, 1, snap.Corpus.Count())
}

func TestRestoreCorrupted(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "worker-0.snap")
	assert.NoError(t, osutil.WriteFile(file, []byte("garbage")))

	snap, resumed, err := restore(file)
	assert.NoError(t, err)
	assert.False(t, resumed)
	assert.Zero(t, snap.Corpus.Count())
	assert.True(t, osutil.IsExist(file+".corrupted"))
}

func TestRunPreservesSession(t *testing.T) {
	dir := t.TempDir()
	handle := NewHandle(0, filepath.Join(dir, "worker-0.snap"), filepath.Join(dir, "crashes"))
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := Run(ctx, RunConfig{
		Handle: handle,
		Harness: func(env *executor.Env, data []byte) executor.ExitKind {
			if len(data) > 0 {
				env.Cover()[int(data[0])]++
			}
			return executor.ExitNormal
		},
		MaxInputSize: 64,
		RandSeed:     1,
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	snap, resumed, rerr := restore(handle.SnapshotFile)
	assert.NoError(t, rerr)
	assert.True(t, resumed)
	assert.NotZero(t, snap.State.Executions())
	assert.NotZero(t, snap.Corpus.Count())
}

func TestWatchdogIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Watchdog(ctx, 40*time.Millisecond)
	// No execution in flight, so the probe must never fire.
	time.Sleep(200 * time.Millisecond)
	assert.False(t, executor.Running())
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, "error", classifyStatus(1))
	assert.Equal(t, "crash", classifyStatus(128+int(unix.SIGSEGV)))
	assert.Equal(t, "timeout or abort", classifyStatus(128+int(unix.SIGABRT)))
	assert.Equal(t, "killed", classifyStatus(128+int(unix.SIGKILL)))
	assert.Equal(t, "signal", classifyStatus(128+int(unix.SIGUSR1)))
}

func TestNewSupervisorCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	sup, err := NewSupervisor(SupervisorConfig{Dir: dir})
	assert.NoError(t, err)
	assert.NotNil(t, sup)
	fi, err := os.Stat(dir)
	assert.NoError(t, err)
	assert.True(t, fi.IsDir())
}
