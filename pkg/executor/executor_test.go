// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package executor

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/events"
	"github.com/fuzzkit/fuzzkit/pkg/osutil"
	"github.com/fuzzkit/fuzzkit/pkg/snapshot"
	"github.com/fuzzkit/fuzzkit/pkg/stats"
)

func TestRunCollectsSignal(t *testing.T) {
	snap := snapshot.NewContext()
	exec := New(Config{Snapshot: snap}, func(env *Env, data []byte) ExitKind {
		for _, b := range data {
			env.Cover()[int(b)%len(env.Cover())]++
		}
		return ExitNormal
	})
	kind, sig, err := exec.Run(input.FromString("ab"))
	assert.NoError(t, err)
	assert.Equal(t, ExitNormal, kind)
	assert.Equal(t, 2, sig.Len())
	assert.Equal(t, uint64(1), snap.State.Executions())
	assert.False(t, Running())

	// The cover map is reset between runs.
	kind, sig, err = exec.Run(input.FromString("a"))
	assert.NoError(t, err)
	assert.Equal(t, ExitNormal, kind)
	assert.Equal(t, 1, sig.Len())
	assert.Equal(t, uint64(2), snap.State.Executions())
}

// A run that cannot start fails with an error instead of reaching
// the harness, and counts no execution.
func TestRunErrors(t *testing.T) {
	snap := snapshot.NewContext()
	exec := New(Config{Snapshot: snap}, func(env *Env, data []byte) ExitKind {
		return ExitNormal
	})
	_, _, err := exec.Run(nil)
	assert.Error(t, err)

	exec = New(Config{Snapshot: snap}, nil)
	_, _, err = exec.Run(input.FromString("x"))
	assert.Error(t, err)

	assert.Zero(t, snap.State.Executions())
	assert.False(t, Running())
}

func TestRunPublishesInput(t *testing.T) {
	snap := snapshot.NewContext()
	exec := New(Config{Snapshot: snap}, func(env *Env, data []byte) ExitKind {
		assert.True(t, Running())
		rc := current.Load()
		assert.Equal(t, "published", string(rc.input.Bytes()))
		return ExitNormal
	})
	exec.Run(input.FromString("published"))
	assert.Nil(t, current.Load())
}

func TestInstallHandlersOnce(t *testing.T) {
	installTestHandlers(t)
	assert.Error(t, InstallHandlers())
}

// A timeout probe delivered between executions must be ignored.
func TestTimeoutProbeWhileIdle(t *testing.T) {
	installTestHandlers(t)
	assert.False(t, Running())
	assert.NoError(t, unix.Kill(os.Getpid(), unix.SIGUSR2))
	time.Sleep(200 * time.Millisecond)
	// Still alive, and the probe armed nothing.
	assert.False(t, Running())
}

// installTestHandlers arms the process-global handlers, tolerating
// that another test got there first.
func installTestHandlers(t *testing.T) {
	if err := InstallHandlers(); err != nil {
		assert.True(t, handlersInstalled.Load())
	}
}

const (
	crashDirEnv  = "FZK_TEST_CRASH_DIR"
	crashKindEnv = "FZK_TEST_CRASH_KIND"
)

// The subprocess half of the crash tests: fuzz a target that takes
// the process down, relying on the handlers to preserve the session.
func TestCrashVictim(t *testing.T) {
	dir := os.Getenv(crashDirEnv)
	if dir == "" {
		t.Skip("helper for TestCrashExitCode/TestTimeoutAbort")
	}
	assert.NoError(t, InstallHandlers())
	snap := snapshot.NewContext()
	snap.Corpus.Add(input.FromString("seed"), nil)
	mgr, err := events.NewLocalManager(filepath.Join(dir, "crashes"), stats.NewTracker())
	assert.NoError(t, err)

	timeout := os.Getenv(crashKindEnv) == "timeout"
	exec := New(Config{
		Snapshot: snap,
		Events:   mgr,
		Preserve: func(kind ExitKind, blob []byte) {
			osutil.WriteFile(filepath.Join(dir, "snapshot.db"), blob)
		},
	}, func(env *Env, data []byte) ExitKind {
		if timeout {
			go func() {
				time.Sleep(100 * time.Millisecond)
				unix.Kill(os.Getpid(), unix.SIGUSR2)
			}()
		} else {
			unix.Kill(os.Getpid(), unix.SIGSEGV)
		}
		select {} // never returns
	})
	exec.Run(input.FromString("boom"))
	t.Fatal("unreachable: the target was supposed to kill us")
}

func runCrashVictim(t *testing.T, dir, kind string) int {
	cmd := exec.Command(os.Args[0], "-test.run=TestCrashVictim$")
	cmd.Env = append(os.Environ(), crashDirEnv+"="+dir, crashKindEnv+"="+kind)
	err := cmd.Run()
	if err == nil {
		t.Fatal("crash victim exited cleanly")
	}
	ee, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("failed to run crash victim: %v", err)
	}
	return osutil.ProcessExitStatus(ee.ProcessState)
}

func checkPreserved(t *testing.T, dir string) *snapshot.Context {
	restored, err := snapshot.LoadFile(filepath.Join(dir, "snapshot.db"))
	assert.NoError(t, err)
	assert.Equal(t, 1, restored.Corpus.Count())
	assert.Equal(t, uint64(1), restored.State.Executions())
	return restored
}

func TestCrashExitCode(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns subprocesses")
	}
	dir := t.TempDir()
	status := runCrashVictim(t, dir, "crash")
	assert.Equal(t, 128+int(unix.SIGSEGV), status)

	restored := checkPreserved(t, dir)
	assert.Equal(t, uint64(1), restored.State.Crashes())

	saved, err := events.CrashDirInputs(filepath.Join(dir, "crashes"))
	assert.NoError(t, err)
	assert.Len(t, saved, 1)
	assert.Equal(t, "boom", string(saved[0].Bytes()))
}

func TestTimeoutAbort(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns subprocesses")
	}
	dir := t.TempDir()
	status := runCrashVictim(t, dir, "timeout")
	assert.Equal(t, 128+int(unix.SIGABRT), status)

	restored := checkPreserved(t, dir)
	assert.Equal(t, uint64(1), restored.State.Timeouts())

	saved, err := events.CrashDirInputs(filepath.Join(dir, "crashes"))
	assert.NoError(t, err)
	assert.Len(t, saved, 1)
}
