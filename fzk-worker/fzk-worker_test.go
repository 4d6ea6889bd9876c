// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package main

import (
	"os"
	osexec "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/events"
	"github.com/fuzzkit/fuzzkit/pkg/executor"
	"github.com/fuzzkit/fuzzkit/pkg/osutil"
	"github.com/fuzzkit/fuzzkit/pkg/snapshot"
	"github.com/fuzzkit/fuzzkit/pkg/stats"
)

func TestDemoHarnessGradient(t *testing.T) {
	snap := snapshot.NewContext()
	exec := executor.New(executor.Config{Snapshot: snap}, demoHarness)
	_, sig, err := exec.Run(input.FromString("xyz"))
	assert.NoError(t, err)
	assert.Equal(t, 1, sig.Len())

	_, sig, err = exec.Run(input.FromString("ab!"))
	assert.NoError(t, err)
	assert.Equal(t, 3, sig.Len())
}

const demoCrashDirEnv = "FZK_TEST_DEMO_DIR"

// Subprocess half of TestDemoHarnessCrashAttribution.
func TestDemoVictim(t *testing.T) {
	dir := os.Getenv(demoCrashDirEnv)
	if dir == "" {
		t.Skip("helper for TestDemoHarnessCrashAttribution")
	}
	assert.NoError(t, executor.InstallHandlers())
	snap := snapshot.NewContext()
	mgr, err := events.NewLocalManager(filepath.Join(dir, "crashes"), stats.NewTracker())
	assert.NoError(t, err)
	exec := executor.New(executor.Config{Snapshot: snap, Events: mgr}, demoHarness)
	exec.Run(input.FromString("abc"))
	t.Fatal("unreachable: demoHarness was supposed to kill us")
}

// The demo target must still be registered as executing when its
// self-inflicted fault lands, so the crash is attributed to the
// triggering input rather than reported out of band.
func TestDemoHarnessCrashAttribution(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns subprocesses")
	}
	dir := t.TempDir()
	cmd := osexec.Command(os.Args[0], "-test.run=TestDemoVictim$")
	cmd.Env = append(os.Environ(), demoCrashDirEnv+"="+dir)
	err := cmd.Run()
	ee, ok := err.(*osexec.ExitError)
	if !ok {
		t.Fatalf("demo victim did not die: %v", err)
	}
	assert.Equal(t, 128+int(unix.SIGSEGV), osutil.ProcessExitStatus(ee.ProcessState))

	saved, err := events.CrashDirInputs(filepath.Join(dir, "crashes"))
	assert.NoError(t, err)
	assert.Len(t, saved, 1)
	assert.Equal(t, "abc", string(saved[0].Bytes()))
}
