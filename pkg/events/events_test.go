// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package events

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/stats"
)

func TestLocalManagerFindings(t *testing.T) {
	dir := t.TempDir()
	crashdir := filepath.Join(dir, "crashes")
	tracker := stats.NewTracker()
	mgr, err := NewLocalManager(crashdir, tracker)
	assert.NoError(t, err)

	in := input.FromString("crashing input")
	assert.NoError(t, mgr.Crash(0, in))
	assert.NoError(t, mgr.Crash(0, in)) // duplicate, same file
	assert.NoError(t, mgr.Timeout(1, input.FromString("hanging input")))

	assert.Equal(t, uint64(2), tracker.Crashes())
	assert.Equal(t, uint64(1), tracker.Timeouts())

	saved, err := CrashDirInputs(crashdir)
	assert.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestLocalManagerStats(t *testing.T) {
	tracker := stats.NewTracker()
	mgr, err := NewLocalManager(t.TempDir(), tracker)
	assert.NoError(t, err)

	assert.NoError(t, mgr.UpdateStats(0, 100))
	assert.NoError(t, mgr.UpdateStats(2, 50))
	assert.Equal(t, uint64(150), tracker.TotalExecutions())

	assert.NoError(t, mgr.NewTestcase(0, input.FromString("tc")))
	assert.NoError(t, mgr.NewTestcase(0, input.FromString("tc2")))
	assert.Equal(t, uint64(2), tracker.CorpusSize())
}
