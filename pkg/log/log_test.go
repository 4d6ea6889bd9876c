// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaching(t *testing.T) {
	prependTime = false
	EnableLogCaching(4)
	Logf(0, "a")
	Logf(0, "b %d", 1)
	assert.Equal(t, "a\nb 1\n", CachedLogOutput())
	// Over-capacity drops the oldest lines.
	for i := 0; i < 5; i++ {
		Logf(1, "line %v", i)
	}
	assert.Equal(t, "line 1\nline 2\nline 3\nline 4\n", CachedLogOutput())
	// High-verbosity output is not cached.
	Logf(2, "invisible")
	assert.Equal(t, "line 1\nline 2\nline 3\nline 4\n", CachedLogOutput())
}
