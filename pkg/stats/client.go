// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stats tracks per-client and aggregate fuzzing progress counters.
package stats

import (
	"time"
)

// Execution rate is recomputed over windows of this length.
const timeWindow = 5 * time.Second

// Client holds the monotonically growing counters reported by one
// fuzzing worker. Execution rate is windowed: the last finished
// window's rate is cached and served until a whole second of new data
// accumulates.
type Client struct {
	Executions uint64
	CorpusSize uint64
	Crashes    uint64
	Timeouts   uint64

	lastWindowTime  time.Time
	lastWindowExecs uint64
	lastExecsPerSec uint64
}

func NewClient(now time.Time) *Client {
	return &Client{lastWindowTime: now}
}

// UpdateExecutions records the worker's new total execution count.
// The new total takes effect immediately; the cached rate is rolled
// over once the current window is older than timeWindow.
func (c *Client) UpdateExecutions(execs uint64, now time.Time) {
	c.Executions = execs
	if now.Sub(c.lastWindowTime) > timeWindow {
		c.ExecsPerSec(now)
		c.lastWindowTime = now
		c.lastWindowExecs = c.Executions
	}
}

// ExecsPerSec returns the current execution rate estimate, rounded
// down to whole executions per second. A client that executed nothing
// has rate 0. Within the first second of a window the previous cached
// rate is returned unchanged.
func (c *Client) ExecsPerSec(now time.Time) uint64 {
	if c.Executions == 0 {
		return 0
	}
	elapsed := uint64(now.Sub(c.lastWindowTime).Seconds())
	if elapsed == 0 {
		return c.lastExecsPerSec
	}
	c.lastExecsPerSec = (c.Executions - c.lastWindowExecs) / elapsed
	return c.lastExecsPerSec
}
