// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to the standard log package
// with some extensions:
//   - verbosity levels
//   - global verbosity setting shared by all packages
//   - ability to cache recent output in memory
//
// The cache is used by the crash reporting path to attach the most recent
// fuzzer activity to a crash report.
package log

import (
	"flag"
	"fmt"
	golog "log"
	"strings"
	"sync"
	"time"
)

var (
	flagV       = flag.Int("vv", 0, "verbosity")
	mu          sync.Mutex
	cache       []string
	cachePos    int
	cacheSize   int
	prependTime = true // for testing
)

// EnableLogCaching enables in-memory caching of up to maxLines
// of recent log output. Cached output can later be queried with
// CachedLogOutput.
func EnableLogCaching(maxLines int) {
	mu.Lock()
	defer mu.Unlock()
	if cache != nil {
		Fatalf("log caching is already enabled")
	}
	if maxLines < 1 {
		panic("invalid maxLines")
	}
	cache = make([]string, maxLines)
}

// CachedLogOutput returns the cached lines in chronological order.
func CachedLogOutput() string {
	mu.Lock()
	defer mu.Unlock()
	b := new(strings.Builder)
	for i := range cache {
		line := cache[(cachePos+i)%len(cache)]
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func Logf(v int, msg string, args ...interface{}) {
	mu.Lock()
	doLog := v <= *flagV
	if cache != nil && v <= 1 {
		timeStr := ""
		if prependTime {
			timeStr = time.Now().Format("2006/01/02 15:04:05 ")
		}
		cache[cachePos] = fmt.Sprintf(timeStr+msg, args...)
		cachePos++
		if cachePos == len(cache) {
			cachePos = 0
		}
		cacheSize++
	}
	mu.Unlock()

	if doLog {
		golog.Printf(msg, args...)
	}
}

func Fatal(err error) {
	golog.Fatal(err)
}

func Fatalf(msg string, args ...interface{}) {
	golog.Fatalf(msg, args...)
}

// VerboseWriter is an io.Writer that forwards everything
// to Logf with the given verbosity level.
type VerboseWriter int

func (w VerboseWriter) Write(data []byte) (int, error) {
	Logf(int(w), "%s", data)
	return len(data), nil
}
