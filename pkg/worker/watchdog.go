// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package worker

import (
	"context"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fuzzkit/fuzzkit/pkg/executor"
	"github.com/fuzzkit/fuzzkit/pkg/log"
)

// Watchdog raises the timeout probe when a single target execution
// overstays runTimeout. The probe is SIGUSR2, which the executor's
// handlers turn into a timeout abort if the run is still in flight.
func Watchdog(ctx context.Context, runTimeout time.Duration) {
	go func() {
		ticker := time.NewTicker(runTimeout / 4)
		defer ticker.Stop()
		var lastGen uint64
		var stuckSince time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			gen, running := executor.Token()
			if !running || gen != lastGen {
				lastGen = gen
				stuckSince = time.Now()
				continue
			}
			if time.Since(stuckSince) < runTimeout {
				continue
			}
			log.Logf(0, "watchdog: run %v exceeded %v, raising timeout probe", gen, runTimeout)
			unix.Kill(os.Getpid(), unix.SIGUSR2)
			return
		}
	}()
}
