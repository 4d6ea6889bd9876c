// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package executor

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/fuzzkit/fuzzkit/pkg/log"
)

// fatalSignals are the ways an in-process target typically takes the
// worker down. SIGUSR2 is not fatal by itself, it is the watchdog's
// timeout probe.
var fatalSignals = []os.Signal{
	unix.SIGSEGV,
	unix.SIGBUS,
	unix.SIGABRT,
	unix.SIGILL,
	unix.SIGFPE,
	unix.SIGPIPE,
}

var handlersInstalled atomic.Bool

// InstallHandlers arms the crash and timeout signal handlers for the
// lifetime of the process. A second call is an error: handlers hold
// process-global state and cannot be rearmed.
func InstallHandlers() error {
	if !handlersInstalled.CompareAndSwap(false, true) {
		return fmt.Errorf("executor: signal handlers already installed")
	}
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, fatalSignals...)
	signal.Notify(ch, unix.SIGUSR2)
	go handleSignals(ch)
	return nil
}

func handleSignals(ch chan os.Signal) {
	for sig := range ch {
		if sig == unix.SIGUSR2 {
			handleTimeout()
			continue
		}
		handleFatal(sig)
	}
}

// handleFatal preserves the session and dies with the conventional
// 128+signal exit code, so the supervisor can classify the death.
func handleFatal(sig os.Signal) {
	if rc := current.Load(); rc != nil {
		log.Logf(0, "target crashed with %v on %v byte input", sig, rc.input.Len())
		rc.exec.reportCrash(rc.input)
	} else {
		log.Logf(0, "got fatal signal %v outside of target execution", sig)
	}
	os.Exit(128 + int(sig.(unix.Signal)))
}

// handleTimeout handles the watchdog's SIGUSR2 probe. If no execution
// is in flight the probe raced with run completion and is ignored;
// otherwise the target is hung and the worker aborts itself after
// preserving the session.
func handleTimeout() {
	rc := current.Load()
	if rc == nil {
		log.Logf(1, "timeout probe while idle, ignoring")
		return
	}
	log.Logf(0, "target hung on %v byte input, aborting", rc.input.Len())
	rc.exec.reportTimeout(rc.input)
	signal.Reset(unix.SIGABRT)
	unix.Kill(os.Getpid(), unix.SIGABRT)
}
