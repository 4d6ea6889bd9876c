// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// fzk-worker is the fuzzing engine binary. Started plainly it acts as
// the supervisor: it spawns worker copies of itself, serves the web
// interface and keeps the workers alive across crashes. Started with
// a worker handle in the environment (which only the supervisor does)
// it fuzzes the target in-process.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/config"
	"github.com/fuzzkit/fuzzkit/pkg/executor"
	"github.com/fuzzkit/fuzzkit/pkg/log"
	"github.com/fuzzkit/fuzzkit/pkg/monitor"
	"github.com/fuzzkit/fuzzkit/pkg/osutil"
	"github.com/fuzzkit/fuzzkit/pkg/stats"
	"github.com/fuzzkit/fuzzkit/pkg/worker"
)

type Config struct {
	// Workdir holds snapshots and crashing inputs.
	Workdir string `json:"workdir"`
	// Procs is the number of parallel fuzzing workers.
	Procs int `json:"procs"`
	// HTTP is the address of the web interface, empty disables it.
	HTTP string `json:"http"`
	// SeedDir is a directory of initial inputs, may be empty.
	SeedDir string `json:"seed_dir"`
	// Dict is an AFL-style token dictionary file, may be empty.
	Dict string `json:"dict"`
	// MaxInputSize bounds input growth during mutation.
	MaxInputSize int `json:"max_input_size"`
	// RunTimeoutSec bounds a single target execution.
	RunTimeoutSec int `json:"run_timeout_sec"`
}

func defaultConfig() *Config {
	return &Config{
		Workdir:       "workdir",
		Procs:         1,
		HTTP:          "localhost:28080",
		MaxInputSize:  4 << 10,
		RunTimeoutSec: 10,
	}
}

func main() {
	flagConfig := flag.String("config", "", "configuration file (json)")
	flag.Parse()
	log.EnableLogCaching(1000)

	cfg := defaultConfig()
	if *flagConfig != "" {
		if err := config.LoadFile(*flagConfig, cfg); err != nil {
			log.Fatal(err)
		}
	}

	handle, err := worker.CurrentHandle()
	if err != nil {
		log.Fatal(err)
	}
	if handle != nil {
		runWorker(cfg, handle)
		return
	}
	runSupervisor(cfg)
}

func runSupervisor(cfg *Config) {
	tracker := stats.NewTracker()
	if cfg.HTTP != "" {
		mon := monitor.New(tracker)
		go func() {
			if err := mon.Serve(cfg.HTTP); err != nil {
				log.Fatal(err)
			}
		}()
	}
	sup, err := worker.NewSupervisor(worker.SupervisorConfig{
		Workers: cfg.Procs,
		Dir:     cfg.Workdir,
		Args:    os.Args[1:],
		Tracker: tracker,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	shutdown := make(chan struct{})
	osutil.HandleInterrupts(shutdown)
	go func() {
		<-shutdown
		cancel()
	}()
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
	log.Logf(0, "supervisor shut down")
}

func runWorker(cfg *Config, handle *worker.Handle) {
	var dict [][]byte
	if cfg.Dict != "" {
		var err error
		if dict, err = input.ParseDictFile(cfg.Dict); err != nil {
			log.Fatal(err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	shutdown := make(chan struct{})
	osutil.HandleInterrupts(shutdown)
	go func() {
		<-shutdown
		cancel()
	}()
	err := worker.Run(ctx, worker.RunConfig{
		Handle:       handle,
		Harness:      demoHarness,
		RunTimeout:   time.Duration(cfg.RunTimeoutSec) * time.Second,
		MaxInputSize: cfg.MaxInputSize,
		Dict:         dict,
		SeedDir:      cfg.SeedDir,
	})
	if err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

// demoHarness is the built-in example target: it rewards matching a
// short magic prefix with coverage and dies for real once the whole
// prefix is found. Replace it with a real target to fuzz something
// useful.
func demoHarness(env *executor.Env, data []byte) executor.ExitKind {
	env.Cover()[0]++
	if len(data) > 0 && data[0] == 'a' {
		env.Cover()[1]++
		if len(data) > 1 && data[1] == 'b' {
			env.Cover()[2]++
			if len(data) > 2 && data[2] == 'c' {
				unix.Kill(os.Getpid(), unix.SIGSEGV)
				// Block until the handler takes the process down,
				// so the run is still published when it does.
				select {}
			}
		}
	}
	return executor.ExitNormal
}
