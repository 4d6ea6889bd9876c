// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// fzk-snapshot inspects and archives worker snapshots.
//
//	fzk-snapshot dump worker-0.snap           print snapshot contents
//	fzk-snapshot export worker-0.snap dir     write corpus inputs to dir
//	fzk-snapshot pack worker-0.snap out.xz    make an xz archive
//	fzk-snapshot unpack out.xz worker-0.snap  restore from an archive
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/fuzzkit/fuzzkit/pkg/log"
	"github.com/fuzzkit/fuzzkit/pkg/osutil"
	"github.com/fuzzkit/fuzzkit/pkg/snapshot"
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 2 {
		usage()
	}
	var err error
	switch args[0] {
	case "dump":
		err = dump(args[1])
	case "export":
		if len(args) < 3 {
			usage()
		}
		err = export(args[1], args[2])
	case "pack":
		if len(args) < 3 {
			usage()
		}
		err = pack(args[1], args[2])
	case "unpack":
		if len(args) < 3 {
			usage()
		}
		err = unpack(args[1], args[2])
	default:
		usage()
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: fzk-snapshot dump|export|pack|unpack args...\n")
	os.Exit(1)
}

func dump(file string) error {
	snap, err := snapshot.LoadFile(file)
	if err != nil {
		return err
	}
	fmt.Printf("executions: %v\n", snap.State.Executions())
	fmt.Printf("crashes:    %v\n", snap.State.Crashes())
	fmt.Printf("timeouts:   %v\n", snap.State.Timeouts())
	fmt.Printf("max signal: %v\n", snap.State.MaxSignal().Len())
	items := snap.Corpus.Items()
	fmt.Printf("corpus:     %v inputs\n", len(items))
	for i, item := range items {
		trail := ""
		if len(item.Mutations) != 0 {
			trail = " via " + strings.Join(item.Mutations, ",")
		}
		fmt.Printf("  #%v %v: %v bytes, %v signal%v\n",
			i, item.Sig.String()[:16], item.Input.Len(), item.Signal.Len(), trail)
	}
	return nil
}

func export(file, dir string) error {
	snap, err := snapshot.LoadFile(file)
	if err != nil {
		return err
	}
	if err := osutil.MkdirAll(dir); err != nil {
		return err
	}
	for _, item := range snap.Corpus.Items() {
		name := filepath.Join(dir, item.Sig.String())
		if err := osutil.WriteFile(name, item.Input.Bytes()); err != nil {
			return err
		}
	}
	fmt.Printf("exported %v inputs to %v\n", snap.Corpus.Count(), dir)
	return nil
}

func pack(file, out string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	// Validate before archiving, a corrupted archive helps nobody.
	if _, err := snapshot.Deserialize(data); err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	xw, err := xz.NewWriter(buf)
	if err != nil {
		return err
	}
	if _, err := xw.Write(data); err != nil {
		return err
	}
	if err := xw.Close(); err != nil {
		return err
	}
	return osutil.WriteFile(out, buf.Bytes())
}

func unpack(archive, out string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	xr, err := xz.NewReader(f)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(xr)
	if err != nil {
		return err
	}
	if _, err := snapshot.Deserialize(data); err != nil {
		return err
	}
	return osutil.WriteFileAtomically(out, data)
}
