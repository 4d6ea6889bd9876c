// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package osutil contains OS-related helpers shared by the fuzzer binaries.
package osutil

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultFilePerm = 0640
	DefaultDirPerm  = 0750
)

func WriteFile(filename string, data []byte) error {
	return os.WriteFile(filename, data, DefaultFilePerm)
}

func MkdirAll(dir string) error {
	return os.MkdirAll(dir, DefaultDirPerm)
}

// WriteFileAtomically writes data to a temp file next to filename
// and renames it over filename, so that readers never observe
// a partially-written file.
func WriteFileAtomically(filename string, data []byte) error {
	tmp := filename + ".tmp"
	if err := WriteFile(tmp, data); err != nil {
		return err
	}
	return os.Rename(tmp, filename)
}

// IsExist reports whether the file name exists.
func IsExist(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// Abs is like filepath.Abs, but panics on failures
// (it can fail only if the current dir was removed from under us).
func Abs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		panic(fmt.Sprintf("filepath.Abs failed: %v", err))
	}
	return abs
}
