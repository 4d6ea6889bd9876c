// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package input

// Generate creates a fresh random input of up to maxLen printable
// bytes. Used to bootstrap fuzzing when no seed corpus is available.
func Generate(ctx *Ctx, maxLen int) *Input {
	if maxLen > ctx.MaxSize {
		maxLen = ctx.MaxSize
	}
	n := ctx.r.Intn(maxLen) + 1
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(' ' + ctx.r.Intn('~'-' '+1))
	}
	return New(data)
}
