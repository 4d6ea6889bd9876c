// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromCover(t *testing.T) {
	cover := make([]byte, 16)
	cover[1] = 1
	cover[3] = 2
	cover[7] = 100
	cover[8] = 255
	s := FromCover(cover)
	assert.Equal(t, Signal{1: 0, 3: 1, 7: 6, 8: 7}, s)
	assert.Nil(t, FromCover(make([]byte, 16)))
}

func TestDiffMerge(t *testing.T) {
	base := FromRaw([]uint32{10, 20, 30}, 1)
	assert.Nil(t, base.Diff(nil))
	assert.Nil(t, base.Diff(FromRaw([]uint32{10, 20}, 1)))

	// New element plus an improved bucket on a known one.
	diff := base.Diff(Signal{20: 5, 40: 0})
	assert.Equal(t, Signal{20: 5, 40: 0}, diff)

	base.Merge(diff)
	assert.Equal(t, Signal{10: 1, 20: 5, 30: 1, 40: 0}, base)
	assert.Nil(t, base.Diff(diff))
}

func TestMergeIntoNil(t *testing.T) {
	var s Signal
	s.Merge(FromRaw([]uint32{1, 2}, 3))
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Empty())
}

func TestSerial(t *testing.T) {
	s := FromCover([]byte{0, 1, 5, 0, 200})
	assert.Equal(t, s, s.Serialize().Deserialize())
	assert.Nil(t, Serial{}.Deserialize())
	assert.Panics(t, func() {
		Serial{Elems: []uint32{1}}.Deserialize()
	})
}
