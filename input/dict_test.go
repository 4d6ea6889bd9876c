// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package input

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDict(t *testing.T) {
	const data = `
# header comment
kw1="GET "
kw2="\x00\x01\xff"
"bare token"
escaped="quote \" and backslash \\"
`
	tokens, err := ParseDict(strings.NewReader(data))
	assert.NoError(t, err)
	assert.Equal(t, [][]byte{
		[]byte("GET "),
		{0x00, 0x01, 0xff},
		[]byte("bare token"),
		[]byte(`quote " and backslash \`),
	}, tokens)
}

func TestParseDictErrors(t *testing.T) {
	for _, data := range []string{
		`kw=unquoted`,
		`kw="`,
		`kw=""`,
		`kw="bad \q escape"`,
		`kw="truncated \x1"`,
		`kw="trailing \"`,
	} {
		_, err := ParseDict(strings.NewReader(data))
		assert.Error(t, err, "input: %v", data)
	}
}
