// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseDictFile reads an AFL-style token dictionary. Each line is
// either a comment (#), blank, or an entry of the form
// name="value", where value may contain \\, \" and \xNN escapes.
// The name part is optional.
func ParseDictFile(file string) ([][]byte, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tokens, err := ParseDict(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", file, err)
	}
	return tokens, nil
}

func ParseDict(r io.Reader) ([][]byte, error) {
	var tokens [][]byte
	s := bufio.NewScanner(r)
	for ln := 1; s.Scan(); ln++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if eq := strings.Index(line, "="); eq != -1 {
			line = strings.TrimSpace(line[eq+1:])
		}
		if len(line) < 2 || line[0] != '"' || line[len(line)-1] != '"' {
			return nil, fmt.Errorf("line %v: token is not quoted", ln)
		}
		tok, err := unescapeToken(line[1 : len(line)-1])
		if err != nil {
			return nil, fmt.Errorf("line %v: %w", ln, err)
		}
		if len(tok) == 0 {
			return nil, fmt.Errorf("line %v: empty token", ln)
		}
		tokens = append(tokens, tok)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func unescapeToken(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			out = append(out, s[i])
			continue
		}
		i++
		if i == len(s) {
			return nil, fmt.Errorf("trailing backslash")
		}
		switch s[i] {
		case '\\', '"':
			out = append(out, s[i])
		case 'x':
			if i+2 >= len(s) {
				return nil, fmt.Errorf("truncated \\x escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("bad \\x escape %q", s[i+1:i+3])
			}
			out = append(out, byte(v))
			i += 2
		default:
			return nil, fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return out, nil
}
