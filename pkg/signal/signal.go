// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package signal provides types for working with coverage feedback signal.
package signal

type (
	elemType uint32
	prioType int8
)

// Signal maps a coverage element (edge index in the shared cover map)
// to the priority of the best observation of that element. Priority is
// the AFL-style hit count bucket, so revisiting an edge more times
// counts as new signal.
type Signal map[elemType]prioType

type Serial struct {
	Elems []uint32
	Prios []int8
}

func (s Signal) Len() int {
	return len(s)
}

func (s Signal) Empty() bool {
	return len(s) == 0
}

func (s Signal) Copy() Signal {
	if s.Empty() {
		return nil
	}
	c := make(Signal, len(s))
	for e, p := range s {
		c[e] = p
	}
	return c
}

func FromRaw(raw []uint32, prio uint8) Signal {
	if len(raw) == 0 {
		return nil
	}
	s := make(Signal, len(raw))
	for _, e := range raw {
		s[elemType(e)] = prioType(prio)
	}
	return s
}

// FromCover converts one execution's hit-count map into signal,
// bucketing counts the way AFL does.
func FromCover(cover []byte) Signal {
	var s Signal
	for i, cnt := range cover {
		if cnt == 0 {
			continue
		}
		if s == nil {
			s = make(Signal)
		}
		s[elemType(i)] = bucket(cnt)
	}
	return s
}

func bucket(cnt byte) prioType {
	switch {
	case cnt == 1:
		return 0
	case cnt == 2:
		return 1
	case cnt == 3:
		return 2
	case cnt <= 7:
		return 3
	case cnt <= 15:
		return 4
	case cnt <= 31:
		return 5
	case cnt <= 127:
		return 6
	default:
		return 7
	}
}

func (s Signal) Serialize() Serial {
	if s.Empty() {
		return Serial{}
	}
	res := Serial{
		Elems: make([]uint32, len(s)),
		Prios: make([]int8, len(s)),
	}
	i := 0
	for e, p := range s {
		res.Elems[i] = uint32(e)
		res.Prios[i] = int8(p)
		i++
	}
	return res
}

func (ser Serial) Deserialize() Signal {
	if len(ser.Elems) != len(ser.Prios) {
		panic("corrupted Serial")
	}
	if len(ser.Elems) == 0 {
		return nil
	}
	s := make(Signal, len(ser.Elems))
	for i, e := range ser.Elems {
		s[elemType(e)] = prioType(ser.Prios[i])
	}
	return s
}

// Diff returns the elements of s1 that are new or improved relative to s.
func (s Signal) Diff(s1 Signal) Signal {
	if s1.Empty() {
		return nil
	}
	var res Signal
	for e, p1 := range s1 {
		if p, ok := s[e]; ok && p >= p1 {
			continue
		}
		if res == nil {
			res = make(Signal)
		}
		res[e] = p1
	}
	return res
}

func (s *Signal) Merge(s1 Signal) {
	if s1.Empty() {
		return
	}
	s0 := *s
	if s0 == nil {
		s0 = make(Signal, len(s1))
		*s = s0
	}
	for e, p1 := range s1 {
		if p, ok := s0[e]; !ok || p < p1 {
			s0[e] = p1
		}
	}
}
