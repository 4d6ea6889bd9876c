// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package snapshot

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fuzzkit/fuzzkit/input"
	"github.com/fuzzkit/fuzzkit/pkg/corpus"
	"github.com/fuzzkit/fuzzkit/pkg/osutil"
	"github.com/fuzzkit/fuzzkit/pkg/signal"
)

// Snapshot blob layout: a fixed header (magic + format version)
// followed by length-prefixed records, one for the state counters and
// one per corpus item. Record payloads are flate-compressed.
const (
	snapMagic  = uint32(0xf12bead)
	recMagic   = uint32(0xfee1f12)
	curVersion = uint32(1)

	recState = uint32(1)
	recItem  = uint32(2)
)

var (
	// ErrIllegalState is returned when serialization is requested
	// before a snapshot context was attached.
	ErrIllegalState = errors.New("snapshot: no context attached")
	ErrBadMagic     = errors.New("snapshot: bad magic")
	ErrBadVersion   = errors.New("snapshot: unsupported version")
	ErrCorrupted    = errors.New("snapshot: corrupted blob")
)

// Serialize encodes the whole fuzzing state into a restorable blob.
// Callable from the crash handling goroutine.
func Serialize(ctx *Context) ([]byte, error) {
	if ctx == nil || ctx.State == nil || ctx.Corpus == nil {
		return nil, ErrIllegalState
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, snapMagic)
	binary.Write(buf, binary.LittleEndian, curVersion)
	serializeRecord(buf, recState, serializeState(ctx.State))
	for _, item := range ctx.Corpus.Items() {
		serializeRecord(buf, recItem, serializeItem(item))
	}
	return buf.Bytes(), nil
}

// Deserialize reconstructs a snapshot context from a blob produced by
// Serialize, possibly by an older binary of a compatible version.
func Deserialize(data []byte) (*Context, error) {
	r := bytes.NewReader(data)
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupted)
	}
	if magic != snapMagic {
		return nil, fmt.Errorf("%w: 0x%x", ErrBadMagic, magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupted)
	}
	if version == 0 || version > curVersion {
		return nil, fmt.Errorf("%w: %v", ErrBadVersion, version)
	}
	ctx := NewContext()
	sawState := false
	for {
		kind, val, err := deserializeRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch kind {
		case recState:
			if err := deserializeState(ctx.State, val); err != nil {
				return nil, err
			}
			sawState = true
		case recItem:
			if err := deserializeItem(ctx.Corpus, val); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: unknown record kind %v", ErrCorrupted, kind)
		}
	}
	if !sawState {
		return nil, fmt.Errorf("%w: no state record", ErrCorrupted)
	}
	return ctx, nil
}

func SaveFile(file string, ctx *Context) error {
	data, err := Serialize(ctx)
	if err != nil {
		return err
	}
	return osutil.WriteFileAtomically(file, data)
}

func LoadFile(file string) (*Context, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Deserialize(data)
}

func serializeRecord(w *bytes.Buffer, kind uint32, val []byte) {
	binary.Write(w, binary.LittleEndian, recMagic)
	binary.Write(w, binary.LittleEndian, kind)
	compressed := new(bytes.Buffer)
	fw, err := flate.NewWriter(compressed, flate.BestCompression)
	if err != nil {
		panic(err)
	}
	fw.Write(val)
	fw.Close()
	binary.Write(w, binary.LittleEndian, uint32(compressed.Len()))
	w.Write(compressed.Bytes())
}

func deserializeRecord(r *bytes.Reader) (kind uint32, val []byte, err error) {
	var magic uint32
	if err = binary.Read(r, binary.LittleEndian, &magic); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("%w: truncated record", ErrCorrupted)
	}
	if magic != recMagic {
		return 0, nil, fmt.Errorf("%w: bad record header 0x%x", ErrCorrupted, magic)
	}
	var valLen uint32
	if err = binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return 0, nil, fmt.Errorf("%w: truncated record", ErrCorrupted)
	}
	if err = binary.Read(r, binary.LittleEndian, &valLen); err != nil {
		return 0, nil, fmt.Errorf("%w: truncated record", ErrCorrupted)
	}
	fr := flate.NewReader(&io.LimitedReader{R: r, N: int64(valLen)})
	defer fr.Close()
	if val, err = io.ReadAll(fr); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return kind, val, nil
}

func serializeState(st *State) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, st.Executions())
	binary.Write(buf, binary.LittleEndian, st.Crashes())
	binary.Write(buf, binary.LittleEndian, st.Timeouts())
	writeSignal(buf, st.MaxSignal())
	return buf.Bytes()
}

func deserializeState(st *State, data []byte) error {
	r := bytes.NewReader(data)
	var execs, crashes, timeouts uint64
	if err := readAll(r, &execs, &crashes, &timeouts); err != nil {
		return err
	}
	sig, err := readSignal(r)
	if err != nil {
		return err
	}
	st.executions.Store(execs)
	st.crashes.Store(crashes)
	st.timeouts.Store(timeouts)
	st.mu.Lock()
	st.maxSignal = sig
	st.mu.Unlock()
	return nil
}

func serializeItem(item *corpus.Item) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(item.Input.Len()))
	buf.Write(item.Input.Bytes())
	binary.Write(buf, binary.LittleEndian, uint32(len(item.Mutations)))
	for _, name := range item.Mutations {
		binary.Write(buf, binary.LittleEndian, uint32(len(name)))
		buf.WriteString(name)
	}
	writeSignal(buf, item.Signal)
	return buf.Bytes()
}

func deserializeItem(to *corpus.Corpus, data []byte) error {
	r := bytes.NewReader(data)
	inputData, err := readBlob(r)
	if err != nil {
		return err
	}
	var count uint32
	if err := readAll(r, &count); err != nil {
		return err
	}
	if int(count) > len(data) {
		return fmt.Errorf("%w: implausible mutation count %v", ErrCorrupted, count)
	}
	var mutations []string
	for i := uint32(0); i < count; i++ {
		name, err := readBlob(r)
		if err != nil {
			return err
		}
		mutations = append(mutations, string(name))
	}
	sig, err := readSignal(r)
	if err != nil {
		return err
	}
	item, _ := to.Add(input.New(inputData), sig)
	item.SetMutationLog(mutations)
	return nil
}

func writeSignal(w *bytes.Buffer, sig signal.Signal) {
	ser := sig.Serialize()
	binary.Write(w, binary.LittleEndian, uint32(len(ser.Elems)))
	binary.Write(w, binary.LittleEndian, ser.Elems)
	binary.Write(w, binary.LittleEndian, ser.Prios)
}

func readSignal(r *bytes.Reader) (signal.Signal, error) {
	var count uint32
	if err := readAll(r, &count); err != nil {
		return nil, err
	}
	if int64(count)*5 > int64(r.Len()) {
		return nil, fmt.Errorf("%w: implausible signal size %v", ErrCorrupted, count)
	}
	ser := signal.Serial{
		Elems: make([]uint32, count),
		Prios: make([]int8, count),
	}
	if err := readAll(r, ser.Elems, ser.Prios); err != nil {
		return nil, err
	}
	return ser.Deserialize(), nil
}

func readBlob(r *bytes.Reader) ([]byte, error) {
	var size uint32
	if err := readAll(r, &size); err != nil {
		return nil, err
	}
	if int64(size) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: implausible blob size %v", ErrCorrupted, size)
	}
	blob := make([]byte, size)
	if _, err := io.ReadFull(r, blob); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return blob, nil
}

func readAll(r *bytes.Reader, fields ...any) error {
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
	}
	return nil
}
