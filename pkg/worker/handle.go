// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package worker contains both halves of the supervisor/worker split:
// the supervisor spawns worker processes and resumes them from their
// snapshots when the fuzzed target kills them.
package worker

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// HandleEnv is the environment variable through which the supervisor
// passes the worker its identity. Its presence is what tells a binary
// it was started as a worker rather than as the supervisor.
const HandleEnv = "FZK_WORKER_HANDLE"

// Handle is the worker's identity and rendezvous data, serialized
// into the environment across the process boundary.
type Handle struct {
	ID           uuid.UUID `json:"id"`
	ClientID     int       `json:"client_id"`
	SnapshotFile string    `json:"snapshot_file"`
	CrashDir     string    `json:"crash_dir"`
}

func NewHandle(clientID int, snapshotFile, crashDir string) *Handle {
	return &Handle{
		ID:           uuid.New(),
		ClientID:     clientID,
		SnapshotFile: snapshotFile,
		CrashDir:     crashDir,
	}
}

func (h *Handle) Encode() string {
	data, err := json.Marshal(h)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal worker handle: %v", err))
	}
	return string(data)
}

func DecodeHandle(s string) (*Handle, error) {
	h := new(Handle)
	if err := json.Unmarshal([]byte(s), h); err != nil {
		return nil, fmt.Errorf("malformed worker handle: %w", err)
	}
	return h, nil
}

// CurrentHandle decodes the handle from the environment, if any.
func CurrentHandle() (*Handle, error) {
	s := os.Getenv(HandleEnv)
	if s == "" {
		return nil, nil
	}
	return DecodeHandle(s)
}
