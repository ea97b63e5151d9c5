// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package triekv

import (
	"errors"
	"fmt"

	"github.com/karalabe/triekv/bitpath"
)

// ErrInconsistentKeyLength is returned when a write addresses an
// identifier with a key whose bit length differs from the length already
// established for that identifier by an earlier read or write.
var ErrInconsistentKeyLength = errors.New("triekv: inconsistent key length for identifier")

// ErrUncommittedChanges is returned by GetProof when a node on the
// requested key's path has mutations that are not yet committed.
var ErrUncommittedChanges = errors.New("triekv: handle has uncommitted changes")

// ErrCorruption is returned when a persisted node fails to decode, or a
// child hash referenced by a decoded node is missing from the node store.
// It mirrors MissingNodeError's habit of carrying enough context to
// retrieve or diagnose the missing node.
type ErrCorruption struct {
	Identifier ID
	NodeHash   [32]byte
	Path       bitpath.Path
	err        error
}

// Unwrap returns the concrete decode/lookup error, for further analysis.
func (e *ErrCorruption) Unwrap() error {
	return e.err
}

func (e *ErrCorruption) Error() string {
	return fmt.Sprintf("triekv: corrupted trie node %x (identifier %x) (path %s): %v", e.NodeHash, []byte(e.Identifier), e.Path, e.err)
}

// NewErrCorruption wraps a decode or lookup failure with the context
// needed to locate the offending node.
func NewErrCorruption(identifier ID, nodeHash [32]byte, path bitpath.Path, cause error) *ErrCorruption {
	return &ErrCorruption{Identifier: identifier, NodeHash: nodeHash, Path: path, err: cause}
}

// ErrBackend wraps a failure surfaced verbatim by the underlying KV
// backend. The engine never retries; callers decide.
type ErrBackend struct {
	Op  string
	err error
}

func (e *ErrBackend) Unwrap() error {
	return e.err
}

func (e *ErrBackend) Error() string {
	return fmt.Sprintf("triekv: backend error during %s: %v", e.Op, e.err)
}

// NewErrBackend wraps a backend-originated error with the operation name
// that triggered it.
func NewErrBackend(op string, cause error) *ErrBackend {
	return &ErrBackend{Op: op, err: cause}
}

// ErrInconsistentCommitID is returned when commit is called with an id
// that is not strictly greater than the identifier's last committed id,
// or when revert_to is given an id that is unknown or older than
// retention allows.
type ErrInconsistentCommitID struct {
	Identifier ID
	Requested  CommitID
	LastKnown  CommitID
}

func (e *ErrInconsistentCommitID) Error() string {
	return fmt.Sprintf("triekv: inconsistent commit id %d for identifier %x (last known %d)", e.Requested, []byte(e.Identifier), e.LastKnown)
}

// MergeConflictError is returned by merge when the transactional state
// and the trunk both touched at least one of the same keys since the
// state's base commit. Keys is the full set of conflicting keys, not just
// the first one found.
type MergeConflictError struct {
	Identifier ID
	Keys       []bitpath.Path
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("triekv: merge conflict on identifier %x over %d key(s)", []byte(e.Identifier), len(e.Keys))
}
