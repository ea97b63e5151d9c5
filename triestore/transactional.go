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

package triestore

import (
	"github.com/karalabe/triekv/bitpath"
	"github.com/karalabe/triekv/felt"
	"github.com/karalabe/triekv/trie"
	"github.com/karalabe/triekv/triekv"
)

// GetTransactionalState opens an isolated, read-consistent view of
// identifier as it stood immediately after commitID: a snapshot of the
// backend pinned at this call, with a fresh, empty overlay. Writes made
// through the returned handle never touch the trunk until Merge.
//
// It returns (nil, nil) — the "None" of §6's Option<Trie> — when commitID
// has no historical root pointer retained for it, which happens once it
// ages past MaxSavedSnapshots*SnapshotInterval commits, and also when
// commitID was never a SnapshotInterval-aligned commit in the first place;
// only aligned commit ids are guaranteed an exact transactional state.
func (s *Store) GetTransactionalState(identifier triekv.ID, commitID triekv.CommitID) (*Handle, error) {
	snap, err := s.backend.NewSnapshot()
	if err != nil {
		return nil, err
	}
	rootBlob, ok, err := getRaw(snap, historicalRootKey(identifier, commitID))
	if err != nil {
		snap.Release()
		return nil, err
	}
	if !ok {
		snap.Release()
		return nil, nil
	}
	root, err := felt.FromBytes(rootBlob)
	if err != nil {
		snap.Release()
		return nil, err
	}

	h := &Handle{
		store:      s,
		identifier: identifier,
		reader:     snap,
		snap:       snap,
		overlay:    newOverlay(),
		baseRoot:   root,
		hasCommit:  true,
		lastID:     commitID,
		trunk:      false,
	}
	nr := &nodeReader{backend: snap, identifier: identifier, cache: s.cache}
	if root.IsZero() {
		h.trie = trie.New(identifier, nr, s.hasher)
	} else {
		h.trie = trie.NewFromRoot(identifier, nr, s.hasher, root, 0)
	}
	return h, nil
}

// Merge folds a transactional state's accumulated writes into the trunk as
// a new commit, per §4.J: defined only when every key the transactional
// state touched still holds, on the trunk right now, the value it held at
// the transactional state's base commit. th is released (its snapshot
// freed) whether the merge succeeds or fails.
func (s *Store) Merge(th *Handle, commitID triekv.CommitID) error {
	defer th.Close()
	if th.trunk {
		return ErrTransactionalCommit
	}

	trunk, err := s.Trunk(th.identifier)
	if err != nil {
		return err
	}

	var conflicts []bitpath.Path
	for _, c := range th.overlay.changes {
		cur, hasCur, err := getFlat(trunk.reader, trunk.identifier, flatKey(trunk.identifier, c.path))
		if err != nil {
			return err
		}
		if hasCur != c.hadPrior || (hasCur && !cur.Equal(c.prior)) {
			conflicts = append(conflicts, c.path)
		}
	}
	if len(conflicts) > 0 {
		return &triekv.MergeConflictError{Identifier: th.identifier, Keys: conflicts}
	}

	for _, c := range th.overlay.changes {
		key := c.path.Packed()
		if c.deleted {
			if err := trunk.Remove(key); err != nil {
				return err
			}
			continue
		}
		if err := trunk.Insert(key, c.newValue); err != nil {
			return err
		}
	}
	return trunk.Commit(commitID)
}
