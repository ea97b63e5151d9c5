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
	"errors"

	"github.com/karalabe/triekv/bitpath"
	"github.com/karalabe/triekv/log"
	"github.com/karalabe/triekv/trie"
	"github.com/karalabe/triekv/triekv"
)

// ErrTransactionalCommit is returned by Commit on a transactional handle.
// A transactional state cannot be committed to disk as the trunk; its
// writes only ever reach the backend via Merge.
var ErrTransactionalCommit = errors.New("triestore: transactional handle cannot commit directly, use Merge")

// Commit performs the five strictly-ordered steps of §4.I: assert id is
// fresh, finish lazy hashing, build the inverse log, assemble one atomic
// batch and submit it. On failure the overlay is left untouched so the
// caller may retry or discard it.
func (h *Handle) Commit(id triekv.CommitID) error {
	if !h.trunk {
		return ErrTransactionalCommit
	}
	if h.hasCommit && id <= h.lastID {
		return &triekv.ErrInconsistentCommitID{Identifier: h.identifier, Requested: id, LastKnown: h.lastID}
	}

	// trie.Commit consumes the pending hashes and deletions; keep a copy so
	// a failed write leaves the handle as it was.
	pre := h.trie.Copy()
	committed := false
	defer func() {
		if !committed {
			h.trie = pre
		}
	}()
	newRoot, nodes := h.trie.Commit()

	rec := &trieLog{priorCommit: h.lastID, priorRoot: h.baseRoot}
	for _, c := range h.overlay.changes {
		rec.keys = append(rec.keys, keyDelta{path: c.path, hadPrior: c.hadPrior, prior: c.prior})
	}
	for hash := range nodes.Updates {
		rec.reachable = append(rec.reachable, hash)
	}
	for hash := range nodes.Deletes {
		rec.unreachable = append(rec.unreachable, hash)
	}

	batch := h.store.backend.NewBatch()
	for hash, n := range nodes.Updates {
		if err := batch.Put(nodeKey(h.identifier, hash), n.Blob); err != nil {
			return triekv.NewErrBackend("commit:put-node", err)
		}
	}
	for _, c := range h.overlay.changes {
		key := flatKey(h.identifier, c.path)
		if c.deleted {
			if err := batch.Delete(key); err != nil {
				return triekv.NewErrBackend("commit:delete-flat", err)
			}
			continue
		}
		v := c.newValue.Bytes()
		if err := batch.Put(key, v[:]); err != nil {
			return triekv.NewErrBackend("commit:put-flat", err)
		}
	}
	if err := batch.Put(logKey(h.identifier, id), encodeTrieLog(rec)); err != nil {
		return triekv.NewErrBackend("commit:put-log", err)
	}
	rootBytes := newRoot.Bytes()
	if err := batch.Put(rootMetaKey(h.identifier), rootBytes[:]); err != nil {
		return triekv.NewErrBackend("commit:put-root", err)
	}
	if err := batch.Put(lastCommitKey(h.identifier), id.Bytes()); err != nil {
		return triekv.NewErrBackend("commit:put-last-id", err)
	}
	if h.store.config.SnapshotInterval > 0 && uint64(id)%h.store.config.SnapshotInterval == 0 {
		if err := batch.Put(historicalRootKey(h.identifier, id), rootBytes[:]); err != nil {
			return triekv.NewErrBackend("commit:put-snapshot", err)
		}
	}

	if err := batch.Write(); err != nil {
		return triekv.NewErrBackend("commit:write-batch", err)
	}

	committed = true
	h.overlay.reset()
	h.baseRoot = newRoot
	h.lastID = id
	h.hasCommit = true

	h.store.compact(h.identifier, id)
	return nil
}

// RevertTo walks logs newer than id in reverse commit order, rewriting
// flat-DB entries to their prior values and the root pointer to the prior
// root, deleting each consumed log entry. It requires id to name a commit
// this identifier's chain actually passed through and still retains a log
// for; an id outside that window fails with ErrInconsistentCommitID.
func (h *Handle) RevertTo(id triekv.CommitID) error {
	if !h.trunk {
		return ErrTransactionalCommit
	}
	if !h.hasCommit || id > h.lastID {
		return &triekv.ErrInconsistentCommitID{Identifier: h.identifier, Requested: id, LastKnown: h.lastID}
	}

	// Walk the chain read-only first, so that an id the chain never lands
	// on, or whose log was compacted away, fails before anything changes.
	for cur := h.lastID; cur > id; {
		blob, ok, err := getRaw(h.store.backend, logKey(h.identifier, cur))
		if err != nil {
			return triekv.NewErrBackend("revert:get-log", err)
		}
		rec, err := decodeTrieLog(blob)
		if !ok || (err == nil && rec.priorCommit < id) {
			return &triekv.ErrInconsistentCommitID{Identifier: h.identifier, Requested: id, LastKnown: h.lastID}
		}
		if err != nil {
			return triekv.NewErrCorruption(h.identifier, [32]byte{}, bitpath.Empty, err)
		}
		cur = rec.priorCommit
	}

	cur := h.lastID
	for cur > id {
		blob, ok, err := getRaw(h.store.backend, logKey(h.identifier, cur))
		if err != nil {
			return triekv.NewErrBackend("revert:get-log", err)
		}
		if !ok {
			return &triekv.ErrInconsistentCommitID{Identifier: h.identifier, Requested: id, LastKnown: h.lastID}
		}
		rec, err := decodeTrieLog(blob)
		if err != nil {
			return triekv.NewErrCorruption(h.identifier, [32]byte{}, bitpath.Empty, err)
		}

		batch := h.store.backend.NewBatch()
		for _, kd := range rec.keys {
			key := flatKey(h.identifier, kd.path)
			if kd.hadPrior {
				v := kd.prior.Bytes()
				if err := batch.Put(key, v[:]); err != nil {
					return triekv.NewErrBackend("revert:put-flat", err)
				}
			} else {
				if err := batch.Delete(key); err != nil {
					return triekv.NewErrBackend("revert:delete-flat", err)
				}
			}
		}
		priorRoot := rec.priorRoot.Bytes()
		if err := batch.Put(rootMetaKey(h.identifier), priorRoot[:]); err != nil {
			return triekv.NewErrBackend("revert:put-root", err)
		}
		if err := batch.Put(lastCommitKey(h.identifier), rec.priorCommit.Bytes()); err != nil {
			return triekv.NewErrBackend("revert:put-last-id", err)
		}
		if err := batch.Delete(logKey(h.identifier, cur)); err != nil {
			return triekv.NewErrBackend("revert:delete-log", err)
		}
		if err := batch.Delete(historicalRootKey(h.identifier, cur)); err != nil {
			return triekv.NewErrBackend("revert:delete-snapshot", err)
		}
		if err := batch.Write(); err != nil {
			return triekv.NewErrBackend("revert:write-batch", err)
		}

		h.baseRoot = rec.priorRoot
		h.lastID = rec.priorCommit
		// CommitID 0 is reserved to mean "no commit yet"; a chain walk
		// that lands back on it has reverted past this identifier's very
		// first commit.
		h.hasCommit = rec.priorCommit != 0
		cur = rec.priorCommit
	}

	nr := &nodeReader{backend: h.store.backend, identifier: h.identifier, cache: h.store.cache}
	if h.baseRoot.IsZero() {
		h.trie = trie.New(h.identifier, nr, h.store.hasher)
	} else {
		h.trie = trie.NewFromRoot(h.identifier, nr, h.store.hasher, h.baseRoot, 0)
	}
	h.overlay.reset()
	return nil
}

// compact enforces MaxSavedTrieLogs and MaxSavedSnapshots after a
// successful commit. It runs best-effort outside the commit's atomic
// batch: losing a compaction pass to a crash only delays it, it never
// corrupts committed state, matching §3's framing of node garbage
// collection as a bounded-retention policy rather than a hot-path
// concern.
func (s *Store) compact(identifier triekv.ID, newID triekv.CommitID) {
	if s.config.MaxSavedTrieLogs > 0 {
		s.pruneTrieLog(identifier, newID)
	}
	if s.config.MaxSavedSnapshots > 0 && s.config.SnapshotInterval > 0 {
		s.pruneSnapshot(identifier, newID)
	}
}

// pruneTrieLog walks the priorCommit chain back MaxSavedTrieLogs hops
// from newID and deletes the log that just fell out of the retention
// window, along with the node hashes it recorded as unreachable (their
// bytes are now beyond any remaining revert horizon).
func (s *Store) pruneTrieLog(identifier triekv.ID, newID triekv.CommitID) {
	cur := newID
	for depth := uint64(0); depth <= s.config.MaxSavedTrieLogs; depth++ {
		blob, ok, err := getRaw(s.backend, logKey(identifier, cur))
		if err != nil || !ok {
			return
		}
		if depth == s.config.MaxSavedTrieLogs {
			rec, err := decodeTrieLog(blob)
			if err != nil {
				log.Warn("triestore: skipping corrupt trie log during compaction", "identifier", identifier, "commit", cur, "err", err)
				return
			}
			batch := s.backend.NewBatch()
			batch.Delete(logKey(identifier, cur))
			for _, hash := range rec.unreachable {
				batch.Delete(nodeKey(identifier, hash))
			}
			if err := batch.Write(); err != nil {
				log.Warn("triestore: trie log compaction failed", "identifier", identifier, "commit", cur, "err", err)
			}
			return
		}
		rec, err := decodeTrieLog(blob)
		if err != nil {
			return
		}
		cur = rec.priorCommit
	}
}

// pruneSnapshot deletes the historical root pointer that just fell out of
// MaxSavedSnapshots*SnapshotInterval commits of retention. It assumes
// commit ids are a roughly sequential integer counter, as §3's identifier
// lifecycle and every production use of this layout are; a caller using a
// sparser id scheme only loses snapshot pruning precision, not
// correctness of get/insert/remove/commit/revert.
func (s *Store) pruneSnapshot(identifier triekv.ID, newID triekv.CommitID) {
	window := s.config.MaxSavedSnapshots * s.config.SnapshotInterval
	if uint64(newID) <= window {
		return
	}
	old := triekv.CommitID(uint64(newID) - window)
	if uint64(old)%s.config.SnapshotInterval != 0 {
		return
	}
	if err := s.backend.Delete(historicalRootKey(identifier, old)); err != nil {
		log.Warn("triestore: snapshot compaction failed", "identifier", identifier, "commit", old, "err", err)
	}
}
