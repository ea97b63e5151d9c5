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

// Package triestore ties the trie engine to a kvstore backend: a Key
// Builder partitioning the backend into columns, a Change Store overlay
// buffering uncommitted flat-DB writes, a Commit Manager that hashes and
// persists a batch atomically while emitting a trie log, and a
// transactional-state mechanism for isolated reads and conflict-checked
// merges.
package triestore

import (
	"github.com/VictoriaMetrics/fastcache"
	"github.com/karalabe/triekv/bitpath"
	"github.com/karalabe/triekv/felt"
	"github.com/karalabe/triekv/kvstore"
	"github.com/karalabe/triekv/trie"
	"github.com/karalabe/triekv/triehash"
	"github.com/karalabe/triekv/triekv"
)

// Store owns a backend, a hasher and the retention policy shared by every
// identifier and handle it opens. It holds no per-identifier state of its
// own: the trunk's root pointer and last commit id live in the META
// column, not in a Store field, so a process may open and drop Store
// values freely without losing anything that was actually committed.
type Store struct {
	backend kvstore.KeyValueStore
	hasher  triehash.Hasher
	cache   *fastcache.Cache
	config  Config
}

// NewStore returns a Store backed by backend. cacheBytes sizes the shared
// decoded-node cache fronting every handle's reads; pass 0 to disable it.
func NewStore(backend kvstore.KeyValueStore, hasher triehash.Hasher, config Config, cacheBytes int) *Store {
	var cache *fastcache.Cache
	if cacheBytes > 0 {
		cache = fastcache.New(cacheBytes)
	}
	return &Store{backend: backend, hasher: hasher, cache: cache, config: config}
}

// Handle is a single-threaded view onto one identifier's trie: either the
// trunk (backed directly by the Store's backend) or a transactional state
// (backed by a pinned snapshot). Its overlay buffers every write until
// Commit folds them into the backend atomically.
type Handle struct {
	store      *Store
	identifier triekv.ID
	reader     kvstore.KeyValueReader
	snap       kvstore.Snapshot

	trie    *trie.Trie
	overlay *overlay

	baseRoot  felt.Felt
	hasCommit bool
	lastID    triekv.CommitID

	trunk bool
}

// Trunk opens the mutable trunk handle for identifier, resuming from
// whatever was last committed. Concurrent trunk handles on the same
// identifier are the caller's responsibility to avoid (§5: the trunk is
// exclusively mutated by the process owning it).
func (s *Store) Trunk(identifier triekv.ID) (*Handle, error) {
	return s.open(identifier, s.backend, nil, true)
}

func (s *Store) open(identifier triekv.ID, reader kvstore.KeyValueReader, snap kvstore.Snapshot, trunk bool) (*Handle, error) {
	h := &Handle{
		store:      s,
		identifier: identifier,
		reader:     reader,
		snap:       snap,
		overlay:    newOverlay(),
		trunk:      trunk,
	}

	rootBlob, hasRoot, err := getRaw(reader, rootMetaKey(identifier))
	if err != nil {
		return nil, err
	}
	if hasRoot {
		root, err := felt.FromBytes(rootBlob)
		if err != nil {
			return nil, err
		}
		h.baseRoot = root
	}

	idBlob, hasID, err := getRaw(reader, lastCommitKey(identifier))
	if err != nil {
		return nil, err
	}
	if hasID {
		h.lastID = triekv.CommitIDFromBytes(idBlob)
		h.hasCommit = true
	}

	nr := &nodeReader{backend: reader, identifier: identifier, cache: s.cache}
	if hasRoot && !h.baseRoot.IsZero() {
		h.trie = trie.NewFromRoot(identifier, nr, s.hasher, h.baseRoot, 0)
	} else {
		h.trie = trie.New(identifier, nr, s.hasher)
	}
	return h, nil
}

// Close releases resources held by h. It is a no-op for the trunk; a
// transactional handle's pinned snapshot is released, and any unmerged
// overlay is simply discarded.
func (h *Handle) Close() {
	if h.snap != nil {
		h.snap.Release()
		h.snap = nil
	}
}

// Get consults the overlay first and falls through to the persisted
// flat-DB entry, never walking the trie directly.
func (h *Handle) Get(key []byte) (felt.Felt, bool, error) {
	path := bitpath.FromKey(key)
	if c, ok := h.overlay.lookup(path); ok {
		if c.deleted {
			return felt.Felt{}, false, nil
		}
		return c.newValue, true, nil
	}
	return getFlat(h.reader, h.identifier, flatKey(h.identifier, path))
}

// Contains reports whether key has a value, with the same overlay-then-
// flat-DB semantics as Get.
func (h *Handle) Contains(key []byte) (bool, error) {
	_, ok, err := h.Get(key)
	return ok, err
}

// Insert is a semantic upsert: inserting the zero felt is equivalent to
// Remove.
func (h *Handle) Insert(key []byte, value felt.Felt) error {
	path := bitpath.FromKey(key)
	prior, hadPrior, err := getFlat(h.reader, h.identifier, flatKey(h.identifier, path))
	if err != nil {
		return err
	}
	if err := h.trie.Insert(key, value); err != nil {
		return err
	}
	c := h.overlay.touch(path, hadPrior, prior)
	c.deleted = value.IsZero()
	c.newValue = value
	return nil
}

// Remove is idempotent: removing an absent key is a no-op, not an error.
func (h *Handle) Remove(key []byte) error {
	path := bitpath.FromKey(key)
	prior, hadPrior, err := getFlat(h.reader, h.identifier, flatKey(h.identifier, path))
	if err != nil {
		return err
	}
	if err := h.trie.Remove(key); err != nil {
		return err
	}
	c := h.overlay.touch(path, hadPrior, prior)
	c.deleted = true
	c.newValue = felt.Felt{}
	return nil
}

// RootHash returns the root hash reflecting every write made through h so
// far, computing any still-pending hashes on demand.
func (h *Handle) RootHash() felt.Felt {
	return h.trie.RootHash()
}

// GetProof returns the ordered proof steps from the root to key.
func (h *Handle) GetProof(key []byte) (trie.Proof, error) {
	return h.trie.GetProof(key)
}

// Preload warms the node cache for keys ahead of a write burst.
func (h *Handle) Preload(keys [][]byte) error {
	return h.trie.Preload(keys)
}

// VerifyProof is the pure verification function from §4.E's public
// contract, re-exported here so callers that only imported triestore
// still have it at hand.
func VerifyProof(rootHash felt.Felt, key []byte, value felt.Felt, proof trie.Proof, hasher triehash.Hasher) trie.ProofResult {
	return trie.VerifyProof(rootHash, key, value, proof, hasher)
}
