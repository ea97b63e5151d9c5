// Copyright 2022 The go-ethereum Authors
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

package trie

import "github.com/karalabe/triekv/felt"

// tracer tracks which already-persisted nodes stop being part of the tree
// during a batch of mutations. Because the node store is content-addressed
// by hash, any structural rewrite that discards a previously clean node
// (one whose cache() reports dirty=false) makes that hash unreachable from
// the new root; tracer collects those hashes so the commit pass can fold
// them into the trie log's reachable-to-unreachable set.
//
// tracer is not safe for concurrent use.
type tracer struct {
	deleted map[felt.Felt]struct{}
}

func newTracer() tracer {
	return tracer{deleted: make(map[felt.Felt]struct{})}
}

// onReplace records that the clean node n (if it is one) has been dropped
// from the tree by a rewrite. Dirty nodes are never-yet-persisted and are
// ignored: there is nothing on disk to reclaim.
func (t *tracer) onReplace(n node) {
	if n == nil {
		return
	}
	if hash, dirty := n.cache(); !dirty {
		t.deleted[hash] = struct{}{}
	}
}

// deletedHashes returns the set of hashes accumulated since the tracer was
// created or last reset.
func (t *tracer) deletedHashes() []felt.Felt {
	if len(t.deleted) == 0 {
		return nil
	}
	out := make([]felt.Felt, 0, len(t.deleted))
	for h := range t.deleted {
		out = append(out, h)
	}
	return out
}

func (t *tracer) reset() {
	t.deleted = make(map[felt.Felt]struct{})
}

func (t tracer) copy() tracer {
	cp := make(map[felt.Felt]struct{}, len(t.deleted))
	for h := range t.deleted {
		cp[h] = struct{}{}
	}
	return tracer{deleted: cp}
}
