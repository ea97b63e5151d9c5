// Copyright 2023 The go-ethereum Authors
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
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>

// Package trienode holds the output of a trie's lazy-hashing pass: the set
// of newly-hashed nodes to persist and the set of previously-persisted
// nodes that fell out of the tree, ready to be folded into a commit's
// write-batch and trie-log record.
package trienode

import "github.com/karalabe/triekv/felt"

// Node wraps the encoded blob of a persisted trie node together with its
// hash, independent of any particular trie implementation.
type Node struct {
	Hash felt.Felt
	Blob []byte
}

// NodeSet collects every node a single commit's lazy-hashing pass produced
// (Updates) and every node hash that became unreachable as a result
// (Deletes). A hash present in both is resolved in favor of Updates: a node
// that was rewritten back to its original content within the same batch
// must not be deleted.
type NodeSet struct {
	Updates map[felt.Felt]*Node
	Deletes map[felt.Felt]struct{}
}

// NewNodeSet returns an empty set.
func NewNodeSet() *NodeSet {
	return &NodeSet{
		Updates: make(map[felt.Felt]*Node),
		Deletes: make(map[felt.Felt]struct{}),
	}
}

// AddNode records a freshly hashed node.
func (s *NodeSet) AddNode(hash felt.Felt, blob []byte) {
	s.Updates[hash] = &Node{Hash: hash, Blob: blob}
	delete(s.Deletes, hash)
}

// AddDeleted records a hash that fell out of the tree, unless that same
// hash was also (re)written within this set.
func (s *NodeSet) AddDeleted(hash felt.Felt) {
	if _, ok := s.Updates[hash]; ok {
		return
	}
	s.Deletes[hash] = struct{}{}
}

// Merge folds other into s, preferring Updates over Deletes for any hash
// present in both.
func (s *NodeSet) Merge(other *NodeSet) {
	for h, n := range other.Updates {
		s.Updates[h] = n
		delete(s.Deletes, h)
	}
	for h := range other.Deletes {
		if _, ok := s.Updates[h]; !ok {
			s.Deletes[h] = struct{}{}
		}
	}
}

// Size reports the number of updated and deleted nodes in the set.
func (s *NodeSet) Size() (updates, deletes int) {
	return len(s.Updates), len(s.Deletes)
}

// Empty reports whether the set carries no changes at all.
func (s *NodeSet) Empty() bool {
	return len(s.Updates) == 0 && len(s.Deletes) == 0
}
