// Copyright 2014 The go-ethereum Authors
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

import (
	"github.com/karalabe/triekv/bitpath"
	"github.com/karalabe/triekv/felt"
)

// Iterator walks every leaf of a trie in ascending key order. Because keys
// are fixed-length bit strings traversed most-significant-bit first, a
// pre-order walk that always visits a Binary's left (bit 0) child before
// its right (bit 1) child produces leaves in exactly that order, with no
// separate sort step.
//
// An Iterator must not outlive mutations made to the trie it was created
// from; callers needing a stable view should iterate a freshly-committed
// trie or one backed by a snapshot reader.
type Iterator struct {
	trie  *Trie
	stack []iterFrame

	Key   []byte
	Value felt.Felt
	Err   error
}

type iterFrame struct {
	node node
	path bitpath.Path
}

// NewIterator returns an iterator positioned before the first leaf of t.
func NewIterator(t *Trie) *Iterator {
	it := &Iterator{trie: t}
	if t.root != nil {
		it.stack = append(it.stack, iterFrame{node: t.root, path: bitpath.Empty})
	}
	return it
}

// Next advances to the next leaf in key order, returning false once
// exhausted or on error (check Err to distinguish the two).
func (it *Iterator) Next() bool {
	for len(it.stack) > 0 {
		f := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]

		rn, err := it.trie.resolve(f.node)
		if err != nil {
			it.Err = err
			return false
		}
		switch x := rn.(type) {
		case nil:
			continue
		case *leafNode:
			key := make([]byte, len(f.path.Packed()))
			copy(key, f.path.Packed())
			it.Key = key
			it.Value = x.Value
			return true
		case *edgeNode:
			it.stack = append(it.stack, iterFrame{node: x.Child, path: bitpath.Concat(f.path, x.Path)})
		case *binaryNode:
			it.stack = append(it.stack, iterFrame{node: x.Right, path: f.path.WithBit(1)})
			it.stack = append(it.stack, iterFrame{node: x.Left, path: f.path.WithBit(0)})
		default:
			panic("trie: iterator hit unexpected node type")
		}
	}
	return false
}
