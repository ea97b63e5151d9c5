// Copyright 2016 The go-ethereum Authors
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
	"github.com/karalabe/triekv/trie/trienode"
)

// hash collapses a dirty subtree into its hashed form in a single
// post-order pass, recording every freshly hashed node in nodes. Clean
// subtrees (already hashed, possibly still unresolved hashNode leaves) are
// returned untouched and cost only the cache() check.
func (t *Trie) hash(n node, nodes *trienode.NodeSet) (felt.Felt, node) {
	if hash, dirty := n.cache(); !dirty {
		return hash, n
	}
	switch n := n.(type) {
	case *binaryNode:
		leftHash, leftCached := t.hash(n.Left, nodes)
		rightHash, rightCached := t.hash(n.Right, nodes)
		hash := t.hasher.HashPair(leftHash, rightHash)
		nodes.AddNode(hash, encodeNode(&binaryNode{Left: hashNode(leftHash), Right: hashNode(rightHash)}))
		return hash, &binaryNode{Left: leftCached, Right: rightCached, flags: nodeFlag{hash: hash}}
	case *edgeNode:
		childHash, childCached := t.hash(n.Child, nodes)
		hash := t.hasher.HashEdge(childHash, pathToFelt(n.Path), n.Path.Len())
		nodes.AddNode(hash, encodeNode(&edgeNode{Path: n.Path, Child: hashNode(childHash)}))
		return hash, &edgeNode{Path: n.Path, Child: childCached, flags: nodeFlag{hash: hash}}
	case *leafNode:
		nodes.AddNode(n.Value, encodeNode(&leafNode{Value: n.Value}))
		return n.Value, &leafNode{Value: n.Value, flags: nodeFlag{hash: n.Value}}
	default:
		panic("trie: hash of unexpected node type")
	}
}

// pathToFelt encodes an edge's path as the felt hash_edge expects: the path
// bits placed, most significant bit first, in the low-order len(path) bits
// of a 32-byte big-endian integer, zero-extended above. This mirrors the
// bit-exact convention used by every known production implementation of
// this trie layout, so that hash_edge(child, path) + len reproduces the
// same root hash identity cross-implementation for a given hasher.
func pathToFelt(p bitpath.Path) felt.Felt {
	shifted := shiftRightBits(p.Packed(), trailingPad(p.Len()))
	var buf [felt.Size]byte
	copy(buf[felt.Size-len(shifted):], shifted)
	return felt.MustFromBytes(buf[:])
}

// trailingPad returns the number of zero padding bits bitpath.Path leaves
// in the final byte of its packed form for a path of the given length.
func trailingPad(length int) int {
	return bitpath.ByteLen(length)*8 - length
}

// shiftRightBits shifts a big-endian byte sequence right by n bits
// (0 <= n < 8), returning a new slice of the same length.
func shiftRightBits(data []byte, n int) []byte {
	out := make([]byte, len(data))
	if n == 0 {
		copy(out, data)
		return out
	}
	var carry byte
	for i := 0; i < len(data); i++ {
		cur := data[i]
		out[i] = (cur >> uint(n)) | carry
		carry = cur << uint(8-n)
	}
	return out
}
