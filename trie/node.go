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
	"encoding/binary"
	"fmt"

	"github.com/karalabe/triekv/bitpath"
	"github.com/karalabe/triekv/felt"
)

// node is the interface implemented by every in-memory trie node variant,
// plus the hashNode placeholder for a child that has been persisted but not
// yet loaded back into memory.
type node interface {
	cache() (felt.Felt, bool) // cached hash and whether it is stale (dirty)
	fstring(string) string
}

type (
	// binaryNode is an internal node with exactly two children, addressed by
	// direction rather than by key bit: the bit consumed to choose between
	// them is implicit in the parent's call site, never stored.
	binaryNode struct {
		Left, Right node
		flags       nodeFlag
	}

	// edgeNode is a path-compressed internal node. Child is either a
	// binaryNode or a leafNode; an edgeNode directly wrapping another
	// edgeNode is a canonical-form violation and is never constructed.
	edgeNode struct {
		Path  bitpath.Path
		Child node
		flags nodeFlag
	}

	// leafNode stores the felt value itself; per the hashing rule in §3 its
	// hash is the value, unreduced by any further mixing.
	leafNode struct {
		Value felt.Felt
		flags nodeFlag
	}

	// hashNode is a reference to a node that has been persisted under this
	// hash but not resolved into memory yet.
	hashNode felt.Felt
)

// nodeFlag carries the cached hash and dirty bit shared by the three
// concrete node kinds; hashNode needs none of this since it is by
// definition already hashed and persisted.
type nodeFlag struct {
	hash  felt.Felt
	dirty bool
}

func (n *binaryNode) cache() (felt.Felt, bool) { return n.flags.hash, n.flags.dirty }
func (n *edgeNode) cache() (felt.Felt, bool)   { return n.flags.hash, n.flags.dirty }
func (n *leafNode) cache() (felt.Felt, bool)   { return n.Value, n.flags.dirty }
func (n hashNode) cache() (felt.Felt, bool)    { return felt.Felt(n), false }

func (n *binaryNode) String() string { return n.fstring("") }
func (n *edgeNode) String() string   { return n.fstring("") }
func (n *leafNode) String() string   { return n.fstring("") }
func (n hashNode) String() string    { return n.fstring("") }

func (n *binaryNode) fstring(ind string) string {
	return fmt.Sprintf("binary{\n%s  L: %v\n%s  R: %v\n%s}", ind, n.Left.fstring(ind+"  "), ind, n.Right.fstring(ind+"  "), ind)
}
func (n *edgeNode) fstring(ind string) string {
	return fmt.Sprintf("edge{%s: %v}", n.Path, n.Child.fstring(ind+"  "))
}
func (n *leafNode) fstring(ind string) string {
	return fmt.Sprintf("leaf{%s}", n.Value)
}
func (n hashNode) fstring(ind string) string {
	return fmt.Sprintf("<%s>", felt.Felt(n))
}

// Node kind tags for the on-disk encoding (§4.D). A node is only ever
// encoded once every child has been collapsed to a hashNode, i.e. after the
// lazy-hashing pass has visited it.
const (
	kindBinary byte = 1
	kindEdge   byte = 2
	kindLeaf   byte = 3
)

// encodeNode serializes a fully-hashed node (all children already
// collapsed to hashNode) into its on-disk form. It panics if handed a node
// whose children are still dirty, which would be a bug in the caller
// rather than a recoverable condition.
func encodeNode(n node) []byte {
	switch n := n.(type) {
	case *binaryNode:
		left, leftDirty := n.Left.cache()
		right, rightDirty := n.Right.cache()
		if leftDirty || rightDirty {
			panic("trie: encode of binary node with unhashed child")
		}
		buf := make([]byte, 1+2*felt.Size)
		buf[0] = kindBinary
		lb, rb := left.Bytes(), right.Bytes()
		copy(buf[1:], lb[:])
		copy(buf[1+felt.Size:], rb[:])
		return buf
	case *edgeNode:
		child, childDirty := n.Child.cache()
		if childDirty {
			panic("trie: encode of edge node with unhashed child")
		}
		packed := n.Path.Packed()
		buf := make([]byte, 1+2+len(packed)+felt.Size)
		buf[0] = kindEdge
		binary.BigEndian.PutUint16(buf[1:3], uint16(n.Path.Len()))
		copy(buf[3:], packed)
		cb := child.Bytes()
		copy(buf[3+len(packed):], cb[:])
		return buf
	case *leafNode:
		buf := make([]byte, 1+felt.Size)
		buf[0] = kindLeaf
		vb := n.Value.Bytes()
		copy(buf[1:], vb[:])
		return buf
	default:
		panic(fmt.Sprintf("trie: cannot encode node of type %T", n))
	}
}

// decodeNode parses the on-disk encoding of a single node. The hash
// parameter is the key the blob was read under and is trusted, not
// recomputed, since the caller is expected to have already verified it (or
// to be reading from a backend that guarantees content-addressing).
func decodeNode(hash felt.Felt, buf []byte) (node, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("trie: empty node encoding")
	}
	switch buf[0] {
	case kindBinary:
		if len(buf) != 1+2*felt.Size {
			return nil, fmt.Errorf("trie: invalid binary node encoding length %d", len(buf))
		}
		left, err := felt.FromBytes(buf[1 : 1+felt.Size])
		if err != nil {
			return nil, fmt.Errorf("trie: decode binary left child: %w", err)
		}
		right, err := felt.FromBytes(buf[1+felt.Size:])
		if err != nil {
			return nil, fmt.Errorf("trie: decode binary right child: %w", err)
		}
		if left.IsZero() || right.IsZero() {
			return nil, fmt.Errorf("trie: binary node has a zero child hash")
		}
		return &binaryNode{Left: hashNode(left), Right: hashNode(right), flags: nodeFlag{hash: hash}}, nil
	case kindEdge:
		if len(buf) < 3 {
			return nil, fmt.Errorf("trie: truncated edge node encoding")
		}
		length := int(binary.BigEndian.Uint16(buf[1:3]))
		if length < 1 || length > bitpath.MaxLen {
			return nil, fmt.Errorf("trie: invalid edge path length %d", length)
		}
		need := bitpath.ByteLen(length)
		if len(buf) != 3+need+felt.Size {
			return nil, fmt.Errorf("trie: invalid edge node encoding length %d", len(buf))
		}
		path := bitpath.New(buf[3:3+need], length)
		child, err := felt.FromBytes(buf[3+need:])
		if err != nil {
			return nil, fmt.Errorf("trie: decode edge child: %w", err)
		}
		return &edgeNode{Path: path, Child: hashNode(child), flags: nodeFlag{hash: hash}}, nil
	case kindLeaf:
		if len(buf) != 1+felt.Size {
			return nil, fmt.Errorf("trie: invalid leaf node encoding length %d", len(buf))
		}
		value, err := felt.FromBytes(buf[1:])
		if err != nil {
			return nil, fmt.Errorf("trie: decode leaf value: %w", err)
		}
		return &leafNode{Value: value, flags: nodeFlag{hash: value}}, nil
	default:
		return nil, fmt.Errorf("trie: unknown node kind tag %d", buf[0])
	}
}
