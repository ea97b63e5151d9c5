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
	"github.com/karalabe/triekv/triehash"
	"github.com/karalabe/triekv/triekv"
)

// ProofNode is one step of a root-to-leaf (or root-to-divergence) traversal,
// carrying exactly the sibling content needed to recompute the hash of the
// node it describes: a Binary node's two child hashes, or an Edge node's
// path and child hash.
type ProofNode struct {
	Binary bool // true for a Binary step, false for an Edge step

	Left, Right felt.Felt // set when Binary

	Path  bitpath.Path // set when !Binary
	Child felt.Felt    // set when !Binary
}

// Hash recomputes the hash this proof step claims to describe.
func (n ProofNode) Hash(hasher triehash.Hasher) felt.Felt {
	if n.Binary {
		return hasher.HashPair(n.Left, n.Right)
	}
	return hasher.HashEdge(n.Child, pathToFelt(n.Path), n.Path.Len())
}

// Proof is the ordered sequence of ProofNode steps from the root down to
// the leaf (membership) or to the point of divergence (non-membership).
type Proof []ProofNode

// ProofResult is the verdict VerifyProof reaches.
type ProofResult int

const (
	Invalid ProofResult = iota
	Member
	NonMember
)

// GetProof returns the ordered sequence of sibling content along the path
// from the root to key, stopping at the leaf if key is present or at the
// point of divergence if it is not. It requires every node on the path to
// already be hashed; a handle with pending mutations returns
// ErrUncommittedChanges.
func (t *Trie) GetProof(key []byte) (Proof, error) {
	path := bitpath.FromKey(key)
	if err := t.checkKeyLen(path.Len()); err != nil {
		return nil, err
	}
	var proof Proof
	n := t.root
	for {
		rn, err := t.resolve(n)
		if err != nil {
			return nil, err
		}
		switch x := rn.(type) {
		case nil:
			return proof, nil
		case *leafNode:
			return proof, nil
		case *edgeNode:
			childHash, dirty := x.Child.cache()
			if dirty {
				return nil, triekv.ErrUncommittedChanges
			}
			proof = append(proof, ProofNode{Path: x.Path, Child: childHash})
			m := bitpath.CommonPrefixLen(x.Path, path)
			if m < x.Path.Len() {
				return proof, nil
			}
			path = path.Slice(m, path.Len())
			n = x.Child
		case *binaryNode:
			leftHash, leftDirty := x.Left.cache()
			rightHash, rightDirty := x.Right.cache()
			if leftDirty || rightDirty {
				return nil, triekv.ErrUncommittedChanges
			}
			proof = append(proof, ProofNode{Binary: true, Left: leftHash, Right: rightHash})
			if path.Len() == 0 {
				return nil, triekv.ErrInconsistentKeyLength
			}
			if path.Bit(0) == 0 {
				n = x.Left
			} else {
				n = x.Right
			}
			path = path.Slice(1, path.Len())
		default:
			panic("trie: proof traversal hit unexpected node type")
		}
	}
}

// VerifyProof is a pure function recomputing hashes from the root down
// according to proof, checking at every step that the claimed content
// actually hashes to the hash expected by its parent (or by rootHash, for
// the first step), and comparing the hash reached at the end of the
// traversal against value. It never touches a trie or a backend.
func VerifyProof(rootHash felt.Felt, key []byte, value felt.Felt, proof Proof, hasher triehash.Hasher) ProofResult {
	remaining := bitpath.FromKey(key)
	if remaining.Len() > bitpath.MaxLen {
		return Invalid
	}

	if len(proof) == 0 {
		if !rootHash.IsZero() {
			return Invalid
		}
		if value.IsZero() {
			return NonMember
		}
		return Invalid
	}

	expected := rootHash
	for _, step := range proof {
		if !step.Hash(hasher).Equal(expected) {
			return Invalid
		}
		if step.Binary {
			if remaining.Len() == 0 {
				return Invalid
			}
			if remaining.Bit(0) == 0 {
				expected = step.Left
			} else {
				expected = step.Right
			}
			remaining = remaining.Slice(1, remaining.Len())
			continue
		}
		m := bitpath.CommonPrefixLen(step.Path, remaining)
		if m < step.Path.Len() {
			if value.IsZero() {
				return NonMember
			}
			return Invalid
		}
		expected = step.Child
		remaining = remaining.Slice(m, remaining.Len())
	}

	if remaining.Len() != 0 {
		return Invalid
	}
	if expected.Equal(value) && !value.IsZero() {
		return Member
	}
	if value.IsZero() {
		return NonMember
	}
	return Invalid
}
