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

// Package trie implements the binary Patricia-Merkle trie: path-compressed
// binary, edge and leaf nodes over bit-string keys with felt values, with lazy post-order hashing
// and insert/remove rewrite rules that keep the tree in canonical form.
package trie

import (
	"github.com/karalabe/triekv/bitpath"
	"github.com/karalabe/triekv/felt"
	"github.com/karalabe/triekv/triehash"
	"github.com/karalabe/triekv/triekv"
	"github.com/karalabe/triekv/trie/trienode"
)

// NodeReader resolves a persisted node's encoded blob by its hash. It is
// the only dependency the engine has on a concrete storage backend; a
// single reader is scoped to one identifier.
type NodeReader interface {
	Node(hash felt.Felt) ([]byte, error)
}

// Trie is a binary Patricia-Merkle trie over a single identifier. It is not
// safe for concurrent use: callers needing concurrent access must take a
// transactional state instead of sharing one Trie.
type Trie struct {
	identifier triekv.ID
	reader     NodeReader
	hasher     triehash.Hasher
	root       node // nil denotes the empty trie
	keyLen     int  // bit length established by the first key seen (read or write); 0 if unset
	tracer     tracer
}

// New returns an empty trie bound to identifier, reading persisted nodes
// through reader and hashing with hasher.
func New(identifier triekv.ID, reader NodeReader, hasher triehash.Hasher) *Trie {
	return &Trie{identifier: identifier, reader: reader, hasher: hasher, tracer: newTracer()}
}

// NewFromRoot returns a trie whose root is the persisted node at rootHash,
// resolved lazily. A zero rootHash denotes the empty trie. keyLen is the
// bit length every key for this identifier must already conform to; pass 0
// if the identifier has not been written to yet.
func NewFromRoot(identifier triekv.ID, reader NodeReader, hasher triehash.Hasher, rootHash felt.Felt, keyLen int) *Trie {
	t := New(identifier, reader, hasher)
	t.keyLen = keyLen
	if !rootHash.IsZero() {
		t.root = hashNode(rootHash)
	}
	return t
}

// Copy returns a trie sharing the same reader and hasher but with an
// independent tracer, suitable for a transactional state built on top of a
// snapshot reader.
func (t *Trie) Copy() *Trie {
	return &Trie{
		identifier: t.identifier,
		reader:     t.reader,
		hasher:     t.hasher,
		root:       t.root,
		keyLen:     t.keyLen,
		tracer:     t.tracer.copy(),
	}
}

func (t *Trie) checkKeyLen(bits int) error {
	if bits > bitpath.MaxLen {
		return triekv.ErrInconsistentKeyLength
	}
	if t.keyLen == 0 {
		t.keyLen = bits
		return nil
	}
	if t.keyLen != bits {
		return triekv.ErrInconsistentKeyLength
	}
	return nil
}

// Get returns the value stored for key, or ok=false if the key has no
// leaf. It never mutates the trie.
func (t *Trie) Get(key []byte) (value felt.Felt, ok bool, err error) {
	path := bitpath.FromKey(key)
	if err := t.checkKeyLen(path.Len()); err != nil {
		return felt.Felt{}, false, err
	}
	v, err := t.get(t.root, path)
	if err != nil {
		return felt.Felt{}, false, err
	}
	if v == nil {
		return felt.Felt{}, false, nil
	}
	return *v, true, nil
}

// Contains reports whether key has a leaf, without returning its value.
func (t *Trie) Contains(key []byte) (bool, error) {
	_, ok, err := t.Get(key)
	return ok, err
}

func (t *Trie) get(n node, key bitpath.Path) (*felt.Felt, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil
	case hashNode:
		rn, err := t.resolve(n)
		if err != nil {
			return nil, err
		}
		return t.get(rn, key)
	case *leafNode:
		if key.Len() != 0 {
			return nil, nil
		}
		v := n.Value
		return &v, nil
	case *edgeNode:
		m := bitpath.CommonPrefixLen(n.Path, key)
		if m != n.Path.Len() {
			return nil, nil
		}
		return t.get(n.Child, key.Slice(m, key.Len()))
	case *binaryNode:
		if key.Len() == 0 {
			return nil, nil
		}
		if key.Bit(0) == 0 {
			return t.get(n.Left, key.Slice(1, key.Len()))
		}
		return t.get(n.Right, key.Slice(1, key.Len()))
	default:
		panic("trie: get on unexpected node type")
	}
}

// resolve loads n's concrete form if n is an unresolved hashNode, otherwise
// returns n unchanged.
func (t *Trie) resolve(n node) (node, error) {
	hn, ok := n.(hashNode)
	if !ok {
		return n, nil
	}
	hash := felt.Felt(hn)
	blob, err := t.reader.Node(hash)
	if err != nil {
		return nil, triekv.NewErrCorruption(t.identifier, hash.Bytes(), bitpath.Empty, err)
	}
	decoded, err := decodeNode(hash, blob)
	if err != nil {
		return nil, triekv.NewErrCorruption(t.identifier, hash.Bytes(), bitpath.Empty, err)
	}
	return decoded, nil
}

// Insert sets key to value. A zero value is equivalent to Remove.
func (t *Trie) Insert(key []byte, value felt.Felt) error {
	if value.IsZero() {
		return t.Remove(key)
	}
	path := bitpath.FromKey(key)
	if err := t.checkKeyLen(path.Len()); err != nil {
		return err
	}
	_, n, err := t.insert(t.root, path, value)
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

func (t *Trie) insert(n node, key bitpath.Path, value felt.Felt) (dirty bool, newNode node, err error) {
	switch n := n.(type) {
	case nil:
		leaf := &leafNode{Value: value, flags: nodeFlag{dirty: true}}
		if key.Len() == 0 {
			return true, leaf, nil
		}
		return true, &edgeNode{Path: key, Child: leaf, flags: nodeFlag{dirty: true}}, nil

	case hashNode:
		rn, err := t.resolve(n)
		if err != nil {
			return false, nil, err
		}
		return t.insert(rn, key, value)

	case *leafNode:
		if key.Len() != 0 {
			return false, nil, triekv.ErrInconsistentKeyLength
		}
		if n.Value.Equal(value) {
			return false, n, nil
		}
		t.tracer.onReplace(n)
		return true, &leafNode{Value: value, flags: nodeFlag{dirty: true}}, nil

	case *edgeNode:
		m := bitpath.CommonPrefixLen(n.Path, key)
		if m == n.Path.Len() {
			dirty, nn, err := t.insert(n.Child, key.Slice(m, key.Len()), value)
			if !dirty || err != nil {
				return false, n, err
			}
			t.tracer.onReplace(n)
			return true, &edgeNode{Path: n.Path, Child: nn, flags: nodeFlag{dirty: true}}, nil
		}
		if m == key.Len() {
			// The new key is a strict prefix of an existing edge: keys for
			// this identifier are not of uniform length.
			return false, nil, triekv.ErrInconsistentKeyLength
		}
		t.tracer.onReplace(n)

		var oldSide node
		if rest := n.Path.Slice(m+1, n.Path.Len()); rest.Len() > 0 {
			oldSide = &edgeNode{Path: rest, Child: n.Child, flags: nodeFlag{dirty: true}}
		} else {
			oldSide = n.Child
		}

		newLeaf := &leafNode{Value: value, flags: nodeFlag{dirty: true}}
		var newSide node = newLeaf
		if rest := key.Slice(m+1, key.Len()); rest.Len() > 0 {
			newSide = &edgeNode{Path: rest, Child: newLeaf, flags: nodeFlag{dirty: true}}
		}

		branch := &binaryNode{flags: nodeFlag{dirty: true}}
		if n.Path.Bit(m) == 0 {
			branch.Left, branch.Right = oldSide, newSide
		} else {
			branch.Left, branch.Right = newSide, oldSide
		}
		if m == 0 {
			return true, branch, nil
		}
		return true, &edgeNode{Path: n.Path.Slice(0, m), Child: branch, flags: nodeFlag{dirty: true}}, nil

	case *binaryNode:
		if key.Len() == 0 {
			return false, nil, triekv.ErrInconsistentKeyLength
		}
		if key.Bit(0) == 0 {
			dirty, nn, err := t.insert(n.Left, key.Slice(1, key.Len()), value)
			if !dirty || err != nil {
				return false, n, err
			}
			t.tracer.onReplace(n)
			return true, &binaryNode{Left: nn, Right: n.Right, flags: nodeFlag{dirty: true}}, nil
		}
		dirty, nn, err := t.insert(n.Right, key.Slice(1, key.Len()), value)
		if !dirty || err != nil {
			return false, n, err
		}
		t.tracer.onReplace(n)
		return true, &binaryNode{Left: n.Left, Right: nn, flags: nodeFlag{dirty: true}}, nil

	default:
		panic("trie: insert on unexpected node type")
	}
}

// Remove deletes key's leaf if present. Removing an absent key is a no-op.
func (t *Trie) Remove(key []byte) error {
	path := bitpath.FromKey(key)
	if err := t.checkKeyLen(path.Len()); err != nil {
		return err
	}
	_, n, err := t.delete(t.root, path)
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

func (t *Trie) delete(n node, key bitpath.Path) (dirty bool, newNode node, err error) {
	switch n := n.(type) {
	case nil:
		return false, nil, nil

	case hashNode:
		rn, err := t.resolve(n)
		if err != nil {
			return false, nil, err
		}
		dirty, nn, err := t.delete(rn, key)
		if !dirty || err != nil {
			return false, rn, err
		}
		return true, nn, nil

	case *leafNode:
		if key.Len() != 0 {
			return false, n, nil
		}
		t.tracer.onReplace(n)
		return true, nil, nil

	case *edgeNode:
		m := bitpath.CommonPrefixLen(n.Path, key)
		if m != n.Path.Len() {
			return false, n, nil
		}
		dirty, nn, err := t.delete(n.Child, key.Slice(m, key.Len()))
		if !dirty || err != nil {
			return false, n, err
		}
		t.tracer.onReplace(n)
		if nn == nil {
			return true, nil, nil
		}
		if child, ok := nn.(*edgeNode); ok {
			return true, &edgeNode{Path: bitpath.Concat(n.Path, child.Path), Child: child.Child, flags: nodeFlag{dirty: true}}, nil
		}
		return true, &edgeNode{Path: n.Path, Child: nn, flags: nodeFlag{dirty: true}}, nil

	case *binaryNode:
		if key.Len() == 0 {
			return false, n, nil
		}
		var dirty bool
		var nn node
		left := key.Bit(0) == 0
		if left {
			dirty, nn, err = t.delete(n.Left, key.Slice(1, key.Len()))
		} else {
			dirty, nn, err = t.delete(n.Right, key.Slice(1, key.Len()))
		}
		if !dirty || err != nil {
			return false, n, err
		}
		t.tracer.onReplace(n)
		if nn != nil {
			if left {
				return true, &binaryNode{Left: nn, Right: n.Right, flags: nodeFlag{dirty: true}}, nil
			}
			return true, &binaryNode{Left: n.Left, Right: nn, flags: nodeFlag{dirty: true}}, nil
		}
		// One child vanished: the binary collapses into an edge carrying the
		// surviving sibling's direction bit. The sibling must be resolved
		// (not left as an opaque hashNode) so that an edge sibling is fused
		// into that edge here, and the parent, if it is an edge, can fuse
		// the result in turn rather than leave a canonical-form violation
		// latent on disk.
		var sibling node
		var bit byte
		if left {
			sibling, bit = n.Right, 1
		} else {
			sibling = n.Left
		}
		resolved, err := t.resolve(sibling)
		if err != nil {
			return false, nil, err
		}
		bitPath := bitpath.New([]byte{bit << 7}, 1)
		if e, ok := resolved.(*edgeNode); ok {
			t.tracer.onReplace(e)
			return true, &edgeNode{Path: bitpath.Concat(bitPath, e.Path), Child: e.Child, flags: nodeFlag{dirty: true}}, nil
		}
		return true, &edgeNode{Path: bitPath, Child: resolved, flags: nodeFlag{dirty: true}}, nil

	default:
		panic("trie: delete on unexpected node type")
	}
}

// RootHash returns the root hash of the trie's current contents, including
// mutations not yet committed. Pending hashes are computed on a throwaway
// pass and not cached in the trie; nothing is persisted, use Commit for that.
func (t *Trie) RootHash() felt.Felt {
	if t.root == nil {
		return felt.Zero()
	}
	nodes := trienode.NewNodeSet()
	hash, _ := t.hash(t.root, nodes)
	return hash
}

// Commit finalizes every pending mutation: it completes the lazy-hashing
// pass, returns the new root hash, and returns a NodeSet describing every
// node that must be persisted or removed for this commit's write-batch.
// The trie remains usable afterwards, with root replaced by its hashed
// (but not yet collapsed) form.
func (t *Trie) Commit() (felt.Felt, *trienode.NodeSet) {
	nodes := trienode.NewNodeSet()
	for _, h := range t.tracer.deletedHashes() {
		nodes.AddDeleted(h)
	}
	t.tracer.reset()

	if t.root == nil {
		return felt.Zero(), nodes
	}
	hash, cached := t.hash(t.root, nodes)
	t.root = cached
	return hash, nodes
}

// Reset clears the trie back to empty, discarding any pending mutations
// and tracked deletions.
func (t *Trie) Reset() {
	t.root = nil
	t.keyLen = 0
	t.tracer.reset()
}
