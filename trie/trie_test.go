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
	"fmt"
	"testing"

	"github.com/karalabe/triekv/felt"
	"github.com/karalabe/triekv/triehash"
	"github.com/karalabe/triekv/triekv"
	"github.com/stretchr/testify/require"
)

// memReader backs a Trie purely off an in-memory map, letting tests build a
// trie, commit it, and reopen it from its root hash without a real kvstore
// backend.
type memReader struct {
	nodes map[felt.Felt][]byte
}

func newMemReader() *memReader { return &memReader{nodes: make(map[felt.Felt][]byte)} }

func (r *memReader) Node(hash felt.Felt) ([]byte, error) {
	blob, ok := r.nodes[hash]
	if !ok {
		return nil, fmt.Errorf("trie test: node %s not found", hash)
	}
	return blob, nil
}

func (r *memReader) absorb(nodes map[felt.Felt]*struct{ Blob []byte }) {}

func newTestTrie() (*Trie, *memReader) {
	r := newMemReader()
	return New(triekv.ID("t"), r, triehash.NewKeccakHasher()), r
}

func k(bits ...byte) []byte { return bits }

func TestInsertGetRemove(t *testing.T) {
	tr, _ := newTestTrie()

	require.NoError(t, tr.Insert(k(0x00), felt.FromUint64(7)))
	require.NoError(t, tr.Insert(k(0x01), felt.FromUint64(8)))

	v, ok, err := tr.Get(k(0x00))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(7)))

	require.NoError(t, tr.Remove(k(0x00)))
	_, ok, err = tr.Get(k(0x00))
	require.NoError(t, err)
	require.False(t, ok)

	v, ok, err = tr.Get(k(0x01))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(8)))
}

func TestInsertZeroValueRemoves(t *testing.T) {
	tr, _ := newTestTrie()
	require.NoError(t, tr.Insert(k(0x05), felt.FromUint64(42)))
	require.NoError(t, tr.Insert(k(0x05), felt.Zero()))

	_, ok, err := tr.Get(k(0x05))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	tr, _ := newTestTrie()
	require.NoError(t, tr.Insert(k(0x01), felt.FromUint64(1)))
	root := tr.RootHash()

	require.NoError(t, tr.Remove(k(0x02)))
	require.True(t, tr.RootHash().Equal(root))
}

func TestRootHashDeterministicAcrossOrder(t *testing.T) {
	a, _ := newTestTrie()
	require.NoError(t, a.Insert(k(0x00), felt.FromUint64(1)))
	require.NoError(t, a.Insert(k(0x01), felt.FromUint64(2)))
	require.NoError(t, a.Insert(k(0x02), felt.FromUint64(3)))

	b, _ := newTestTrie()
	require.NoError(t, b.Insert(k(0x02), felt.FromUint64(3)))
	require.NoError(t, b.Insert(k(0x00), felt.FromUint64(1)))
	require.NoError(t, b.Insert(k(0x01), felt.FromUint64(2)))

	require.True(t, a.RootHash().Equal(b.RootHash()))
}

func TestInconsistentKeyLength(t *testing.T) {
	tr, _ := newTestTrie()
	require.NoError(t, tr.Insert(k(0x00), felt.FromUint64(1)))
	err := tr.Insert([]byte{0x01, 0x02}, felt.FromUint64(2))
	require.ErrorIs(t, err, triekv.ErrInconsistentKeyLength)
}

func TestCommitAndReopenFromRoot(t *testing.T) {
	tr, r := newTestTrie()
	require.NoError(t, tr.Insert(k(0x00), felt.FromUint64(7)))
	require.NoError(t, tr.Insert(k(0x01), felt.FromUint64(8)))
	require.NoError(t, tr.Insert(k(0xff), felt.FromUint64(9)))

	root, nodes := tr.Commit()
	for h, n := range nodes.Updates {
		r.nodes[h] = n.Blob
	}

	reopened := NewFromRoot(triekv.ID("t"), r, triehash.NewKeccakHasher(), root, 8)
	v, ok, err := reopened.Get(k(0x00))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(7)))

	v, ok, err = reopened.Get(k(0xff))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(9)))
}

func TestIteratorAscendingOrder(t *testing.T) {
	tr, _ := newTestTrie()
	require.NoError(t, tr.Insert(k(0x05), felt.FromUint64(1)))
	require.NoError(t, tr.Insert(k(0x01), felt.FromUint64(2)))
	require.NoError(t, tr.Insert(k(0x80), felt.FromUint64(3)))
	require.NoError(t, tr.Insert(k(0x00), felt.FromUint64(4)))

	it := NewIterator(tr)
	var keys [][]byte
	for it.Next() {
		key := make([]byte, len(it.Key))
		copy(key, it.Key)
		keys = append(keys, key)
	}
	require.NoError(t, it.Err)
	require.Equal(t, [][]byte{k(0x00), k(0x01), k(0x05), k(0x80)}, keys)
}
