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
	"testing"

	"github.com/karalabe/triekv/felt"
	"github.com/karalabe/triekv/kvstore/memorydb"
	"github.com/karalabe/triekv/trie"
	"github.com/karalabe/triekv/triehash"
	"github.com/karalabe/triekv/triekv"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(memorydb.New(), triehash.NewKeccakHasher(), DefaultConfig(), 0)
}

func key1(b byte) []byte { return []byte{b} }

// Scenario 1 (§8): round-trip through a commit.
func TestRoundTrip(t *testing.T) {
	s := newTestStore()
	id := triekv.ID("accounts")

	h, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h.Insert(key1(0x00), felt.FromUint64(7)))
	require.NoError(t, h.Insert(key1(0x01), felt.FromUint64(8)))
	require.NoError(t, h.Commit(1))

	h2, err := s.Trunk(id)
	require.NoError(t, err)
	v, ok, err := h2.Get(key1(0x00))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(7)))

	v, ok, err = h2.Get(key1(0x01))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(8)))
}

// Idempotent remove (§8).
func TestIdempotentRemove(t *testing.T) {
	s := newTestStore()
	id := triekv.ID("accounts")

	h, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h.Insert(key1(0x00), felt.FromUint64(1)))
	require.NoError(t, h.Commit(1))

	h2, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h2.Remove(key1(0x00)))
	require.NoError(t, h2.Remove(key1(0x00)))
	require.NoError(t, h2.Commit(2))

	h3, err := s.Trunk(id)
	require.NoError(t, err)
	_, ok, err := h3.Get(key1(0x00))
	require.NoError(t, err)
	require.False(t, ok)
}

// Scenario 2 (§8): removing a key after commit yields the same root as
// never having inserted it.
func TestRemoveEquivalence(t *testing.T) {
	id := triekv.ID("accounts")

	s1 := newTestStore()
	h1, err := s1.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h1.Insert(key1(0x00), felt.FromUint64(1)))
	require.NoError(t, h1.Insert(key1(0x01), felt.FromUint64(2)))
	require.NoError(t, h1.Insert(key1(0x02), felt.FromUint64(3)))
	require.NoError(t, h1.Commit(1))
	h1b, err := s1.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h1b.Remove(key1(0x01)))
	require.NoError(t, h1b.Commit(2))
	gotRoot := h1b.RootHash()

	s2 := newTestStore()
	h2, err := s2.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h2.Insert(key1(0x00), felt.FromUint64(1)))
	require.NoError(t, h2.Insert(key1(0x02), felt.FromUint64(3)))
	require.NoError(t, h2.Commit(1))
	wantRoot := h2.RootHash()

	require.True(t, gotRoot.Equal(wantRoot))
}

// Scenario 3 (§8): revert exactness.
func TestRevertExactness(t *testing.T) {
	s := newTestStore()
	id := triekv.ID("accounts")

	h, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h.Insert(key1(0x00), felt.FromUint64(1)))
	require.NoError(t, h.Commit(1))
	rootAfter1 := h.RootHash()

	h2, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h2.Insert(key1(0x01), felt.FromUint64(2)))
	require.NoError(t, h2.Commit(2))

	h3, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h3.RevertTo(1))

	_, ok, err := h3.Get(key1(0x01))
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, h3.RootHash().Equal(rootAfter1))

	v, ok, err := h3.Get(key1(0x00))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(1)))
}

// Scenario 4 (§8): snapshot isolation and a conflict-free merge.
func TestTransactionalMergeSucceeds(t *testing.T) {
	s := newTestStore()
	id := triekv.ID("accounts")

	h, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h.Insert(key1(0x00), felt.FromUint64(1)))
	require.NoError(t, h.Commit(1))

	txn, err := s.GetTransactionalState(id, 1)
	require.NoError(t, err)
	require.NotNil(t, txn)

	trunk, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, trunk.Insert(key1(0x02), felt.FromUint64(5)))
	require.NoError(t, trunk.Commit(2))

	_, ok, err := txn.Get(key1(0x02))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, txn.Insert(key1(0x03), felt.FromUint64(9)))
	require.NoError(t, s.Merge(txn, 3))

	final, err := s.Trunk(id)
	require.NoError(t, err)
	v, ok, err := final.Get(key1(0x02))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(5)))

	v, ok, err = final.Get(key1(0x03))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(9)))
}

// Scenario 5 (§8): a conflicting merge fails and leaves the trunk
// untouched.
func TestTransactionalMergeConflict(t *testing.T) {
	s := newTestStore()
	id := triekv.ID("accounts")

	h, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h.Insert(key1(0x02), felt.FromUint64(1)))
	require.NoError(t, h.Commit(1))

	txn, err := s.GetTransactionalState(id, 1)
	require.NoError(t, err)
	require.NotNil(t, txn)
	require.NoError(t, txn.Insert(key1(0x02), felt.FromUint64(7)))

	trunk, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, trunk.Insert(key1(0x02), felt.FromUint64(8)))
	require.NoError(t, trunk.Commit(2))

	err = s.Merge(txn, 3)
	require.Error(t, err)
	var conflict *triekv.MergeConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Keys, 1)

	final, err := s.Trunk(id)
	require.NoError(t, err)
	v, ok, err := final.Get(key1(0x02))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(8)))
}

// Scenario 6 (§8): proof generation, verification and tamper detection.
func TestProofGenerationAndVerification(t *testing.T) {
	s := newTestStore()
	id := triekv.ID("accounts")

	h, err := s.Trunk(id)
	require.NoError(t, err)
	require.NoError(t, h.Insert(key1(0x00), felt.FromUint64(7)))
	require.NoError(t, h.Insert(key1(0x01), felt.FromUint64(8)))
	require.NoError(t, h.Commit(1))

	root := h.RootHash()
	proof, err := h.GetProof(key1(0x00))
	require.NoError(t, err)

	hasher := triehash.NewKeccakHasher()
	result := VerifyProof(root, key1(0x00), felt.FromUint64(7), proof, hasher)
	require.Equal(t, trie.Member, result)

	tampered := make(trie.Proof, len(proof))
	copy(tampered, proof)
	require.NotEmpty(t, tampered)
	if tampered[0].Binary {
		tampered[0].Left = tampered[0].Left.Add(felt.One())
	} else {
		tampered[0].Child = tampered[0].Child.Add(felt.One())
	}

	result = VerifyProof(root, key1(0x00), felt.FromUint64(7), tampered, hasher)
	require.NotEqual(t, trie.Member, result)
}
