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

// Package triehash collects the node-hashing identities the trie engine
// needs, behind a Hasher interface so the engine itself never depends on a
// concrete digest function.
package triehash

import (
	"sync"

	"github.com/karalabe/triekv/crypto"
	"github.com/karalabe/triekv/felt"
)

// Hasher computes the two node-hash identities a binary Patricia-Merkle
// trie needs. Implementations must be safe for concurrent use by multiple
// goroutines, since one store shares a single Hasher across all of its
// handles, which may be used from different goroutines.
type Hasher interface {
	// HashPair returns the hash of a Binary node with the given left and
	// right child hashes.
	HashPair(left, right felt.Felt) felt.Felt

	// HashEdge returns the hash of an Edge node with the given child hash,
	// path (encoded as a felt with the path's bits placed, most significant
	// bit first, in the low-order bits of the field and zero-extended above,
	// one path bit per field bit position) and path length in bits.
	HashEdge(child, path felt.Felt, pathLen int) felt.Felt
}

// keccakHasher is the default Hasher, reducing a Keccak-256 digest of the
// operands' byte encodings into a canonical field element. It keeps a pool
// of KeccakState values so repeated hashing during a commit does not
// reallocate the underlying sha3 state, mirroring trie/hasher.go's
// hasherPool.
type keccakHasher struct {
	pool *sync.Pool
}

// keccakHasherState is the pooled per-call scratch space: a live Keccak
// state plus a fixed 64-byte input buffer sized for two concatenated felts.
type keccakHasherState struct {
	sha crypto.KeccakState
	buf [2 * felt.Size]byte
}

// NewKeccakHasher returns the default Hasher implementation.
func NewKeccakHasher() Hasher {
	return &keccakHasher{
		pool: &sync.Pool{
			New: func() any {
				return &keccakHasherState{sha: crypto.NewKeccakState()}
			},
		},
	}
}

func (h *keccakHasher) HashPair(left, right felt.Felt) felt.Felt {
	st := h.pool.Get().(*keccakHasherState)
	defer h.pool.Put(st)

	l, r := left.Bytes(), right.Bytes()
	copy(st.buf[:felt.Size], l[:])
	copy(st.buf[felt.Size:], r[:])

	st.sha.Reset()
	st.sha.Write(st.buf[:])
	var digest [32]byte
	st.sha.Read(digest[:])
	return reduce(digest)
}

func (h *keccakHasher) HashEdge(child, path felt.Felt, pathLen int) felt.Felt {
	return h.HashPair(child, path).AddSmall(uint64(pathLen))
}

// reduce folds a raw 32-byte Keccak digest into the field, masking off the
// top bits so the result is always < felt.Modulus() without the rare,
// slow, exact reduce-and-retry a straight big.Int Mod would need on every
// call. The field prime is 2**251+17*2**192+1, so clearing the top 5 bits
// of the digest always yields a value strictly below it.
func reduce(digest [32]byte) felt.Felt {
	digest[0] &= 0x07
	return felt.MustFromBytes(digest[:])
}
