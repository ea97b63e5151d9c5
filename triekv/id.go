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

// Package triekv collects the wire-level identifier types and the error
// taxonomy shared by the trie, triehash and triestore packages, keeping
// them free of any dependency on a concrete backend or hasher.
package triekv

import "encoding/binary"

// ID names an independent trie within one store. It is an opaque byte
// string supplied by the caller; the store never inspects its contents
// beyond using it as a key-builder component.
type ID []byte

// String renders id for logging; it does not attempt to interpret the
// bytes as text.
func (id ID) String() string {
	return string(id)
}

// CommitID is an opaque, totally ordered, strictly monotonically
// increasing token naming a committed version of a trie. The store never
// generates commit ids itself — they are supplied by the caller — but it
// does need to compare and serialize them, so CommitID is a plain uint64
// rather than an opaque byte string: every known production use of this
// layout versions by an integer block/commit counter.
type CommitID uint64

// Bytes returns the fixed 8-byte big-endian encoding of id used by the
// Key Builder for trie-log keys, so that lexicographic order on the
// encoded bytes matches numeric order on id. The encoding carries no
// length prefix.
func (id CommitID) Bytes() []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return buf[:]
}

// CommitIDFromBytes decodes the encoding produced by CommitID.Bytes.
func CommitIDFromBytes(b []byte) CommitID {
	return CommitID(binary.BigEndian.Uint64(b))
}

// CommitIDBuilder is a convenience for callers who want an
// auto-incrementing CommitID source rather than supplying their own
// monotonic token. The engine itself stays agnostic to where commit ids
// come from; this type exists only so simple callers don't need to
// hand-roll a counter. Nothing in this module uses it itself.
type CommitIDBuilder struct {
	next CommitID
}

// NewCommitIDBuilder returns a builder whose first Next() call yields
// start.
func NewCommitIDBuilder(start CommitID) *CommitIDBuilder {
	return &CommitIDBuilder{next: start}
}

// Next returns the next commit id and advances the builder.
func (b *CommitIDBuilder) Next() CommitID {
	id := b.next
	b.next++
	return id
}
