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
	"encoding/binary"

	"github.com/karalabe/triekv/bitpath"
	"github.com/karalabe/triekv/felt"
	"github.com/karalabe/triekv/triekv"
)

// Column prefixes partitioning the backend's flat byte-keyed namespace.
const (
	colTrieNodes byte = 1
	colFlat      byte = 2
	colTrieLog   byte = 3
	colMeta      byte = 4
)

var metaRootTag = []byte("root")
var metaCommitTag = []byte("commit")
var metaHistoricalRootTag = []byte("root@")

// encodeIdentifier appends identifier's length-prefixed big-endian
// encoding to dst, matching every column's "identifier_len:u16_be ||
// identifier" suffix.
func encodeIdentifier(dst []byte, identifier triekv.ID) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(identifier)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, identifier...)
}

// nodeKey builds a TRIE_NODES column key for a node's content hash.
func nodeKey(identifier triekv.ID, hash felt.Felt) []byte {
	buf := make([]byte, 0, 1+2+len(identifier)+felt.Size)
	buf = append(buf, colTrieNodes)
	buf = encodeIdentifier(buf, identifier)
	hb := hash.Bytes()
	return append(buf, hb[:]...)
}

// flatPrefix builds the FLAT column prefix shared by every key/value pair
// stored under identifier, used both to build individual flat keys and as
// the prefix argument to a prefix scan over the whole identifier.
func flatPrefix(identifier triekv.ID) []byte {
	buf := make([]byte, 0, 1+2+len(identifier))
	buf = append(buf, colFlat)
	return encodeIdentifier(buf, identifier)
}

// flatKey builds a FLAT column key for a single application key, packed as
// a length-prefixed bit sequence so a prefix scan over flatPrefix stays
// well-defined regardless of path length.
func flatKey(identifier triekv.ID, path bitpath.Path) []byte {
	buf := flatPrefix(identifier)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(path.Len()))
	buf = append(buf, lenBuf[:]...)
	return append(buf, path.Packed()...)
}

// logKey builds a TRIE_LOG column key for one identifier's record at
// commitID, with the commit id encoded first exactly as specified: commit
// ids are fixed-width big-endian, so lexicographic order on the encoded
// column matches numeric commit order even across identifiers. Finding all
// logs for one identifier does not rely on that ordering, though: each
// trieLog carries a priorCommit pointer, so revert_to and compaction walk
// the chain directly via point lookups instead of scanning the column.
func logKey(identifier triekv.ID, commitID triekv.CommitID) []byte {
	buf := make([]byte, 0, 1+8+2+len(identifier))
	buf = append(buf, colTrieLog)
	buf = append(buf, commitID.Bytes()...)
	return encodeIdentifier(buf, identifier)
}

// rootMetaKey builds the META column key holding the current root pointer
// for identifier.
func rootMetaKey(identifier triekv.ID) []byte {
	buf := make([]byte, 0, 1+len(metaRootTag)+2+len(identifier))
	buf = append(buf, colMeta)
	buf = append(buf, metaRootTag...)
	return encodeIdentifier(buf, identifier)
}

// lastCommitKey builds the META column key holding the last committed
// commit id for identifier, the chain head that Commit and RevertTo walk
// backward from.
func lastCommitKey(identifier triekv.ID) []byte {
	buf := make([]byte, 0, 1+len(metaCommitTag)+2+len(identifier))
	buf = append(buf, colMeta)
	buf = append(buf, metaCommitTag...)
	return encodeIdentifier(buf, identifier)
}

// historicalRootKey builds the META column key holding the root pointer as
// it stood immediately after commitID, written every SnapshotInterval
// commits so GetTransactionalState can answer without replaying the whole
// log.
func historicalRootKey(identifier triekv.ID, commitID triekv.CommitID) []byte {
	buf := make([]byte, 0, 1+len(metaHistoricalRootTag)+8+2+len(identifier))
	buf = append(buf, colMeta)
	buf = append(buf, metaHistoricalRootTag...)
	buf = append(buf, commitID.Bytes()...)
	return encodeIdentifier(buf, identifier)
}
