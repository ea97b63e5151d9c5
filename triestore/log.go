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
	"fmt"

	"github.com/karalabe/triekv/bitpath"
	"github.com/karalabe/triekv/felt"
	"github.com/karalabe/triekv/triekv"
)

// keyDelta is the prior state of a single flat-DB key as of the commit
// preceding the one this record belongs to.
type keyDelta struct {
	path     bitpath.Path
	hadPrior bool
	prior    felt.Felt
}

// trieLog is the inverse-delta record written for one identifier on every
// commit. RevertTo replays it in reverse to undo the commit it describes.
// priorCommit chains logs together without a backend scan: revert_to walks
// this pointer backward from the identifier's last committed id until it
// reaches the target, since commit ids are supplied by the caller and are
// not guaranteed to be dense integers.
type trieLog struct {
	priorCommit triekv.CommitID
	priorRoot   felt.Felt
	keys        []keyDelta
	reachable   []felt.Felt // node hashes newly written this commit; RevertTo does not read them
	unreachable []felt.Felt // node hashes dropped this commit; deleted when the log is compacted
}

// encodeTrieLog serializes l into the TRIE_LOG column's value format: a
// fixed-width header followed by three length-prefixed vectors.
func encodeTrieLog(l *trieLog) []byte {
	size := 8 + felt.Size + 4
	for _, kd := range l.keys {
		size += 2 + len(kd.path.Packed()) + 1
		if kd.hadPrior {
			size += felt.Size
		}
	}
	size += 4 + len(l.reachable)*felt.Size
	size += 4 + len(l.unreachable)*felt.Size

	buf := make([]byte, 0, size)
	buf = append(buf, l.priorCommit.Bytes()...)
	priorRoot := l.priorRoot.Bytes()
	buf = append(buf, priorRoot[:]...)

	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(l.keys)))
	buf = append(buf, n[:]...)
	for _, kd := range l.keys {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(kd.path.Len()))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, kd.path.Packed()...)
		if kd.hadPrior {
			buf = append(buf, 1)
			pv := kd.prior.Bytes()
			buf = append(buf, pv[:]...)
		} else {
			buf = append(buf, 0)
		}
	}

	binary.BigEndian.PutUint32(n[:], uint32(len(l.reachable)))
	buf = append(buf, n[:]...)
	for _, h := range l.reachable {
		hb := h.Bytes()
		buf = append(buf, hb[:]...)
	}

	binary.BigEndian.PutUint32(n[:], uint32(len(l.unreachable)))
	buf = append(buf, n[:]...)
	for _, h := range l.unreachable {
		hb := h.Bytes()
		buf = append(buf, hb[:]...)
	}
	return buf
}

// decodeTrieLog parses the format written by encodeTrieLog.
func decodeTrieLog(blob []byte) (*trieLog, error) {
	if len(blob) < 8+felt.Size+4 {
		return nil, fmt.Errorf("triestore: truncated trie log (%d bytes)", len(blob))
	}
	l := &trieLog{}
	l.priorCommit = triekv.CommitIDFromBytes(blob[:8])
	off := 8
	priorRoot, err := felt.FromBytes(blob[off : off+felt.Size])
	if err != nil {
		return nil, fmt.Errorf("triestore: decode trie log prior root: %w", err)
	}
	l.priorRoot = priorRoot
	off += felt.Size

	numKeys := binary.BigEndian.Uint32(blob[off:])
	off += 4
	l.keys = make([]keyDelta, 0, numKeys)
	for i := uint32(0); i < numKeys; i++ {
		if off+2 > len(blob) {
			return nil, fmt.Errorf("triestore: truncated trie log key delta")
		}
		bitLen := int(binary.BigEndian.Uint16(blob[off:]))
		off += 2
		byteLen := (bitLen + 7) / 8
		if off+byteLen+1 > len(blob) {
			return nil, fmt.Errorf("triestore: truncated trie log key delta body")
		}
		path := bitpath.New(blob[off:off+byteLen], bitLen)
		off += byteLen
		hadPrior := blob[off] != 0
		off++
		var prior felt.Felt
		if hadPrior {
			if off+felt.Size > len(blob) {
				return nil, fmt.Errorf("triestore: truncated trie log prior value")
			}
			prior, err = felt.FromBytes(blob[off : off+felt.Size])
			if err != nil {
				return nil, fmt.Errorf("triestore: decode trie log prior value: %w", err)
			}
			off += felt.Size
		}
		l.keys = append(l.keys, keyDelta{path: path, hadPrior: hadPrior, prior: prior})
	}

	reach, off2, err := decodeHashVector(blob, off)
	if err != nil {
		return nil, err
	}
	l.reachable, off = reach, off2

	unreach, off3, err := decodeHashVector(blob, off)
	if err != nil {
		return nil, err
	}
	l.unreachable, _ = unreach, off3

	return l, nil
}

func decodeHashVector(blob []byte, off int) ([]felt.Felt, int, error) {
	if off+4 > len(blob) {
		return nil, off, fmt.Errorf("triestore: truncated trie log hash vector")
	}
	count := binary.BigEndian.Uint32(blob[off:])
	off += 4
	out := make([]felt.Felt, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+felt.Size > len(blob) {
			return nil, off, fmt.Errorf("triestore: truncated trie log hash entry")
		}
		h, err := felt.FromBytes(blob[off : off+felt.Size])
		if err != nil {
			return nil, off, fmt.Errorf("triestore: decode trie log hash entry: %w", err)
		}
		out = append(out, h)
		off += felt.Size
	}
	return out, off, nil
}
