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

// Package kvstore defines the byte-addressable key/value backend contract
// consumed by the trie store: a sorted, prefix-scannable store with atomic
// batch writes and point-in-time snapshots. Any concrete store meeting this
// interface is pluggable.
package kvstore

import "io"

// KeyValueReader wraps the Has and Get method of a backing data store.
type KeyValueReader interface {
	// Has retrieves if a key is present in the key-value data store.
	Has(key []byte) (bool, error)

	// Get retrieves the given key if it's present in the key-value data store.
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put method of a backing data store.
type KeyValueWriter interface {
	// Put inserts the given value into the key-value data store.
	Put(key []byte, value []byte) error

	// Delete removes the key from the key-value data store.
	Delete(key []byte) error
}

// KeyValueRangeDeleter wraps the DeleteRange method of a backing data store.
type KeyValueRangeDeleter interface {
	// DeleteRange deletes all of the keys (and values) in the range [start,end)
	// (inclusive on start, exclusive on end).
	DeleteRange(start, end []byte) error
}

// KeyValueStater wraps the Stat method of a backing data store.
type KeyValueStater interface {
	// Stat returns the statistic data of the database.
	Stat() (string, error)
}

// Compacter wraps the Compact method of a backing data store.
type Compacter interface {
	// Compact flattens the underlying data store for the given key range. A
	// nil start is treated as a key before all keys in the data store; a nil
	// limit is treated as a key after all keys. If both are nil the entire
	// store is compacted.
	Compact(start []byte, limit []byte) error
}

// Snapshot is a read-only view of a store pinned at the moment it was taken.
// A scan opened against a snapshot sees only that snapshot's state, even if
// the live store is mutated concurrently.
type Snapshot interface {
	KeyValueReader
	Iteratee

	// Release releases the resources held by the snapshot. Safe to call more
	// than once.
	Release()
}

// Snapshotter wraps the NewSnapshot method of a backing data store.
type Snapshotter interface {
	// NewSnapshot returns a read-only view of the store pinned at this call.
	NewSnapshot() (Snapshot, error)
}

// KeyValueStore contains all the methods required to allow handling different
// key-value data stores backing the trie store.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	KeyValueRangeDeleter
	KeyValueStater
	Compacter
	Batcher
	Iteratee
	Snapshotter
	io.Closer
}
