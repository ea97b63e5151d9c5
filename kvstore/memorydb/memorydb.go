// Copyright 2018 The go-ethereum Authors
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

// Package memorydb implements the kvstore.KeyValueStore contract on top of a
// plain Go map. It is the default backend for tests and for short-lived
// transactional states that never need to outlive the process.
package memorydb

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/karalabe/triekv/kvstore"
)

var (
	// errMemorydbClosed is returned if a memory database was already closed
	// at the invocation of a data access operation.
	errMemorydbClosed = errors.New("database closed")

	// errMemorydbNotFound is returned if a key is requested that is not
	// found in the provided memory database.
	errMemorydbNotFound = errors.New("not found")
)

// Database is an ephemeral key-value store. Apart from basic data storage
// functionality it also supports batch writes, snapshotting, and iterating
// over the keyspace in binary-alphabetical order.
type Database struct {
	db   map[string][]byte
	lock sync.RWMutex
}

// New returns a wrapped map with all the required database interface
// methods implemented.
func New() *Database {
	return &Database{
		db: make(map[string][]byte),
	}
}

// NewWithCap returns a wrapped map pre-allocated to the provided capacity.
func NewWithCap(size int) *Database {
	return &Database{
		db: make(map[string][]byte, size),
	}
}

// Close deallocates the internal map and ensures any consecutive data access
// operation fails with an error.
func (db *Database) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.db = nil
	return nil
}

// Has retrieves if a key is present in the key-value store.
func (db *Database) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return false, errMemorydbClosed
	}
	_, ok := db.db[string(key)]
	return ok, nil
}

// Get retrieves the given key if it's present in the key-value store.
func (db *Database) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return nil, errMemorydbClosed
	}
	if entry, ok := db.db[string(key)]; ok {
		return bytes.Clone(entry), nil
	}
	return nil, errMemorydbNotFound
}

// Put inserts the given value into the key-value store.
func (db *Database) Put(key []byte, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return errMemorydbClosed
	}
	db.db[string(key)] = bytes.Clone(value)
	return nil
}

// Delete removes the key from the key-value store.
func (db *Database) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return errMemorydbClosed
	}
	delete(db.db, string(key))
	return nil
}

// DeleteRange deletes all of the keys (and values) in the range [start,end).
func (db *Database) DeleteRange(start, end []byte) error {
	it := db.NewIterator(nil, start)
	defer it.Release()

	for it.Next() && bytes.Compare(end, it.Key()) > 0 {
		if err := db.Delete(it.Key()); err != nil {
			return err
		}
	}
	return nil
}

// NewBatch creates a write-only key-value store that buffers changes to its
// host database until a final write is called.
func (db *Database) NewBatch() kvstore.Batch {
	return &batch{db: db}
}

// NewBatchWithSize creates a write-only database batch with pre-allocated
// buffer.
func (db *Database) NewBatchWithSize(size int) kvstore.Batch {
	return &batch{db: db}
}

// NewIterator creates a binary-alphabetical iterator over a subset of
// database content with a particular key prefix, starting at a particular
// initial key (or after, if it does not exist).
func (db *Database) NewIterator(prefix []byte, start []byte) kvstore.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return newIterator(db.db, prefix, start)
}

// NewSnapshot returns a read-only view of the store pinned at this call. The
// memory backend implements this as a deep copy, since it has no native
// multi-version concurrency control to pin against.
func (db *Database) NewSnapshot() (kvstore.Snapshot, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return nil, errMemorydbClosed
	}
	clone := make(map[string][]byte, len(db.db))
	for k, v := range db.db {
		clone[k] = bytes.Clone(v)
	}
	return &snapshot{db: clone}, nil
}

// Stat returns the statistic data of the database.
func (db *Database) Stat() (string, error) {
	return "", nil
}

// Compact is not supported on a memory database, but there's no need either
// as a memory database doesn't waste space anyway.
func (db *Database) Compact(start []byte, limit []byte) error {
	return nil
}

// Len returns the number of entries currently present in the memory
// database. Only used for testing.
func (db *Database) Len() int {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return len(db.db)
}

func newIterator(db map[string][]byte, prefix, start []byte) *iterator {
	var (
		pr     = string(prefix)
		st     = string(append(append([]byte{}, prefix...), start...))
		keys   = make([]string, 0, len(db))
		values = make([][]byte, 0, len(db))
	)
	for key := range db {
		if !strings.HasPrefix(key, pr) {
			continue
		}
		if key >= st {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		values = append(values, db[key])
	}
	return &iterator{index: -1, keys: keys, values: values}
}

// keyvalue is a key-value tuple tagged with a deletion field to allow
// creating memory-database write batches.
type keyvalue struct {
	key    string
	value  []byte
	delete bool
}

// batch is a write-only memory batch that commits changes to its host
// database when Write is called. A batch cannot be used concurrently.
type batch struct {
	db     *Database
	writes []keyvalue
	size   int
}

func (b *batch) Put(key, value []byte) error {
	b.writes = append(b.writes, keyvalue{string(key), bytes.Clone(value), false})
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.writes = append(b.writes, keyvalue{string(key), nil, true})
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int {
	return b.size
}

func (b *batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if b.db.db == nil {
		return errMemorydbClosed
	}
	for _, kv := range b.writes {
		if kv.delete {
			delete(b.db.db, kv.key)
			continue
		}
		b.db.db[kv.key] = kv.value
	}
	return nil
}

func (b *batch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}

func (b *batch) Replay(w kvstore.KeyValueWriter) error {
	for _, kv := range b.writes {
		if kv.delete {
			if err := w.Delete([]byte(kv.key)); err != nil {
				return err
			}
			continue
		}
		if err := w.Put([]byte(kv.key), kv.value); err != nil {
			return err
		}
	}
	return nil
}

// snapshot is a point-in-time, read-only deep copy of a memory database.
type snapshot struct {
	db map[string][]byte
}

func (s *snapshot) Has(key []byte) (bool, error) {
	_, ok := s.db[string(key)]
	return ok, nil
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	if entry, ok := s.db[string(key)]; ok {
		return bytes.Clone(entry), nil
	}
	return nil, errMemorydbNotFound
}

func (s *snapshot) NewIterator(prefix []byte, start []byte) kvstore.Iterator {
	return newIterator(s.db, prefix, start)
}

func (s *snapshot) Release() {
	s.db = nil
}

// iterator can walk over the (potentially partial) keyspace of a memory key
// value store. Internally it is a deep copy of the entire iterated state,
// sorted by keys.
type iterator struct {
	index  int
	keys   []string
	values [][]byte
}

func (it *iterator) Next() bool {
	if it.index >= len(it.keys) {
		return false
	}
	it.index += 1
	return it.index < len(it.keys)
}

func (it *iterator) Error() error {
	return nil
}

func (it *iterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.index])
}

func (it *iterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return it.values[it.index]
}

func (it *iterator) Release() {
	it.index, it.keys, it.values = -1, nil, nil
}
