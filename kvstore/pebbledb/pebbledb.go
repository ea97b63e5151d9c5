// Copyright 2023 The go-ethereum Authors
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

// Package pebbledb implements the kvstore.KeyValueStore contract on top of
// Pebble, the default on-disk backend for the trie store.
package pebbledb

import (
	"bytes"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"

	"github.com/karalabe/triekv/kvstore"
	"github.com/karalabe/triekv/log"
)

const (
	// minCache is the minimum amount of memory in megabytes to allocate to
	// pebble read and write caching, split half and half.
	minCache = 16

	// minHandles is the minimum number of files handles to allocate to the
	// open database files.
	minHandles = 16

	// degradationWarnInterval specifies how often a warning should be
	// printed if the database cannot keep up with requested writes.
	degradationWarnInterval = time.Minute
)

// Database is a persistent key-value store based on the pebble storage
// engine. Apart from basic data storage functionality it also supports
// batch writes, snapshotting, and iterating over the keyspace in
// binary-alphabetical order.
type Database struct {
	fn string     // filename for reporting
	db *pebble.DB // underlying pebble storage engine

	quitLock sync.RWMutex // guards the closed flag
	closed   bool         // keep track of whether we're closed

	log log.Logger // contextual logger tracking the database path

	writeStalled        bool
	writeDelayStartTime time.Time

	writeOptions *pebble.WriteOptions
}

// panicLogger is just a noop logger to disable Pebble's internal logger.
type panicLogger struct{}

func (l panicLogger) Infof(format string, args ...interface{})  {}
func (l panicLogger) Errorf(format string, args ...interface{}) {}
func (l panicLogger) Fatalf(format string, args ...interface{}) {
	panic(fmt.Errorf("fatal: "+format, args...))
}

// New returns a wrapped pebble DB object.
func New(file string, cache int, handles int) (*Database, error) {
	if cache < minCache {
		cache = minCache
	}
	if handles < minHandles {
		handles = minHandles
	}
	logger := log.NewLogger(log.DiscardHandler()).With("database", file)

	maxMemTableSize := (1<<31)<<(^uint(0)>>63) - 1
	memTableLimit := 2
	memTableSize := cache * 1024 * 1024 / 2 / memTableLimit
	if memTableSize >= maxMemTableSize {
		memTableSize = maxMemTableSize - 1
	}
	db := &Database{
		fn:           file,
		log:          logger,
		writeOptions: &pebble.WriteOptions{Sync: false},
	}
	opt := &pebble.Options{
		Cache:                       pebble.NewCache(int64(cache * 1024 * 1024)),
		MaxOpenFiles:                handles,
		MemTableSize:                uint64(memTableSize),
		MemTableStopWritesThreshold: memTableLimit,
		MaxConcurrentCompactions:    runtime.NumCPU,
		Levels: []pebble.LevelOptions{
			{TargetFileSize: 2 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 4 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 8 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 16 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 32 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 64 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 128 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
		},
		EventListener: &pebble.EventListener{
			WriteStallBegin: db.onWriteStallBegin,
			WriteStallEnd:   db.onWriteStallEnd,
		},
		Logger: panicLogger{},
	}
	opt.Experimental.ReadSamplingMultiplier = -1

	innerDB, err := pebble.Open(file, opt)
	if err != nil {
		return nil, err
	}
	db.db = innerDB
	return db, nil
}

func (d *Database) onWriteStallBegin(b pebble.WriteStallBeginInfo) {
	d.writeDelayStartTime = time.Now()
	d.writeStalled = true
}

func (d *Database) onWriteStallEnd() {
	if d.writeStalled && time.Since(d.writeDelayStartTime) > degradationWarnInterval {
		d.log.Warn("database write stall cleared", "duration", time.Since(d.writeDelayStartTime))
	}
	d.writeStalled = false
}

// Close flushes any pending data to disk and closes all io accesses to the
// underlying key-value store.
func (d *Database) Close() error {
	d.quitLock.Lock()
	defer d.quitLock.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

func (d *Database) Has(key []byte) (bool, error) {
	d.quitLock.RLock()
	defer d.quitLock.RUnlock()
	if d.closed {
		return false, pebble.ErrClosed
	}
	_, closer, err := d.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err = closer.Close(); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	d.quitLock.RLock()
	defer d.quitLock.RUnlock()
	if d.closed {
		return nil, pebble.ErrClosed
	}
	dat, closer, err := d.db.Get(key)
	if err != nil {
		return nil, err
	}
	ret := bytes.Clone(dat)
	if err = closer.Close(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (d *Database) Put(key []byte, value []byte) error {
	d.quitLock.RLock()
	defer d.quitLock.RUnlock()
	if d.closed {
		return pebble.ErrClosed
	}
	return d.db.Set(key, value, d.writeOptions)
}

func (d *Database) Delete(key []byte) error {
	d.quitLock.RLock()
	defer d.quitLock.RUnlock()
	if d.closed {
		return pebble.ErrClosed
	}
	return d.db.Delete(key, d.writeOptions)
}

func (d *Database) DeleteRange(start, end []byte) error {
	d.quitLock.RLock()
	defer d.quitLock.RUnlock()
	if d.closed {
		return pebble.ErrClosed
	}
	return d.db.DeleteRange(start, end, d.writeOptions)
}

func (d *Database) NewBatch() kvstore.Batch {
	return &batch{b: d.db.NewBatch(), db: d}
}

func (d *Database) NewBatchWithSize(size int) kvstore.Batch {
	return &batch{b: d.db.NewBatchWithSize(size), db: d}
}

// upperBound returns the upper bound for the given prefix.
func upperBound(prefix []byte) (limit []byte) {
	for i := len(prefix) - 1; i >= 0; i-- {
		c := prefix[i]
		if c == 0xff {
			continue
		}
		limit = make([]byte, i+1)
		copy(limit, prefix)
		limit[i] = c + 1
		break
	}
	return limit
}

func (d *Database) Stat() (string, error) {
	return d.db.Metrics().String(), nil
}

func (d *Database) Compact(start []byte, limit []byte) error {
	if limit == nil {
		limit = bytes.Repeat([]byte{0xff}, 32)
	}
	return d.db.Compact(start, limit, true)
}

// Path returns the path to the database directory.
func (d *Database) Path() string {
	return d.fn
}

// NewSnapshot returns a read-only view of the store pinned at this call,
// backed by pebble's native multi-version concurrency control.
func (d *Database) NewSnapshot() (kvstore.Snapshot, error) {
	d.quitLock.RLock()
	defer d.quitLock.RUnlock()
	if d.closed {
		return nil, pebble.ErrClosed
	}
	return &snapshot{snap: d.db.NewSnapshot()}, nil
}

// batch is a write-only batch that commits changes to its host database when
// Write is called. A batch cannot be used concurrently.
type batch struct {
	b    *pebble.Batch
	db   *Database
	size int
}

func (b *batch) Put(key, value []byte) error {
	if err := b.b.Set(key, value, nil); err != nil {
		return err
	}
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	if err := b.b.Delete(key, nil); err != nil {
		return err
	}
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int {
	return b.size
}

func (b *batch) Write() error {
	b.db.quitLock.RLock()
	defer b.db.quitLock.RUnlock()
	if b.db.closed {
		return pebble.ErrClosed
	}
	return b.b.Commit(b.db.writeOptions)
}

func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}

func (b *batch) Replay(w kvstore.KeyValueWriter) error {
	reader := b.b.Reader()
	for {
		kind, k, v, ok, err := reader.Next()
		if !ok || err != nil {
			return err
		}
		switch kind {
		case pebble.InternalKeyKindSet:
			if err = w.Put(k, v); err != nil {
				return err
			}
		case pebble.InternalKeyKindDelete:
			if err = w.Delete(k); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unhandled operation, keytype: %v", kind)
		}
	}
}

// iterator is a wrapper of the underlying pebble iterator, implementing the
// missing APIs of kvstore.Iterator. Not thread-safe.
type iterator struct {
	iter     *pebble.Iterator
	moved    bool
	released bool
}

func (d *Database) NewIterator(prefix []byte, start []byte) kvstore.Iterator {
	iter, _ := d.db.NewIter(&pebble.IterOptions{
		LowerBound: append(append([]byte{}, prefix...), start...),
		UpperBound: upperBound(prefix),
	})
	iter.First()
	return &iterator{iter: iter, moved: true}
}

func (it *iterator) Next() bool {
	if it.moved {
		it.moved = false
		return it.iter.Valid()
	}
	return it.iter.Next()
}

func (it *iterator) Error() error {
	return it.iter.Error()
}

func (it *iterator) Key() []byte {
	return it.iter.Key()
}

func (it *iterator) Value() []byte {
	return it.iter.Value()
}

func (it *iterator) Release() {
	if !it.released {
		it.iter.Close()
		it.released = true
	}
}

// snapshot pins a pebble.Snapshot for the duration of a transactional
// state's read view.
type snapshot struct {
	snap *pebble.Snapshot
}

func (s *snapshot) Has(key []byte) (bool, error) {
	_, closer, err := s.snap.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	dat, closer, err := s.snap.Get(key)
	if err != nil {
		return nil, err
	}
	ret := bytes.Clone(dat)
	return ret, closer.Close()
}

func (s *snapshot) NewIterator(prefix []byte, start []byte) kvstore.Iterator {
	iter, _ := s.snap.NewIter(&pebble.IterOptions{
		LowerBound: append(append([]byte{}, prefix...), start...),
		UpperBound: upperBound(prefix),
	})
	iter.First()
	return &iterator{iter: iter, moved: true}
}

func (s *snapshot) Release() {
	s.snap.Close()
}
