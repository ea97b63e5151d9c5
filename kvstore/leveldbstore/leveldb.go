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

// Package leveldbstore implements the kvstore.KeyValueStore contract on top
// of goleveldb, an alternate on-disk backend to pebbledb for deployments
// that prefer LevelDB's on-disk format or its narrower dependency surface.
package leveldbstore

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/karalabe/triekv/kvstore"
	"github.com/karalabe/triekv/log"
)

const (
	// degradationWarnInterval specifies how often a warning should be
	// printed if the database cannot keep up with requested writes.
	degradationWarnInterval = time.Minute

	// minCache is the minimum amount of memory in megabytes to allocate to
	// leveldb read and write caching, split half and half.
	minCache = 16

	// minHandles is the minimum number of file handles to allocate to the
	// open database files.
	minHandles = 16
)

// Database is a persistent key-value store. Apart from basic data storage
// functionality it also supports batch writes and iterating over the
// keyspace in binary-alphabetical order.
type Database struct {
	fn string      // filename for reporting
	db *leveldb.DB // underlying leveldb storage engine

	quitLock sync.Mutex      // guards quitChan access
	quitChan chan chan error // signals the stat-polling loop to stop

	writeStalled        bool
	writeDelayStartTime time.Time

	log log.Logger // contextual logger tracking the database path
}

// New returns a wrapped LevelDB object.
func New(file string, cache int, handles int, readonly bool) (*Database, error) {
	return NewCustom(file, func(options *opt.Options) {
		if cache < minCache {
			cache = minCache
		}
		if handles < minHandles {
			handles = minHandles
		}
		options.OpenFilesCacheCapacity = handles
		options.BlockCacheCapacity = cache / 2 * opt.MiB
		options.WriteBuffer = cache / 4 * opt.MiB // Two of these are used internally
		if readonly {
			options.ReadOnly = true
		}
	})
}

// NewCustom returns a wrapped LevelDB object. The customize function allows
// the caller to modify the leveldb options before the database is opened.
func NewCustom(file string, customize func(options *opt.Options)) (*Database, error) {
	options := configureOptions(customize)
	logger := log.NewLogger(log.DiscardHandler()).With("database", file)

	usedCache := options.GetBlockCacheCapacity() + options.GetWriteBuffer()*2
	logCtx := []interface{}{"cache", usedCache / opt.MiB, "handles", options.GetOpenFilesCacheCapacity()}
	if options.ReadOnly {
		logCtx = append(logCtx, "readonly", "true")
	}
	logger.Info("Allocated cache and file handles", logCtx...)

	// Open the db and recover any potential corruptions
	db, err := leveldb.OpenFile(file, options)
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	ldb := &Database{
		fn:       file,
		db:       db,
		log:      logger,
		quitChan: make(chan chan error),
	}
	go ldb.meter(3 * time.Second)
	return ldb, nil
}

// configureOptions sets some default options, then runs the provided setter.
func configureOptions(customizeFn func(*opt.Options)) *opt.Options {
	options := &opt.Options{
		Filter:                 filter.NewBloomFilter(10),
		DisableSeeksCompaction: true,
	}
	if customizeFn != nil {
		customizeFn(options)
	}
	return options
}

// Close stops the stat-polling loop, flushes any pending data to disk and
// closes all io accesses to the underlying key-value store.
func (db *Database) Close() error {
	db.quitLock.Lock()
	defer db.quitLock.Unlock()

	if db.quitChan != nil {
		errc := make(chan error)
		db.quitChan <- errc
		if err := <-errc; err != nil {
			db.log.Error("Metrics collection failed", "err", err)
		}
		db.quitChan = nil
	}
	return db.db.Close()
}

func (db *Database) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

func (db *Database) Get(key []byte) ([]byte, error) {
	dat, err := db.db.Get(key, nil)
	if err != nil {
		return nil, err
	}
	return dat, nil
}

func (db *Database) Put(key []byte, value []byte) error {
	return db.db.Put(key, value, nil)
}

func (db *Database) Delete(key []byte) error {
	return db.db.Delete(key, nil)
}

// ErrTooManyKeys is returned if a DeleteRange call only managed to delete
// part of the requested range before hitting its internal key-count cap.
var ErrTooManyKeys = errors.New("too many keys in deleted range")

// DeleteRange deletes all of the keys (and values) in the range [start,end).
//
// This is a fallback implementation since leveldb does not natively support
// range deletion: it can be slow, so the number of deleted keys is capped to
// avoid blocking for a very long time. ErrTooManyKeys is returned if the
// range has only been partially deleted; callers should repeat the call
// until it succeeds.
func (db *Database) DeleteRange(start, end []byte) error {
	batch := db.NewBatch()
	it := db.NewIterator(nil, start)
	defer it.Release()

	var count int
	for it.Next() && bytes.Compare(end, it.Key()) > 0 {
		count++
		if count > 10000 {
			if err := batch.Write(); err != nil {
				return err
			}
			return ErrTooManyKeys
		}
		if err := batch.Delete(it.Key()); err != nil {
			return err
		}
	}
	return batch.Write()
}

func (db *Database) NewBatch() kvstore.Batch {
	return &batch{db: db.db, b: new(leveldb.Batch)}
}

func (db *Database) NewBatchWithSize(size int) kvstore.Batch {
	return &batch{db: db.db, b: leveldb.MakeBatch(size)}
}

func (db *Database) NewIterator(prefix []byte, start []byte) kvstore.Iterator {
	return db.db.NewIterator(bytesPrefixRange(prefix, start), nil)
}

func (db *Database) Stat() (string, error) {
	var stats leveldb.DBStats
	if err := db.db.Stats(&stats); err != nil {
		return "", err
	}
	message := fmt.Sprintf("Read(MB):%.5f Write(MB):%.5f\n", float64(stats.IORead)/1048576.0, float64(stats.IOWrite)/1048576.0)
	message += fmt.Sprintf("WriteDelayCount:%d WriteDelayDuration:%s Paused:%t\n", stats.WriteDelayCount, stats.WriteDelayDuration, stats.WritePaused)
	message += fmt.Sprintf("Snapshots:%d Iterators:%d\n", stats.AliveSnapshots, stats.AliveIterators)
	return message, nil
}

// Compact flattens the underlying data store for the given key range. A nil
// start is treated as a key before all keys in the data store; a nil limit
// is treated as a key after all keys in the data store. If both are nil the
// entire data store is compacted.
func (db *Database) Compact(start []byte, limit []byte) error {
	return db.db.CompactRange(util.Range{Start: start, Limit: limit})
}

// Path returns the path to the database directory.
func (db *Database) Path() string {
	return db.fn
}

// NewSnapshot returns a read-only view of the store pinned at this call,
// backed by leveldb's native multi-version concurrency control.
func (db *Database) NewSnapshot() (kvstore.Snapshot, error) {
	snap, err := db.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &snapshot{snap: snap}, nil
}

// meter periodically retrieves internal leveldb counters, watching for a
// sustained write stall so a degraded-performance warning can be logged at
// most once per degradationWarnInterval.
func (db *Database) meter(refresh time.Duration) {
	var (
		errc       chan error
		merr       error
		delaystats [2]int64
	)
	timer := time.NewTimer(refresh)
	defer timer.Stop()

	for errc == nil && merr == nil {
		var stats leveldb.DBStats
		if err := db.db.Stats(&stats); err != nil {
			db.log.Error("Failed to read database stats", "err", err)
			merr = err
			continue
		}
		delayN := int64(stats.WriteDelayCount)
		duration := stats.WriteDelayDuration
		if stats.WritePaused && delayN == delaystats[0] && duration.Nanoseconds() == delaystats[1] {
			if !db.writeStalled {
				db.writeStalled = true
				db.writeDelayStartTime = time.Now()
			} else if time.Since(db.writeDelayStartTime) > degradationWarnInterval {
				db.log.Warn("Database compacting, degraded performance")
				db.writeDelayStartTime = time.Now()
			}
		} else {
			db.writeStalled = false
		}
		delaystats[0], delaystats[1] = delayN, duration.Nanoseconds()

		select {
		case errc = <-db.quitChan:
		case <-timer.C:
			timer.Reset(refresh)
		}
	}
	if errc == nil {
		errc = <-db.quitChan
	}
	errc <- merr
}

// batch is a write-only leveldb batch that commits changes to its host
// database when Write is called. A batch cannot be used concurrently.
type batch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *batch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int {
	return b.size
}

func (b *batch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}

func (b *batch) Replay(w kvstore.KeyValueWriter) error {
	return b.b.Replay(&replayer{writer: w})
}

// replayer is a small wrapper to implement the correct replay methods.
type replayer struct {
	writer  kvstore.KeyValueWriter
	failure error
}

func (r *replayer) Put(key, value []byte) {
	if r.failure != nil {
		return
	}
	r.failure = r.writer.Put(key, value)
}

func (r *replayer) Delete(key []byte) {
	if r.failure != nil {
		return
	}
	r.failure = r.writer.Delete(key)
}

// snapshot pins a leveldb.Snapshot for the duration of a transactional
// state's read view.
type snapshot struct {
	snap *leveldb.Snapshot
}

func (s *snapshot) Has(key []byte) (bool, error) {
	return s.snap.Has(key, nil)
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	return s.snap.Get(key, nil)
}

func (s *snapshot) NewIterator(prefix []byte, start []byte) kvstore.Iterator {
	return s.snap.NewIterator(bytesPrefixRange(prefix, start), nil)
}

func (s *snapshot) Release() {
	s.snap.Release()
}

// bytesPrefixRange returns a key range that satisfies the given prefix and
// the given seek position.
func bytesPrefixRange(prefix, start []byte) *util.Range {
	r := util.BytesPrefix(prefix)
	r.Start = append(r.Start, start...)
	return r
}
