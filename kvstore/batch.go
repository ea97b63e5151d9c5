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

package kvstore

// IdealBatchSize defines the size of the data batches should ideally add in
// one write.
const IdealBatchSize = 100 * 1024

// Batch is a write-only database that commits changes to its host database
// atomically when Write is called. A batch cannot be used concurrently.
//
// The commit manager relies on a batch's atomicity to apply node puts,
// flat-DB puts/tombstones, the trie-log put and the root-pointer update as
// one indivisible unit: partial application is forbidden.
type Batch interface {
	KeyValueWriter

	// ValueSize retrieves the amount of data queued up for writing.
	ValueSize() int

	// Write flushes any accumulated data to the host store, atomically.
	Write() error

	// Reset resets the batch for reuse.
	Reset()

	// Replay replays the batch contents into w.
	Replay(w KeyValueWriter) error
}

// Batcher wraps the NewBatch method of a backing data store.
type Batcher interface {
	// NewBatch creates a write-only database that buffers changes to its host
	// db until a final write is called.
	NewBatch() Batch

	// NewBatchWithSize creates a write-only database batch with a
	// pre-allocated buffer.
	NewBatchWithSize(size int) Batch
}
