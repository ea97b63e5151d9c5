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

// Config holds the retention and snapshotting policy for a Store. It has no
// effect on root hashes or flat-DB contents, only on how far revert_to and
// GetTransactionalState can reach back.
type Config struct {
	// MaxSavedTrieLogs bounds how many commits back revert_to may go.
	// Older logs are compacted away during the next Commit.
	MaxSavedTrieLogs uint64

	// MaxSavedSnapshots bounds how many historical root pointers are
	// retained for GetTransactionalState. It is independent of
	// MaxSavedTrieLogs: a store may keep logs for revert without keeping
	// every historical root, and vice versa.
	MaxSavedSnapshots uint64

	// SnapshotInterval is how often, in commits, a historical root pointer
	// is persisted to the META column. GetTransactionalState only resolves
	// a commit id that landed exactly on one of these persisted snapshots;
	// a request for any other commit id returns no transactional state,
	// even one still within the MaxSavedSnapshots retention window.
	SnapshotInterval uint64
}

// DefaultConfig returns the configuration a fresh Store is given when the
// caller does not specify one.
func DefaultConfig() Config {
	return Config{
		MaxSavedTrieLogs:  128,
		MaxSavedSnapshots: 128,
		SnapshotInterval:  1,
	}
}
