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
	"github.com/karalabe/triekv/bitpath"
	"github.com/karalabe/triekv/felt"
)

// flatChange is the overlay's record of one flat-DB key touched since the
// last commit: the value it held immediately before this handle's first
// write to it, and the value (or tombstone) it holds now.
type flatChange struct {
	path bitpath.Path

	hadPrior bool
	prior    felt.Felt

	deleted  bool
	newValue felt.Felt
}

// overlay is the Change Store's flat-DB half (§4.F): "a map of flat-DB key
// → new-value-or-tombstone". The trie's own dirty inline nodes and the
// tracer's deleted-hash set cover the node half; they live on the *trie.Trie
// a Handle already embeds, so overlay only needs to carry this map.
type overlay struct {
	changes map[string]*flatChange
}

func newOverlay() *overlay {
	return &overlay{changes: make(map[string]*flatChange)}
}

// touch returns the flatChange for path, creating it (and recording prior
// as the pre-overlay value) on first touch. Later touches within the same
// overlay reuse the same record, so prior always reflects the value as of
// the last commit, never an intermediate uncommitted value.
func (o *overlay) touch(path bitpath.Path, hadPrior bool, prior felt.Felt) *flatChange {
	key := string(path.Packed())
	if c, ok := o.changes[key]; ok {
		return c
	}
	c := &flatChange{path: path, hadPrior: hadPrior, prior: prior}
	o.changes[key] = c
	return c
}

// lookup returns the overlay's current view of path, if it has been
// touched since the last commit.
func (o *overlay) lookup(path bitpath.Path) (*flatChange, bool) {
	c, ok := o.changes[string(path.Packed())]
	return c, ok
}

// empty reports whether no flat-DB key has been touched since the last
// commit.
func (o *overlay) empty() bool {
	return len(o.changes) == 0
}

// reset discards every pending change, used both after a successful commit
// (changes are now persisted) and when a handle is dropped without
// committing (§5: "discards its overlay with no side effect on the
// backend").
func (o *overlay) reset() {
	o.changes = make(map[string]*flatChange)
}
