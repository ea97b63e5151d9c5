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

package trie

import "github.com/karalabe/triekv/bitpath"

// Preload walks the read path for every key in keys, resolving each node
// along the way through the reader without mutating the trie. It exists to
// warm a caching reader (e.g. the decoded-node cache triestore sits in
// front of its backend with) ahead of a write burst that will immediately
// need those same nodes; the resolved nodes themselves are discarded here
// since Get never threads resolved nodes back into the live tree.
func (t *Trie) Preload(keys [][]byte) error {
	for _, key := range keys {
		path := bitpath.FromKey(key)
		if err := t.checkKeyLen(path.Len()); err != nil {
			return err
		}
		if _, err := t.get(t.root, path); err != nil {
			return err
		}
	}
	return nil
}
