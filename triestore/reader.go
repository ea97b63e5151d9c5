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
	"fmt"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/karalabe/triekv/felt"
	"github.com/karalabe/triekv/kvstore"
	"github.com/karalabe/triekv/triekv"
)

// nodeReader adapts a backend (or a backend snapshot) into a trie.NodeReader
// over one identifier's TRIE_NODES column, optionally fronted by a shared
// decoded-blob cache. Node-store entries are immutable once written, so
// caching them carries none of the invalidation concerns a mutable value
// cache would.
type nodeReader struct {
	backend    kvstore.KeyValueReader
	identifier triekv.ID
	cache      *fastcache.Cache
}

func (r *nodeReader) Node(hash felt.Felt) ([]byte, error) {
	key := nodeKey(r.identifier, hash)
	if r.cache != nil {
		if blob, ok := r.cache.HasGet(nil, key); ok {
			return blob, nil
		}
	}
	ok, err := r.backend.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("triestore: node %s absent for identifier %s", hash, r.identifier)
	}
	blob, err := r.backend.Get(key)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(key, blob)
	}
	return blob, nil
}

// getFlat reads the persisted (non-overlay) value for path under
// identifier, reporting ok=false rather than an error when absent.
func getFlat(backend kvstore.KeyValueReader, identifier triekv.ID, key []byte) (felt.Felt, bool, error) {
	blob, ok, err := getRaw(backend, key)
	if err != nil || !ok {
		return felt.Felt{}, false, err
	}
	v, err := felt.FromBytes(blob)
	if err != nil {
		return felt.Felt{}, false, fmt.Errorf("triestore: decode flat value for identifier %s: %w", identifier, err)
	}
	return v, true, nil
}

// getRaw reads key from backend, reporting ok=false rather than an error
// when absent. It is the Has-then-Get pattern every lookup in this package
// uses, since the concrete kvstore backends return a backend-specific
// not-found error from Get rather than a shared sentinel this package
// could match on, and Has is the one method every backend implements
// consistently as a boolean.
func getRaw(backend kvstore.KeyValueReader, key []byte) ([]byte, bool, error) {
	ok, err := backend.Has(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	blob, err := backend.Get(key)
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}
