// Copyright 2024 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// triekv is a command-line inspection tool for a triestore database: get,
// put, show the current root and revert to a prior commit.
package main

import (
	"fmt"
	"math/big"
	"os"

	"github.com/karalabe/triekv/felt"
	"github.com/karalabe/triekv/kvstore/pebbledb"
	"github.com/karalabe/triekv/triehash"
	"github.com/karalabe/triekv/triekv"
	"github.com/karalabe/triekv/triestore"
	"github.com/urfave/cli/v2"
)

var (
	dbFlag = &cli.StringFlag{
		Name:     "db",
		Usage:    "path to the Pebble data directory",
		Required: true,
	}
	identifierFlag = &cli.StringFlag{
		Name:     "identifier",
		Usage:    "trie identifier to operate on",
		Required: true,
	}
	cacheFlag = &cli.IntFlag{
		Name:  "cache",
		Usage: "Pebble block cache size in megabytes",
		Value: 16,
	}
	handlesFlag = &cli.IntFlag{
		Name:  "handles",
		Usage: "number of open file handles to allocate to Pebble",
		Value: 64,
	}
)

func main() {
	app := &cli.App{
		Name:  "triekv",
		Usage: "inspect and manipulate a triestore database",
		Flags: []cli.Flag{dbFlag, identifierFlag, cacheFlag, handlesFlag},
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print the value stored under a key",
				ArgsUsage: "<key>",
				Action:    get,
			},
			{
				Name:      "put",
				Usage:     "insert a key/value pair as a new commit",
				ArgsUsage: "<key> <value> <commit-id>",
				Action:    put,
			},
			{
				Name:   "root",
				Usage:  "print the current root hash",
				Action: root,
			},
			{
				Name:      "revert",
				Usage:     "revert the trunk to a prior commit",
				ArgsUsage: "<commit-id>",
				Action:    revert,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(ctx *cli.Context) (*triestore.Store, error) {
	db, err := pebbledb.New(ctx.String(dbFlag.Name), ctx.Int(cacheFlag.Name), ctx.Int(handlesFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("opening pebble database: %w", err)
	}
	return triestore.NewStore(db, triehash.NewKeccakHasher(), triestore.DefaultConfig(), 0), nil
}

func identifier(ctx *cli.Context) triekv.ID {
	return triekv.ID(ctx.String(identifierFlag.Name))
}

// parseFelt accepts a decimal or 0x-prefixed hexadecimal integer literal.
func parseFelt(s string) (felt.Felt, error) {
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return felt.Felt{}, fmt.Errorf("%q is not a valid integer literal", s)
	}
	b := n.Bytes()
	padded := make([]byte, felt.Size)
	copy(padded[felt.Size-len(b):], b)
	return felt.FromBytes(padded)
}

func get(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("get expects exactly one argument: <key>")
	}
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	h, err := s.Trunk(identifier(ctx))
	if err != nil {
		return err
	}
	defer h.Close()

	v, ok, err := h.Get([]byte(ctx.Args().Get(0)))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("<absent>")
		return nil
	}
	fmt.Println(v.String())
	return nil
}

func put(ctx *cli.Context) error {
	if ctx.NArg() != 3 {
		return fmt.Errorf("put expects exactly three arguments: <key> <value> <commit-id>")
	}
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	h, err := s.Trunk(identifier(ctx))
	if err != nil {
		return err
	}
	defer h.Close()

	value, err := parseFelt(ctx.Args().Get(1))
	if err != nil {
		return err
	}
	id, ok := new(big.Int).SetString(ctx.Args().Get(2), 10)
	if !ok {
		return fmt.Errorf("%q is not a valid commit id", ctx.Args().Get(2))
	}
	if err := h.Insert([]byte(ctx.Args().Get(0)), value); err != nil {
		return err
	}
	return h.Commit(triekv.CommitID(id.Uint64()))
}

func root(ctx *cli.Context) error {
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	h, err := s.Trunk(identifier(ctx))
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Println(h.RootHash().String())
	return nil
}

func revert(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("revert expects exactly one argument: <commit-id>")
	}
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	h, err := s.Trunk(identifier(ctx))
	if err != nil {
		return err
	}
	defer h.Close()

	id, ok := new(big.Int).SetString(ctx.Args().Get(0), 10)
	if !ok {
		return fmt.Errorf("%q is not a valid commit id", ctx.Args().Get(0))
	}
	return h.RevertTo(triekv.CommitID(id.Uint64()))
}
