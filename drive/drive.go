// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package drive stores platform state in a database.Database. Every write is
// expressed as an Operation so that its fee can be estimated before, and
// charged after, it is applied.
package drive

import (
	"errors"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"
)

const (
	// CodecVersion is the version records are stored with.
	CodecVersion = 0

	contractCacheSize = 256
)

var (
	ErrCorruptedState = errors.New("corrupted state")

	errWrongCodecVersion = errors.New("wrong codec version")

	// Codec serializes stored records.
	Codec codec.Manager

	logger = log.New("module", "drive")
)

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	errs := wrappers.Errs{}
	errs.Add(
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}

// Drive reads and writes platform state. It holds no handle to the store:
// every call takes the transaction it runs against, so the same Drive serves
// the block writer and concurrent readers of the committed state.
type Drive struct {
	contracts cache.Cacher
}

// New returns a Drive whose contract cache reports to [registerer].
func New(registerer prometheus.Registerer) (*Drive, error) {
	contracts, err := metercacher.New(
		"contract_cache",
		registerer,
		&cache.LRU{Size: contractCacheSize},
	)
	if err != nil {
		return nil, err
	}
	return &Drive{contracts: contracts}, nil
}

func subtreeDB(subtree Subtree, db database.Database) database.Database {
	return prefixdb.New(subtree.Prefix(), db)
}

func unmarshal(b []byte, dst interface{}) error {
	parsedVersion, err := Codec.Unmarshal(b, dst)
	if err != nil {
		return err
	}
	if parsedVersion != CodecVersion {
		return errWrongCodecVersion
	}
	return nil
}

func marshal(v interface{}) ([]byte, error) {
	return Codec.Marshal(CodecVersion, v)
}
