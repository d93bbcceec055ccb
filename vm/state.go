// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	singletonStatePrefix = []byte("singleton")
	blockStatePrefix     = []byte("block")

	_ State = &state{}
)

// State is a wrapper around SingletonState and BlockState.
// State also exposes the database the drive state lives in and the methods
// needed for managing database commits and close.
type State interface {
	SingletonState
	BlockState

	// DriveDB is the committed drive state. Block execution layers its
	// writes on top of it; readers use it directly.
	DriveDB() database.Database

	Commit() error
	// Abort drops every write made since the last Commit.
	Abort()
	Close() error
}

type state struct {
	SingletonState
	BlockState

	baseDB *versiondb.Database
}

func NewState(db database.Database, blockCacheSize int, registerer prometheus.Registerer) (State, error) {
	// create a new baseDB
	baseDB := versiondb.New(db)

	// create a prefixed "singletonDB" from baseDB
	singletonDB := prefixdb.New(singletonStatePrefix, baseDB)
	// create a prefixed "blockDB" from baseDB
	blockDB := prefixdb.New(blockStatePrefix, baseDB)

	blockState, err := NewBlockState(blockDB, blockCacheSize, registerer)
	if err != nil {
		return nil, err
	}

	// the drive subtrees sit next to the singleton and block prefixes
	return &state{
		SingletonState: NewSingletonState(singletonDB),
		BlockState:     blockState,
		baseDB:         baseDB,
	}, nil
}

func (s *state) DriveDB() database.Database { return s.baseDB }

// Commit commits pending operations to the underlying database
func (s *state) Commit() error {
	return s.baseDB.Commit()
}

// Abort discards pending operations and the blocks cached with them
func (s *state) Abort() {
	s.baseDB.Abort()
	s.ClearCache()
}

// Close closes the underlying base database
func (s *state) Close() error {
	return s.baseDB.Close()
}
