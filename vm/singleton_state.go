// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/avalanchego/database"
)

const (
	IsInitializedKey byte = iota
	PlatformStateKey
)

var (
	isInitializedKey = []byte{IsInitializedKey}
	platformStateKey = []byte{PlatformStateKey}

	_ SingletonState = (*singletonState)(nil)
)

// SingletonState is a thin wrapper around a database to provide
// serialization and de-serialization of the initialization status and of
// the platform state.
type SingletonState interface {
	IsInitialized() (bool, error)
	SetInitialized() error

	GetPlatformState() (*PlatformState, error)
	SetPlatformState(*PlatformState) error
}

type singletonState struct {
	singletonDB database.Database
}

func NewSingletonState(db database.Database) SingletonState {
	return &singletonState{
		singletonDB: db,
	}
}

func (s *singletonState) IsInitialized() (bool, error) {
	return s.singletonDB.Has(isInitializedKey)
}

func (s *singletonState) SetInitialized() error {
	return s.singletonDB.Put(isInitializedKey, nil)
}

func (s *singletonState) GetPlatformState() (*PlatformState, error) {
	bytes, err := s.singletonDB.Get(platformStateKey)
	if err != nil {
		return nil, err
	}
	ps := &PlatformState{}
	parsedVersion, err := Codec.Unmarshal(bytes, ps)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errBlockWrongVersion
	}
	return ps, nil
}

func (s *singletonState) SetPlatformState(ps *PlatformState) error {
	bytes, err := Codec.Marshal(CodecVersion, ps)
	if err != nil {
		return err
	}
	return s.singletonDB.Put(platformStateKey, bytes)
}
