// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"encoding/binary"
	"errors"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	errBlockWrongVersion = errors.New("wrong version")

	_ BlockState = &blockState{}
)

// BlockState stores committed blocks by height.
type BlockState interface {
	GetBlock(height uint64) (*Block, error)
	PutBlock(blk *Block) error

	ClearCache()
}

type blockState struct {
	blkCache cache.Cacher
	blockDB  database.Database
}

func NewBlockState(db database.Database, cacheSize int, registerer prometheus.Registerer) (BlockState, error) {
	blkCache, err := metercacher.New(
		"block_cache",
		registerer,
		&cache.LRU{Size: cacheSize},
	)
	if err != nil {
		return nil, err
	}
	return &blockState{
		blkCache: blkCache,
		blockDB:  db,
	}, nil
}

func heightKey(height uint64) []byte {
	key := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(key, height)
	return key
}

func (s *blockState) GetBlock(height uint64) (*Block, error) {
	if blkIntf, ok := s.blkCache.Get(height); ok {
		if blkIntf == nil {
			return nil, database.ErrNotFound
		}
		return blkIntf.(*Block), nil
	}

	blkBytes, err := s.blockDB.Get(heightKey(height))
	if err == database.ErrNotFound {
		s.blkCache.Put(height, nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	blk := &Block{}
	parsedVersion, err := Codec.Unmarshal(blkBytes, blk)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errBlockWrongVersion
	}

	s.blkCache.Put(height, blk)
	return blk, nil
}

func (s *blockState) PutBlock(blk *Block) error {
	bytes, err := Codec.Marshal(CodecVersion, blk)
	if err != nil {
		return err
	}
	if err := s.blockDB.Put(heightKey(blk.Height), bytes); err != nil {
		return err
	}
	s.blkCache.Put(blk.Height, blk)
	return nil
}

func (s *blockState) ClearCache() {
	s.blkCache.Flush()
}
