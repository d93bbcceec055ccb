// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

// RootHash commits to the whole state visible through [db]: it hashes every
// subtree in key order and then the list of subtree hashes.
func (d *Drive) RootHash(db database.Database) (ids.ID, error) {
	subtreeHashes := make([]byte, 0, numSubtrees*hashing.HashLen)
	for s := 0; s < numSubtrees; s++ {
		h, err := subtreeHash(subtreeDB(Subtree(s), db))
		if err != nil {
			return ids.Empty, err
		}
		subtreeHashes = append(subtreeHashes, h...)
	}
	return hashing.ComputeHash256Array(subtreeHashes), nil
}

func subtreeHash(db database.Database) ([]byte, error) {
	it := db.NewIterator()
	defer it.Release()

	h := sha256.New()
	lenBytes := make([]byte, wrappers.IntLen)
	for it.Next() {
		binary.BigEndian.PutUint32(lenBytes, uint32(len(it.Key())))
		_, _ = h.Write(lenBytes)
		_, _ = h.Write(it.Key())
		binary.BigEndian.PutUint32(lenBytes, uint32(len(it.Value())))
		_, _ = h.Write(lenBytes)
		_, _ = h.Write(it.Value())
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
