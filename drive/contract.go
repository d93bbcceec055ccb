// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/transitionvm/types"
)

var _ DriveOperation = &InsertContract{}

// FetchContract returns contract [id] or database.ErrNotFound. Decoded
// contracts are cached by the hash of their stored bytes, so a cached value
// is never stale. The returned contract is shared and must not be modified.
func (d *Drive) FetchContract(db database.Database, id ids.ID) (*types.DataContract, error) {
	b, err := subtreeDB(SubtreeContracts, db).Get(id[:])
	if err != nil {
		return nil, err
	}
	contentID := hashing.ComputeHash256Array(b)
	if cached, ok := d.contracts.Get(contentID); ok {
		return cached.(*types.DataContract), nil
	}
	contract := &types.DataContract{}
	if err := unmarshal(b, contract); err != nil {
		return nil, fmt.Errorf("%w: contract %s: %v", ErrCorruptedState, id, err)
	}
	d.contracts.Put(contentID, contract)
	return contract, nil
}

func (d *Drive) ContractExists(db database.Database, id ids.ID) (bool, error) {
	return subtreeDB(SubtreeContracts, db).Has(id[:])
}

// InsertContract stores a contract, replacing any previous version.
type InsertContract struct {
	Contract types.DataContract
}

func (o *InsertContract) lower(c *opContext) error {
	b, err := marshal(&o.Contract)
	if err != nil {
		return err
	}
	return c.put(SubtreeContracts, o.Contract.ID[:], b)
}
