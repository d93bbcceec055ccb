// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/types"
)

var (
	_ DriveOperation = &InsertIdentity{}
	_ DriveOperation = &AddToIdentityBalance{}
	_ DriveOperation = &RemoveFromIdentityBalance{}
	_ DriveOperation = &SetIdentityRevision{}
	_ DriveOperation = &AddIdentityKeys{}
	_ DriveOperation = &DisableIdentityKeys{}
)

// identityRecord is the stored part of an identity that changes rarely.
// Balance and revision live in their own subtrees.
type identityRecord struct {
	PublicKeys []types.IdentityPublicKey `serialize:"true"`
}

func (d *Drive) IdentityExists(db database.Database, id ids.ID) (bool, error) {
	return subtreeDB(SubtreeIdentities, db).Has(id[:])
}

// FetchIdentity returns the identity [id] or database.ErrNotFound.
func (d *Drive) FetchIdentity(db database.Database, id ids.ID) (*types.Identity, error) {
	b, err := subtreeDB(SubtreeIdentities, db).Get(id[:])
	if err != nil {
		return nil, err
	}
	record := identityRecord{}
	if err := unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("%w: identity %s: %v", ErrCorruptedState, id, err)
	}
	balance, err := d.FetchIdentityBalance(db, id)
	if err != nil {
		return nil, err
	}
	revision, err := d.FetchIdentityRevision(db, id)
	if err != nil {
		return nil, err
	}
	return &types.Identity{
		ID:         id,
		Balance:    balance,
		Revision:   revision,
		PublicKeys: record.PublicKeys,
	}, nil
}

func (d *Drive) FetchIdentityBalance(db database.Database, id ids.ID) (uint64, error) {
	return fetchUint64(db, SubtreeBalances, id[:])
}

func (d *Drive) FetchIdentityRevision(db database.Database, id ids.ID) (uint64, error) {
	return fetchUint64(db, SubtreeRevisions, id[:])
}

func fetchUint64(db database.Database, subtree Subtree, key []byte) (uint64, error) {
	b, err := subtreeDB(subtree, db).Get(key)
	if err != nil {
		return 0, err
	}
	return parseUint64(b)
}

func (c *opContext) loadIdentityRecord(id ids.ID) (*identityRecord, error) {
	b, err := c.get(SubtreeIdentities, id[:])
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: identity %s missing", ErrCorruptedState, id)
	}
	record := &identityRecord{}
	if err := unmarshal(b, record); err != nil {
		return nil, fmt.Errorf("%w: identity %s: %v", ErrCorruptedState, id, err)
	}
	return record, nil
}

func (c *opContext) storeIdentityRecord(id ids.ID, record *identityRecord) error {
	b, err := marshal(record)
	if err != nil {
		return err
	}
	return c.put(SubtreeIdentities, id[:], b)
}

// InsertIdentity stores a new identity.
type InsertIdentity struct {
	Identity types.Identity
}

func (o *InsertIdentity) lower(c *opContext) error {
	id := o.Identity.ID
	if err := c.storeIdentityRecord(id, &identityRecord{PublicKeys: o.Identity.PublicKeys}); err != nil {
		return err
	}
	if err := c.putUint64(SubtreeBalances, id[:], o.Identity.Balance); err != nil {
		return err
	}
	return c.putUint64(SubtreeRevisions, id[:], o.Identity.Revision)
}

type AddToIdentityBalance struct {
	IdentityID ids.ID
	Amount     uint64
}

func (o *AddToIdentityBalance) lower(c *opContext) error {
	balance, ok, err := c.getUint64(SubtreeBalances, o.IdentityID[:])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: balance of %s missing", ErrCorruptedState, o.IdentityID)
	}
	balance, err = types.AddCredits(balance, o.Amount)
	if err != nil {
		return err
	}
	return c.putUint64(SubtreeBalances, o.IdentityID[:], balance)
}

// RemoveFromIdentityBalance debits an identity. Debiting below zero fails the
// operation without writing.
type RemoveFromIdentityBalance struct {
	IdentityID ids.ID
	Amount     uint64
}

func (o *RemoveFromIdentityBalance) lower(c *opContext) error {
	balance, ok, err := c.getUint64(SubtreeBalances, o.IdentityID[:])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: balance of %s missing", ErrCorruptedState, o.IdentityID)
	}
	balance, err = types.SubCredits(balance, o.Amount)
	if err != nil {
		return err
	}
	return c.putUint64(SubtreeBalances, o.IdentityID[:], balance)
}

type SetIdentityRevision struct {
	IdentityID ids.ID
	Revision   uint64
}

func (o *SetIdentityRevision) lower(c *opContext) error {
	return c.putUint64(SubtreeRevisions, o.IdentityID[:], o.Revision)
}

type AddIdentityKeys struct {
	IdentityID ids.ID
	Keys       []types.IdentityPublicKey
}

func (o *AddIdentityKeys) lower(c *opContext) error {
	record, err := c.loadIdentityRecord(o.IdentityID)
	if err != nil {
		return err
	}
	record.PublicKeys = append(record.PublicKeys, o.Keys...)
	return c.storeIdentityRecord(o.IdentityID, record)
}

type DisableIdentityKeys struct {
	IdentityID ids.ID
	KeyIDs     []uint32
	DisabledAt uint64
}

func (o *DisableIdentityKeys) lower(c *opContext) error {
	record, err := c.loadIdentityRecord(o.IdentityID)
	if err != nil {
		return err
	}
	for _, keyID := range o.KeyIDs {
		found := false
		for i := range record.PublicKeys {
			if record.PublicKeys[i].ID == keyID {
				record.PublicKeys[i].DisabledAt = o.DisabledAt
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: key %d of %s missing", ErrCorruptedState, keyID, o.IdentityID)
		}
	}
	return c.storeIdentityRecord(o.IdentityID, record)
}
