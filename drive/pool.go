// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/holiman/uint256"

	"github.com/ava-labs/transitionvm/types"
)

var (
	_ DriveOperation = &AddToEpochPool{}
	_ DriveOperation = &IncrementProposerBlockCount{}
	_ DriveOperation = &ClearEpochPool{}
)

// FetchEpochPool returns the credits collected during [epoch].
func (d *Drive) FetchEpochPool(db database.Database, epoch uint16) (uint64, error) {
	v, err := fetchUint64(db, SubtreePools, poolFeesKey(epoch))
	if err == database.ErrNotFound {
		return 0, nil
	}
	return v, err
}

// ProposerBlocks is the number of blocks a proposer produced in an epoch.
type ProposerBlocks struct {
	ProTxHash ids.ID
	Blocks    uint64
}

// FetchProposerBlockCounts returns the proposers of [epoch] ordered by pro tx hash.
func (d *Drive) FetchProposerBlockCounts(db database.Database, epoch uint16) ([]ProposerBlocks, error) {
	prefix := proposerKeyPrefix(epoch)
	it := subtreeDB(SubtreePools, db).NewIteratorWithPrefix(prefix)
	defer it.Release()

	var counts []ProposerBlocks
	for it.Next() {
		proTxHash, err := ids.ToID(it.Key()[len(prefix):])
		if err != nil {
			return nil, fmt.Errorf("%w: proposer key: %v", ErrCorruptedState, err)
		}
		blocks, err := parseUint64(it.Value())
		if err != nil {
			return nil, err
		}
		counts = append(counts, ProposerBlocks{ProTxHash: proTxHash, Blocks: blocks})
	}
	return counts, it.Error()
}

// Payout is the share of an epoch pool owed to one proposer.
type Payout struct {
	ProTxHash ids.ID
	Amount    uint64
}

// SplitPool divides [pool] pro rata to the block counts of [proposers].
// Integer division remainders are returned as [remainder].
func SplitPool(pool uint64, proposers []ProposerBlocks) (payouts []Payout, remainder uint64) {
	total := new(uint256.Int)
	for _, p := range proposers {
		total.Add(total, uint256.NewInt(p.Blocks))
	}
	if total.IsZero() {
		return nil, pool
	}
	poolInt := uint256.NewInt(pool)
	remainder = pool
	for _, p := range proposers {
		share := new(uint256.Int).Mul(poolInt, uint256.NewInt(p.Blocks))
		share.Div(share, total)
		amount := share.Uint64()
		remainder -= amount
		payouts = append(payouts, Payout{ProTxHash: p.ProTxHash, Amount: amount})
	}
	return payouts, remainder
}

type AddToEpochPool struct {
	Epoch  uint16
	Amount uint64
}

func (o *AddToEpochPool) lower(c *opContext) error {
	current, _, err := c.getUint64(SubtreePools, poolFeesKey(o.Epoch))
	if err != nil {
		return err
	}
	next, err := types.AddCredits(current, o.Amount)
	if err != nil {
		return err
	}
	return c.putUint64(SubtreePools, poolFeesKey(o.Epoch), next)
}

type IncrementProposerBlockCount struct {
	Epoch     uint16
	ProTxHash ids.ID
}

func (o *IncrementProposerBlockCount) lower(c *opContext) error {
	key := proposerKey(o.Epoch, o.ProTxHash)
	count, _, err := c.getUint64(SubtreePools, key)
	if err != nil {
		return err
	}
	return c.putUint64(SubtreePools, key, count+1)
}

// ClearEpochPool removes the pool and proposer counts of a paid out epoch.
type ClearEpochPool struct {
	Epoch uint16
}

func (o *ClearEpochPool) lower(c *opContext) error {
	keys, err := collectKeys(c.db, SubtreePools, proposerKeyPrefix(o.Epoch))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.delete(SubtreePools, key); err != nil {
			return err
		}
	}
	return c.delete(SubtreePools, poolFeesKey(o.Epoch))
}

// collectKeys returns the full subtree keys starting with [prefix].
func collectKeys(db database.Database, subtree Subtree, prefix []byte) ([][]byte, error) {
	it := subtreeDB(subtree, db).NewIteratorWithPrefix(prefix)
	defer it.Release()

	var keys [][]byte
	for it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		keys = append(keys, key)
	}
	return keys, it.Error()
}
