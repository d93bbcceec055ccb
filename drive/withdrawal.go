// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
)

var _ DriveOperation = &EnqueueWithdrawal{}

// Withdrawal is a queued core chain payout.
type Withdrawal struct {
	Index          uint64 `serialize:"true" json:"index"`
	IdentityID     ids.ID `serialize:"true" json:"identityId"`
	Amount         uint64 `serialize:"true" json:"amount"`
	CoreFeePerByte uint32 `serialize:"true" json:"coreFeePerByte"`
	Pooling        uint8  `serialize:"true" json:"pooling"`
	OutputScript   []byte `serialize:"true" json:"outputScript"`
	CreatedAtMs    uint64 `serialize:"true" json:"createdAtMs"`
}

// EnqueueWithdrawal appends [Withdrawal] to the queue. Its index is assigned
// when lowered.
type EnqueueWithdrawal struct {
	Withdrawal Withdrawal
}

func (o *EnqueueWithdrawal) lower(c *opContext) error {
	next, _, err := c.getUint64(SubtreeMisc, nextWithdrawalIndexKey)
	if err != nil {
		return err
	}
	w := o.Withdrawal
	w.Index = next
	b, err := marshal(&w)
	if err != nil {
		return err
	}
	if err := c.put(SubtreeWithdrawals, uint64Bytes(next), b); err != nil {
		return err
	}
	return c.putUint64(SubtreeMisc, nextWithdrawalIndexKey, next+1)
}

// FetchWithdrawals returns the queue in index order.
func (d *Drive) FetchWithdrawals(db database.Database) ([]Withdrawal, error) {
	it := subtreeDB(SubtreeWithdrawals, db).NewIterator()
	defer it.Release()

	var queue []Withdrawal
	for it.Next() {
		w := Withdrawal{}
		if err := unmarshal(it.Value(), &w); err != nil {
			return nil, fmt.Errorf("%w: withdrawal: %v", ErrCorruptedState, err)
		}
		queue = append(queue, w)
	}
	return queue, it.Error()
}
