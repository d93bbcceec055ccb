// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"github.com/ava-labs/avalanchego/ids"
)

// AssetLockProof proves that duffs were locked on the core chain in favor of
// the holder of the key hashing to [CreditOutputKeyHash].
type AssetLockProof struct {
	Outpoint Outpoint `serialize:"true" json:"outpoint"`
	// Amount is the locked value in duffs.
	Amount              uint64      `serialize:"true" json:"amount"`
	CreditOutputKeyHash ids.ShortID `serialize:"true" json:"creditOutputKeyHash"`
	// CoreChainLockedHeight is the core height the lock transaction was chain locked at.
	CoreChainLockedHeight uint32 `serialize:"true" json:"coreChainLockedHeight"`
}
