// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

// BlockInfo is the part of the block context that execution may depend on.
type BlockInfo struct {
	Height                uint64 `serialize:"true" json:"height"`
	Round                 uint32 `serialize:"true" json:"round"`
	TimeMs                uint64 `serialize:"true" json:"timeMs"`
	CoreChainLockedHeight uint32 `serialize:"true" json:"coreChainLockedHeight"`
	Epoch                 uint16 `serialize:"true" json:"epoch"`
}
