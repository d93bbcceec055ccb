// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"
	"math"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/types"
)

var errEpochOverflow = errors.New("epoch index overflows")

// PlatformState is the committed, process wide view of the chain that block
// execution starts from.
type PlatformState struct {
	InitialHeight uint64 `serialize:"true" json:"initialHeight"`
	// HasBlocks is false until the first block after genesis is committed.
	HasBlocks bool            `serialize:"true" json:"hasBlocks"`
	LastBlock types.BlockInfo `serialize:"true" json:"lastBlock"`
	AppHash   ids.ID          `serialize:"true" json:"appHash"`

	CurrentProtocolVersion   uint32 `serialize:"true" json:"currentProtocolVersion"`
	NextEpochProtocolVersion uint32 `serialize:"true" json:"nextEpochProtocolVersion"`

	// ContactContractID is the system contract the data triggers bind to.
	ContactContractID ids.ID `serialize:"true" json:"contactContractId"`
}

// NextHeight is the height of the block that follows the committed state.
func (s *PlatformState) NextHeight() uint64 {
	if !s.HasBlocks {
		return s.InitialHeight
	}
	return s.LastBlock.Height + 1
}

// EpochOf returns the epoch index of [height]. Epoch indices are 16 bit wide
// in the persisted layout, so a height past the last epoch is an error.
func (s *PlatformState) EpochOf(height uint64, blocksPerEpoch uint64) (uint16, error) {
	epoch := (height - s.InitialHeight) / blocksPerEpoch
	if epoch > math.MaxUint16 {
		return 0, fmt.Errorf("%w: height %d is in epoch %d", errEpochOverflow, height, epoch)
	}
	return uint16(epoch), nil
}

// IsEpochChange reports whether a block in [epoch] starts a new epoch. The
// first block after genesis opens epoch 0 but has no previous epoch to close.
func (s *PlatformState) IsEpochChange(epoch uint16) bool {
	return s.HasBlocks && epoch != s.LastBlock.Epoch
}
