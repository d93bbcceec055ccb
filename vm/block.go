// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/execution"
	"github.com/ava-labs/transitionvm/types"
)

// TxOutcome is the stored result of one transition of a committed block.
type TxOutcome struct {
	TxHash ids.ID              `serialize:"true" json:"txHash"`
	Tag    execution.ResultTag `serialize:"true" json:"tag"`
	Code   consensus.Code      `serialize:"true" json:"code"`
	Fee    types.FeeResult     `serialize:"true" json:"fee"`
}

func newTxOutcome(r *execution.Result) TxOutcome {
	return TxOutcome{TxHash: r.TxHash, Tag: r.Tag, Code: r.Code(), Fee: r.Fee}
}

// Block is a committed block as this node executed it.
type Block struct {
	Height                uint64 `serialize:"true" json:"height"`
	Round                 uint32 `serialize:"true" json:"round"`
	TimeMs                uint64 `serialize:"true" json:"timeMs"`
	CoreChainLockedHeight uint32 `serialize:"true" json:"coreChainLockedHeight"`
	Epoch                 uint16 `serialize:"true" json:"epoch"`
	ProposerProTxHash     ids.ID `serialize:"true" json:"proposerProTxHash"`
	ProtocolVersion       uint32 `serialize:"true" json:"protocolVersion"`
	// AppHash is the state root after the block.
	AppHash ids.ID          `serialize:"true" json:"appHash"`
	Txs     []TxOutcome     `serialize:"true" json:"txs"`
	Fees    types.FeeResult `serialize:"true" json:"fees"`
}

// ID is the hash of the stored form of the block.
func (b *Block) ID() (ids.ID, error) {
	bytes, err := Codec.Marshal(CodecVersion, b)
	if err != nil {
		return ids.Empty, err
	}
	return hashing.ComputeHash256Array(bytes), nil
}

func (b *Block) Info() types.BlockInfo {
	return types.BlockInfo{
		Height:                b.Height,
		Round:                 b.Round,
		TimeMs:                b.TimeMs,
		CoreChainLockedHeight: b.CoreChainLockedHeight,
		Epoch:                 b.Epoch,
	}
}
