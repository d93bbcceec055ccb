// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/transitionvm/vm"
)

// producer commits the mempool as a block on a timer. It stands in for the
// consensus layer on a single node network.
type producer struct {
	log           log.Logger
	node          *vm.VM
	clock         mockable.Clock
	proposer      ids.ID
	maxBlockBytes uint64
}

func newProducer(node *vm.VM, proposer ids.ID, maxBlockBytes uint64) *producer {
	return &producer{
		log:           log.New("module", "producer"),
		node:          node,
		proposer:      proposer,
		maxBlockBytes: maxBlockBytes,
	}
}

func (p *producer) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := p.produce(); err != nil {
			p.log.Error("couldn't produce block", "error", err)
		}
	}
}

// produce commits one block holding the pending transitions. Empty blocks
// are skipped.
func (p *producer) produce() error {
	txs := p.node.PendingTransactions(p.maxBlockBytes)
	if len(txs) == 0 {
		return nil
	}

	platform := p.node.PlatformState()
	timeMs := uint64(p.clock.Time().UnixMilli())
	if platform.HasBlocks && timeMs < platform.LastBlock.TimeMs {
		timeMs = platform.LastBlock.TimeMs
	}
	req := &vm.RequestPrepareProposal{
		BlockProposal: vm.BlockProposal{
			Height:                platform.NextHeight(),
			TimeMs:                timeMs,
			CoreChainLockedHeight: platform.LastBlock.CoreChainLockedHeight,
			ProposerProTxHash:     p.proposer,
			ProposedAppVersion:    platform.CurrentProtocolVersion,
			Txs:                   txs,
		},
		MaxTxBytes: p.maxBlockBytes,
	}
	prepared, err := p.node.PrepareProposal(req)
	if err != nil {
		return err
	}
	p.node.DropRemoved(prepared.TxRecords)

	finalized, err := p.node.FinalizeBlock(&vm.RequestFinalizeBlock{
		Height:  req.Height,
		Round:   req.Round,
		AppHash: prepared.AppHash,
	})
	if err != nil {
		return err
	}
	p.log.Debug("produced block", "height", finalized.Block.Height, "txs", len(finalized.Block.Txs))
	return nil
}
