// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/dustin/go-humanize"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/transitionvm/version"
)

// ErrBlockMismatch is returned by FinalizeBlock for a block this node did
// not execute. It is not fatal: the committed state is unchanged and the
// executed block still waits for its own finalization.
var ErrBlockMismatch = errors.New("finalized block does not match the executed block")

type RequestFinalizeBlock struct {
	Height  uint64
	Round   uint32
	AppHash ids.ID
}

type ResponseFinalizeBlock struct {
	Block *Block
	// ProtocolVersion is the version the next block runs unless an epoch
	// change moves it.
	ProtocolVersion uint32
}

// FinalizeBlock commits the executed block [req] names.
func (vm *VM) FinalizeBlock(req *RequestFinalizeBlock) (*ResponseFinalizeBlock, error) {
	vm.blockLock.Lock()
	defer vm.blockLock.Unlock()

	executed := vm.executed
	if executed == nil {
		vm.metrics.blockMismatches.Inc()
		log.Warn("finalize without executed block", "height", req.Height, "round", req.Round)
		return nil, fmt.Errorf("%w: nothing executed for height %d", ErrBlockMismatch, req.Height)
	}
	blk := executed.block
	if blk.Height != req.Height || blk.Round != req.Round || blk.AppHash != req.AppHash {
		vm.metrics.blockMismatches.Inc()
		log.Warn("finalize for a different block",
			"height", req.Height,
			"round", req.Round,
			"appHash", req.AppHash,
			"executedHeight", blk.Height,
			"executedRound", blk.Round,
			"executedAppHash", blk.AppHash,
		)
		return nil, fmt.Errorf("%w: height %d round %d app hash %s, executed height %d round %d app hash %s",
			ErrBlockMismatch, req.Height, req.Round, req.AppHash, blk.Height, blk.Round, blk.AppHash)
	}

	switch executed.matrix.Execution.FinalizeBlock {
	case 0:
		return vm.finalizeBlockV0(executed)
	default:
		return nil, version.Mismatch("finalize_block", executed.matrix.Execution.FinalizeBlock, 0)
	}
}

func (vm *VM) finalizeBlockV0(executed *executedBlock) (*ResponseFinalizeBlock, error) {
	previous, err := vm.commit(executed)
	vm.executed = nil
	if err != nil {
		log.Error("error while committing block", "height", executed.block.Height, "error", err)
		return nil, err
	}

	blk := executed.block
	txHashes := make([]ids.ID, len(blk.Txs))
	for i, tx := range blk.Txs {
		txHashes[i] = tx.TxHash
	}
	vm.mempool.Remove(txHashes)
	vm.metrics.committed(blk, vm.mempool.Len())

	if previous.CurrentProtocolVersion != executed.next.CurrentProtocolVersion {
		log.Info("protocol version changed",
			"height", blk.Height,
			"from", previous.CurrentProtocolVersion,
			"to", executed.next.CurrentProtocolVersion,
		)
	}
	if total, err := blk.Fees.Total(); err == nil {
		log.Info("block committed",
			"height", blk.Height,
			"round", blk.Round,
			"epoch", blk.Epoch,
			"txs", len(blk.Txs),
			"fees", humanize.Comma(int64(total)),
			"appHash", blk.AppHash,
		)
	}
	return &ResponseFinalizeBlock{
		Block:           blk,
		ProtocolVersion: executed.next.CurrentProtocolVersion,
	}, nil
}

// commit writes the executed block through to the database and publishes
// its platform state. It returns the platform state it replaced. On error
// nothing of the block stays behind and the block has to be executed again.
func (vm *VM) commit(executed *executedBlock) (PlatformState, error) {
	vm.stateLock.Lock()
	defer vm.stateLock.Unlock()

	previous := vm.platform
	vm.commits++
	if err := vm.writeBlock(executed); err != nil {
		executed.db.Abort()
		vm.state.Abort()
		return previous, err
	}
	vm.platform = executed.next
	return previous, nil
}

func (vm *VM) writeBlock(executed *executedBlock) error {
	if err := executed.db.Commit(); err != nil {
		return err
	}
	if err := vm.state.PutBlock(executed.block); err != nil {
		return err
	}
	if err := vm.state.SetPlatformState(&executed.next); err != nil {
		return err
	}
	return vm.state.Commit()
}
