// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/dustin/go-humanize"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/execution"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/validation"
	"github.com/ava-labs/transitionvm/version"
)

var (
	errWrongHeight       = errors.New("unexpected block height")
	errTimestampTooEarly = errors.New("block's timestamp is earlier than its parent's timestamp")
)

// BlockProposal is a block as the consensus layer hands it over.
type BlockProposal struct {
	Height                uint64
	Round                 uint32
	TimeMs                uint64
	CoreChainLockedHeight uint32
	ProposerProTxHash     ids.ID
	// ProposedAppVersion is the protocol version the proposer votes for.
	ProposedAppVersion uint32
	Txs                [][]byte
}

func (p *BlockProposal) sameBlock(o *BlockProposal) bool {
	return p.Height == o.Height &&
		p.Round == o.Round &&
		p.TimeMs == o.TimeMs &&
		p.CoreChainLockedHeight == o.CoreChainLockedHeight &&
		p.ProposerProTxHash == o.ProposerProTxHash &&
		p.ProposedAppVersion == o.ProposedAppVersion &&
		txsHash(p.Txs) == txsHash(o.Txs)
}

func txsHash(txs [][]byte) ids.ID {
	hashes := make([]byte, 0, len(txs)*hashing.HashLen)
	for _, tx := range txs {
		h := transitions.HashBytes(tx)
		hashes = append(hashes, h[:]...)
	}
	return hashing.ComputeHash256Array(hashes)
}

// TxAction tells the consensus layer what to do with a proposed transition.
type TxAction uint8

const (
	// TxUnmodified stays in the block.
	TxUnmodified TxAction = iota
	// TxRemoved was rejected without a fee and must be dropped.
	TxRemoved
	// TxDelayed did not fit the block and stays in the mempool.
	TxDelayed
)

type TxRecord struct {
	Action TxAction
	Tx     []byte
}

type RequestPrepareProposal struct {
	BlockProposal
	// MaxTxBytes bounds the transitions of the block. Zero, or a value above
	// the configured limit, selects the configured limit.
	MaxTxBytes uint64
}

type ResponsePrepareProposal struct {
	TxRecords []TxRecord
	// TxResults has one entry per executed transition, in input order.
	TxResults       []execution.Result
	AppHash         ids.ID
	Fees            types.FeeResult
	ProtocolVersion uint32
}

type ProposalStatus uint8

const (
	ProposalAccept ProposalStatus = iota
	ProposalReject
)

type ResponseProcessProposal struct {
	Status          ProposalStatus
	TxResults       []execution.Result
	AppHash         ids.ID
	Fees            types.FeeResult
	ProtocolVersion uint32
}

// executedBlock is a block whose writes wait in [db] for finalization.
type executedBlock struct {
	db       *versiondb.Database
	proposal BlockProposal
	block    *Block
	results  []execution.Result
	next     PlatformState
	matrix   *version.FeatureMatrix
	// complete is false when some proposed transition was left out.
	complete bool
}

// PrepareProposal executes the transitions this node proposes. Rejected
// transitions that pay no fee are removed and transitions that exceed the
// byte budget are delayed. The executed block is kept for FinalizeBlock.
func (vm *VM) PrepareProposal(req *RequestPrepareProposal) (*ResponsePrepareProposal, error) {
	vm.blockLock.Lock()
	defer vm.blockLock.Unlock()

	vm.discardExecuted()
	budget := req.MaxTxBytes
	if budget == 0 || budget > vm.config.MaxBlockBytes {
		budget = vm.config.MaxBlockBytes
	}
	executed, records, err := vm.runBlock(&req.BlockProposal, budget)
	if err != nil {
		return nil, err
	}
	// the prepared block is the list of kept transitions
	executed.complete = true
	vm.executed = executed
	return &ResponsePrepareProposal{
		TxRecords:       records,
		TxResults:       executed.results,
		AppHash:         executed.block.AppHash,
		Fees:            executed.block.Fees,
		ProtocolVersion: executed.block.ProtocolVersion,
	}, nil
}

// ProcessProposal executes a block proposed by another node, or reuses the
// execution of the block this node prepared. A block holding a transition
// that should have been removed, or exceeding the byte limit, is rejected.
func (vm *VM) ProcessProposal(req *BlockProposal) (*ResponseProcessProposal, error) {
	vm.blockLock.Lock()
	defer vm.blockLock.Unlock()

	executed := vm.executed
	if executed == nil || !executed.proposal.sameBlock(req) {
		vm.discardExecuted()
		var err error
		executed, _, err = vm.runBlock(req, vm.config.MaxBlockBytes)
		if err != nil {
			return nil, err
		}
	}

	response := &ResponseProcessProposal{
		Status:          ProposalAccept,
		TxResults:       executed.results,
		AppHash:         executed.block.AppHash,
		Fees:            executed.block.Fees,
		ProtocolVersion: executed.block.ProtocolVersion,
	}
	if !executed.complete {
		log.Info("rejecting proposal",
			"height", req.Height,
			"round", req.Round,
			"proposer", req.ProposerProTxHash,
		)
		executed.db.Abort()
		vm.executed = nil
		response.Status = ProposalReject
		return response, nil
	}
	vm.executed = executed
	return response, nil
}

func (vm *VM) discardExecuted() {
	if vm.executed == nil {
		return
	}
	vm.executed.db.Abort()
	vm.executed = nil
}

// runBlock executes [p] on a new layer over the committed state.
func (vm *VM) runBlock(p *BlockProposal, budget uint64) (*executedBlock, []TxRecord, error) {
	vm.stateLock.RLock()
	platform := vm.platform
	vm.stateLock.RUnlock()

	if expected := platform.NextHeight(); p.Height != expected {
		return nil, nil, fmt.Errorf("%w: got %d, expected %d", errWrongHeight, p.Height, expected)
	}
	if platform.HasBlocks && p.TimeMs < platform.LastBlock.TimeMs {
		return nil, nil, fmt.Errorf("%w: %d < %d", errTimestampTooEarly, p.TimeMs, platform.LastBlock.TimeMs)
	}

	next := platform
	epoch, err := platform.EpochOf(p.Height, vm.config.BlocksPerEpoch)
	if err != nil {
		return nil, nil, err
	}
	epochChange := platform.IsEpochChange(epoch)
	if epochChange {
		next.CurrentProtocolVersion = platform.NextEpochProtocolVersion
	}
	matrix, err := vm.registry.Get(next.CurrentProtocolVersion)
	if err != nil {
		log.Error("cannot execute block under unknown protocol version",
			"height", p.Height,
			"protocolVersion", next.CurrentProtocolVersion,
		)
		return nil, nil, err
	}

	switch matrix.Execution.RunBlockProposal {
	case 0:
		return vm.runBlockV0(p, budget, &platform, next, matrix, epoch, epochChange)
	default:
		return nil, nil, version.Mismatch("run_block_proposal", matrix.Execution.RunBlockProposal, 0)
	}
}

func (vm *VM) runBlockV0(
	p *BlockProposal,
	budget uint64,
	platform *PlatformState,
	next PlatformState,
	matrix *version.FeatureMatrix,
	epoch uint16,
	epochChange bool,
) (*executedBlock, []TxRecord, error) {
	info := types.BlockInfo{
		Height:                p.Height,
		Round:                 p.Round,
		TimeMs:                p.TimeMs,
		CoreChainLockedHeight: p.CoreChainLockedHeight,
		Epoch:                 epoch,
	}
	db := versiondb.New(vm.state.DriveDB())
	done := false
	defer func() {
		if !done {
			db.Abort()
		}
	}()

	if epochChange {
		if err := vm.closeEpoch(db, matrix, &next, platform.LastBlock.Epoch, epoch); err != nil {
			return nil, nil, err
		}
	}
	if err := vm.updateProposedVersion(db, matrix, p.ProposerProTxHash, p.ProposedAppVersion); err != nil {
		return nil, nil, err
	}
	triggers, err := validation.Bindings(matrix.Documents.DataTriggers, next.ContactContractID)
	if err != nil {
		return nil, nil, err
	}

	var (
		records  = make([]TxRecord, 0, len(p.Txs))
		results  = make([]execution.Result, 0, len(p.Txs))
		included = make([][]byte, 0, len(p.Txs))
		outcomes = make([]TxOutcome, 0, len(p.Txs))
		fees     types.FeeResult
		size     uint64
	)
	for i, tx := range p.Txs {
		if size+uint64(len(tx)) > budget {
			records = append(records, TxRecord{Action: TxDelayed, Tx: tx})
			continue
		}
		ctx := validation.NewContext(vm.drive, db, matrix, info, triggers)
		result, err := vm.engine.ProcessRawTransition(ctx, tx)
		if err != nil {
			log.Error("aborting block",
				"height", p.Height,
				"round", p.Round,
				"tx", i,
				"error", err,
			)
			return nil, nil, fmt.Errorf("transition %d of block %d: %w", i, p.Height, err)
		}
		results = append(results, result)
		if !result.Tag.Included() {
			records = append(records, TxRecord{Action: TxRemoved, Tx: tx})
			continue
		}
		if err := fees.Add(result.Fee); err != nil {
			return nil, nil, err
		}
		size += uint64(len(tx))
		records = append(records, TxRecord{Action: TxUnmodified, Tx: tx})
		included = append(included, tx)
		outcomes = append(outcomes, newTxOutcome(&result))
	}

	if err := vm.processBlockFees(db, matrix, epoch, p.ProposerProTxHash, fees); err != nil {
		return nil, nil, err
	}
	appHash, err := vm.drive.RootHash(db)
	if err != nil {
		return nil, nil, err
	}

	next.HasBlocks = true
	next.LastBlock = info
	next.AppHash = appHash

	proposal := *p
	proposal.Txs = included
	executed := &executedBlock{
		db:       db,
		proposal: proposal,
		block: &Block{
			Height:                info.Height,
			Round:                 info.Round,
			TimeMs:                info.TimeMs,
			CoreChainLockedHeight: info.CoreChainLockedHeight,
			Epoch:                 epoch,
			ProposerProTxHash:     p.ProposerProTxHash,
			ProtocolVersion:       next.CurrentProtocolVersion,
			AppHash:               appHash,
			Txs:                   outcomes,
			Fees:                  fees,
		},
		results:  results,
		next:     next,
		matrix:   matrix,
		complete: len(included) == len(p.Txs),
	}
	done = true

	if total, err := fees.Total(); err == nil {
		log.Debug("block executed",
			"height", p.Height,
			"round", p.Round,
			"txs", len(included),
			"fees", humanize.Comma(int64(total)),
			"appHash", appHash,
		)
	}
	return executed, records, nil
}

// processBlockFees moves the fees of a block into the epoch pool and credits
// the proposer with the block.
func (vm *VM) processBlockFees(db database.Database, matrix *version.FeatureMatrix, epoch uint16, proposer ids.ID, fees types.FeeResult) error {
	switch matrix.Execution.ProcessBlockFees {
	case 0:
	default:
		return version.Mismatch("process_block_fees", matrix.Execution.ProcessBlockFees, 0)
	}
	total, err := fees.Total()
	if err != nil {
		return err
	}
	ops := []drive.DriveOperation{&drive.IncrementProposerBlockCount{Epoch: epoch, ProTxHash: proposer}}
	if total > 0 {
		ops = append(ops, &drive.AddToEpochPool{Epoch: epoch, Amount: total})
	}
	return vm.drive.ApplyFree(db, ops, &matrix.Fees)
}
