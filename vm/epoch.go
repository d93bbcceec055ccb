// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/dustin/go-humanize"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

// closeEpoch pays out the pool of [previous] and decides the protocol
// version of the epoch after [current].
func (vm *VM) closeEpoch(db database.Database, matrix *version.FeatureMatrix, next *PlatformState, previous, current uint16) error {
	if err := vm.distributeEpochPool(db, matrix, previous, current); err != nil {
		return err
	}
	return vm.checkForDesiredVersion(db, matrix, next)
}

func (vm *VM) distributeEpochPool(db database.Database, matrix *version.FeatureMatrix, previous, current uint16) error {
	switch matrix.Execution.DistributeEpochPool {
	case 0:
		return vm.distributeEpochPoolV0(db, matrix, previous, current)
	default:
		return version.Mismatch("distribute_epoch_pool", matrix.Execution.DistributeEpochPool, 0)
	}
}

// distributeEpochPoolV0 splits the pool pro rata to the blocks each proposer
// produced. Shares of proposers without an identity, and division
// remainders, roll into the current epoch pool.
func (vm *VM) distributeEpochPoolV0(db database.Database, matrix *version.FeatureMatrix, previous, current uint16) error {
	pool, err := vm.drive.FetchEpochPool(db, previous)
	if err != nil {
		return err
	}
	proposers, err := vm.drive.FetchProposerBlockCounts(db, previous)
	if err != nil {
		return err
	}
	payouts, remainder := drive.SplitPool(pool, proposers)

	ops := make([]drive.DriveOperation, 0, len(payouts)+2)
	paid := 0
	for _, payout := range payouts {
		if payout.Amount == 0 {
			continue
		}
		exists, err := vm.drive.IdentityExists(db, payout.ProTxHash)
		if err != nil {
			return err
		}
		if !exists {
			if remainder, err = types.AddCredits(remainder, payout.Amount); err != nil {
				return err
			}
			continue
		}
		ops = append(ops, &drive.AddToIdentityBalance{IdentityID: payout.ProTxHash, Amount: payout.Amount})
		paid++
	}
	ops = append(ops, &drive.ClearEpochPool{Epoch: previous})
	if remainder > 0 {
		ops = append(ops, &drive.AddToEpochPool{Epoch: current, Amount: remainder})
	}
	if err := vm.drive.ApplyFree(db, ops, &matrix.Fees); err != nil {
		return err
	}
	log.Info("epoch pool distributed",
		"epoch", previous,
		"pool", humanize.Comma(int64(pool)),
		"proposers", len(proposers),
		"paid", paid,
		"carried", humanize.Comma(int64(remainder)),
	)
	return nil
}

func (vm *VM) checkForDesiredVersion(db database.Database, matrix *version.FeatureMatrix, next *PlatformState) error {
	switch matrix.Execution.CheckForDesiredVersion {
	case 0:
		return vm.checkForDesiredVersionV0(db, matrix, next)
	default:
		return version.Mismatch("check_for_desired_protocol_upgrade", matrix.Execution.CheckForDesiredVersion, 0)
	}
}

// upgradeThreshold is the number of votes a protocol version needs to become
// the version of the next epoch.
func upgradeThreshold(quorumSize, percent uint64) (uint64, error) {
	scaled, err := types.MulCredits(quorumSize, percent)
	if err != nil {
		return 0, err
	}
	return (scaled + 99) / 100, nil
}

// checkForDesiredVersionV0 selects the highest version that reached the
// threshold as the version of the next epoch and starts a new vote.
func (vm *VM) checkForDesiredVersionV0(db database.Database, matrix *version.FeatureMatrix, next *PlatformState) error {
	counts, err := vm.drive.FetchVersionCounts(db)
	if err != nil {
		return err
	}
	required, err := upgradeThreshold(vm.config.QuorumSize, matrix.Limits.UpgradeThresholdPercent)
	if err != nil {
		return err
	}

	desired := next.CurrentProtocolVersion
	found := false
	for v, count := range counts {
		if count < required {
			continue
		}
		if !found || v > desired {
			desired = v
			found = true
		}
	}
	if !vm.registry.Contains(desired) {
		log.Error("network voted for a protocol version this node does not know",
			"protocolVersion", desired,
			"latestKnown", vm.registry.Latest().ProtocolVersion,
		)
	}
	if desired != next.NextEpochProtocolVersion {
		log.Info("next epoch protocol version changed",
			"from", next.NextEpochProtocolVersion,
			"to", desired,
			"required", required,
		)
	}
	next.NextEpochProtocolVersion = desired
	return vm.drive.ApplyFree(db, []drive.DriveOperation{&drive.ClearVersionVotes{}}, &matrix.Fees)
}

// updateProposedVersion records the version the proposer of a block votes
// for. A proposer has one vote, its latest.
func (vm *VM) updateProposedVersion(db database.Database, matrix *version.FeatureMatrix, proposer ids.ID, proposed uint32) error {
	switch matrix.Execution.UpdateProposedVersionCounts {
	case 0:
	default:
		return version.Mismatch("update_proposed_versions", matrix.Execution.UpdateProposedVersionCounts, 0)
	}
	if proposed == 0 {
		return nil
	}
	op := &drive.RecordProposedVersion{ProTxHash: proposer, Version: proposed}
	return vm.drive.ApplyFree(db, []drive.DriveOperation{op}, &matrix.Fees)
}
