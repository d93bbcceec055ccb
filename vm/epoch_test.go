// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"math"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/transitionvm/version"
)

func TestEpochOf(t *testing.T) {
	require := require.New(t)
	platform := PlatformState{InitialHeight: 1}

	epoch, err := platform.EpochOf(1, 2)
	require.NoError(err)
	require.Zero(epoch)

	epoch, err = platform.EpochOf(4, 2)
	require.NoError(err)
	require.Equal(uint16(1), epoch)

	last := uint64(math.MaxUint16)*2 + 2
	epoch, err = platform.EpochOf(last, 2)
	require.NoError(err)
	require.Equal(uint16(math.MaxUint16), epoch)

	_, err = platform.EpochOf(last+1, 2)
	require.ErrorIs(err, errEpochOverflow)
}

func TestEpochPoolIsPaidToProposers(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, testGenesis(t), testConfig())

	first := commitBlock(t, vm, proposal(1, transfer(t, 1_000_000, 1)))
	fee, err := first.Block.Fees.Total()
	require.NoError(err)
	require.NotZero(fee)
	commitBlock(t, vm, proposal(2))
	require.Zero(vm.balance(t, masternode))

	// the first block of epoch 1 pays out epoch 0
	third := commitBlock(t, vm, proposal(3))
	require.Equal(uint16(1), third.Block.Epoch)
	require.Equal(fee, vm.balance(t, masternode))

	require.NoError(vm.readCommitted(func(db database.Database, _ *PlatformState) error {
		pool, err := vm.drive.FetchEpochPool(db, 0)
		require.NoError(err)
		require.Zero(pool)
		return nil
	}))
}

func TestEpochPoolShareOfUnknownProposerIsCarried(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, testGenesis(t), testConfig())

	req := proposal(1, transfer(t, 1_000_000, 1))
	req.ProposerProTxHash = ids.ID{0x99}
	first := commitBlock(t, vm, req)
	fee, err := first.Block.Fees.Total()
	require.NoError(err)
	commitBlock(t, vm, proposal(2))

	commitBlock(t, vm, proposal(3))
	require.NoError(vm.readCommitted(func(db database.Database, _ *PlatformState) error {
		pool, err := vm.drive.FetchEpochPool(db, 1)
		require.NoError(err)
		// half of the pool belongs to the proposer without an identity
		require.Equal(fee-fee/2, pool)
		return nil
	}))
	require.Equal(fee/2, vm.balance(t, masternode))
}

func TestUpgradeThreshold(t *testing.T) {
	require := require.New(t)

	for _, test := range []struct {
		quorum, percent, expected uint64
	}{
		{quorum: 1, percent: 75, expected: 1},
		{quorum: 4, percent: 75, expected: 3},
		{quorum: 100, percent: 75, expected: 75},
		{quorum: 101, percent: 75, expected: 76},
	} {
		required, err := upgradeThreshold(test.quorum, test.percent)
		require.NoError(err)
		require.Equal(test.expected, required, "quorum %d", test.quorum)
	}
}

func TestProtocolUpgradeAtEpochChange(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, testGenesis(t), testConfig())

	voting := proposal(1)
	voting.ProposedAppVersion = 2
	commitBlock(t, vm, voting)
	commitBlock(t, vm, proposal(2))

	// epoch 1 still runs version 1 and schedules version 2
	third := commitBlock(t, vm, proposal(3))
	require.Equal(uint32(1), third.Block.ProtocolVersion)
	platform := vm.PlatformState()
	require.Equal(uint32(1), platform.CurrentProtocolVersion)
	require.Equal(uint32(2), platform.NextEpochProtocolVersion)

	require.NoError(vm.readCommitted(func(db database.Database, _ *PlatformState) error {
		counts, err := vm.drive.FetchVersionCounts(db)
		require.NoError(err)
		require.Empty(counts)
		return nil
	}))

	commitBlock(t, vm, proposal(4))
	fifth := commitBlock(t, vm, proposal(5))
	require.Equal(uint32(2), fifth.Block.ProtocolVersion)
	require.Equal(uint32(2), fifth.ProtocolVersion)
	platform = vm.PlatformState()
	require.Equal(uint32(2), platform.CurrentProtocolVersion)
	require.Equal(uint32(2), platform.NextEpochProtocolVersion)
}

func TestVotesBelowThresholdKeepVersion(t *testing.T) {
	require := require.New(t)
	config := testConfig()
	config.QuorumSize = 4
	vm, _ := newTestVM(t, testGenesis(t), config)

	voting := proposal(1)
	voting.ProposedAppVersion = 2
	commitBlock(t, vm, voting)
	commitBlock(t, vm, proposal(2))
	commitBlock(t, vm, proposal(3))

	platform := vm.PlatformState()
	require.Equal(uint32(1), platform.CurrentProtocolVersion)
	require.Equal(uint32(1), platform.NextEpochProtocolVersion)
}

func TestUnknownVotedVersionStopsTheNode(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, testGenesis(t), testConfig())

	voting := proposal(1)
	voting.ProposedAppVersion = 7
	commitBlock(t, vm, voting)
	commitBlock(t, vm, proposal(2))
	commitBlock(t, vm, proposal(3))
	require.Equal(uint32(7), vm.PlatformState().NextEpochProtocolVersion)

	commitBlock(t, vm, proposal(4))
	_, err := vm.PrepareProposal(proposal(5))
	require.ErrorIs(err, version.ErrUnknownProtocolVersion)
}
