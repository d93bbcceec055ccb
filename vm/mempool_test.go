// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/transitionvm/transitions"
)

func TestMempool(t *testing.T) {
	assert := assert.New(t)
	m := newMempool(2, 10)

	assert.NoError(m.Add(ids.ID{1}, []byte{1, 1, 1}))
	assert.ErrorIs(m.Add(ids.ID{1}, []byte{1, 1, 1}), errDuplicateTx)
	assert.ErrorIs(m.Add(ids.ID{2}, make([]byte, 8)), errMempoolFull)
	assert.NoError(m.Add(ids.ID{2}, []byte{2, 2}))
	assert.ErrorIs(m.Add(ids.ID{3}, []byte{3}), errMempoolFull)
	assert.Equal(2, m.Len())

	assert.Equal([][]byte{{1, 1, 1}}, m.Pending(4))
	assert.Equal([][]byte{{1, 1, 1}, {2, 2}}, m.Pending(5))
	assert.Empty(m.Pending(2))
	// pending does not drain
	assert.Equal(2, m.Len())

	m.Remove([]ids.ID{{1}, {9}})
	assert.Equal(1, m.Len())
	assert.Equal([][]byte{{2, 2}}, m.Pending(100))
	assert.NoError(m.Add(ids.ID{1}, []byte{1, 1, 1}))
	assert.Equal([][]byte{{2, 2}, {1, 1, 1}}, m.Pending(100))
}

func TestDropRemoved(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, testGenesis(t), testConfig())

	paid := transfer(t, 1_000_000, 1)
	require.NoError(vm.mempool.Add(transitions.HashBytes(paid), paid))
	require.NoError(vm.mempool.Add(transitions.HashBytes(garbage), garbage))

	prepared, err := vm.PrepareProposal(proposal(1, vm.PendingTransactions(vm.config.MaxBlockBytes)...))
	require.NoError(err)
	require.Equal(TxUnmodified, prepared.TxRecords[0].Action)
	require.Equal(TxRemoved, prepared.TxRecords[1].Action)

	vm.DropRemoved(prepared.TxRecords)
	require.Equal([][]byte{paid}, vm.PendingTransactions(vm.config.MaxBlockBytes))

	_, err = vm.FinalizeBlock(&RequestFinalizeBlock{Height: 1, AppHash: prepared.AppHash})
	require.NoError(err)
	require.Zero(vm.mempool.Len())
}
