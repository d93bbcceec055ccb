// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/transitionvm/actions"
	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

func newTestEngine(t *testing.T) (*Engine, database.Database, *version.FeatureMatrix) {
	d, err := drive.New(prometheus.NewRegistry())
	require.NoError(t, err)
	return NewEngine(d), memdb.New(), version.V1()
}

func insertIdentity(t *testing.T, e *Engine, db database.Database, matrix *version.FeatureMatrix, id ids.ID, balance uint64) {
	identity := types.Identity{
		ID:      id,
		Balance: balance,
		PublicKeys: []types.IdentityPublicKey{{
			Purpose:       types.PurposeAuthentication,
			SecurityLevel: types.SecurityLevelMaster,
			Type:          types.KeyTypeECDSASecp256k1,
			Data:          make([]byte, 33),
		}},
	}
	require.NoError(t, e.Drive().ApplyFree(db, []drive.DriveOperation{&drive.InsertIdentity{Identity: identity}}, &matrix.Fees))
}

func contractEvent(payer ids.ID) *PaidEvent {
	return &PaidEvent{
		Payer: payer,
		Ops: []drive.DriveOperation{&drive.InsertContract{Contract: types.DataContract{
			ID:            ids.ID{0xcc},
			OwnerID:       payer,
			Version:       1,
			DocumentTypes: []types.DocumentType{{Name: "note"}},
		}}},
		ValidationFee: types.FeeResult{ProcessingFee: 1_000},
	}
}

func TestInsufficientBalanceLeavesStoreUntouched(t *testing.T) {
	require := require.New(t)
	e, db, matrix := newTestEngine(t)

	payer := ids.ID{1}
	insertIdentity(t, e, db, matrix, payer, 100)
	before, err := e.Drive().RootHash(db)
	require.NoError(err)

	event := contractEvent(payer)
	fees, err := e.ValidateFees(db, matrix, event)
	require.NoError(err)
	require.False(fees.IsValid())
	require.True(fees.HasData())
	estimate, err := fees.Data().Total()
	require.NoError(err)
	require.Greater(estimate, uint64(100))

	insufficient, ok := fees.FirstError().(*consensus.InsufficientBalanceError)
	require.True(ok)
	require.Equal(uint64(100), insufficient.Balance)
	require.Equal(estimate, insufficient.RequiredFee)

	result, err := e.Execute(db, matrix, event)
	require.NoError(err)
	require.Equal(UnpaidConsensusError, result.Tag)

	balance, err := e.Drive().FetchIdentityBalance(db, payer)
	require.NoError(err)
	require.Equal(uint64(100), balance)
	after, err := e.Drive().RootHash(db)
	require.NoError(err)
	require.Equal(before, after)
}

func TestPaidExecutionChargesAtMostTheEstimate(t *testing.T) {
	require := require.New(t)
	e, db, matrix := newTestEngine(t)

	payer := ids.ID{1}
	const initial = 1_000_000_000
	insertIdentity(t, e, db, matrix, payer, initial)

	event := contractEvent(payer)
	fees, err := e.ValidateFees(db, matrix, event)
	require.NoError(err)
	require.True(fees.IsValid())
	estimate, err := fees.Data().Total()
	require.NoError(err)

	result, err := e.Execute(db, matrix, event)
	require.NoError(err)
	require.Equal(SuccessfulPaidExecution, result.Tag)
	charged, err := result.Fee.Total()
	require.NoError(err)
	require.LessOrEqual(charged, estimate)
	require.GreaterOrEqual(result.Fee.ProcessingFee, event.ValidationFee.ProcessingFee)

	balance, err := e.Drive().FetchIdentityBalance(db, payer)
	require.NoError(err)
	require.Equal(uint64(initial)-charged, balance)
	exists, err := e.Drive().ContractExists(db, ids.ID{0xcc})
	require.NoError(err)
	require.True(exists)
}

func TestSpentAmountCountsTowardsSolvency(t *testing.T) {
	require := require.New(t)
	e, db, matrix := newTestEngine(t)

	sender, recipient := ids.ID{1}, ids.ID{2}
	insertIdentity(t, e, db, matrix, sender, 500_000)
	insertIdentity(t, e, db, matrix, recipient, 0)

	// the whole balance moves, so nothing is left for the fee
	action := &actions.IdentityCreditTransferAction{IdentityID: sender, RecipientID: recipient, Amount: 500_000, Revision: 1}
	event, err := NewEvent(action, &types.Identity{ID: sender}, types.FeeResult{})
	require.NoError(err)
	require.Equal(uint64(500_000), event.(*PaidEvent).Spent)

	result, err := e.Execute(db, matrix, event)
	require.NoError(err)
	require.Equal(UnpaidConsensusError, result.Tag)
	require.Equal(consensus.CodeIdentityInsufficientBalance, result.Code())

	for _, id := range []ids.ID{sender, recipient} {
		balance, err := e.Drive().FetchIdentityBalance(db, id)
		require.NoError(err)
		if id == sender {
			require.Equal(uint64(500_000), balance)
		} else {
			require.Zero(balance)
		}
	}
}

func TestAssetLockPaysItsOwnFee(t *testing.T) {
	require := require.New(t)
	e, db, matrix := newTestEngine(t)

	identity := &types.Identity{
		ID: ids.ID{1},
		PublicKeys: []types.IdentityPublicKey{{
			Purpose:       types.PurposeAuthentication,
			SecurityLevel: types.SecurityLevelMaster,
			Data:          make([]byte, 33),
		}},
	}
	const credits = 50_000_000
	action, err := actions.NewIdentityCreateAction(identity, types.Outpoint{TxID: ids.ID{9}}, credits)
	require.NoError(err)
	event, err := NewEvent(action, nil, types.FeeResult{ProcessingFee: 4_000})
	require.NoError(err)

	result, err := e.Execute(db, matrix, event)
	require.NoError(err)
	require.Equal(SuccessfulPaidExecution, result.Tag)
	fee, err := result.Fee.Total()
	require.NoError(err)

	balance, err := e.Drive().FetchIdentityBalance(db, identity.ID)
	require.NoError(err)
	require.Equal(uint64(credits)-fee, balance)

	used, err := e.Drive().IsAssetLockUsed(db, types.Outpoint{TxID: ids.ID{9}})
	require.NoError(err)
	require.True(used)

	// an asset lock that cannot cover the fee creates nothing
	small, err := actions.NewIdentityCreateAction(&types.Identity{ID: ids.ID{2}}, types.Outpoint{TxID: ids.ID{8}}, 10)
	require.NoError(err)
	event, err = NewEvent(small, nil, types.FeeResult{})
	require.NoError(err)
	result, err = e.Execute(db, matrix, event)
	require.NoError(err)
	require.Equal(UnpaidConsensusError, result.Tag)
	exists, err := e.Drive().IdentityExists(db, ids.ID{2})
	require.NoError(err)
	require.False(exists)
}

func TestFreeEventIsNotCharged(t *testing.T) {
	require := require.New(t)
	e, db, matrix := newTestEngine(t)

	action := &actions.MasternodeVoteAction{PollID: ids.ID{1}, ProTxHash: ids.ID{2}, VoterID: ids.ID{2}, Nonce: 1}
	event, err := NewEvent(action, nil, types.FeeResult{ProcessingFee: 100})
	require.NoError(err)

	result, err := e.Execute(db, matrix, event)
	require.NoError(err)
	require.Equal(SuccessfulFreeExecution, result.Tag)
	require.Equal(types.FeeResult{}, result.Fee)

	nonce, err := e.Drive().FetchVoterNonce(db, ids.ID{2})
	require.NoError(err)
	require.Equal(uint64(1), nonce)
}

func TestChargeValidationIsCappedAtBalance(t *testing.T) {
	require := require.New(t)
	e, db, matrix := newTestEngine(t)

	payer := ids.ID{1}
	insertIdentity(t, e, db, matrix, payer, 300)

	fee, err := e.ChargeValidation(db, matrix, payer, types.FeeResult{ProcessingFee: 1_000})
	require.NoError(err)
	require.Equal(uint64(300), fee.ProcessingFee)

	balance, err := e.Drive().FetchIdentityBalance(db, payer)
	require.NoError(err)
	require.Zero(balance)
}

func TestExecuteVersionMismatch(t *testing.T) {
	require := require.New(t)
	e, db, matrix := newTestEngine(t)
	matrix.Execution.ExecuteEvent = 3

	_, err := e.Execute(db, matrix, &FreeEvent{})
	require.ErrorIs(err, version.ErrUnknownVersionMismatch)
}
