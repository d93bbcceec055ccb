// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/types"
)

var (
	_ Action = &IdentityCreateAction{}
	_ Action = &IdentityTopUpAction{}
	_ Action = &IdentityUpdateAction{}
	_ Action = &IdentityCreditTransferAction{}
	_ Action = &IdentityCreditWithdrawalAction{}
)

// IdentityCreateAction inserts an identity with a zero balance. The asset
// lock credits less the fee are added by the execution event.
type IdentityCreateAction struct {
	Identity         types.Identity
	Outpoint         types.Outpoint
	AssetLockCredits uint64
}

func NewIdentityCreateAction(identity *types.Identity, outpoint types.Outpoint, credits uint64) (*IdentityCreateAction, error) {
	owned, err := clone(identity)
	if err != nil {
		return nil, err
	}
	owned.Balance = 0
	return &IdentityCreateAction{Identity: owned, Outpoint: outpoint, AssetLockCredits: credits}, nil
}

func (*IdentityCreateAction) Kind() types.TransitionKind { return types.KindIdentityCreate }

func (a *IdentityCreateAction) Operations() []drive.DriveOperation {
	return []drive.DriveOperation{
		&drive.InsertIdentity{Identity: a.Identity},
		&drive.MarkAssetLockUsed{Outpoint: a.Outpoint, Credits: a.AssetLockCredits},
	}
}

type IdentityTopUpAction struct {
	IdentityID       ids.ID
	Outpoint         types.Outpoint
	AssetLockCredits uint64
	Revision         uint64
}

func (*IdentityTopUpAction) Kind() types.TransitionKind { return types.KindIdentityTopUp }

func (a *IdentityTopUpAction) Operations() []drive.DriveOperation {
	return []drive.DriveOperation{
		&drive.MarkAssetLockUsed{Outpoint: a.Outpoint, Credits: a.AssetLockCredits},
		&drive.SetIdentityRevision{IdentityID: a.IdentityID, Revision: a.Revision},
	}
}

type IdentityUpdateAction struct {
	IdentityID    ids.ID
	Revision      uint64
	AddKeys       []types.IdentityPublicKey
	DisableKeyIDs []uint32
	DisabledAt    uint64
}

func NewIdentityUpdateAction(identityID ids.ID, revision uint64, add []types.IdentityPublicKey, disable []uint32, disabledAt uint64) (*IdentityUpdateAction, error) {
	a := &IdentityUpdateAction{
		IdentityID: identityID,
		Revision:   revision,
		DisabledAt: disabledAt,
	}
	if len(add) > 0 {
		keys, err := clone(&add)
		if err != nil {
			return nil, err
		}
		a.AddKeys = keys
	}
	a.DisableKeyIDs = append(a.DisableKeyIDs, disable...)
	return a, nil
}

func (*IdentityUpdateAction) Kind() types.TransitionKind { return types.KindIdentityUpdate }

func (a *IdentityUpdateAction) Operations() []drive.DriveOperation {
	var ops []drive.DriveOperation
	if len(a.AddKeys) > 0 {
		ops = append(ops, &drive.AddIdentityKeys{IdentityID: a.IdentityID, Keys: a.AddKeys})
	}
	if len(a.DisableKeyIDs) > 0 {
		ops = append(ops, &drive.DisableIdentityKeys{IdentityID: a.IdentityID, KeyIDs: a.DisableKeyIDs, DisabledAt: a.DisabledAt})
	}
	return append(ops, &drive.SetIdentityRevision{IdentityID: a.IdentityID, Revision: a.Revision})
}

type IdentityCreditTransferAction struct {
	IdentityID  ids.ID
	RecipientID ids.ID
	Amount      uint64
	Revision    uint64
}

func (*IdentityCreditTransferAction) Kind() types.TransitionKind {
	return types.KindIdentityCreditTransfer
}

func (a *IdentityCreditTransferAction) Operations() []drive.DriveOperation {
	return []drive.DriveOperation{
		&drive.RemoveFromIdentityBalance{IdentityID: a.IdentityID, Amount: a.Amount},
		&drive.AddToIdentityBalance{IdentityID: a.RecipientID, Amount: a.Amount},
		&drive.SetIdentityRevision{IdentityID: a.IdentityID, Revision: a.Revision},
	}
}

type IdentityCreditWithdrawalAction struct {
	IdentityID ids.ID
	Revision   uint64
	Withdrawal drive.Withdrawal
}

func NewIdentityCreditWithdrawalAction(revision uint64, withdrawal drive.Withdrawal) *IdentityCreditWithdrawalAction {
	withdrawal.OutputScript = cloneBytes(withdrawal.OutputScript)
	return &IdentityCreditWithdrawalAction{
		IdentityID: withdrawal.IdentityID,
		Revision:   revision,
		Withdrawal: withdrawal,
	}
}

func (*IdentityCreditWithdrawalAction) Kind() types.TransitionKind {
	return types.KindIdentityCreditWithdrawal
}

func (a *IdentityCreditWithdrawalAction) Operations() []drive.DriveOperation {
	return []drive.DriveOperation{
		&drive.RemoveFromIdentityBalance{IdentityID: a.IdentityID, Amount: a.Withdrawal.Amount},
		&drive.EnqueueWithdrawal{Withdrawal: a.Withdrawal},
		&drive.SetIdentityRevision{IdentityID: a.IdentityID, Revision: a.Revision},
	}
}
