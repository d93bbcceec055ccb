// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/actions"
	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/types"
)

var (
	_ Event = &PaidEvent{}
	_ Event = &PaidFromAssetLockEvent{}
	_ Event = &FreeEvent{}
)

// Event is an action together with who pays for it.
type Event interface {
	Operations() []drive.DriveOperation
}

// PaidEvent is paid from the balance of an existing identity.
type PaidEvent struct {
	Payer ids.ID
	// Spent is the amount the operations themselves remove from the payer,
	// such as a transferred or withdrawn amount.
	Spent         uint64
	Ops           []drive.DriveOperation
	ValidationFee types.FeeResult
}

func (e *PaidEvent) Operations() []drive.DriveOperation { return e.Ops }

// PaidFromAssetLockEvent is paid out of the credits an asset lock brings in.
// What remains after the fee is added to the identity.
type PaidFromAssetLockEvent struct {
	IdentityID    ids.ID
	AddedBalance  uint64
	Ops           []drive.DriveOperation
	ValidationFee types.FeeResult
}

func (e *PaidFromAssetLockEvent) Operations() []drive.DriveOperation { return e.Ops }

// FreeEvent is not charged.
type FreeEvent struct {
	Ops []drive.DriveOperation
}

func (e *FreeEvent) Operations() []drive.DriveOperation { return e.Ops }

// NewEvent decides who pays for [action]. [signer] is the identity that
// signed it, nil for asset lock funded actions.
func NewEvent(action actions.Action, signer *types.Identity, validationFee types.FeeResult) (Event, error) {
	ops := action.Operations()
	switch a := action.(type) {
	case *actions.IdentityCreateAction:
		return &PaidFromAssetLockEvent{
			IdentityID:    a.Identity.ID,
			AddedBalance:  a.AssetLockCredits,
			Ops:           ops,
			ValidationFee: validationFee,
		}, nil
	case *actions.IdentityTopUpAction:
		return &PaidFromAssetLockEvent{
			IdentityID:    a.IdentityID,
			AddedBalance:  a.AssetLockCredits,
			Ops:           ops,
			ValidationFee: validationFee,
		}, nil
	case *actions.MasternodeVoteAction:
		return &FreeEvent{Ops: ops}, nil
	}

	if signer == nil {
		return nil, fmt.Errorf("%w: %s action without signer", ErrCorruptedCodeExecution, action.Kind())
	}
	event := &PaidEvent{Payer: signer.ID, Ops: ops, ValidationFee: validationFee}
	switch a := action.(type) {
	case *actions.IdentityCreditTransferAction:
		event.Spent = a.Amount
	case *actions.IdentityCreditWithdrawalAction:
		event.Spent = a.Withdrawal.Amount
	}
	return event, nil
}
