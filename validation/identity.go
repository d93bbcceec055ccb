// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"errors"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/actions"
	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
)

// Output scripts the core chain pays to: P2PKH (25 bytes) and P2SH (23 bytes).
const (
	p2pkhScriptLen = 25
	p2shScriptLen  = 23
)

func validateAssetLock(ctx *Context, proof *types.AssetLockProof) []consensus.Error {
	limits := &ctx.Matrix.Limits
	if proof.Amount < limits.MinAssetLockDuffs {
		return []consensus.Error{consensus.NewBasicError(
			consensus.CodeInvalidAssetLockProofValue,
			"asset lock of %d duffs is below the minimum of %d", proof.Amount, limits.MinAssetLockDuffs,
		)}
	}
	if _, err := types.MulCredits(proof.Amount, limits.CreditsPerDuff); err != nil {
		return []consensus.Error{consensus.NewBasicError(
			consensus.CodeInvalidAssetLockProofValue, "asset lock value: %v", err,
		)}
	}
	return nil
}

func identityCreateBasicV0(ctx *Context, t *transitions.IdentityCreateTransitionV0) consensus.SimpleValidationResult {
	result := invalid(validateAssetLock(ctx, &t.AssetLockProof)...)
	if expected := types.IdentityIDFromOutpoint(t.AssetLockProof.Outpoint); t.IdentityID != expected {
		result.AddError(consensus.NewBasicError(
			consensus.CodeInvalidIdentifier, "identity id %s should be %s", t.IdentityID, expected,
		))
	}
	result.AddErrors(validateKeysInCreation(t.PublicKeys, ctx.Matrix.Limits.MaxPublicKeysInCreation)...)

	hasMaster := false
	for i := range t.PublicKeys {
		if t.PublicKeys[i].Key.IsMaster() {
			hasMaster = true
			break
		}
	}
	if !hasMaster {
		result.AddError(consensus.NewBasicError(
			consensus.CodeMissingMasterPublicKey, "identity must be created with a master authentication key",
		))
	}
	return result
}

func identityTopUpBasicV0(ctx *Context, t *transitions.IdentityTopUpTransitionV0) consensus.SimpleValidationResult {
	result := invalid(validateAssetLock(ctx, &t.AssetLockProof)...)
	if t.IdentityID == ids.Empty {
		result.AddError(consensus.NewBasicError(consensus.CodeInvalidIdentifier, "empty identity id"))
	}
	return result
}

func identityUpdateBasicV0(ctx *Context, t *transitions.IdentityUpdateTransitionV0) consensus.SimpleValidationResult {
	result := invalid(validateKeysInCreation(t.AddPublicKeys, ctx.Matrix.Limits.MaxPublicKeysAddedInUpdate)...)
	seen := make(map[uint32]struct{}, len(t.AddPublicKeys)+len(t.DisablePublicKeys))
	for i := range t.AddPublicKeys {
		seen[t.AddPublicKeys[i].Key.ID] = struct{}{}
	}
	for _, id := range t.DisablePublicKeys {
		if _, ok := seen[id]; ok {
			result.AddError(consensus.NewBasicError(
				consensus.CodeDuplicatedIdentityPublicKeyID, "public key id %d is referenced twice", id,
			))
		}
		seen[id] = struct{}{}
	}
	return result
}

func creditTransferBasicV0(ctx *Context, t *transitions.IdentityCreditTransferTransitionV0) consensus.SimpleValidationResult {
	result := consensus.NewSimple()
	if min := ctx.Matrix.Limits.MinCreditTransferAmount; t.Amount < min {
		result.AddError(consensus.NewBasicError(
			consensus.CodeInvalidCreditAmount, "transfer of %d credits is below the minimum of %d", t.Amount, min,
		))
	}
	if t.RecipientID == t.IdentityID {
		result.AddError(consensus.NewBasicError(
			consensus.CodeInvalidIdentifier, "identity %s cannot transfer to itself", t.IdentityID,
		))
	}
	return result
}

func creditWithdrawalBasicV0(ctx *Context, t *transitions.IdentityCreditWithdrawalTransitionV0) consensus.SimpleValidationResult {
	result := consensus.NewSimple()
	if min := ctx.Matrix.Limits.MinWithdrawalAmount; t.Amount < min {
		result.AddError(consensus.NewBasicError(
			consensus.CodeInvalidCreditAmount, "withdrawal of %d credits is below the minimum of %d", t.Amount, min,
		))
	}
	if n := len(t.OutputScript); n != p2pkhScriptLen && n != p2shScriptLen {
		result.AddError(consensus.NewBasicError(
			consensus.CodeInvalidOutputScript, "output script of %d bytes is neither P2PKH nor P2SH", n,
		))
	}
	if t.Pooling != transitions.PoolingNever {
		result.AddError(consensus.NewBasicError(
			consensus.CodeNotImplementedWithdrawalPooling, "withdrawal pooling %d is not supported", t.Pooling,
		))
	}
	return result
}

// assetLockCredits checks that the outpoint is unused and returns the
// credits it funds.
func assetLockCredits(ctx *Context, proof *types.AssetLockProof) (uint64, []consensus.Error, error) {
	if err := ctx.chargeRead(); err != nil {
		return 0, nil, err
	}
	used, err := ctx.Drive.IsAssetLockUsed(ctx.DB, proof.Outpoint)
	if err != nil {
		return 0, nil, err
	}
	if used {
		return 0, []consensus.Error{consensus.NewStateError(
			consensus.CodeAssetLockOutPointAlreadyUsed,
			"outpoint %s:%d was already used", proof.Outpoint.TxID, proof.Outpoint.Index,
		)}, nil
	}
	credits, err := types.MulCredits(proof.Amount, ctx.Matrix.Limits.CreditsPerDuff)
	return credits, nil, err
}

func identityCreateStateV0(ctx *Context, t *transitions.IdentityCreateTransitionV0) (consensus.ValidationResult[transformFunc], error) {
	credits, errs, err := assetLockCredits(ctx, &t.AssetLockProof)
	if err != nil || len(errs) > 0 {
		return consensus.NewWithErrors[transformFunc](errs...), err
	}
	if err := ctx.chargeRead(); err != nil {
		return failed(err)
	}
	exists, err := ctx.Drive.IdentityExists(ctx.DB, t.IdentityID)
	if err != nil {
		return failed(err)
	}
	if exists {
		return rejected(consensus.NewStateError(
			consensus.CodeIdentityAlreadyExists, "identity %s already exists", t.IdentityID,
		))
	}
	return valid(func() (actions.Action, error) {
		identity := &types.Identity{ID: t.IdentityID}
		for i := range t.PublicKeys {
			identity.PublicKeys = append(identity.PublicKeys, t.PublicKeys[i].Key)
		}
		return actions.NewIdentityCreateAction(identity, t.AssetLockProof.Outpoint, credits)
	})
}

func identityTopUpStateV0(ctx *Context, t *transitions.IdentityTopUpTransitionV0) (consensus.ValidationResult[transformFunc], error) {
	credits, errs, err := assetLockCredits(ctx, &t.AssetLockProof)
	if err != nil || len(errs) > 0 {
		return consensus.NewWithErrors[transformFunc](errs...), err
	}
	if err := ctx.chargeRead(); err != nil {
		return failed(err)
	}
	revision, err := ctx.Drive.FetchIdentityRevision(ctx.DB, t.IdentityID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return rejected(consensus.NewStateError(
			consensus.CodeIdentityNotFound, "identity %s not found", t.IdentityID,
		))
	case err != nil:
		return failed(err)
	}
	return valid(func() (actions.Action, error) {
		return &actions.IdentityTopUpAction{
			IdentityID:       t.IdentityID,
			Outpoint:         t.AssetLockProof.Outpoint,
			AssetLockCredits: credits,
			Revision:         revision + 1,
		}, nil
	})
}

func checkRevision(signer *types.Identity, revision uint64) []consensus.Error {
	if revision != signer.Revision+1 {
		return []consensus.Error{consensus.NewStateError(
			consensus.CodeInvalidIdentityRevision,
			"identity %s is at revision %d, transition carries %d", signer.ID, signer.Revision, revision,
		)}
	}
	return nil
}

func identityUpdateStateV0(ctx *Context, t *transitions.IdentityUpdateTransitionV0, signer *types.Identity) (consensus.ValidationResult[transformFunc], error) {
	result := consensus.NewWithErrors[transformFunc](checkRevision(signer, t.Revision)...)

	existingData := make(map[string]struct{}, len(signer.PublicKeys))
	for i := range signer.PublicKeys {
		existingData[string(signer.PublicKeys[i].Data)] = struct{}{}
	}
	masters := signer.EnabledMasterKeys()
	added := make([]types.IdentityPublicKey, 0, len(t.AddPublicKeys))
	for i := range t.AddPublicKeys {
		key := t.AddPublicKeys[i].Key
		_, idTaken := signer.PublicKey(key.ID)
		_, dataTaken := existingData[string(key.Data)]
		if idTaken || dataTaken {
			result.AddError(consensus.NewStateError(
				consensus.CodeIdentityPublicKeyAlreadyExists, "identity %s already has public key %d", signer.ID, key.ID,
			))
			continue
		}
		if key.IsMaster() {
			masters++
		}
		added = append(added, key)
	}

	for _, id := range t.DisablePublicKeys {
		key, ok := signer.PublicKey(id)
		if !ok || key.IsDisabled() {
			result.AddError(consensus.NewStateError(
				consensus.CodeIdentityPublicKeyDisabledNotFound, "identity %s has no enabled public key %d", signer.ID, id,
			))
			continue
		}
		if id == t.KeyID {
			result.AddError(consensus.NewStateError(
				consensus.CodeMasterKeyCannotBeDisabled, "public key %d signs this transition", id,
			))
			continue
		}
		if key.IsMaster() {
			masters--
		}
	}
	if masters <= 0 {
		result.AddError(consensus.NewStateError(
			consensus.CodeMasterKeyCannotBeDisabled, "identity %s would be left without a master key", signer.ID,
		))
	}
	if !result.IsValid() {
		return result, nil
	}

	disabledAt := ctx.BlockInfo.TimeMs
	if disabledAt == 0 {
		disabledAt = 1
	}
	return valid(func() (actions.Action, error) {
		return actions.NewIdentityUpdateAction(signer.ID, t.Revision, added, t.DisablePublicKeys, disabledAt)
	})
}

func creditTransferStateV0(ctx *Context, t *transitions.IdentityCreditTransferTransitionV0, signer *types.Identity) (consensus.ValidationResult[transformFunc], error) {
	result := consensus.NewWithErrors[transformFunc](checkRevision(signer, t.Revision)...)
	if signer.Balance < t.Amount {
		result.AddError(consensus.NewStateError(
			consensus.CodeIdentityInsufficientTransferBalance,
			"identity %s holds %d credits, cannot transfer %d", signer.ID, signer.Balance, t.Amount,
		))
	}
	if err := ctx.chargeRead(); err != nil {
		return failed(err)
	}
	exists, err := ctx.Drive.IdentityExists(ctx.DB, t.RecipientID)
	if err != nil {
		return failed(err)
	}
	if !exists {
		result.AddError(consensus.NewStateError(
			consensus.CodeRecipientIdentityNotFound, "recipient identity %s not found", t.RecipientID,
		))
	}
	if !result.IsValid() {
		return result, nil
	}
	return valid(func() (actions.Action, error) {
		return &actions.IdentityCreditTransferAction{
			IdentityID:  t.IdentityID,
			RecipientID: t.RecipientID,
			Amount:      t.Amount,
			Revision:    t.Revision,
		}, nil
	})
}

func creditWithdrawalStateV0(ctx *Context, t *transitions.IdentityCreditWithdrawalTransitionV0, signer *types.Identity) (consensus.ValidationResult[transformFunc], error) {
	result := consensus.NewWithErrors[transformFunc](checkRevision(signer, t.Revision)...)
	if signer.Balance < t.Amount {
		result.AddError(consensus.NewStateError(
			consensus.CodeIdentityInsufficientTransferBalance,
			"identity %s holds %d credits, cannot withdraw %d", signer.ID, signer.Balance, t.Amount,
		))
	}
	if !result.IsValid() {
		return result, nil
	}
	return valid(func() (actions.Action, error) {
		return actions.NewIdentityCreditWithdrawalAction(t.Revision, drive.Withdrawal{
			IdentityID:     t.IdentityID,
			Amount:         t.Amount,
			CoreFeePerByte: t.CoreFeePerByte,
			Pooling:        uint8(t.Pooling),
			OutputScript:   t.OutputScript,
			CreatedAtMs:    ctx.BlockInfo.TimeMs,
		}), nil
	})
}
