// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

// validateKeysInCreation checks the keys a transition adds, independent of
// any identity they are added to.
func validateKeysInCreation(keys []transitions.IdentityPublicKeyInCreation, limit uint16) []consensus.Error {
	if len(keys) > int(limit) {
		return []consensus.Error{consensus.NewBasicError(
			consensus.CodeMaxIdentityPublicKeyLimitReached,
			"%d public keys exceed the limit of %d", len(keys), limit,
		)}
	}
	var (
		errs     []consensus.Error
		seenIDs  = make(map[uint32]struct{}, len(keys))
		seenData = make(map[string]struct{}, len(keys))
	)
	for i := range keys {
		key := &keys[i].Key
		if _, ok := seenIDs[key.ID]; ok {
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeDuplicatedIdentityPublicKeyID, "duplicated public key id %d", key.ID,
			))
		}
		seenIDs[key.ID] = struct{}{}
		if _, ok := seenData[string(key.Data)]; ok {
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeDuplicatedIdentityPublicKey, "public key %d is a duplicate", key.ID,
			))
		}
		seenData[string(key.Data)] = struct{}{}

		switch {
		case !key.Purpose.Valid() || !key.Type.Valid():
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidIdentityPublicKeyData, "public key %d has unknown purpose or type", key.ID,
			))
		case !key.SecurityLevel.Valid():
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidIdentityPublicKeySecurityLevel, "public key %d has unknown security level", key.ID,
			))
		case key.SecurityLevel == types.SecurityLevelMaster && key.Purpose != types.PurposeAuthentication:
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidIdentityPublicKeySecurityLevel,
				"public key %d: %s level is only allowed for %s keys", key.ID, key.SecurityLevel, types.PurposeAuthentication,
			))
		case key.Type == types.KeyTypeBLS12381:
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidIdentityPublicKeyData, "public key %d: %s keys cannot be verified", key.ID, key.Type,
			))
		case len(key.Data) != key.Type.DataLen():
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidIdentityPublicKeyData,
				"public key %d: %s data must be %d bytes, got %d", key.ID, key.Type, key.Type.DataLen(), len(key.Data),
			))
		case key.DisabledAt != 0:
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidIdentityPublicKeyData, "public key %d cannot be created disabled", key.ID,
			))
		}
	}
	return errs
}

func verifyIdentitySignature(
	ctx *Context,
	versions version.TransitionVersions,
	tx transitions.StateTransition,
	msg []byte,
) (*types.Identity, consensus.SimpleValidationResult, error) {
	if err := ctx.chargeRead(); err != nil {
		return nil, consensus.NewSimple(), err
	}
	identity, err := ctx.Drive.FetchIdentity(ctx.DB, tx.OwnerID())
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, invalid(consensus.NewSignatureError(
			consensus.CodeIdentityNotFoundForSignature, "identity %s not found", tx.OwnerID(),
		)), nil
	case err != nil:
		return nil, consensus.NewSimple(), err
	}

	keyID := tx.SignaturePublicKeyID()
	key, ok := identity.PublicKey(keyID)
	if !ok {
		return identity, invalid(consensus.NewSignatureError(
			consensus.CodeMissingPublicKey, "identity %s has no public key %d", identity.ID, keyID,
		)), nil
	}
	if key.IsDisabled() {
		return identity, invalid(consensus.NewSignatureError(
			consensus.CodePublicKeyIsDisabled, "public key %d was disabled at %d", keyID, key.DisabledAt,
		)), nil
	}
	if !versions.AllowedPurposes.Contains(key.Purpose) {
		return identity, invalid(consensus.NewSignatureError(
			consensus.CodeInvalidSignaturePublicKeyPurpose,
			"%s keys cannot sign %s transitions", key.Purpose, tx.Kind(),
		)), nil
	}
	if !versions.AllowedSecurityLevels.Contains(key.SecurityLevel) {
		return identity, invalid(consensus.NewSignatureError(
			consensus.CodeInvalidSignaturePublicKeySecurityLevel,
			"%s keys cannot sign %s transitions", key.SecurityLevel, tx.Kind(),
		)), nil
	}
	if err := ctx.chargeSignature(key.Type); err != nil {
		return identity, consensus.NewSimple(), err
	}
	if result := verify(key.Type, key.Data, msg, tx.Signature()); !result.IsValid() {
		return identity, result, nil
	}
	return identity, consensus.NewSimple(), nil
}

func verifyAssetLockSignature(ctx *Context, tx transitions.StateTransition, msg []byte) (consensus.SimpleValidationResult, error) {
	funded, ok := tx.(transitions.AssetLockFunded)
	if !ok {
		return consensus.NewSimple(), fmt.Errorf("%w: %s is not asset lock funded", ErrCorruptedCodeExecution, tx.Kind())
	}
	if err := ctx.chargeSignature(types.KeyTypeECDSAHash160); err != nil {
		return consensus.NewSimple(), err
	}
	if err := transitions.VerifyAssetLockSignature(funded.Proof(), msg, tx.Signature()); err != nil {
		return invalid(consensus.NewSignatureError(
			consensus.CodeInvalidAssetLockSignature, "asset lock signature: %v", err,
		)), nil
	}
	return consensus.NewSimple(), nil
}

// verifyKeysInCreation checks the proof of possession attached to every key
// the transition adds.
func verifyKeysInCreation(ctx *Context, tx transitions.StateTransition, msg []byte) (consensus.SimpleValidationResult, error) {
	var keys []transitions.IdentityPublicKeyInCreation
	switch t := tx.(type) {
	case *transitions.IdentityCreateTransitionV0:
		keys = t.PublicKeys
	case *transitions.IdentityUpdateTransitionV0:
		keys = t.AddPublicKeys
	default:
		return consensus.NewSimple(), nil
	}
	result := consensus.NewSimple()
	for i := range keys {
		key := &keys[i].Key
		if err := ctx.chargeSignature(key.Type); err != nil {
			return consensus.NewSimple(), err
		}
		r := verify(key.Type, key.Data, msg, keys[i].Sig)
		result.AddErrors(r.Errors()...)
	}
	return result, nil
}

func verify(keyType types.KeyType, data []byte, msg []byte, sig []byte) consensus.SimpleValidationResult {
	err := transitions.VerifySignature(keyType, data, msg, sig)
	switch {
	case err == nil:
		return consensus.NewSimple()
	case errors.Is(err, transitions.ErrUnsupportedKeyType):
		return invalid(consensus.NewSignatureError(
			consensus.CodeInvalidIdentityPublicKeyType, "%v", err,
		))
	default:
		return invalid(consensus.NewSignatureError(
			consensus.CodeInvalidStateTransitionSignature, "%v", err,
		))
	}
}
