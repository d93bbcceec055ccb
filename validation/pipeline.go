// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validation turns raw transition bytes into actions. It runs four
// phases in order (structure, identity and signature, state, transform) and
// stops at the first phase that reports consensus errors.
package validation

import (
	"errors"
	"fmt"

	"github.com/ava-labs/transitionvm/actions"
	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

var (
	// ErrCorruptedCodeExecution is returned when a condition that an earlier
	// phase established turns out to be false. Continuing could diverge from
	// the rest of the network, so the block must be abandoned.
	ErrCorruptedCodeExecution = errors.New("corrupted code execution")

	errPhaseOutOfOrder = errors.New("phase run out of order")
)

// PhaseFunc is one phase of the pipeline.
type PhaseFunc func(ctx *Context, o *Outcome) (consensus.SimpleValidationResult, error)

// Phases are the phases after parsing, in order.
var Phases = []PhaseFunc{Structure, IdentityAndSignature, State, Transform}

// Validate runs every phase on [raw]. Consensus errors are returned in the
// result together with the outcome reached so far; a non-nil error is fatal.
func Validate(ctx *Context, raw []byte) (consensus.ValidationResult[*Outcome], error) {
	return Run(ctx, raw, Phases...)
}

// Run parses [raw] and runs [phases] in order, stopping at the first invalid
// result.
func Run(ctx *Context, raw []byte, phases ...PhaseFunc) (consensus.ValidationResult[*Outcome], error) {
	outcome, result := Parse(ctx, raw)
	if !result.IsValid() {
		return consensus.NewWithDataAndErrors(outcome, result.Errors()...), nil
	}
	for _, phase := range phases {
		result, err := phase(ctx, outcome)
		outcome.ValidationFee = ctx.Fee()
		if err != nil {
			return consensus.NewWithData(outcome), err
		}
		if !result.IsValid() {
			return consensus.NewWithDataAndErrors(outcome, result.Errors()...), nil
		}
	}
	return consensus.NewWithData(outcome), nil
}

// Parse decodes [raw]. Oversized or undecodable input is a basic error.
func Parse(ctx *Context, raw []byte) (*Outcome, consensus.SimpleValidationResult) {
	outcome := &Outcome{Size: len(raw), Phase: PhaseParse, Hash: transitions.HashBytes(raw)}
	if uint64(len(raw)) > ctx.Matrix.Limits.MaxStateTransitionSize {
		return outcome, consensus.NewWithErrors[struct{}](consensus.NewBasicError(
			consensus.CodeStateTransitionMaxSizeExceeded,
			"state transition of %d bytes exceeds %d", len(raw), ctx.Matrix.Limits.MaxStateTransitionSize,
		))
	}
	tx, err := transitions.Parse(raw)
	if err != nil {
		return outcome, consensus.NewWithErrors[struct{}](consensus.NewBasicError(
			consensus.CodeSerializedObjectParsing, "cannot parse state transition: %v", err,
		))
	}
	outcome.Transition = tx
	return outcome, consensus.NewSimple()
}

func invalid(errs ...consensus.Error) consensus.SimpleValidationResult {
	return consensus.NewWithErrors[struct{}](errs...)
}

func advance(o *Outcome, to Phase) error {
	if o.Transition == nil || o.Phase+1 != to {
		return fmt.Errorf("%w: %s after %s", errPhaseOutOfOrder, to, o.Phase)
	}
	o.Phase = to
	return nil
}

// Structure validates the shape of the transition without reading state.
func Structure(ctx *Context, o *Outcome) (consensus.SimpleValidationResult, error) {
	if err := advance(o, PhaseStructure); err != nil {
		return consensus.NewSimple(), err
	}
	tx := o.Transition
	versions, err := ctx.Matrix.Transition(tx.Kind())
	if err != nil {
		return consensus.NewSimple(), err
	}
	if tx.StructureVersion() != versions.Structure {
		return invalid(consensus.NewBasicError(
			consensus.CodeUnsupportedStructureVersion,
			"%s structure version %d is not active, expected %d", tx.Kind(), tx.StructureVersion(), versions.Structure,
		)), nil
	}
	switch versions.BasicStructure {
	case 0:
		return basicStructureV0(ctx, tx)
	default:
		return consensus.NewSimple(), version.Mismatch("validate_basic_structure", versions.BasicStructure, 0)
	}
}

func basicStructureV0(ctx *Context, tx transitions.StateTransition) (consensus.SimpleValidationResult, error) {
	switch t := tx.(type) {
	case *transitions.IdentityCreateTransitionV0:
		return identityCreateBasicV0(ctx, t), nil
	case *transitions.IdentityTopUpTransitionV0:
		return identityTopUpBasicV0(ctx, t), nil
	case *transitions.IdentityUpdateTransitionV0:
		return identityUpdateBasicV0(ctx, t), nil
	case *transitions.IdentityCreditTransferTransitionV0:
		return creditTransferBasicV0(ctx, t), nil
	case *transitions.IdentityCreditWithdrawalTransitionV0:
		return creditWithdrawalBasicV0(ctx, t), nil
	case *transitions.DataContractCreateTransitionV0:
		return dataContractCreateBasicV0(ctx, t), nil
	case *transitions.DataContractUpdateTransitionV0:
		return dataContractUpdateBasicV0(ctx, t), nil
	case *transitions.DocumentsBatchTransitionV0:
		return documentsBatchBasicV0(ctx, t), nil
	case *transitions.MasternodeVoteTransitionV0:
		return masternodeVoteBasicV0(ctx, t), nil
	default:
		return consensus.NewSimple(), fmt.Errorf("%w: no structure validation for %T", ErrCorruptedCodeExecution, tx)
	}
}

// IdentityAndSignature resolves the signer and verifies every signature.
func IdentityAndSignature(ctx *Context, o *Outcome) (consensus.SimpleValidationResult, error) {
	if err := advance(o, PhaseSignature); err != nil {
		return consensus.NewSimple(), err
	}
	tx := o.Transition
	versions, err := ctx.Matrix.Transition(tx.Kind())
	if err != nil {
		return consensus.NewSimple(), err
	}
	switch versions.IdentitySignatures {
	case 0:
	default:
		return consensus.NewSimple(), version.Mismatch("validate_identity_and_signatures", versions.IdentitySignatures, 0)
	}

	msg, err := transitions.SignableBytes(tx)
	if err != nil {
		return consensus.NewSimple(), err
	}
	if err := ctx.chargeHash(len(msg)); err != nil {
		return consensus.NewSimple(), err
	}

	var result consensus.SimpleValidationResult
	switch versions.Signature {
	case version.SignedByIdentity:
		var signer *types.Identity
		signer, result, err = verifyIdentitySignature(ctx, versions, tx, msg)
		o.Signer = signer
	case version.SignedByAssetLock:
		result, err = verifyAssetLockSignature(ctx, tx, msg)
	default:
		return consensus.NewSimple(), fmt.Errorf("%w: signature strategy %d", ErrCorruptedCodeExecution, versions.Signature)
	}
	if err != nil || !result.IsValid() {
		return result, err
	}
	return verifyKeysInCreation(ctx, tx, msg)
}

// State checks the transition against the current contents of the store
// and prepares its transformation.
func State(ctx *Context, o *Outcome) (consensus.SimpleValidationResult, error) {
	if err := advance(o, PhaseState); err != nil {
		return consensus.NewSimple(), err
	}
	tx := o.Transition
	versions, err := ctx.Matrix.Transition(tx.Kind())
	if err != nil {
		return consensus.NewSimple(), err
	}
	var result consensus.ValidationResult[transformFunc]
	switch versions.State {
	case 0:
		result, err = stateV0(ctx, tx, o.Signer)
	default:
		return consensus.NewSimple(), version.Mismatch("validate_state", versions.State, 0)
	}
	if err != nil {
		return consensus.NewSimple(), err
	}
	if !result.IsValid() {
		return consensus.ErrorsOnly(result), nil
	}
	if !result.HasData() {
		return consensus.NewSimple(), fmt.Errorf("%w: valid state without transformation", ErrCorruptedCodeExecution)
	}
	o.transform = result.Data()
	return consensus.NewSimple(), nil
}

// transformFunc builds the action from data resolved during state validation.
type transformFunc func() (actions.Action, error)

func stateV0(ctx *Context, tx transitions.StateTransition, signer *types.Identity) (consensus.ValidationResult[transformFunc], error) {
	switch t := tx.(type) {
	case *transitions.IdentityCreateTransitionV0:
		return identityCreateStateV0(ctx, t)
	case *transitions.IdentityTopUpTransitionV0:
		return identityTopUpStateV0(ctx, t)
	case *transitions.IdentityUpdateTransitionV0:
		return identityUpdateStateV0(ctx, t, signer)
	case *transitions.IdentityCreditTransferTransitionV0:
		return creditTransferStateV0(ctx, t, signer)
	case *transitions.IdentityCreditWithdrawalTransitionV0:
		return creditWithdrawalStateV0(ctx, t, signer)
	case *transitions.DataContractCreateTransitionV0:
		return dataContractCreateStateV0(ctx, t)
	case *transitions.DataContractUpdateTransitionV0:
		return dataContractUpdateStateV0(ctx, t)
	case *transitions.DocumentsBatchTransitionV0:
		return documentsBatchStateV0(ctx, t, signer)
	case *transitions.MasternodeVoteTransitionV0:
		return masternodeVoteStateV0(ctx, t)
	default:
		return consensus.ValidationResult[transformFunc]{}, fmt.Errorf("%w: no state validation for %T", ErrCorruptedCodeExecution, tx)
	}
}

// Transform builds the action. It cannot fail for protocol reasons.
func Transform(ctx *Context, o *Outcome) (consensus.SimpleValidationResult, error) {
	if err := advance(o, PhaseTransform); err != nil {
		return consensus.NewSimple(), err
	}
	versions, err := ctx.Matrix.Transition(o.Transition.Kind())
	if err != nil {
		return consensus.NewSimple(), err
	}
	switch versions.TransformIntoAction {
	case 0:
	default:
		return consensus.NewSimple(), version.Mismatch("transform_into_action", versions.TransformIntoAction, 0)
	}
	if o.transform == nil {
		return consensus.NewSimple(), fmt.Errorf("%w: transform without state validation", ErrCorruptedCodeExecution)
	}
	action, err := o.transform()
	if err != nil {
		return consensus.NewSimple(), fmt.Errorf("%w: %v", ErrCorruptedCodeExecution, err)
	}
	o.Action = action
	return consensus.NewSimple(), nil
}

func valid(f transformFunc) (consensus.ValidationResult[transformFunc], error) {
	return consensus.NewWithData(f), nil
}

func rejected(errs ...consensus.Error) (consensus.ValidationResult[transformFunc], error) {
	return consensus.NewWithErrors[transformFunc](errs...), nil
}

func failed(err error) (consensus.ValidationResult[transformFunc], error) {
	return consensus.ValidationResult[transformFunc]{}, err
}
