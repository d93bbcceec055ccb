// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"github.com/dustin/go-humanize"

	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/validation"
	"github.com/ava-labs/transitionvm/version"
)

// ProcessRawTransition validates and executes one transition against the
// block store of [ctx]. Consensus errors end up in the result; a returned
// error aborts the block.
func (e *Engine) ProcessRawTransition(ctx *validation.Context, raw []byte) (Result, error) {
	switch ctx.Matrix.Execution.ProcessRawStateTransitions {
	case 0:
		return e.processRawTransitionV0(ctx, raw)
	default:
		return Result{}, version.Mismatch("process_raw_state_transitions", ctx.Matrix.Execution.ProcessRawStateTransitions, 0)
	}
}

func (e *Engine) processRawTransitionV0(ctx *validation.Context, raw []byte) (Result, error) {
	validated, err := validation.Validate(ctx, raw)
	if err != nil {
		return Result{}, err
	}
	outcome := validated.Data()
	result := Result{TxHash: outcome.Hash}
	if outcome.Transition != nil {
		result.Kind = outcome.Transition.Kind()
	}

	if !validated.IsValid() {
		result.Errors = validated.Errors()
		result.Tag = UnpaidConsensusError
		if isPaid(outcome, validated.FirstError()) {
			fee, err := e.ChargeValidation(ctx.DB, ctx.Matrix, outcome.Signer.ID, outcome.ValidationFee)
			if err != nil {
				return Result{}, err
			}
			result.Tag = PaidConsensusError
			result.Fee = fee
		}
		logger.Debug("transition rejected",
			"tx", result.TxHash,
			"phase", outcome.Phase,
			"tag", result.Tag,
			"code", result.Code(),
			"error", validated.FirstError(),
		)
		return result, nil
	}

	event, err := NewEvent(outcome.Action, outcome.Signer, outcome.ValidationFee)
	if err != nil {
		return Result{}, err
	}
	executed, err := e.Execute(ctx.DB, ctx.Matrix, event)
	if err != nil {
		return Result{}, err
	}
	executed.TxHash = result.TxHash
	executed.Kind = result.Kind
	if total, err := executed.Fee.Total(); err == nil {
		logger.Debug("transition executed",
			"tx", executed.TxHash,
			"kind", executed.Kind,
			"tag", executed.Tag,
			"fee", humanize.Comma(int64(total)),
		)
	}
	return executed, nil
}

// isPaid reports whether a rejected transition is still charged: only state
// errors of a transition whose signing identity was established.
func isPaid(outcome *validation.Outcome, first consensus.Error) bool {
	return outcome.Signer != nil && first != nil && first.Category() == consensus.CategoryState
}
