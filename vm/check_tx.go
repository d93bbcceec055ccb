// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/execution"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/validation"
	"github.com/ava-labs/transitionvm/version"
)

// CheckTxLevel tells whether a transition is new to the mempool or is
// checked again after a block was committed.
type CheckTxLevel uint8

const (
	CheckTxNew CheckTxLevel = iota
	CheckTxRecheck
)

func (l CheckTxLevel) String() string {
	switch l {
	case CheckTxNew:
		return "new"
	case CheckTxRecheck:
		return "recheck"
	default:
		return "unknown"
	}
}

// CheckTxResult is the mempool admission decision for one transition.
type CheckTxResult struct {
	TxHash ids.ID
	Kind   types.TransitionKind
	Errors []consensus.Error
	// Fee is what admission estimated the transition to cost: the minimum
	// fee of its kind, or the full estimate when state was validated.
	Fee types.FeeResult
}

func (r *CheckTxResult) Valid() bool { return len(r.Errors) == 0 }

// Code is the code of the first error, 0 when valid.
func (r *CheckTxResult) Code() consensus.Code {
	if len(r.Errors) == 0 {
		return 0
	}
	return r.Errors[0].Code()
}

// checkTxAttempts bounds how often CheckTx reads without the state lock
// before it validates while holding commits off.
const checkTxAttempts = 2

// CheckTx decides whether [raw] may enter the mempool. It reads the
// committed state and writes nothing. Admission is weaker than block
// execution: a transition it accepts can still be rejected in a block.
//
// Validation runs without the state lock so that it never delays a commit.
// A commit that lands while it reads invalidates the result and the
// transition is checked again.
func (vm *VM) CheckTx(raw []byte, level CheckTxLevel) (*CheckTxResult, error) {
	for i := 0; i < checkTxAttempts; i++ {
		platform, commits := vm.committedView()
		result, err := vm.checkTx(&platform, raw, level)
		if !vm.committedSince(commits) {
			return result, err
		}
	}

	vm.stateLock.RLock()
	defer vm.stateLock.RUnlock()

	return vm.checkTx(&vm.platform, raw, level)
}

// committedView returns the committed platform state and the number of
// commits it follows.
func (vm *VM) committedView() (PlatformState, uint64) {
	vm.stateLock.RLock()
	defer vm.stateLock.RUnlock()

	return vm.platform, vm.commits
}

// committedSince reports whether a commit started after [commits] was read.
func (vm *VM) committedSince(commits uint64) bool {
	vm.stateLock.RLock()
	defer vm.stateLock.RUnlock()

	return vm.commits != commits
}

func (vm *VM) checkTx(platform *PlatformState, raw []byte, level CheckTxLevel) (*CheckTxResult, error) {
	matrix, err := vm.registry.Get(platform.CurrentProtocolVersion)
	if err != nil {
		return nil, err
	}
	triggers, err := validation.Bindings(matrix.Documents.DataTriggers, platform.ContactContractID)
	if err != nil {
		return nil, err
	}
	scratch := versiondb.New(vm.state.DriveDB())
	defer scratch.Abort()
	ctx := validation.NewContext(vm.drive, scratch, matrix, platform.LastBlock, triggers)

	switch matrix.Execution.CheckTx {
	case 0:
		return vm.checkTxV0(ctx, raw)
	case 1:
		return vm.checkTxV1(ctx, raw, level)
	default:
		return nil, version.Mismatch("check_tx", matrix.Execution.CheckTx, 0, 1)
	}
}

// checkTxV0 validates structure and signatures and probes that the payer
// holds at least the minimum fee of the transition kind. Both levels run the
// same checks.
func (vm *VM) checkTxV0(ctx *validation.Context, raw []byte) (*CheckTxResult, error) {
	validated, err := validation.Run(ctx, raw, validation.Structure, validation.IdentityAndSignature)
	if err != nil {
		return nil, err
	}
	result := newCheckTxResult(validated)
	if !validated.IsValid() {
		return result, nil
	}
	return vm.probeMinimumFee(ctx, validated.Data(), result)
}

// checkTxV1 runs the whole pipeline against the committed state. New
// transitions are then estimated in full; rechecks only probe the minimum
// fee.
func (vm *VM) checkTxV1(ctx *validation.Context, raw []byte, level CheckTxLevel) (*CheckTxResult, error) {
	validated, err := validation.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}
	result := newCheckTxResult(validated)
	if !validated.IsValid() {
		return result, nil
	}
	outcome := validated.Data()
	if level == CheckTxRecheck {
		return vm.probeMinimumFee(ctx, outcome, result)
	}

	event, err := execution.NewEvent(outcome.Action, outcome.Signer, outcome.ValidationFee)
	if err != nil {
		return nil, err
	}
	fees, err := vm.engine.ValidateFees(ctx.DB, ctx.Matrix, event)
	if err != nil {
		return nil, err
	}
	result.Fee = fees.Data()
	result.Errors = fees.Errors()
	return result, nil
}

func newCheckTxResult(validated consensus.ValidationResult[*validation.Outcome]) *CheckTxResult {
	outcome := validated.Data()
	result := &CheckTxResult{TxHash: outcome.Hash, Errors: validated.Errors()}
	if outcome.Transition != nil {
		result.Kind = outcome.Transition.Kind()
	}
	return result
}

// probeMinimumFee checks the credits the payer could spend against the
// minimum fee of the transition kind. Kinds without a minimum fee are free.
func (vm *VM) probeMinimumFee(ctx *validation.Context, outcome *validation.Outcome, result *CheckTxResult) (*CheckTxResult, error) {
	minimum := ctx.Matrix.MinimumFee(result.Kind)
	result.Fee = types.FeeResult{ProcessingFee: minimum}
	if minimum == 0 {
		return result, nil
	}

	var (
		payer     ids.ID
		available uint64
	)
	switch {
	case outcome.Signer != nil:
		payer, available = outcome.Signer.ID, outcome.Signer.Balance
	default:
		funded, ok := outcome.Transition.(transitions.AssetLockFunded)
		if !ok {
			return result, nil
		}
		credits, err := types.MulCredits(funded.Proof().Amount, ctx.Matrix.Limits.CreditsPerDuff)
		if err != nil {
			return nil, err
		}
		payer, available = outcome.Transition.OwnerID(), credits
	}
	if available < minimum {
		result.Errors = append(result.Errors, consensus.NewInsufficientBalanceError(payer, available, minimum))
	}
	return result, nil
}
