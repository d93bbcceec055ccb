// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package execution applies validated actions to the store and charges
// their fees.
package execution

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/dustin/go-humanize"
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/validation"
	"github.com/ava-labs/transitionvm/version"
)

// ErrCorruptedCodeExecution is returned when an invariant established by
// validation does not hold during execution. The block must be abandoned.
var ErrCorruptedCodeExecution = validation.ErrCorruptedCodeExecution

var logger = log.New("module", "execution")

// Engine executes events against a store.
type Engine struct {
	drive *drive.Drive
}

func NewEngine(d *drive.Drive) *Engine {
	return &Engine{drive: d}
}

// Drive returns the store the engine writes through.
func (e *Engine) Drive() *drive.Drive { return e.drive }

// ValidateFees estimates the cost of [event] without writing to [db] and
// checks that the payer can afford it. The estimate is returned even when
// the payer cannot afford it.
func (e *Engine) ValidateFees(db database.Database, matrix *version.FeatureMatrix, event Event) (consensus.ValidationResult[types.FeeResult], error) {
	switch matrix.Execution.ValidateFees {
	case 0:
		return e.validateFeesV0(db, matrix, event)
	default:
		return consensus.ValidationResult[types.FeeResult]{}, version.Mismatch("validate_fees_of_event", matrix.Execution.ValidateFees, 0)
	}
}

func (e *Engine) validateFeesV0(db database.Database, matrix *version.FeatureMatrix, event Event) (consensus.ValidationResult[types.FeeResult], error) {
	var (
		payer         ids.ID
		available     uint64
		spent         uint64
		validationFee types.FeeResult
	)
	switch ev := event.(type) {
	case *FreeEvent:
		return consensus.NewWithData(types.FeeResult{}), nil
	case *PaidEvent:
		balance, err := e.drive.FetchIdentityBalance(db, ev.Payer)
		if err != nil {
			return consensus.ValidationResult[types.FeeResult]{}, fmt.Errorf("%w: payer %s: %v", ErrCorruptedCodeExecution, ev.Payer, err)
		}
		payer, available, spent, validationFee = ev.Payer, balance, ev.Spent, ev.ValidationFee
	case *PaidFromAssetLockEvent:
		payer, available, validationFee = ev.IdentityID, ev.AddedBalance, ev.ValidationFee
	default:
		return consensus.ValidationResult[types.FeeResult]{}, fmt.Errorf("%w: event %T", ErrCorruptedCodeExecution, event)
	}

	fee, err := e.drive.Estimate(db, event.Operations(), &matrix.Fees)
	if err != nil {
		return consensus.ValidationResult[types.FeeResult]{}, err
	}
	if err := fee.Add(validationFee); err != nil {
		return consensus.ValidationResult[types.FeeResult]{}, err
	}
	total, err := fee.Total()
	if err != nil {
		return consensus.ValidationResult[types.FeeResult]{}, err
	}
	required, err := types.AddCredits(total, spent)
	if err != nil {
		return consensus.ValidationResult[types.FeeResult]{}, err
	}
	if available < required {
		return consensus.NewWithDataAndErrors[types.FeeResult](fee, consensus.NewInsufficientBalanceError(payer, available, required)), nil
	}
	return consensus.NewWithData(fee), nil
}

// Execute applies [event] to [db] and charges its payer. A payer that cannot
// afford the event leaves [db] untouched. Returned errors are fatal.
func (e *Engine) Execute(db database.Database, matrix *version.FeatureMatrix, event Event) (Result, error) {
	switch matrix.Execution.ExecuteEvent {
	case 0:
		return e.executeV0(db, matrix, event)
	default:
		return Result{}, version.Mismatch("execute_event", matrix.Execution.ExecuteEvent, 0)
	}
}

func (e *Engine) executeV0(db database.Database, matrix *version.FeatureMatrix, event Event) (Result, error) {
	estimate, err := e.ValidateFees(db, matrix, event)
	switch {
	case errors.Is(err, types.ErrOverflow):
		return Result{Tag: DriveAbciError, Message: err.Error()}, nil
	case err != nil:
		return Result{}, err
	case !estimate.IsValid():
		return Result{Tag: UnpaidConsensusError, Errors: estimate.Errors()}, nil
	}

	// Each event writes through its own layer so a failure leaves nothing behind.
	txdb := versiondb.New(db)
	defer txdb.Abort()

	fee, _, err := e.drive.Apply(txdb, event.Operations(), &matrix.Fees)
	switch {
	case errors.Is(err, types.ErrOverflow):
		return Result{Tag: DriveAbciError, Message: err.Error()}, nil
	case err != nil:
		return Result{}, err
	}

	result := Result{Tag: SuccessfulPaidExecution}
	var payment drive.DriveOperation
	switch ev := event.(type) {
	case *FreeEvent:
		result.Tag = SuccessfulFreeExecution
	case *PaidEvent:
		if fee, err = chargeable(fee, ev.ValidationFee, estimate.Data()); err != nil {
			return Result{}, err
		}
		total, err := fee.Total()
		if err != nil {
			return Result{}, err
		}
		result.Fee = fee
		payment = &drive.RemoveFromIdentityBalance{IdentityID: ev.Payer, Amount: total}
	case *PaidFromAssetLockEvent:
		if fee, err = chargeable(fee, ev.ValidationFee, estimate.Data()); err != nil {
			return Result{}, err
		}
		total, err := fee.Total()
		if err != nil {
			return Result{}, err
		}
		remaining, err := types.SubCredits(ev.AddedBalance, total)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrCorruptedCodeExecution, err)
		}
		result.Fee = fee
		payment = &drive.AddToIdentityBalance{IdentityID: ev.IdentityID, Amount: remaining}
	}
	if payment != nil {
		if err := e.drive.ApplyFree(txdb, []drive.DriveOperation{payment}, &matrix.Fees); err != nil {
			return Result{}, fmt.Errorf("%w: fee payment: %v", ErrCorruptedCodeExecution, err)
		}
	}
	if err := txdb.Commit(); err != nil {
		return Result{}, err
	}
	return result, nil
}

// chargeable adds the validation fee to the applied fee and checks it against
// the estimate the payer was validated with.
func chargeable(applied, validationFee, estimate types.FeeResult) (types.FeeResult, error) {
	if err := applied.Add(validationFee); err != nil {
		return types.FeeResult{}, err
	}
	appliedTotal, err := applied.Total()
	if err != nil {
		return types.FeeResult{}, err
	}
	estimateTotal, err := estimate.Total()
	if err != nil {
		return types.FeeResult{}, err
	}
	if appliedTotal > estimateTotal {
		return types.FeeResult{}, fmt.Errorf("%w: applied fee %d exceeds estimate %d", ErrCorruptedCodeExecution, appliedTotal, estimateTotal)
	}
	return applied, nil
}

// ChargeValidation charges [payer] the cost of validating a transition that
// was then rejected, limited to what the payer holds.
func (e *Engine) ChargeValidation(db database.Database, matrix *version.FeatureMatrix, payer ids.ID, fee types.FeeResult) (types.FeeResult, error) {
	total, err := fee.Total()
	if err != nil {
		return types.FeeResult{}, err
	}
	balance, err := e.drive.FetchIdentityBalance(db, payer)
	if err != nil {
		return types.FeeResult{}, err
	}
	if balance < total {
		logger.Debug("validation fee capped at balance",
			"payer", payer,
			"fee", humanize.Comma(int64(total)),
			"balance", humanize.Comma(int64(balance)),
		)
		total = balance
	}
	if total == 0 {
		return types.FeeResult{}, nil
	}
	op := &drive.RemoveFromIdentityBalance{IdentityID: payer, Amount: total}
	if err := e.drive.ApplyFree(db, []drive.DriveOperation{op}, &matrix.Fees); err != nil {
		return types.FeeResult{}, err
	}
	return types.FeeResult{ProcessingFee: total}, nil
}
