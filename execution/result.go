// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/types"
)

// ResultTag classifies how a transition ended up in a block.
type ResultTag uint8

const (
	// SuccessfulPaidExecution was applied and charged.
	SuccessfulPaidExecution ResultTag = iota
	// SuccessfulFreeExecution was applied without a fee.
	SuccessfulFreeExecution
	// PaidConsensusError was rejected after its signer was established. The
	// signer is charged for validation and the transition stays in the block.
	PaidConsensusError
	// UnpaidConsensusError was rejected before anyone could be charged. The
	// proposer must drop it.
	UnpaidConsensusError
	// DriveAbciError failed while its operations were applied. Nothing it
	// wrote is kept.
	DriveAbciError
)

func (t ResultTag) String() string {
	switch t {
	case SuccessfulPaidExecution:
		return "successful_paid_execution"
	case SuccessfulFreeExecution:
		return "successful_free_execution"
	case PaidConsensusError:
		return "paid_consensus_error"
	case UnpaidConsensusError:
		return "unpaid_consensus_error"
	case DriveAbciError:
		return "drive_abci_error"
	default:
		return "unknown"
	}
}

// Included reports whether a transition with this result belongs in the
// block the proposer builds.
func (t ResultTag) Included() bool {
	return t != UnpaidConsensusError && t != DriveAbciError
}

// Result is the outcome of one transition of a block.
type Result struct {
	Tag    ResultTag
	TxHash ids.ID
	Kind   types.TransitionKind
	// Fee is what was charged.
	Fee    types.FeeResult
	Errors []consensus.Error
	// Message describes a DriveAbciError.
	Message string
}

// Code is the code of the first consensus error, 0 on success.
func (r *Result) Code() consensus.Code {
	if len(r.Errors) == 0 {
		return 0
	}
	return r.Errors[0].Code()
}
