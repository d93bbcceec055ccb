// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/actions"
	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

// Phase is a step of the pipeline.
type Phase uint8

const (
	PhaseParse Phase = iota
	PhaseStructure
	PhaseSignature
	PhaseState
	PhaseTransform
)

func (p Phase) String() string {
	switch p {
	case PhaseParse:
		return "parse"
	case PhaseStructure:
		return "structure"
	case PhaseSignature:
		return "signature"
	case PhaseState:
		return "state"
	case PhaseTransform:
		return "transform"
	default:
		return "unknown"
	}
}

// Context is everything a validation may read. A Context is used for a
// single transition.
type Context struct {
	Drive     *drive.Drive
	DB        database.Database
	Matrix    *version.FeatureMatrix
	BlockInfo types.BlockInfo
	Triggers  []TriggerBinding

	fee types.FeeResult
}

// NewContext returns a context reading [db] under the rules of [matrix].
func NewContext(d *drive.Drive, db database.Database, matrix *version.FeatureMatrix, blockInfo types.BlockInfo, triggers []TriggerBinding) *Context {
	return &Context{
		Drive:     d,
		DB:        db,
		Matrix:    matrix,
		BlockInfo: blockInfo,
		Triggers:  triggers,
	}
}

// Fee is the processing cost spent validating so far.
func (c *Context) Fee() types.FeeResult { return c.fee }

func (c *Context) chargeRead() error {
	return c.fee.AddProcessing(c.Matrix.Fees.StorageSeekCost)
}

func (c *Context) chargeSignature(keyType types.KeyType) error {
	var cost uint64
	switch keyType {
	case types.KeyTypeECDSASecp256k1:
		cost = c.Matrix.Fees.VerifySignatureECDSASecp256k1
	case types.KeyTypeBLS12381:
		cost = c.Matrix.Fees.VerifySignatureBLS12381
	case types.KeyTypeECDSAHash160:
		cost = c.Matrix.Fees.VerifySignatureECDSAHash160
	}
	return c.fee.AddProcessing(cost)
}

func (c *Context) chargeHash(size int) error {
	blocks := uint64(size)/c.Matrix.Fees.SHA256BlockBytes + 1
	cost, err := types.MulCredits(blocks, c.Matrix.Fees.SHA256PerBlock)
	if err != nil {
		return err
	}
	return c.fee.AddProcessing(cost)
}

// Outcome is what the pipeline learned about a transition. It is returned
// with consensus errors too, so callers can tell how far validation got and
// who could pay for it.
type Outcome struct {
	Transition transitions.StateTransition
	Hash       ids.ID
	Size       int
	// Phase is the last phase that ran.
	Phase Phase
	// Signer is the identity that signed an identity signed transition once
	// it has been resolved.
	Signer *types.Identity
	Action actions.Action
	// ValidationFee is the processing cost of validation itself.
	ValidationFee types.FeeResult

	transform transformFunc
}
