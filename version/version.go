// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package version holds the protocol feature matrices. Every behavior that
// has more than one historical implementation is selected through a method
// version read from the active FeatureMatrix.
package version

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ava-labs/transitionvm/types"
)

// FeatureVersion selects one implementation of a single capability.
type FeatureVersion = uint16

// SignatureStrategy tells the pipeline where the signing key comes from.
type SignatureStrategy uint8

const (
	// SignedByIdentity transitions are signed by a key already registered
	// on an existing identity.
	SignedByIdentity SignatureStrategy = iota
	// SignedByAssetLock transitions are signed by the one-time key that the
	// asset lock proof credits.
	SignedByAssetLock
)

// TransitionVersions selects the implementation of each pipeline phase for
// one transition kind.
type TransitionVersions struct {
	// Structure is the only structure version (V0, V1, ...) accepted on the wire.
	Structure           FeatureVersion
	BasicStructure      FeatureVersion
	IdentitySignatures  FeatureVersion
	State               FeatureVersion
	TransformIntoAction FeatureVersion

	Signature             SignatureStrategy
	AllowedPurposes       mapset.Set[types.Purpose]
	AllowedSecurityLevels mapset.Set[types.SecurityLevel]
}

type SerializationVersions struct {
	// StateTransitionCodec is the codec version transitions are encoded with.
	StateTransitionCodec uint16
	StorageCodec         uint16
}

type DocumentVersions struct {
	DataTriggers      FeatureVersion
	BatchUniqueness   FeatureVersion
	PropertiesEncoder FeatureVersion
}

type DriveVersions struct {
	EstimateOperations FeatureVersion
	ApplyOperations    FeatureVersion
	RootHash           FeatureVersion
	AddToCreditPools   FeatureVersion
}

type ExecutionVersions struct {
	ValidateFees                FeatureVersion
	ExecuteEvent                FeatureVersion
	ProcessRawStateTransitions  FeatureVersion
	RunBlockProposal            FeatureVersion
	FinalizeBlock               FeatureVersion
	CheckTx                     FeatureVersion
	CheckForDesiredVersion      FeatureVersion
	ProcessBlockFees            FeatureVersion
	DistributeEpochPool         FeatureVersion
	UpdateProposedVersionCounts FeatureVersion
}

// FeeVersion is the price list. All prices are in credits.
type FeeVersion struct {
	StorageDiskUsageCreditPerByte  uint64
	StorageProcessingCreditPerByte uint64
	StorageLoadCreditPerByte       uint64
	NonStorageLoadCreditPerByte    uint64
	StorageSeekCost                uint64

	VerifySignatureECDSASecp256k1 uint64
	VerifySignatureBLS12381       uint64
	VerifySignatureECDSAHash160   uint64

	SHA256PerBlock   uint64
	SHA256BlockBytes uint64

	// MinimumFees is the cheapest any transition of a kind can be. The weak
	// check-tx path probes balances against it.
	MinimumFees map[types.TransitionKind]uint64
}

// Limits are protocol constants that may change between versions.
type Limits struct {
	MaxStateTransitionSize         uint64
	MaxTransitionsInDocumentsBatch uint16
	MaxPublicKeysInCreation        uint16
	MaxPublicKeysAddedInUpdate     uint16
	MaxDocumentTypes               uint16
	MaxIndicesPerDocumentType      uint16
	MaxIndexProperties             uint16
	MaxPropertiesPerDocumentType   uint16
	MaxFieldValueSize              uint32
	MaxDocumentSize                uint32

	MinCreditTransferAmount uint64
	MinWithdrawalAmount     uint64
	MinAssetLockDuffs       uint64
	CreditsPerDuff          uint64

	MaxVoteChanges                 uint16
	UpgradeThresholdPercent        uint64
	ContactRequestCoreHeightWindow uint32
}

// FeatureMatrix is the full rule set of one protocol version. A published
// matrix is never mutated.
type FeatureMatrix struct {
	ProtocolVersion uint32

	Serialization SerializationVersions
	Transitions   map[types.TransitionKind]TransitionVersions
	Documents     DocumentVersions
	Drive         DriveVersions
	Execution     ExecutionVersions
	Fees          FeeVersion
	Limits        Limits
}

// Transition returns the phase versions of [kind].
func (m *FeatureMatrix) Transition(kind types.TransitionKind) (TransitionVersions, error) {
	versions, ok := m.Transitions[kind]
	if !ok {
		return TransitionVersions{}, Mismatch("transition: "+kind.String(), 0)
	}
	return versions, nil
}

// MinimumFee returns the minimum fee of [kind], or 0 when none is set.
func (m *FeatureMatrix) MinimumFee(kind types.TransitionKind) uint64 {
	return m.Fees.MinimumFees[kind]
}
