// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ava-labs/transitionvm/types"
)

func identitySigned(levels []types.SecurityLevel, purposes ...types.Purpose) TransitionVersions {
	return TransitionVersions{
		Signature:             SignedByIdentity,
		AllowedPurposes:       mapset.NewSet(purposes...),
		AllowedSecurityLevels: mapset.NewSet(levels...),
	}
}

func assetLockSigned() TransitionVersions {
	return TransitionVersions{
		Signature:             SignedByAssetLock,
		AllowedPurposes:       mapset.NewSet[types.Purpose](),
		AllowedSecurityLevels: mapset.NewSet[types.SecurityLevel](),
	}
}

func v1Transitions() map[types.TransitionKind]TransitionVersions {
	var (
		master      = []types.SecurityLevel{types.SecurityLevelMaster}
		critical    = []types.SecurityLevel{types.SecurityLevelCritical}
		contract    = []types.SecurityLevel{types.SecurityLevelCritical, types.SecurityLevelHigh}
		nonMaster   = []types.SecurityLevel{types.SecurityLevelCritical, types.SecurityLevelHigh, types.SecurityLevelMedium}
		voting      = []types.SecurityLevel{types.SecurityLevelHigh}
		withdrawals = []types.Purpose{types.PurposeAuthentication, types.PurposeWithdraw}
	)
	return map[types.TransitionKind]TransitionVersions{
		types.KindDataContractCreate:       identitySigned(contract, types.PurposeAuthentication),
		types.KindDataContractUpdate:       identitySigned(contract, types.PurposeAuthentication),
		types.KindDocumentsBatch:           identitySigned(nonMaster, types.PurposeAuthentication),
		types.KindIdentityCreate:           assetLockSigned(),
		types.KindIdentityTopUp:            assetLockSigned(),
		types.KindIdentityUpdate:           identitySigned(master, types.PurposeAuthentication),
		types.KindIdentityCreditTransfer:   identitySigned(critical, types.PurposeAuthentication),
		types.KindIdentityCreditWithdrawal: identitySigned(critical, withdrawals...),
		types.KindMasternodeVote:           identitySigned(voting, types.PurposeVoting),
	}
}

func v1Fees() FeeVersion {
	return FeeVersion{
		StorageDiskUsageCreditPerByte:  27000,
		StorageProcessingCreditPerByte: 400,
		StorageLoadCreditPerByte:       20,
		NonStorageLoadCreditPerByte:    10,
		StorageSeekCost:                4000,

		VerifySignatureECDSASecp256k1: 3000,
		VerifySignatureBLS12381:       6000,
		VerifySignatureECDSAHash160:   4000,

		SHA256PerBlock:   5000,
		SHA256BlockBytes: 64,

		MinimumFees: map[types.TransitionKind]uint64{
			types.KindDataContractCreate:       100_000,
			types.KindDataContractUpdate:       100_000,
			types.KindDocumentsBatch:           20_000,
			types.KindIdentityCreate:           200_000,
			types.KindIdentityTopUp:            50_000,
			types.KindIdentityUpdate:           50_000,
			types.KindIdentityCreditTransfer:   50_000,
			types.KindIdentityCreditWithdrawal: 400_000,
		},
	}
}

func v1Limits() Limits {
	return Limits{
		MaxStateTransitionSize:         20 * 1024,
		MaxTransitionsInDocumentsBatch: 10,
		MaxPublicKeysInCreation:        6,
		MaxPublicKeysAddedInUpdate:     6,
		MaxDocumentTypes:               16,
		MaxIndicesPerDocumentType:      10,
		MaxIndexProperties:             10,
		MaxPropertiesPerDocumentType:   32,
		MaxFieldValueSize:              5 * 1024,
		MaxDocumentSize:                16 * 1024,

		MinCreditTransferAmount: 100_000,
		MinWithdrawalAmount:     190_000,
		MinAssetLockDuffs:       1_000,
		CreditsPerDuff:          1_000,

		MaxVoteChanges:                 5,
		UpgradeThresholdPercent:        75,
		ContactRequestCoreHeightWindow: 8,
	}
}

// V1 is the genesis protocol version.
func V1() *FeatureMatrix {
	return &FeatureMatrix{
		ProtocolVersion: 1,
		Transitions:     v1Transitions(),
		Fees:            v1Fees(),
		Limits:          v1Limits(),
	}
}
