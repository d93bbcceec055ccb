// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "fmt"

// TransitionKind tags each kind of state transition. The values are part of
// the serialized form and never change.
type TransitionKind uint8

const (
	KindDataContractCreate TransitionKind = iota
	KindDocumentsBatch
	KindIdentityCreate
	KindIdentityTopUp
	KindDataContractUpdate
	KindIdentityUpdate
	KindIdentityCreditWithdrawal
	KindIdentityCreditTransfer
	KindMasternodeVote
)

// AllTransitionKinds lists every kind in tag order.
var AllTransitionKinds = []TransitionKind{
	KindDataContractCreate,
	KindDocumentsBatch,
	KindIdentityCreate,
	KindIdentityTopUp,
	KindDataContractUpdate,
	KindIdentityUpdate,
	KindIdentityCreditWithdrawal,
	KindIdentityCreditTransfer,
	KindMasternodeVote,
}

func (k TransitionKind) String() string {
	switch k {
	case KindDataContractCreate:
		return "dataContractCreate"
	case KindDocumentsBatch:
		return "documentsBatch"
	case KindIdentityCreate:
		return "identityCreate"
	case KindIdentityTopUp:
		return "identityTopUp"
	case KindDataContractUpdate:
		return "dataContractUpdate"
	case KindIdentityUpdate:
		return "identityUpdate"
	case KindIdentityCreditWithdrawal:
		return "identityCreditWithdrawal"
	case KindIdentityCreditTransfer:
		return "identityCreditTransfer"
	case KindMasternodeVote:
		return "masternodeVote"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}
