// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transitions defines the signed state transitions and their wire
// encoding.
package transitions

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/types"
)

// StateTransition is implemented by every structure version of every kind.
// The set of implementations is closed: unknown variants fail to parse.
type StateTransition interface {
	Kind() types.TransitionKind
	// StructureVersion is the V0, V1, ... tag of the concrete type.
	StructureVersion() uint16
	Signature() []byte
	// SignaturePublicKeyID is the identity key that signed the transition.
	// It is meaningless for asset lock signed kinds.
	SignaturePublicKeyID() uint32
	// OwnerID is the identity the transition acts for. Fees are paid by it.
	OwnerID() ids.ID

	setSignature(sig []byte)
	// unsigned returns a copy with every signature cleared.
	unsigned() StateTransition
}

// AssetLockFunded is implemented by transitions paid for by an asset lock.
type AssetLockFunded interface {
	StateTransition
	Proof() *types.AssetLockProof
}

// IdentityPublicKeyInCreation is a key added by a transition. [Sig] proves the
// submitter holds the private key.
type IdentityPublicKeyInCreation struct {
	Key types.IdentityPublicKey `serialize:"true" json:"key"`
	Sig []byte                  `serialize:"true" json:"signature"`
}

func unsignedKeys(keys []IdentityPublicKeyInCreation) []IdentityPublicKeyInCreation {
	if keys == nil {
		return nil
	}
	out := make([]IdentityPublicKeyInCreation, len(keys))
	for i, k := range keys {
		out[i] = IdentityPublicKeyInCreation{Key: k.Key}
	}
	return out
}
