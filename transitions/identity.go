// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transitions

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/types"
)

var (
	_ AssetLockFunded = &IdentityCreateTransitionV0{}
	_ AssetLockFunded = &IdentityTopUpTransitionV0{}
	_ StateTransition = &IdentityUpdateTransitionV0{}
	_ StateTransition = &IdentityCreditTransferTransitionV0{}
	_ StateTransition = &IdentityCreditWithdrawalTransitionV0{}
)

// IdentityCreateTransitionV0 registers a new identity funded by an asset lock.
type IdentityCreateTransitionV0 struct {
	AssetLockProof types.AssetLockProof          `serialize:"true" json:"assetLockProof"`
	PublicKeys     []IdentityPublicKeyInCreation `serialize:"true" json:"publicKeys"`
	IdentityID     ids.ID                        `serialize:"true" json:"identityId"`
	Sig            []byte                        `serialize:"true" json:"signature"`
}

func (*IdentityCreateTransitionV0) Kind() types.TransitionKind   { return types.KindIdentityCreate }
func (*IdentityCreateTransitionV0) StructureVersion() uint16     { return 0 }
func (t *IdentityCreateTransitionV0) Signature() []byte          { return t.Sig }
func (*IdentityCreateTransitionV0) SignaturePublicKeyID() uint32 { return 0 }
func (t *IdentityCreateTransitionV0) OwnerID() ids.ID            { return t.IdentityID }
func (t *IdentityCreateTransitionV0) Proof() *types.AssetLockProof {
	return &t.AssetLockProof
}
func (t *IdentityCreateTransitionV0) setSignature(sig []byte) { t.Sig = sig }
func (t *IdentityCreateTransitionV0) unsigned() StateTransition {
	c := *t
	c.Sig = nil
	c.PublicKeys = unsignedKeys(t.PublicKeys)
	return &c
}

// IdentityTopUpTransitionV0 adds the credits of an asset lock to an identity.
type IdentityTopUpTransitionV0 struct {
	AssetLockProof types.AssetLockProof `serialize:"true" json:"assetLockProof"`
	IdentityID     ids.ID               `serialize:"true" json:"identityId"`
	Sig            []byte               `serialize:"true" json:"signature"`
}

func (*IdentityTopUpTransitionV0) Kind() types.TransitionKind   { return types.KindIdentityTopUp }
func (*IdentityTopUpTransitionV0) StructureVersion() uint16     { return 0 }
func (t *IdentityTopUpTransitionV0) Signature() []byte          { return t.Sig }
func (*IdentityTopUpTransitionV0) SignaturePublicKeyID() uint32 { return 0 }
func (t *IdentityTopUpTransitionV0) OwnerID() ids.ID            { return t.IdentityID }
func (t *IdentityTopUpTransitionV0) Proof() *types.AssetLockProof {
	return &t.AssetLockProof
}
func (t *IdentityTopUpTransitionV0) setSignature(sig []byte) { t.Sig = sig }
func (t *IdentityTopUpTransitionV0) unsigned() StateTransition {
	c := *t
	c.Sig = nil
	return &c
}

// IdentityUpdateTransitionV0 adds and disables keys of an identity.
type IdentityUpdateTransitionV0 struct {
	IdentityID        ids.ID                        `serialize:"true" json:"identityId"`
	Revision          uint64                        `serialize:"true" json:"revision"`
	AddPublicKeys     []IdentityPublicKeyInCreation `serialize:"true" json:"addPublicKeys"`
	DisablePublicKeys []uint32                      `serialize:"true" json:"disablePublicKeys"`
	KeyID             uint32                        `serialize:"true" json:"signaturePublicKeyId"`
	Sig               []byte                        `serialize:"true" json:"signature"`
}

func (*IdentityUpdateTransitionV0) Kind() types.TransitionKind     { return types.KindIdentityUpdate }
func (*IdentityUpdateTransitionV0) StructureVersion() uint16       { return 0 }
func (t *IdentityUpdateTransitionV0) Signature() []byte            { return t.Sig }
func (t *IdentityUpdateTransitionV0) SignaturePublicKeyID() uint32 { return t.KeyID }
func (t *IdentityUpdateTransitionV0) OwnerID() ids.ID              { return t.IdentityID }
func (t *IdentityUpdateTransitionV0) setSignature(sig []byte)      { t.Sig = sig }
func (t *IdentityUpdateTransitionV0) unsigned() StateTransition {
	c := *t
	c.Sig = nil
	c.AddPublicKeys = unsignedKeys(t.AddPublicKeys)
	return &c
}

// IdentityCreditTransferTransitionV0 moves credits between identities.
type IdentityCreditTransferTransitionV0 struct {
	IdentityID  ids.ID `serialize:"true" json:"identityId"`
	RecipientID ids.ID `serialize:"true" json:"recipientId"`
	Amount      uint64 `serialize:"true" json:"amount"`
	Revision    uint64 `serialize:"true" json:"revision"`
	KeyID       uint32 `serialize:"true" json:"signaturePublicKeyId"`
	Sig         []byte `serialize:"true" json:"signature"`
}

func (*IdentityCreditTransferTransitionV0) Kind() types.TransitionKind {
	return types.KindIdentityCreditTransfer
}
func (*IdentityCreditTransferTransitionV0) StructureVersion() uint16       { return 0 }
func (t *IdentityCreditTransferTransitionV0) Signature() []byte            { return t.Sig }
func (t *IdentityCreditTransferTransitionV0) SignaturePublicKeyID() uint32 { return t.KeyID }
func (t *IdentityCreditTransferTransitionV0) OwnerID() ids.ID              { return t.IdentityID }
func (t *IdentityCreditTransferTransitionV0) setSignature(sig []byte)      { t.Sig = sig }
func (t *IdentityCreditTransferTransitionV0) unsigned() StateTransition {
	c := *t
	c.Sig = nil
	return &c
}

// Pooling selects how a withdrawal may be batched on the core chain.
type Pooling uint8

const (
	PoolingNever Pooling = iota
	PoolingIfAvailable
	PoolingStandard
)

// IdentityCreditWithdrawalTransitionV0 burns credits and queues a core chain
// payout to [OutputScript].
type IdentityCreditWithdrawalTransitionV0 struct {
	IdentityID     ids.ID  `serialize:"true" json:"identityId"`
	Amount         uint64  `serialize:"true" json:"amount"`
	CoreFeePerByte uint32  `serialize:"true" json:"coreFeePerByte"`
	Pooling        Pooling `serialize:"true" json:"pooling"`
	OutputScript   []byte  `serialize:"true" json:"outputScript"`
	Revision       uint64  `serialize:"true" json:"revision"`
	KeyID          uint32  `serialize:"true" json:"signaturePublicKeyId"`
	Sig            []byte  `serialize:"true" json:"signature"`
}

func (*IdentityCreditWithdrawalTransitionV0) Kind() types.TransitionKind {
	return types.KindIdentityCreditWithdrawal
}
func (*IdentityCreditWithdrawalTransitionV0) StructureVersion() uint16       { return 0 }
func (t *IdentityCreditWithdrawalTransitionV0) Signature() []byte            { return t.Sig }
func (t *IdentityCreditWithdrawalTransitionV0) SignaturePublicKeyID() uint32 { return t.KeyID }
func (t *IdentityCreditWithdrawalTransitionV0) OwnerID() ids.ID              { return t.IdentityID }
func (t *IdentityCreditWithdrawalTransitionV0) setSignature(sig []byte)      { t.Sig = sig }
func (t *IdentityCreditWithdrawalTransitionV0) unsigned() StateTransition {
	c := *t
	c.Sig = nil
	return &c
}
