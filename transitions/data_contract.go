// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transitions

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/types"
)

var (
	_ StateTransition = &DataContractCreateTransitionV0{}
	_ StateTransition = &DataContractUpdateTransitionV0{}
)

// DataContractCreateTransitionV0 publishes a new data contract. The contract
// id must be derived from the owner and [Entropy].
type DataContractCreateTransitionV0 struct {
	DataContract types.DataContract      `serialize:"true" json:"dataContract"`
	Entropy      [types.EntropyLen]byte `serialize:"true" json:"entropy"`
	KeyID        uint32                  `serialize:"true" json:"signaturePublicKeyId"`
	Sig          []byte                  `serialize:"true" json:"signature"`
}

func (*DataContractCreateTransitionV0) Kind() types.TransitionKind {
	return types.KindDataContractCreate
}
func (*DataContractCreateTransitionV0) StructureVersion() uint16       { return 0 }
func (t *DataContractCreateTransitionV0) Signature() []byte            { return t.Sig }
func (t *DataContractCreateTransitionV0) SignaturePublicKeyID() uint32 { return t.KeyID }
func (t *DataContractCreateTransitionV0) OwnerID() ids.ID              { return t.DataContract.OwnerID }
func (t *DataContractCreateTransitionV0) setSignature(sig []byte)      { t.Sig = sig }
func (t *DataContractCreateTransitionV0) unsigned() StateTransition {
	c := *t
	c.Sig = nil
	return &c
}

// DataContractUpdateTransitionV0 replaces a contract with its next version.
type DataContractUpdateTransitionV0 struct {
	DataContract types.DataContract `serialize:"true" json:"dataContract"`
	KeyID        uint32             `serialize:"true" json:"signaturePublicKeyId"`
	Sig          []byte             `serialize:"true" json:"signature"`
}

func (*DataContractUpdateTransitionV0) Kind() types.TransitionKind {
	return types.KindDataContractUpdate
}
func (*DataContractUpdateTransitionV0) StructureVersion() uint16       { return 0 }
func (t *DataContractUpdateTransitionV0) Signature() []byte            { return t.Sig }
func (t *DataContractUpdateTransitionV0) SignaturePublicKeyID() uint32 { return t.KeyID }
func (t *DataContractUpdateTransitionV0) OwnerID() ids.ID              { return t.DataContract.OwnerID }
func (t *DataContractUpdateTransitionV0) setSignature(sig []byte)      { t.Sig = sig }
func (t *DataContractUpdateTransitionV0) unsigned() StateTransition {
	c := *t
	c.Sig = nil
	return &c
}
