// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transitions

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/types"
)

var (
	_ StateTransition    = &DocumentsBatchTransitionV0{}
	_ DocumentTransition = &DocumentCreateTransition{}
	_ DocumentTransition = &DocumentReplaceTransition{}
	_ DocumentTransition = &DocumentDeleteTransition{}
)

// DocumentAction is what a document transition does to its document.
type DocumentAction uint8

const (
	DocumentActionCreate DocumentAction = iota
	DocumentActionReplace
	DocumentActionDelete
)

func (a DocumentAction) String() string {
	switch a {
	case DocumentActionCreate:
		return "create"
	case DocumentActionReplace:
		return "replace"
	case DocumentActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// DocumentTransition is one operation of a documents batch.
type DocumentTransition interface {
	BaseTransition() *DocumentBaseTransition
	Action() DocumentAction
}

// DocumentBaseTransition identifies the document a transition applies to.
type DocumentBaseTransition struct {
	ID             ids.ID `serialize:"true" json:"$id"`
	DocumentType   string `serialize:"true" json:"$type"`
	DataContractID ids.ID `serialize:"true" json:"$dataContractId"`
}

type DocumentCreateTransition struct {
	Base    DocumentBaseTransition  `serialize:"true" json:"base"`
	Entropy [types.EntropyLen]byte `serialize:"true" json:"$entropy"`
	// Data is the canonical CBOR encoding of the document properties.
	Data []byte `serialize:"true" json:"data"`
}

func (t *DocumentCreateTransition) BaseTransition() *DocumentBaseTransition { return &t.Base }
func (*DocumentCreateTransition) Action() DocumentAction                     { return DocumentActionCreate }

type DocumentReplaceTransition struct {
	Base     DocumentBaseTransition `serialize:"true" json:"base"`
	Revision uint64                 `serialize:"true" json:"$revision"`
	Data     []byte                 `serialize:"true" json:"data"`
}

func (t *DocumentReplaceTransition) BaseTransition() *DocumentBaseTransition { return &t.Base }
func (*DocumentReplaceTransition) Action() DocumentAction                     { return DocumentActionReplace }

type DocumentDeleteTransition struct {
	Base DocumentBaseTransition `serialize:"true" json:"base"`
}

func (t *DocumentDeleteTransition) BaseTransition() *DocumentBaseTransition { return &t.Base }
func (*DocumentDeleteTransition) Action() DocumentAction                     { return DocumentActionDelete }

// DocumentsBatchTransitionV0 creates, replaces and deletes documents of one owner.
type DocumentsBatchTransitionV0 struct {
	Owner       ids.ID               `serialize:"true" json:"ownerId"`
	Transitions []DocumentTransition `serialize:"true" json:"transitions"`
	KeyID       uint32               `serialize:"true" json:"signaturePublicKeyId"`
	Sig         []byte               `serialize:"true" json:"signature"`
}

func (*DocumentsBatchTransitionV0) Kind() types.TransitionKind     { return types.KindDocumentsBatch }
func (*DocumentsBatchTransitionV0) StructureVersion() uint16       { return 0 }
func (t *DocumentsBatchTransitionV0) Signature() []byte            { return t.Sig }
func (t *DocumentsBatchTransitionV0) SignaturePublicKeyID() uint32 { return t.KeyID }
func (t *DocumentsBatchTransitionV0) OwnerID() ids.ID              { return t.Owner }
func (t *DocumentsBatchTransitionV0) setSignature(sig []byte)      { t.Sig = sig }
func (t *DocumentsBatchTransitionV0) unsigned() StateTransition {
	c := *t
	c.Sig = nil
	return &c
}
