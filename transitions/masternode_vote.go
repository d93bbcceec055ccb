// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transitions

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/types"
)

var _ StateTransition = &MasternodeVoteTransitionV0{}

type VoteChoiceType uint8

const (
	VoteTowardsIdentity VoteChoiceType = iota
	VoteAbstain
	VoteLock
)

type VoteChoice struct {
	Type     VoteChoiceType `serialize:"true" json:"type"`
	Identity ids.ID         `serialize:"true" json:"identity"`
}

// ResourceVote is a vote on who should own the document keyed by
// [IndexValues] on a unique index.
type ResourceVote struct {
	DataContractID ids.ID     `serialize:"true" json:"dataContractId"`
	DocumentType   string     `serialize:"true" json:"documentType"`
	IndexName      string     `serialize:"true" json:"indexName"`
	IndexValues    [][]byte   `serialize:"true" json:"indexValues"`
	Choice         VoteChoice `serialize:"true" json:"choice"`
}

// PollID identifies the resource being voted on.
func (v *ResourceVote) PollID() ids.ID {
	parts := [][]byte{v.DataContractID[:], []byte(v.DocumentType), []byte(v.IndexName)}
	parts = append(parts, v.IndexValues...)
	return types.DoubleSHA256(parts...)
}

// MasternodeVoteTransitionV0 is cast by the voting key of a masternode. It
// is not charged a fee.
type MasternodeVoteTransitionV0 struct {
	ProTxHash       ids.ID       `serialize:"true" json:"proTxHash"`
	VoterIdentityID ids.ID       `serialize:"true" json:"voterIdentityId"`
	Vote            ResourceVote `serialize:"true" json:"vote"`
	Nonce           uint64       `serialize:"true" json:"nonce"`
	KeyID           uint32       `serialize:"true" json:"signaturePublicKeyId"`
	Sig             []byte       `serialize:"true" json:"signature"`
}

func (*MasternodeVoteTransitionV0) Kind() types.TransitionKind     { return types.KindMasternodeVote }
func (*MasternodeVoteTransitionV0) StructureVersion() uint16       { return 0 }
func (t *MasternodeVoteTransitionV0) Signature() []byte            { return t.Sig }
func (t *MasternodeVoteTransitionV0) SignaturePublicKeyID() uint32 { return t.KeyID }
func (t *MasternodeVoteTransitionV0) OwnerID() ids.ID              { return t.VoterIdentityID }
func (t *MasternodeVoteTransitionV0) setSignature(sig []byte)      { t.Sig = sig }
func (t *MasternodeVoteTransitionV0) unsigned() StateTransition {
	c := *t
	c.Sig = nil
	return &c
}
