// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/types"
)

var _ Action = &MasternodeVoteAction{}

type MasternodeVoteAction struct {
	PollID    ids.ID
	ProTxHash ids.ID
	VoterID   ids.ID
	Record    drive.VoteRecord
	Nonce     uint64
}

func (*MasternodeVoteAction) Kind() types.TransitionKind { return types.KindMasternodeVote }

func (a *MasternodeVoteAction) Operations() []drive.DriveOperation {
	return []drive.DriveOperation{
		&drive.RecordVote{PollID: a.PollID, ProTxHash: a.ProTxHash, Record: a.Record},
		&drive.SetVoterNonce{Voter: a.VoterID, Nonce: a.Nonce},
	}
}
