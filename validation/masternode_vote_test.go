// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/transitionvm/actions"
	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/transitions"
)

func TestMasternodeVoteChanges(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	contract := profileContract()
	f.apply(&drive.InsertContract{Contract: contract})
	proTxHash := ids.ID{0x77}
	keys := f.addIdentity(proTxHash, 0, masterKey, votingKey)
	f.matrix.Limits.MaxVoteChanges = 1

	nonce := uint64(0)
	vote := func(choice transitions.VoteChoice) (consensus.ValidationResult[*Outcome], error) {
		nonce++
		tx := &transitions.MasternodeVoteTransitionV0{
			ProTxHash:       proTxHash,
			VoterIdentityID: proTxHash,
			Vote: transitions.ResourceVote{
				DataContractID: contract.ID,
				DocumentType:   "profile",
				IndexName:      "byName",
				IndexValues:    [][]byte{[]byte("alice")},
				Choice:         choice,
			},
			Nonce: nonce,
			KeyID: votingKey.id,
		}
		return f.validate(tx, keys[votingKey.id])
	}
	cast := func(choice transitions.VoteChoice) {
		result, err := vote(choice)
		require.NoError(err)
		require.True(result.IsValid(), "%v", result.Errors())
		f.apply(result.Data().Action.(*actions.MasternodeVoteAction).Operations()...)
	}

	cast(transitions.VoteChoice{Type: transitions.VoteTowardsIdentity, Identity: ids.ID{1}})
	cast(transitions.VoteChoice{Type: transitions.VoteAbstain})
	// repeating the current choice is not a change
	cast(transitions.VoteChoice{Type: transitions.VoteAbstain})

	result, err := vote(transitions.VoteChoice{Type: transitions.VoteLock})
	require.NoError(err)
	requireCode(t, result, consensus.CodeMasternodeVotedTooManyTimes)

	// a replayed nonce is rejected
	nonce = 1
	result, err = vote(transitions.VoteChoice{Type: transitions.VoteAbstain})
	require.NoError(err)
	requireCode(t, result, consensus.CodeInvalidIdentityRevision)
}

func TestMasternodeVoteNeedsUniqueIndex(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	contract := profileContract()
	f.apply(&drive.InsertContract{Contract: contract})
	proTxHash := ids.ID{0x77}
	keys := f.addIdentity(proTxHash, 0, masterKey, votingKey)

	tx := &transitions.MasternodeVoteTransitionV0{
		ProTxHash:       proTxHash,
		VoterIdentityID: proTxHash,
		Vote: transitions.ResourceVote{
			DataContractID: contract.ID,
			DocumentType:   "profile",
			IndexName:      "byBio",
			IndexValues:    [][]byte{{1}},
			Choice:         transitions.VoteChoice{Type: transitions.VoteLock},
		},
		Nonce: 1,
		KeyID: votingKey.id,
	}
	result, err := f.validate(tx, keys[votingKey.id])
	require.NoError(err)
	requireCode(t, result, consensus.CodeInvalidVote)
}
