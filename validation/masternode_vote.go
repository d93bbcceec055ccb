// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"errors"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/actions"
	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/transitions"
)

func masternodeVoteBasicV0(_ *Context, t *transitions.MasternodeVoteTransitionV0) consensus.SimpleValidationResult {
	result := consensus.NewSimple()
	// Masternode identities are keyed by their registration transaction.
	if t.VoterIdentityID != t.ProTxHash {
		result.AddError(consensus.NewBasicError(
			consensus.CodeInvalidIdentifier, "voter %s does not match masternode %s", t.VoterIdentityID, t.ProTxHash,
		))
	}
	vote := &t.Vote
	if vote.DocumentType == "" || vote.IndexName == "" || len(vote.IndexValues) == 0 {
		result.AddError(consensus.NewBasicError(consensus.CodeInvalidVote, "vote does not name a resource"))
	}
	switch vote.Choice.Type {
	case transitions.VoteTowardsIdentity:
		if vote.Choice.Identity == ids.Empty {
			result.AddError(consensus.NewBasicError(consensus.CodeInvalidVote, "vote towards an empty identity"))
		}
	case transitions.VoteAbstain, transitions.VoteLock:
		if vote.Choice.Identity != ids.Empty {
			result.AddError(consensus.NewBasicError(consensus.CodeInvalidVote, "abstain and lock votes carry no identity"))
		}
	default:
		result.AddError(consensus.NewBasicError(consensus.CodeInvalidVote, "unknown vote choice %d", vote.Choice.Type))
	}
	return result
}

func masternodeVoteStateV0(ctx *Context, t *transitions.MasternodeVoteTransitionV0) (consensus.ValidationResult[transformFunc], error) {
	if err := ctx.chargeRead(); err != nil {
		return failed(err)
	}
	lastNonce, err := ctx.Drive.FetchVoterNonce(ctx.DB, t.VoterIdentityID)
	if err != nil {
		return failed(err)
	}
	if t.Nonce != lastNonce+1 {
		return rejected(consensus.NewStateError(
			consensus.CodeInvalidIdentityRevision, "voter %s used nonce %d, expected %d", t.VoterIdentityID, t.Nonce, lastNonce+1,
		))
	}

	vote := &t.Vote
	if err := ctx.chargeRead(); err != nil {
		return failed(err)
	}
	contract, err := ctx.Drive.FetchContract(ctx.DB, vote.DataContractID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return rejected(consensus.NewStateError(
			consensus.CodeDataContractNotPresent, "data contract %s not found", vote.DataContractID,
		))
	case err != nil:
		return failed(err)
	}
	docType, ok := contract.DocumentType(vote.DocumentType)
	if !ok {
		return rejected(consensus.NewStateError(
			consensus.CodeDocumentTypeNotPresent, "data contract %s has no document type %q", contract.ID, vote.DocumentType,
		))
	}
	index, ok := docType.Index(vote.IndexName)
	if !ok || !index.Unique || len(index.Properties) != len(vote.IndexValues) {
		return rejected(consensus.NewStateError(
			consensus.CodeInvalidVote, "%q is not a unique index of %q taking %d values", vote.IndexName, docType.Name, len(vote.IndexValues),
		))
	}

	pollID := vote.PollID()
	record := drive.VoteRecord{ChoiceType: uint8(vote.Choice.Type), ChoiceIdentity: vote.Choice.Identity}
	if err := ctx.chargeRead(); err != nil {
		return failed(err)
	}
	previous, err := ctx.Drive.FetchVote(ctx.DB, pollID, t.ProTxHash)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		return failed(err)
	default:
		record.Changes = previous.Changes
		if previous.ChoiceType != record.ChoiceType || previous.ChoiceIdentity != record.ChoiceIdentity {
			record.Changes++
		}
		if max := ctx.Matrix.Limits.MaxVoteChanges; record.Changes > max {
			return rejected(consensus.NewStateError(
				consensus.CodeMasternodeVotedTooManyTimes, "masternode %s changed its vote more than %d times", t.ProTxHash, max,
			))
		}
	}
	return valid(func() (actions.Action, error) {
		return &actions.MasternodeVoteAction{
			PollID:    pollID,
			ProTxHash: t.ProTxHash,
			VoterID:   t.VoterIdentityID,
			Record:    record,
			Nonce:     t.Nonce,
		}, nil
	})
}
