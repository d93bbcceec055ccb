// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
)

var (
	_ DriveOperation = &RecordVote{}
	_ DriveOperation = &SetVoterNonce{}
)

// VoteRecord is the current vote of one masternode in one poll.
type VoteRecord struct {
	ChoiceType     uint8  `serialize:"true" json:"choiceType"`
	ChoiceIdentity ids.ID `serialize:"true" json:"choiceIdentity"`
	// Changes counts how often the vote was changed after it was first cast.
	Changes uint16 `serialize:"true" json:"changes"`
}

// FetchVote returns the vote of [proTxHash] in [pollID] or database.ErrNotFound.
func (d *Drive) FetchVote(db database.Database, pollID ids.ID, proTxHash ids.ID) (*VoteRecord, error) {
	b, err := subtreeDB(SubtreeVotes, db).Get(voteKey(pollID, proTxHash))
	if err != nil {
		return nil, err
	}
	record := &VoteRecord{}
	if err := unmarshal(b, record); err != nil {
		return nil, fmt.Errorf("%w: vote: %v", ErrCorruptedState, err)
	}
	return record, nil
}

// FetchVoterNonce returns the last nonce used by [voter], 0 if none.
func (d *Drive) FetchVoterNonce(db database.Database, voter ids.ID) (uint64, error) {
	nonce, err := fetchUint64(db, SubtreeVotes, voteNonceKey(voter))
	if err == database.ErrNotFound {
		return 0, nil
	}
	return nonce, err
}

type RecordVote struct {
	PollID    ids.ID
	ProTxHash ids.ID
	Record    VoteRecord
}

func (o *RecordVote) lower(c *opContext) error {
	b, err := marshal(&o.Record)
	if err != nil {
		return err
	}
	return c.put(SubtreeVotes, voteKey(o.PollID, o.ProTxHash), b)
}

type SetVoterNonce struct {
	Voter ids.ID
	Nonce uint64
}

func (o *SetVoterNonce) lower(c *opContext) error {
	return c.putUint64(SubtreeVotes, voteNonceKey(o.Voter), o.Nonce)
}
