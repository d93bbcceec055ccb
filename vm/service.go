// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"

	log "github.com/inconshreveable/log15"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
)

var (
	errNoBlocks         = errors.New("no block committed yet")
	errNotFound         = errors.New("not found")
	errTransitionDenied = errors.New("state transition rejected")
)

// Service is the API service for this VM. Reads are served from the
// committed state.
type Service struct{ vm *VM }

// StateTransitionArgs carries one hex encoded state transition.
type StateTransitionArgs struct {
	Tx string `json:"tx"`
}

func (a *StateTransitionArgs) decode() ([]byte, error) {
	raw, err := formatting.Decode(formatting.Hex, a.Tx)
	if err != nil {
		return nil, fmt.Errorf("couldn't decode state transition: %w", err)
	}
	return raw, nil
}

// BroadcastStateTransitionReply is the reply from BroadcastStateTransition
type BroadcastStateTransitionReply struct {
	TxHash ids.ID `json:"txHash"`
}

// BroadcastStateTransition checks a transition and adds it to the mempool.
func (s *Service) BroadcastStateTransition(_ *http.Request, args *StateTransitionArgs, reply *BroadcastStateTransitionReply) error {
	raw, err := args.decode()
	if err != nil {
		return err
	}
	result, err := s.vm.CheckTx(raw, CheckTxNew)
	if err != nil {
		return err
	}
	if !result.Valid() {
		return fmt.Errorf("%w: code %d: %s", errTransitionDenied, result.Code(), result.Errors[0])
	}
	if err := s.vm.mempool.Add(result.TxHash, raw); err != nil {
		return err
	}
	s.vm.metrics.mempoolSize.Set(float64(s.vm.mempool.Len()))
	log.Debug("state transition broadcast", "tx", result.TxHash, "kind", result.Kind)
	reply.TxHash = result.TxHash
	return nil
}

// CheckTxReply is the reply from CheckTx
type CheckTxReply struct {
	TxHash        ids.ID       `json:"txHash"`
	Valid         bool         `json:"valid"`
	Code          cjson.Uint32 `json:"code"`
	Error         string       `json:"error,omitempty"`
	StorageFee    cjson.Uint64 `json:"storageFee"`
	ProcessingFee cjson.Uint64 `json:"processingFee"`
}

// CheckTx reports whether a transition would be admitted to the mempool
// without adding it.
func (s *Service) CheckTx(_ *http.Request, args *StateTransitionArgs, reply *CheckTxReply) error {
	raw, err := args.decode()
	if err != nil {
		return err
	}
	result, err := s.vm.CheckTx(raw, CheckTxNew)
	if err != nil {
		return err
	}
	reply.TxHash = result.TxHash
	reply.Valid = result.Valid()
	reply.Code = cjson.Uint32(result.Code())
	if !reply.Valid {
		reply.Error = result.Errors[0].Error()
	}
	reply.StorageFee = cjson.Uint64(result.Fee.StorageFee)
	reply.ProcessingFee = cjson.Uint64(result.Fee.ProcessingFee)
	return nil
}

// IDArgs names an identity or a data contract.
type IDArgs struct {
	ID ids.ID `json:"id"`
}

// GetIdentityReply is the reply from GetIdentity
type GetIdentityReply struct {
	Identity types.Identity `json:"identity"`
}

// GetIdentity returns an identity with its keys, balance and revision.
func (s *Service) GetIdentity(_ *http.Request, args *IDArgs, reply *GetIdentityReply) error {
	return s.vm.readCommitted(func(db database.Database, _ *PlatformState) error {
		identity, err := s.vm.drive.FetchIdentity(db, args.ID)
		if err != nil {
			return notFound(err, "identity", args.ID)
		}
		reply.Identity = *identity
		return nil
	})
}

// GetIdentityBalanceAndRevisionReply is the reply from GetIdentityBalanceAndRevision
type GetIdentityBalanceAndRevisionReply struct {
	Balance  cjson.Uint64 `json:"balance"`
	Revision cjson.Uint64 `json:"revision"`
}

// GetIdentityBalanceAndRevision returns the balance and revision of an
// identity without its keys.
func (s *Service) GetIdentityBalanceAndRevision(_ *http.Request, args *IDArgs, reply *GetIdentityBalanceAndRevisionReply) error {
	return s.vm.readCommitted(func(db database.Database, _ *PlatformState) error {
		exists, err := s.vm.drive.IdentityExists(db, args.ID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("identity %s: %w", args.ID, errNotFound)
		}
		balance, err := s.vm.drive.FetchIdentityBalance(db, args.ID)
		if err != nil {
			return err
		}
		revision, err := s.vm.drive.FetchIdentityRevision(db, args.ID)
		if err != nil {
			return err
		}
		reply.Balance = cjson.Uint64(balance)
		reply.Revision = cjson.Uint64(revision)
		return nil
	})
}

// GetDataContractReply is the reply from GetDataContract
type GetDataContractReply struct {
	DataContract types.DataContract `json:"dataContract"`
}

func (s *Service) GetDataContract(_ *http.Request, args *IDArgs, reply *GetDataContractReply) error {
	return s.vm.readCommitted(func(db database.Database, _ *PlatformState) error {
		contract, err := s.vm.drive.FetchContract(db, args.ID)
		if err != nil {
			return notFound(err, "data contract", args.ID)
		}
		reply.DataContract = *contract
		return nil
	})
}

// GetDocumentArgs are the arguments to GetDocument
type GetDocumentArgs struct {
	DataContractID ids.ID `json:"dataContractId"`
	DocumentType   string `json:"documentType"`
	DocumentID     ids.ID `json:"documentId"`
}

// GetDocumentReply is the reply from GetDocument
type GetDocumentReply struct {
	Document   types.Document   `json:"document"`
	Properties types.Properties `json:"properties"`
}

// GetDocument returns a document with its decoded properties.
func (s *Service) GetDocument(_ *http.Request, args *GetDocumentArgs, reply *GetDocumentReply) error {
	return s.vm.readCommitted(func(db database.Database, _ *PlatformState) error {
		doc, err := s.vm.drive.FetchDocument(db, args.DataContractID, args.DocumentType, args.DocumentID)
		if err != nil {
			return notFound(err, "document", args.DocumentID)
		}
		props, err := types.DecodeProperties(doc.Data)
		if err != nil {
			return err
		}
		reply.Document = *doc
		reply.Properties = props
		return nil
	})
}

// GetBlockArgs are the arguments to GetBlock
type GetBlockArgs struct {
	// Height of the block. The last committed block if nil.
	Height *cjson.Uint64 `json:"height"`
}

// GetBlockReply is the reply from GetBlock
type GetBlockReply struct {
	Block Block  `json:"block"`
	ID    ids.ID `json:"id"`
}

// GetBlock returns a committed block by height.
func (s *Service) GetBlock(_ *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	return s.vm.readCommitted(func(_ database.Database, platform *PlatformState) error {
		if !platform.HasBlocks {
			return errNoBlocks
		}
		height := platform.LastBlock.Height
		if args.Height != nil {
			height = uint64(*args.Height)
		}
		blk, err := s.vm.state.GetBlock(height)
		if err != nil {
			return notFound(err, "block", height)
		}
		id, err := blk.ID()
		if err != nil {
			return err
		}
		reply.Block = *blk
		reply.ID = id
		return nil
	})
}

// VersionVotes is the number of proposers signalling a protocol version.
type VersionVotes struct {
	ProtocolVersion cjson.Uint32 `json:"protocolVersion"`
	Votes           cjson.Uint64 `json:"votes"`
}

// GetProtocolVersionUpgradeStateReply is the reply from GetProtocolVersionUpgradeState
type GetProtocolVersionUpgradeStateReply struct {
	CurrentProtocolVersion   cjson.Uint32   `json:"currentProtocolVersion"`
	NextEpochProtocolVersion cjson.Uint32   `json:"nextEpochProtocolVersion"`
	RequiredVotes            cjson.Uint64   `json:"requiredVotes"`
	Votes                    []VersionVotes `json:"votes"`
}

// GetProtocolVersionUpgradeState returns the version votes of the current
// epoch and how many are needed for an upgrade.
func (s *Service) GetProtocolVersionUpgradeState(_ *http.Request, _ *struct{}, reply *GetProtocolVersionUpgradeStateReply) error {
	return s.vm.readCommitted(func(db database.Database, platform *PlatformState) error {
		matrix, err := s.vm.registry.Get(platform.CurrentProtocolVersion)
		if err != nil {
			return err
		}
		required, err := upgradeThreshold(s.vm.config.QuorumSize, matrix.Limits.UpgradeThresholdPercent)
		if err != nil {
			return err
		}
		counts, err := s.vm.drive.FetchVersionCounts(db)
		if err != nil {
			return err
		}
		votes := make([]VersionVotes, 0, len(counts))
		for protocolVersion, count := range counts {
			votes = append(votes, VersionVotes{
				ProtocolVersion: cjson.Uint32(protocolVersion),
				Votes:           cjson.Uint64(count),
			})
		}
		sort.Slice(votes, func(i, j int) bool { return votes[i].ProtocolVersion < votes[j].ProtocolVersion })

		reply.CurrentProtocolVersion = cjson.Uint32(platform.CurrentProtocolVersion)
		reply.NextEpochProtocolVersion = cjson.Uint32(platform.NextEpochProtocolVersion)
		reply.RequiredVotes = cjson.Uint64(required)
		reply.Votes = votes
		return nil
	})
}

// GetStatusReply is the reply from GetStatus
type GetStatusReply struct {
	Version         string          `json:"version"`
	HasBlocks       bool            `json:"hasBlocks"`
	LastBlock       types.BlockInfo `json:"lastBlock"`
	NextHeight      cjson.Uint64    `json:"nextHeight"`
	AppHash         ids.ID          `json:"appHash"`
	ProtocolVersion cjson.Uint32    `json:"protocolVersion"`
	LatestKnown     cjson.Uint32    `json:"latestKnownProtocolVersion"`
	MempoolSize     cjson.Uint32    `json:"mempoolSize"`
}

// GetStatus returns the committed chain tip of this node.
func (s *Service) GetStatus(_ *http.Request, _ *struct{}, reply *GetStatusReply) error {
	return s.vm.readCommitted(func(_ database.Database, platform *PlatformState) error {
		reply.Version = Version
		reply.HasBlocks = platform.HasBlocks
		reply.LastBlock = platform.LastBlock
		reply.NextHeight = cjson.Uint64(platform.NextHeight())
		reply.AppHash = platform.AppHash
		reply.ProtocolVersion = cjson.Uint32(platform.CurrentProtocolVersion)
		reply.LatestKnown = cjson.Uint32(s.vm.registry.Latest().ProtocolVersion)
		reply.MempoolSize = cjson.Uint32(s.vm.mempool.Len())
		return nil
	})
}

// EncodeStateTransition returns the form BroadcastStateTransition and
// CheckTx accept.
func EncodeStateTransition(tx transitions.StateTransition) (string, error) {
	raw, err := transitions.Marshal(tx)
	if err != nil {
		return "", err
	}
	return formatting.EncodeWithChecksum(formatting.Hex, raw)
}

func notFound(err error, what string, key interface{}) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%s %v: %w", what, key, errNotFound)
	}
	return err
}
