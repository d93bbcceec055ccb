// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"encoding/binary"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

// Subtree is a top level section of the state. The layout is part of the
// consensus visible state and never changes within a protocol version.
type Subtree uint8

const (
	SubtreeIdentities Subtree = iota
	SubtreeBalances
	SubtreeRevisions
	SubtreeContracts
	SubtreeDocuments
	SubtreeUniqueIndices
	SubtreeAssetLocks
	SubtreeWithdrawals
	SubtreeVotes
	SubtreePools
	SubtreeVersions
	SubtreeMisc

	numSubtrees = int(SubtreeMisc) + 1
)

var subtreePrefixes = [numSubtrees][]byte{
	SubtreeIdentities:    []byte("identities"),
	SubtreeBalances:      []byte("balances"),
	SubtreeRevisions:     []byte("revisions"),
	SubtreeContracts:     []byte("contracts"),
	SubtreeDocuments:     []byte("documents"),
	SubtreeUniqueIndices: []byte("unique"),
	SubtreeAssetLocks:    []byte("assetlocks"),
	SubtreeWithdrawals:   []byte("withdrawals"),
	SubtreeVotes:         []byte("votes"),
	SubtreePools:         []byte("pools"),
	SubtreeVersions:      []byte("versions"),
	SubtreeMisc:          []byte("misc"),
}

func (s Subtree) Prefix() []byte { return subtreePrefixes[s] }

func (s Subtree) String() string { return string(subtreePrefixes[s]) }

// Keys inside the misc subtree.
var (
	nextWithdrawalIndexKey = []byte("nextWithdrawalIndex")
)

// Key prefixes inside the pools subtree.
const (
	poolFeesKeyPrefix     byte = 0
	poolProposersPrefix   byte = 1
	versionCounterPrefix  byte = 0
	versionProposedPrefix byte = 1
	voteRecordPrefix      byte = 0
	voteNoncePrefix       byte = 1
)

func uint64Bytes(v uint64) []byte {
	b := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func uint32Bytes(v uint32) []byte {
	b := make([]byte, wrappers.IntLen)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func epochBytes(epoch uint16) []byte {
	b := make([]byte, wrappers.ShortLen)
	binary.BigEndian.PutUint16(b, epoch)
	return b
}

func concat(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// documentTypeKey is the contract id followed by the length prefixed type name.
func documentTypeKey(contractID ids.ID, documentType string) []byte {
	name := []byte(documentType)
	return concat(contractID[:], epochBytes(uint16(len(name))), name)
}

func documentKey(contractID ids.ID, documentType string, documentID ids.ID) []byte {
	return concat(documentTypeKey(contractID, documentType), documentID[:])
}

// uniqueIndexKey places every unique index of a document type under its own
// fixed length prefix followed by the encoded index tuple.
func uniqueIndexKey(contractID ids.ID, documentType string, indexName string, tuple []byte) []byte {
	indexHash := hashing.ComputeHash256([]byte(documentType + "\x00" + indexName))
	return concat(contractID[:], indexHash, tuple)
}

func poolFeesKey(epoch uint16) []byte {
	return concat([]byte{poolFeesKeyPrefix}, epochBytes(epoch))
}

func proposerKeyPrefix(epoch uint16) []byte {
	return concat([]byte{poolProposersPrefix}, epochBytes(epoch))
}

func proposerKey(epoch uint16, proTxHash ids.ID) []byte {
	return concat(proposerKeyPrefix(epoch), proTxHash[:])
}

func versionCounterKey(protocolVersion uint32) []byte {
	return concat([]byte{versionCounterPrefix}, uint32Bytes(protocolVersion))
}

func versionProposedKey(proTxHash ids.ID) []byte {
	return concat([]byte{versionProposedPrefix}, proTxHash[:])
}

func voteKey(pollID ids.ID, proTxHash ids.ID) []byte {
	return concat([]byte{voteRecordPrefix}, pollID[:], proTxHash[:])
}

func voteNonceKey(voter ids.ID) []byte {
	return concat([]byte{voteNoncePrefix}, voter[:])
}
