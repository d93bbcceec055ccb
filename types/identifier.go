// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"encoding/binary"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

// EntropyLen is the length of client-chosen entropy used to derive ids.
const EntropyLen = 32

// DoubleSHA256 hashes the concatenation of [parts] twice.
func DoubleSHA256(parts ...[]byte) ids.ID {
	size := 0
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return hashing.ComputeHash256Array(hashing.ComputeHash256(buf))
}

// Outpoint references one output of a core chain transaction.
type Outpoint struct {
	TxID  ids.ID `serialize:"true" json:"txId"`
	Index uint32 `serialize:"true" json:"index"`
}

// Bytes is the 36 byte key of the outpoint.
func (o Outpoint) Bytes() []byte {
	b := make([]byte, hashing.HashLen+wrappers.IntLen)
	copy(b, o.TxID[:])
	binary.BigEndian.PutUint32(b[hashing.HashLen:], o.Index)
	return b
}

// IdentityIDFromOutpoint derives the id of the identity funded by [outpoint].
func IdentityIDFromOutpoint(outpoint Outpoint) ids.ID {
	return DoubleSHA256(outpoint.Bytes())
}

// ContractID derives a data contract id from its owner and entropy.
func ContractID(ownerID ids.ID, entropy [EntropyLen]byte) ids.ID {
	return DoubleSHA256(ownerID[:], entropy[:])
}

// DocumentID derives a document id from its contract, owner, type and entropy.
func DocumentID(contractID ids.ID, ownerID ids.ID, documentType string, entropy [EntropyLen]byte) ids.ID {
	return DoubleSHA256(contractID[:], ownerID[:], []byte(documentType), entropy[:])
}
