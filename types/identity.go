// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

// Purpose is what an identity key may be used for.
type Purpose uint8

const (
	PurposeAuthentication Purpose = iota
	PurposeWithdraw
	PurposeVoting
	PurposeOwner
)

func (p Purpose) Valid() bool { return p <= PurposeOwner }

func (p Purpose) String() string {
	switch p {
	case PurposeAuthentication:
		return "AUTHENTICATION"
	case PurposeWithdraw:
		return "WITHDRAW"
	case PurposeVoting:
		return "VOTING"
	case PurposeOwner:
		return "OWNER"
	default:
		return fmt.Sprintf("UNKNOWN_PURPOSE(%d)", uint8(p))
	}
}

// SecurityLevel orders keys by how much they are trusted. Lower is stronger:
// a MASTER key satisfies every requirement a CRITICAL key does.
type SecurityLevel uint8

const (
	SecurityLevelMaster SecurityLevel = iota
	SecurityLevelCritical
	SecurityLevelHigh
	SecurityLevelMedium
)

func (s SecurityLevel) Valid() bool { return s <= SecurityLevelMedium }

func (s SecurityLevel) String() string {
	switch s {
	case SecurityLevelMaster:
		return "MASTER"
	case SecurityLevelCritical:
		return "CRITICAL"
	case SecurityLevelHigh:
		return "HIGH"
	case SecurityLevelMedium:
		return "MEDIUM"
	default:
		return fmt.Sprintf("UNKNOWN_SECURITY_LEVEL(%d)", uint8(s))
	}
}

// KeyType tags the cryptographic scheme of a public key.
type KeyType uint8

const (
	KeyTypeECDSASecp256k1 KeyType = iota
	KeyTypeBLS12381
	KeyTypeECDSAHash160
)

func (k KeyType) Valid() bool { return k <= KeyTypeECDSAHash160 }

// DataLen is the exact length of the key data for this key type.
func (k KeyType) DataLen() int {
	switch k {
	case KeyTypeECDSASecp256k1:
		return 33
	case KeyTypeBLS12381:
		return 48
	case KeyTypeECDSAHash160:
		return 20
	default:
		return 0
	}
}

func (k KeyType) String() string {
	switch k {
	case KeyTypeECDSASecp256k1:
		return "ECDSA_SECP256K1"
	case KeyTypeBLS12381:
		return "BLS12_381"
	case KeyTypeECDSAHash160:
		return "ECDSA_HASH160"
	default:
		return fmt.Sprintf("UNKNOWN_KEY_TYPE(%d)", uint8(k))
	}
}

// IdentityPublicKey is a key registered on an identity.
type IdentityPublicKey struct {
	ID            uint32        `serialize:"true" json:"id"`
	Purpose       Purpose       `serialize:"true" json:"purpose"`
	SecurityLevel SecurityLevel `serialize:"true" json:"securityLevel"`
	Type          KeyType       `serialize:"true" json:"type"`
	ReadOnly      bool          `serialize:"true" json:"readOnly"`
	Data          []byte        `serialize:"true" json:"data"`
	// DisabledAt is the block time (ms) the key was disabled at. Zero means enabled.
	DisabledAt uint64 `serialize:"true" json:"disabledAt"`
}

func (k *IdentityPublicKey) IsDisabled() bool { return k.DisabledAt != 0 }

// IsMaster returns true for an enabled authentication key at MASTER level.
func (k *IdentityPublicKey) IsMaster() bool {
	return k.Purpose == PurposeAuthentication && k.SecurityLevel == SecurityLevelMaster && !k.IsDisabled()
}

// Identity is an on-chain account.
type Identity struct {
	ID         ids.ID              `serialize:"true" json:"id"`
	Balance    uint64              `serialize:"true" json:"balance"`
	Revision   uint64              `serialize:"true" json:"revision"`
	PublicKeys []IdentityPublicKey `serialize:"true" json:"publicKeys"`
}

// PublicKey returns the key with [id], if any.
func (i *Identity) PublicKey(id uint32) (*IdentityPublicKey, bool) {
	for idx := range i.PublicKeys {
		if i.PublicKeys[idx].ID == id {
			return &i.PublicKeys[idx], true
		}
	}
	return nil, false
}

// NextKeyID returns the smallest key id greater than every registered id.
func (i *Identity) NextKeyID() uint32 {
	var next uint32
	for _, key := range i.PublicKeys {
		if key.ID >= next {
			next = key.ID + 1
		}
	}
	return next
}

// EnabledMasterKeys counts the keys that can still update this identity.
func (i *Identity) EnabledMasterKeys() int {
	count := 0
	for idx := range i.PublicKeys {
		if i.PublicKeys[idx].IsMaster() {
			count++
		}
	}
	return count
}
