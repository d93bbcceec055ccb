// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transitions

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/crypto"

	"github.com/ava-labs/transitionvm/types"
)

var (
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrUnsupportedKeyType = errors.New("key type cannot verify signatures")
	ErrInvalidKeyData     = errors.New("invalid public key data")

	errMissingKeyProof = errors.New("no private key for key in creation")

	factory = crypto.FactorySECP256K1R{}
)

// NewPrivateKey returns a fresh secp256k1 key.
func NewPrivateKey() (crypto.PrivateKey, error) {
	return factory.NewPrivateKey()
}

// PublicKeyData returns the key data registered for [key] under [keyType].
func PublicKeyData(keyType types.KeyType, key crypto.PrivateKey) ([]byte, error) {
	switch keyType {
	case types.KeyTypeECDSASecp256k1:
		return key.PublicKey().Bytes(), nil
	case types.KeyTypeECDSAHash160:
		addr := key.PublicKey().Address()
		return addr[:], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, keyType)
	}
}

// AssetLockKeyHash is the credit output key hash an asset lock pays to.
func AssetLockKeyHash(key crypto.PrivateKey) ids.ShortID {
	return key.PublicKey().Address()
}

// Sign attaches the signature of [key] over the signable bytes of [tx].
func Sign(tx StateTransition, key crypto.PrivateKey) error {
	msg, err := SignableBytes(tx)
	if err != nil {
		return err
	}
	sig, err := key.Sign(msg)
	if err != nil {
		return err
	}
	tx.setSignature(sig)
	return nil
}

// SignKeysInCreation proves possession of every key [tx] adds. [keys] maps
// key ids to private keys. It must be called before Sign.
func SignKeysInCreation(tx StateTransition, keys map[uint32]crypto.PrivateKey) error {
	var inCreation []IdentityPublicKeyInCreation
	switch t := tx.(type) {
	case *IdentityCreateTransitionV0:
		inCreation = t.PublicKeys
	case *IdentityUpdateTransitionV0:
		inCreation = t.AddPublicKeys
	default:
		return nil
	}
	msg, err := SignableBytes(tx)
	if err != nil {
		return err
	}
	for i := range inCreation {
		key, ok := keys[inCreation[i].Key.ID]
		if !ok {
			return fmt.Errorf("%w: %d", errMissingKeyProof, inCreation[i].Key.ID)
		}
		sig, err := key.Sign(msg)
		if err != nil {
			return err
		}
		inCreation[i].Sig = sig
	}
	return nil
}

// VerifySignature checks [sig] over [msg] against key [data] of [keyType].
func VerifySignature(keyType types.KeyType, data []byte, msg []byte, sig []byte) error {
	switch keyType {
	case types.KeyTypeECDSASecp256k1:
		pk, err := factory.ToPublicKey(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidKeyData, err)
		}
		if !pk.Verify(msg, sig) {
			return ErrInvalidSignature
		}
		return nil
	case types.KeyTypeECDSAHash160:
		pk, err := factory.RecoverPublicKey(msg, sig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		addr := pk.Address()
		if string(addr[:]) != string(data) {
			return ErrInvalidSignature
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKeyType, keyType)
	}
}

// VerifyAssetLockSignature checks that [sig] was made by the key the asset
// lock credits.
func VerifyAssetLockSignature(proof *types.AssetLockProof, msg []byte, sig []byte) error {
	pk, err := factory.RecoverPublicKey(msg, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if pk.Address() != proof.CreditOutputKeyHash {
		return ErrInvalidSignature
	}
	return nil
}
