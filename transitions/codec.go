// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transitions

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	// CodecVersion is the current default codec version
	CodecVersion = 0
)

var (
	errWrongCodecVersion = errors.New("wrong codec version")

	// Codec serializes transitions. The order of registration assigns the
	// type ids that tag each kind and structure version on the wire and must
	// never change.
	Codec codec.Manager
)

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	errs := wrappers.Errs{}
	errs.Add(
		c.RegisterType(&DataContractCreateTransitionV0{}),
		c.RegisterType(&DocumentsBatchTransitionV0{}),
		c.RegisterType(&IdentityCreateTransitionV0{}),
		c.RegisterType(&IdentityTopUpTransitionV0{}),
		c.RegisterType(&DataContractUpdateTransitionV0{}),
		c.RegisterType(&IdentityUpdateTransitionV0{}),
		c.RegisterType(&IdentityCreditWithdrawalTransitionV0{}),
		c.RegisterType(&IdentityCreditTransferTransitionV0{}),
		c.RegisterType(&MasternodeVoteTransitionV0{}),

		c.RegisterType(&DocumentCreateTransition{}),
		c.RegisterType(&DocumentReplaceTransition{}),
		c.RegisterType(&DocumentDeleteTransition{}),
	)
	errs.Add(
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}

// Parse decodes [b]. Unknown codec versions and unregistered type ids are
// rejected.
func Parse(b []byte) (StateTransition, error) {
	var tx StateTransition
	parsedVersion, err := Codec.Unmarshal(b, &tx)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, fmt.Errorf("%w: %d", errWrongCodecVersion, parsedVersion)
	}
	return tx, nil
}

// Marshal encodes [tx] with its type tag.
func Marshal(tx StateTransition) ([]byte, error) {
	return Codec.Marshal(CodecVersion, &tx)
}

// SignableBytes is the encoding of [tx] with every signature cleared.
func SignableBytes(tx StateTransition) ([]byte, error) {
	return Marshal(tx.unsigned())
}

// Hash is the id of the signed encoding of [tx].
func Hash(tx StateTransition) (ids.ID, error) {
	b, err := Marshal(tx)
	if err != nil {
		return ids.Empty, err
	}
	return hashing.ComputeHash256Array(b), nil
}

// HashBytes is the id of an already encoded transition.
func HashBytes(b []byte) ids.ID {
	return hashing.ComputeHash256Array(b)
}
