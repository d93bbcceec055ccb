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
	"github.com/ava-labs/transitionvm/types"
)

func TestDataContractCreate(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	keys := f.addIdentity(contractOwner, 1_000_000, masterKey, criticalKey)

	var entropy [types.EntropyLen]byte
	entropy[0] = 7
	contract := profileContract()
	contract.ID = types.ContractID(contractOwner, entropy)
	tx := &transitions.DataContractCreateTransitionV0{DataContract: contract, Entropy: entropy, KeyID: criticalKey.id}

	result, err := f.validate(tx, keys[criticalKey.id])
	require.NoError(err)
	require.True(result.IsValid(), "%v", result.Errors())
	action := result.Data().Action.(*actions.DataContractCreateAction)
	f.apply(action.Operations()...)

	result, err = f.validate(tx, nil)
	require.NoError(err)
	requireCode(t, result, consensus.CodeDataContractAlreadyPresent)
}

func TestDataContractSchemaErrors(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	keys := f.addIdentity(contractOwner, 1_000_000, masterKey, criticalKey)

	contract := profileContract()
	contract.DocumentTypes[0].Properties = append(contract.DocumentTypes[0].Properties,
		types.PropertyDefinition{Name: "$id", Type: types.PropertyTypeString},
	)
	contract.DocumentTypes[0].Indices = append(contract.DocumentTypes[0].Indices, types.Index{
		Name:       "byAge",
		Properties: []types.IndexProperty{{Name: "age"}},
	})
	tx := &transitions.DataContractCreateTransitionV0{DataContract: contract, KeyID: criticalKey.id}

	result, err := f.validate(tx, keys[criticalKey.id])
	require.NoError(err)
	requireCode(t, result, consensus.CodeInvalidDataContractID)
	requireCode(t, result, consensus.CodeNotAllowedSystemProperty)
	requireCode(t, result, consensus.CodeInvalidIndex)
}

func TestDataContractUpdateCompatibility(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	keys := f.addIdentity(contractOwner, 1_000_000, masterKey, criticalKey)
	stored := profileContract()
	f.apply(&drive.InsertContract{Contract: stored})

	update := func(mutate func(c *types.DataContract)) *transitions.DataContractUpdateTransitionV0 {
		c := profileContract()
		c.Version = 2
		c.DocumentTypes[0].Properties = append([]types.PropertyDefinition(nil), c.DocumentTypes[0].Properties...)
		mutate(&c)
		return &transitions.DataContractUpdateTransitionV0{DataContract: c, KeyID: criticalKey.id}
	}

	compatible := update(func(c *types.DataContract) {
		c.DocumentTypes[0].Properties = append(c.DocumentTypes[0].Properties,
			types.PropertyDefinition{Name: "avatar", Type: types.PropertyTypeByteArray},
		)
	})
	result, err := f.validate(compatible, keys[criticalKey.id])
	require.NoError(err)
	require.True(result.IsValid(), "%v", result.Errors())

	tests := map[string]struct {
		tx   *transitions.DataContractUpdateTransitionV0
		code consensus.Code
	}{
		"type change": {
			tx:   update(func(c *types.DataContract) { c.DocumentTypes[0].Properties[1].Type = types.PropertyTypeInteger }),
			code: consensus.CodeIncompatibleDataContractUpdate,
		},
		"new required": {
			tx: update(func(c *types.DataContract) {
				c.DocumentTypes[0].Properties = append(c.DocumentTypes[0].Properties,
					types.PropertyDefinition{Name: "email", Type: types.PropertyTypeString, Required: true},
				)
			}),
			code: consensus.CodeIncompatibleDataContractUpdate,
		},
		"index dropped": {
			tx:   update(func(c *types.DataContract) { c.DocumentTypes[0].Indices = nil }),
			code: consensus.CodeIncompatibleDataContractUpdate,
		},
		"version skip": {
			tx:   update(func(c *types.DataContract) { c.Version = 3 }),
			code: consensus.CodeInvalidDataContractVersion,
		},
		"foreign owner": {
			tx:   update(func(c *types.DataContract) { c.OwnerID = ids.ID{9} }),
			code: consensus.CodeIdentityNotFoundForSignature,
		},
	}
	for name, test := range tests {
		result, err := f.validate(test.tx, keys[criticalKey.id])
		require.NoError(err, name)
		requireCode(t, result, test.code)
	}
}
