// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/ids"
)

func TestCreditArithmetic(t *testing.T) {
	require := require.New(t)

	sum, err := AddCredits(1, 2)
	require.NoError(err)
	require.Equal(uint64(3), sum)

	_, err = AddCredits(math.MaxUint64, 1)
	require.ErrorIs(err, ErrOverflow)
	_, err = SubCredits(1, 2)
	require.ErrorIs(err, ErrOverflow)
	_, err = MulCredits(math.MaxUint64, 2)
	require.ErrorIs(err, ErrOverflow)

	fee := FeeResult{StorageFee: 10, ProcessingFee: 5}
	require.NoError(fee.AddProcessing(5))
	total, err := fee.Total()
	require.NoError(err)
	require.Equal(uint64(20), total)

	require.ErrorIs(fee.Add(FeeResult{ProcessingFee: math.MaxUint64}), ErrOverflow)
	require.Equal(FeeResult{StorageFee: 10, ProcessingFee: 10}, fee)
}

func TestIdentifierDerivation(t *testing.T) {
	require := require.New(t)

	outpoint := Outpoint{TxID: ids.ID{1}, Index: 2}
	require.Len(outpoint.Bytes(), 36)
	require.Equal(DoubleSHA256(outpoint.Bytes()), IdentityIDFromOutpoint(outpoint))
	require.NotEqual(
		IdentityIDFromOutpoint(outpoint),
		IdentityIDFromOutpoint(Outpoint{TxID: ids.ID{1}, Index: 3}),
	)

	owner := ids.ID{9}
	var entropy [EntropyLen]byte
	entropy[0] = 1
	contractID := ContractID(owner, entropy)
	require.Equal(DoubleSHA256(owner[:], entropy[:]), contractID)
	require.NotEqual(
		DocumentID(contractID, owner, "note", entropy),
		DocumentID(contractID, owner, "contact", entropy),
	)
}

func TestIdentityKeys(t *testing.T) {
	require := require.New(t)

	identity := &Identity{PublicKeys: []IdentityPublicKey{
		{ID: 0, Purpose: PurposeAuthentication, SecurityLevel: SecurityLevelMaster},
		{ID: 4, Purpose: PurposeAuthentication, SecurityLevel: SecurityLevelMaster, DisabledAt: 1},
		{ID: 2, Purpose: PurposeWithdraw, SecurityLevel: SecurityLevelCritical},
	}}
	require.Equal(uint32(5), identity.NextKeyID())
	require.Equal(1, identity.EnabledMasterKeys())

	key, ok := identity.PublicKey(4)
	require.True(ok)
	require.True(key.IsDisabled())
	require.False(key.IsMaster())

	_, ok = identity.PublicKey(3)
	require.False(ok)
}

func TestPropertiesAreCanonical(t *testing.T) {
	require := require.New(t)

	b, err := EncodeProperties(Properties{"b": uint64(1), "a": "x"})
	require.NoError(err)
	again, err := EncodeProperties(Properties{"a": "x", "b": uint64(1)})
	require.NoError(err)
	require.Equal(b, again)

	props, err := DecodeProperties(b)
	require.NoError(err)
	require.Equal("x", props["a"])

	// definite-length map with keys out of canonical order
	_, err = DecodeProperties([]byte{0xa2, 0x61, 'b', 0x01, 0x61, 'a', 0x02})
	require.Error(err)
}

func TestIndexKey(t *testing.T) {
	require := require.New(t)

	index := &Index{
		Name:   "ownerToUser",
		Unique: true,
		Properties: []IndexProperty{
			{Name: FieldOwnerID},
			{Name: "toUserId"},
		},
	}
	doc := &Document{OwnerID: ids.ID{1}}

	key, complete, err := doc.IndexKey(index, Properties{"toUserId": []byte{2}})
	require.NoError(err)
	require.True(complete)

	other, _, err := doc.IndexKey(index, Properties{"toUserId": []byte{3}})
	require.NoError(err)
	require.NotEqual(key, other)

	_, complete, err = doc.IndexKey(index, Properties{})
	require.NoError(err)
	require.False(complete)
}
