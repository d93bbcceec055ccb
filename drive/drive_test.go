// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

func newTestDrive(t *testing.T) (*Drive, database.Database, *version.FeeVersion) {
	d, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	fees := version.V1().Fees
	return d, memdb.New(), &fees
}

func testIdentity(id ids.ID, balance uint64) types.Identity {
	return types.Identity{
		ID:      id,
		Balance: balance,
		PublicKeys: []types.IdentityPublicKey{{
			ID:            0,
			Purpose:       types.PurposeAuthentication,
			SecurityLevel: types.SecurityLevelMaster,
			Type:          types.KeyTypeECDSASecp256k1,
			Data:          make([]byte, 33),
		}},
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	require := require.New(t)
	d, db, fees := newTestDrive(t)

	id := ids.ID{1}
	_, err := d.FetchIdentity(db, id)
	require.ErrorIs(err, database.ErrNotFound)

	_, _, err = d.Apply(db, []DriveOperation{
		&InsertIdentity{Identity: testIdentity(id, 1_000)},
		&AddToIdentityBalance{IdentityID: id, Amount: 500},
		&SetIdentityRevision{IdentityID: id, Revision: 1},
		&DisableIdentityKeys{IdentityID: id, KeyIDs: []uint32{0}, DisabledAt: 42},
	}, fees)
	require.NoError(err)

	identity, err := d.FetchIdentity(db, id)
	require.NoError(err)
	require.Equal(uint64(1_500), identity.Balance)
	require.Equal(uint64(1), identity.Revision)
	require.True(identity.PublicKeys[0].IsDisabled())
}

func TestEstimateNeverBelowApplied(t *testing.T) {
	require := require.New(t)
	d, db, fees := newTestDrive(t)

	id := ids.ID{1}
	ops := []DriveOperation{&InsertIdentity{Identity: testIdentity(id, 1_000)}}

	estimate, err := d.Estimate(db, ops, fees)
	require.NoError(err)
	exists, err := d.IdentityExists(db, id)
	require.NoError(err)
	require.False(exists, "estimate must not write")

	applied, _, err := d.Apply(db, ops, fees)
	require.NoError(err)
	require.Equal(estimate, applied)

	// Overwriting existing keys charges only growth.
	update := []DriveOperation{&AddToIdentityBalance{IdentityID: id, Amount: 1}}
	estimate, err = d.Estimate(db, update, fees)
	require.NoError(err)
	applied, _, err = d.Apply(db, update, fees)
	require.NoError(err)
	require.Zero(applied.StorageFee)
	require.Positive(estimate.StorageFee)
	require.Equal(estimate.ProcessingFee, applied.ProcessingFee)
}

func TestRemoveBalanceNeverGoesNegative(t *testing.T) {
	require := require.New(t)
	d, db, fees := newTestDrive(t)

	id := ids.ID{1}
	_, _, err := d.Apply(db, []DriveOperation{&InsertIdentity{Identity: testIdentity(id, 100)}}, fees)
	require.NoError(err)

	tx := versiondb.New(db)
	_, _, err = d.Apply(tx, []DriveOperation{&RemoveFromIdentityBalance{IdentityID: id, Amount: 101}}, fees)
	require.ErrorIs(err, types.ErrOverflow)
	tx.Abort()

	balance, err := d.FetchIdentityBalance(db, id)
	require.NoError(err)
	require.Equal(uint64(100), balance)
}

func noteType() types.DocumentType {
	return types.DocumentType{
		Name: "contactRequest",
		Properties: []types.PropertyDefinition{
			{Name: "toUserId", Type: types.PropertyTypeIdentifier, Required: true},
			{Name: "label", Type: types.PropertyTypeString},
		},
		Indices: []types.Index{{
			Name:   "ownerIdToUserId",
			Unique: true,
			Properties: []types.IndexProperty{
				{Name: types.FieldOwnerID, Ascending: true},
				{Name: "toUserId", Ascending: true},
			},
		}},
		DocumentsMutable: true,
		CanBeDeleted:     true,
	}
}

func testDocument(t *testing.T, id ids.ID, owner ids.ID, props types.Properties) (types.Document, types.Properties) {
	data, err := types.EncodeProperties(props)
	require.NoError(t, err)
	return types.Document{
		ID:             id,
		OwnerID:        owner,
		DataContractID: ids.ID{9},
		DocumentType:   "contactRequest",
		Revision:       1,
		Data:           data,
	}, props
}

func TestUniqueIndexConflicts(t *testing.T) {
	require := require.New(t)
	d, db, fees := newTestDrive(t)
	docType := noteType()

	owner := ids.ID{1}
	a, _ := testDocument(t, ids.ID{2}, owner, types.Properties{"toUserId": []byte{5}})
	_, _, err := d.Apply(db, []DriveOperation{&InsertDocument{Document: a, Type: docType}}, fees)
	require.NoError(err)

	b, bProps := testDocument(t, ids.ID{3}, owner, types.Properties{"toUserId": []byte{5}})
	conflicts, err := d.FindUniqueIndexConflicts(db, &docType, &b, bProps)
	require.NoError(err)
	require.Equal([]UniqueIndexConflict{{IndexName: "ownerIdToUserId", DocumentID: a.ID}}, conflicts)

	// A document never conflicts with itself.
	aProps, err := types.DecodeProperties(a.Data)
	require.NoError(err)
	conflicts, err = d.FindUniqueIndexConflicts(db, &docType, &a, aProps)
	require.NoError(err)
	require.Empty(conflicts)

	// Missing values skip the index.
	c, cProps := testDocument(t, ids.ID{4}, owner, types.Properties{"label": "x"})
	conflicts, err = d.FindUniqueIndexConflicts(db, &docType, &c, cProps)
	require.NoError(err)
	require.Empty(conflicts)

	// Deleting frees the tuple.
	_, _, err = d.Apply(db, []DriveOperation{&DeleteDocument{DataContractID: a.DataContractID, DocumentID: a.ID, Type: docType}}, fees)
	require.NoError(err)
	conflicts, err = d.FindUniqueIndexConflicts(db, &docType, &b, bProps)
	require.NoError(err)
	require.Empty(conflicts)
	_, err = d.FetchDocument(db, a.DataContractID, a.DocumentType, a.ID)
	require.ErrorIs(err, database.ErrNotFound)
}

func TestReplaceDocumentMovesIndexEntry(t *testing.T) {
	require := require.New(t)
	d, db, fees := newTestDrive(t)
	docType := noteType()

	owner := ids.ID{1}
	a, _ := testDocument(t, ids.ID{2}, owner, types.Properties{"toUserId": []byte{5}})
	_, _, err := d.Apply(db, []DriveOperation{&InsertDocument{Document: a, Type: docType}}, fees)
	require.NoError(err)

	replaced, _ := testDocument(t, a.ID, owner, types.Properties{"toUserId": []byte{6}})
	replaced.Revision = 2
	_, _, err = d.Apply(db, []DriveOperation{&ReplaceDocument{Document: replaced, Type: docType}}, fees)
	require.NoError(err)

	stored, err := d.FetchDocument(db, a.DataContractID, a.DocumentType, a.ID)
	require.NoError(err)
	require.Equal(uint64(2), stored.Revision)

	other, otherProps := testDocument(t, ids.ID{3}, owner, types.Properties{"toUserId": []byte{5}})
	conflicts, err := d.FindUniqueIndexConflicts(db, &docType, &other, otherProps)
	require.NoError(err)
	require.Empty(conflicts)
}

func TestContractCache(t *testing.T) {
	require := require.New(t)
	d, db, fees := newTestDrive(t)

	contract := types.DataContract{ID: ids.ID{9}, OwnerID: ids.ID{1}, Version: 1, DocumentTypes: []types.DocumentType{noteType()}}
	_, _, err := d.Apply(db, []DriveOperation{&InsertContract{Contract: contract}}, fees)
	require.NoError(err)

	first, err := d.FetchContract(db, contract.ID)
	require.NoError(err)
	second, err := d.FetchContract(db, contract.ID)
	require.NoError(err)
	require.Same(first, second)

	contract.Version = 2
	_, _, err = d.Apply(db, []DriveOperation{&InsertContract{Contract: contract}}, fees)
	require.NoError(err)
	updated, err := d.FetchContract(db, contract.ID)
	require.NoError(err)
	require.Equal(uint32(2), updated.Version)
}

func TestRootHash(t *testing.T) {
	require := require.New(t)
	d, db, fees := newTestDrive(t)

	empty, err := d.RootHash(db)
	require.NoError(err)

	_, _, err = d.Apply(db, []DriveOperation{&InsertIdentity{Identity: testIdentity(ids.ID{1}, 10)}}, fees)
	require.NoError(err)
	withIdentity, err := d.RootHash(db)
	require.NoError(err)
	require.NotEqual(empty, withIdentity)

	other := memdb.New()
	_, _, err = d.Apply(other, []DriveOperation{&InsertIdentity{Identity: testIdentity(ids.ID{1}, 10)}}, fees)
	require.NoError(err)
	otherRoot, err := d.RootHash(other)
	require.NoError(err)
	require.Equal(withIdentity, otherRoot)
}

func TestSplitPool(t *testing.T) {
	require := require.New(t)

	payouts, remainder := SplitPool(100, []ProposerBlocks{
		{ProTxHash: ids.ID{1}, Blocks: 1},
		{ProTxHash: ids.ID{2}, Blocks: 2},
	})
	require.Equal([]Payout{{ProTxHash: ids.ID{1}, Amount: 33}, {ProTxHash: ids.ID{2}, Amount: 66}}, payouts)
	require.Equal(uint64(1), remainder)

	payouts, remainder = SplitPool(100, nil)
	require.Empty(payouts)
	require.Equal(uint64(100), remainder)

	// products beyond 64 bits do not wrap
	payouts, remainder = SplitPool(^uint64(0), []ProposerBlocks{{ProTxHash: ids.ID{1}, Blocks: 1 << 40}})
	require.Equal(^uint64(0), payouts[0].Amount)
	require.Zero(remainder)
}

func TestEpochPool(t *testing.T) {
	require := require.New(t)
	d, db, fees := newTestDrive(t)

	require.NoError(d.ApplyFree(db, []DriveOperation{
		&AddToEpochPool{Epoch: 3, Amount: 10},
		&AddToEpochPool{Epoch: 3, Amount: 5},
		&IncrementProposerBlockCount{Epoch: 3, ProTxHash: ids.ID{2}},
		&IncrementProposerBlockCount{Epoch: 3, ProTxHash: ids.ID{1}},
		&IncrementProposerBlockCount{Epoch: 3, ProTxHash: ids.ID{2}},
		&IncrementProposerBlockCount{Epoch: 4, ProTxHash: ids.ID{1}},
	}, fees))

	pool, err := d.FetchEpochPool(db, 3)
	require.NoError(err)
	require.Equal(uint64(15), pool)

	counts, err := d.FetchProposerBlockCounts(db, 3)
	require.NoError(err)
	require.Equal([]ProposerBlocks{{ProTxHash: ids.ID{1}, Blocks: 1}, {ProTxHash: ids.ID{2}, Blocks: 2}}, counts)

	require.NoError(d.ApplyFree(db, []DriveOperation{&ClearEpochPool{Epoch: 3}}, fees))
	pool, err = d.FetchEpochPool(db, 3)
	require.NoError(err)
	require.Zero(pool)
	counts, err = d.FetchProposerBlockCounts(db, 3)
	require.NoError(err)
	require.Empty(counts)
	counts, err = d.FetchProposerBlockCounts(db, 4)
	require.NoError(err)
	require.Len(counts, 1)
}

func TestVersionCounters(t *testing.T) {
	require := require.New(t)
	d, db, fees := newTestDrive(t)

	require.NoError(d.ApplyFree(db, []DriveOperation{
		&RecordProposedVersion{ProTxHash: ids.ID{1}, Version: 2},
		&RecordProposedVersion{ProTxHash: ids.ID{2}, Version: 2},
		&RecordProposedVersion{ProTxHash: ids.ID{2}, Version: 2},
		&RecordProposedVersion{ProTxHash: ids.ID{3}, Version: 1},
		&RecordProposedVersion{ProTxHash: ids.ID{3}, Version: 2},
	}, fees))

	counts, err := d.FetchVersionCounts(db)
	require.NoError(err)
	require.Equal(map[uint32]uint64{2: 3}, counts)

	require.NoError(d.ApplyFree(db, []DriveOperation{&ClearVersionVotes{}}, fees))
	counts, err = d.FetchVersionCounts(db)
	require.NoError(err)
	require.Empty(counts)
}

func TestWithdrawalQueue(t *testing.T) {
	require := require.New(t)
	d, db, fees := newTestDrive(t)

	require.NoError(d.ApplyFree(db, []DriveOperation{
		&EnqueueWithdrawal{Withdrawal: Withdrawal{IdentityID: ids.ID{1}, Amount: 10, OutputScript: []byte{1}}},
		&EnqueueWithdrawal{Withdrawal: Withdrawal{IdentityID: ids.ID{2}, Amount: 20, OutputScript: []byte{2}}},
	}, fees))

	queue, err := d.FetchWithdrawals(db)
	require.NoError(err)
	require.Len(queue, 2)
	require.Equal(uint64(0), queue[0].Index)
	require.Equal(uint64(1), queue[1].Index)
	require.Equal(uint64(20), queue[1].Amount)
}
