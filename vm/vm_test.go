// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"encoding/json"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

var (
	alice      = ids.ID{1}
	bob        = ids.ID{2}
	masternode = ids.ID{0x77}
	profiles   = ids.ID{0xcc}

	// the identity keys every test network starts with
	aliceKey      = mustKey()
	masternodeKey = mustKey()
)

func mustKey() crypto.PrivateKey {
	key, err := transitions.NewPrivateKey()
	if err != nil {
		panic(err)
	}
	return key
}

func publicKey(t *testing.T, id uint32, purpose types.Purpose, level types.SecurityLevel, key crypto.PrivateKey) types.IdentityPublicKey {
	data, err := transitions.PublicKeyData(types.KeyTypeECDSASecp256k1, key)
	require.NoError(t, err)
	return types.IdentityPublicKey{
		ID:            id,
		Purpose:       purpose,
		SecurityLevel: level,
		Type:          types.KeyTypeECDSASecp256k1,
		Data:          data,
	}
}

func testGenesis(t *testing.T) *Genesis {
	return &Genesis{
		InitialHeight:   1,
		ProtocolVersion: 1,
		Identities: []types.Identity{
			{
				ID:         alice,
				Balance:    10_000_000,
				PublicKeys: []types.IdentityPublicKey{publicKey(t, 1, types.PurposeAuthentication, types.SecurityLevelCritical, aliceKey)},
			},
			{ID: bob},
			{
				ID:         masternode,
				PublicKeys: []types.IdentityPublicKey{publicKey(t, 3, types.PurposeVoting, types.SecurityLevelHigh, masternodeKey)},
			},
		},
		Contracts: []types.DataContract{{
			ID:      profiles,
			OwnerID: alice,
			Version: 1,
			DocumentTypes: []types.DocumentType{{
				Name: "profile",
				Properties: []types.PropertyDefinition{
					{Name: "name", Type: types.PropertyTypeString, Required: true, MaxLength: 32},
				},
				Indices: []types.Index{{
					Name:       "byName",
					Properties: []types.IndexProperty{{Name: "name", Ascending: true}},
					Unique:     true,
				}},
				DocumentsMutable:         true,
				SecurityLevelRequirement: types.SecurityLevelHigh,
			}},
		}},
	}
}

func testConfig() Config {
	config := DefaultConfig()
	config.BlocksPerEpoch = 2
	config.QuorumSize = 1
	return config
}

func newTestVM(t *testing.T, genesis *Genesis, config Config) (*VM, database.Database) {
	db := memdb.New()
	return initTestVM(t, db, genesis, config), db
}

func initTestVM(t *testing.T, db database.Database, genesis *Genesis, config Config) *VM {
	var genesisBytes []byte
	if genesis != nil {
		var err error
		genesisBytes, err = json.Marshal(genesis)
		require.NoError(t, err)
	}
	vm := New(version.NewDefaultRegistry())
	require.NoError(t, vm.Initialize(db, genesisBytes, config, prometheus.NewRegistry()))
	return vm
}

func signed(t *testing.T, tx transitions.StateTransition, key crypto.PrivateKey) []byte {
	require.NoError(t, transitions.Sign(tx, key))
	raw, err := transitions.Marshal(tx)
	require.NoError(t, err)
	return raw
}

func transfer(t *testing.T, amount, revision uint64) []byte {
	return signed(t, &transitions.IdentityCreditTransferTransitionV0{
		IdentityID:  alice,
		RecipientID: bob,
		Amount:      amount,
		Revision:    revision,
		KeyID:       1,
	}, aliceKey)
}

func vote(t *testing.T, nonce uint64) []byte {
	return signed(t, &transitions.MasternodeVoteTransitionV0{
		ProTxHash:       masternode,
		VoterIdentityID: masternode,
		Vote: transitions.ResourceVote{
			DataContractID: profiles,
			DocumentType:   "profile",
			IndexName:      "byName",
			IndexValues:    [][]byte{[]byte("alice")},
			Choice:         transitions.VoteChoice{Type: transitions.VoteTowardsIdentity, Identity: alice},
		},
		Nonce: nonce,
		KeyID: 3,
	}, masternodeKey)
}

var garbage = []byte{0, 0, 0, 0, 0, 42}

func (vm *VM) balance(t *testing.T, id ids.ID) uint64 {
	var balance uint64
	require.NoError(t, vm.readCommitted(func(db database.Database, _ *PlatformState) error {
		var err error
		balance, err = vm.drive.FetchIdentityBalance(db, id)
		return err
	}))
	return balance
}

func proposal(height uint64, txs ...[]byte) *RequestPrepareProposal {
	return &RequestPrepareProposal{BlockProposal: BlockProposal{
		Height:            height,
		TimeMs:            1_700_000_000_000 + height*1_000,
		ProposerProTxHash: masternode,
		Txs:               txs,
	}}
}

// commitBlock prepares and finalizes a block.
func commitBlock(t *testing.T, vm *VM, req *RequestPrepareProposal) *ResponseFinalizeBlock {
	prepared, err := vm.PrepareProposal(req)
	require.NoError(t, err)
	finalized, err := vm.FinalizeBlock(&RequestFinalizeBlock{
		Height:  req.Height,
		Round:   req.Round,
		AppHash: prepared.AppHash,
	})
	require.NoError(t, err)
	return finalized
}

// Assert that after initialization, the vm has the state we expect
func TestGenesis(t *testing.T) {
	assert := assert.New(t)
	vm, db := newTestVM(t, testGenesis(t), testConfig())

	// Verify that the db is initialized
	ok, err := vm.state.IsInitialized()
	assert.NoError(err)
	assert.True(ok)

	platform := vm.PlatformState()
	assert.False(platform.HasBlocks)
	assert.Equal(uint64(1), platform.NextHeight())
	assert.NotEqual(ids.Empty, platform.AppHash)
	assert.Equal(uint32(1), platform.CurrentProtocolVersion)
	assert.Equal(uint32(1), platform.NextEpochProtocolVersion)
	assert.Equal(uint64(10_000_000), vm.balance(t, alice))

	// a restart reads the committed state and ignores the genesis
	assert.NoError(vm.Shutdown())
	restarted := initTestVM(t, db, nil, testConfig())
	assert.Equal(platform, restarted.PlatformState())
	assert.Equal(uint64(10_000_000), restarted.balance(t, alice))
}

func TestGenesisRejectsUnknownProtocolVersion(t *testing.T) {
	require := require.New(t)
	genesis := testGenesis(t)
	genesis.ProtocolVersion = 99
	genesisBytes, err := json.Marshal(genesis)
	require.NoError(err)

	vm := New(version.NewDefaultRegistry())
	err = vm.Initialize(memdb.New(), genesisBytes, testConfig(), prometheus.NewRegistry())
	require.ErrorIs(err, version.ErrUnknownProtocolVersion)
}

func TestParseGenesis(t *testing.T) {
	require := require.New(t)

	empty, err := ParseGenesis(nil)
	require.NoError(err)
	require.Equal(uint64(1), empty.InitialHeight)
	require.NoError(empty.verify(version.NewDefaultRegistry()))

	_, err = ParseGenesis([]byte("{"))
	require.Error(err)

	zero := &Genesis{}
	require.ErrorIs(zero.verify(version.NewDefaultRegistry()), errZeroInitialHeight)

	duplicate := testGenesis(t)
	duplicate.Contracts[0].ID = alice
	require.ErrorIs(duplicate.verify(version.NewDefaultRegistry()), errDuplicateGenesisID)
}

func TestInitialHeight(t *testing.T) {
	require := require.New(t)
	genesis := testGenesis(t)
	genesis.InitialHeight = 100
	vm, _ := newTestVM(t, genesis, testConfig())

	_, err := vm.PrepareProposal(proposal(1))
	require.ErrorIs(err, errWrongHeight)

	finalized := commitBlock(t, vm, proposal(100))
	require.Equal(uint64(100), finalized.Block.Height)
	require.Equal(uint16(0), finalized.Block.Epoch)
	platform := vm.PlatformState()
	require.Equal(uint64(101), platform.NextHeight())
}

func TestConfigVerify(t *testing.T) {
	require := require.New(t)

	config := DefaultConfig()
	require.NoError(config.Verify())

	config.BlocksPerEpoch = 0
	require.ErrorIs(config.Verify(), errZeroBlocksPerEpoch)

	config = DefaultConfig()
	config.QuorumSize = 0
	require.ErrorIs(config.Verify(), errZeroQuorumSize)

	config = DefaultConfig()
	config.MempoolSize = 0
	require.ErrorIs(config.Verify(), errMempoolSize)

	vm := New(nil)
	require.ErrorIs(vm.Initialize(memdb.New(), nil, config, prometheus.NewRegistry()), errMempoolSize)
}
