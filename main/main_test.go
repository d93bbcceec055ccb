// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/transitionvm/client"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
	"github.com/ava-labs/transitionvm/vm"
)

func testViper() *viper.Viper {
	v := viper.New()
	v.Set(dbTypeKey, memdbType)
	v.Set(httpHostKey, "127.0.0.1")
	v.Set(httpPortKey, 9650)
	v.Set(blocksPerEpochKey, 10)
	v.Set(quorumSizeKey, 4)
	v.Set(maxBlockBytesKey, 1024)
	v.Set(mempoolSizeKey, 16)
	v.Set(logLevelKey, "debug")
	v.Set(blockIntervalKey, "2s")
	v.Set(proposerKey, ids.Empty.String())
	return v
}

func TestGetParams(t *testing.T) {
	require := require.New(t)

	p, err := getParams(testViper())
	require.NoError(err)
	require.Equal("127.0.0.1:9650", p.httpAddr)
	require.Equal(memdbType, p.dbType)
	require.Equal(uint64(10), p.config.BlocksPerEpoch)
	require.Equal(uint64(4), p.config.QuorumSize)
	require.Equal(uint64(1024), p.config.MaxBlockBytes)
	require.Equal(16, p.config.MempoolSize)
	require.Equal(2*time.Second, p.blockInterval)
	require.Empty(p.genesis)

	v := testViper()
	v.Set(dbTypeKey, "rocksdb")
	_, err = getParams(v)
	require.ErrorIs(err, errUnknownDBType)

	v = testViper()
	v.Set(quorumSizeKey, 0)
	_, err = getParams(v)
	require.Error(err)

	v = testViper()
	v.Set(proposerKey, "not an id")
	_, err = getParams(v)
	require.Error(err)
}

func TestOpenDB(t *testing.T) {
	require := require.New(t)

	registry := prometheus.NewRegistry()
	db, err := openDB(&params{dbType: leveldbType, dbDir: t.TempDir()}, registry)
	require.NoError(err)
	require.NoError(db.Put([]byte("key"), []byte("value")))
	value, err := db.Get([]byte("key"))
	require.NoError(err)
	require.Equal([]byte("value"), value)

	families, err := registry.Gather()
	require.NoError(err)
	require.NotEmpty(families)
	require.NoError(db.Close())

	db, err = openDB(&params{dbType: memdbType}, registry)
	require.NoError(err)
	require.NoError(db.Close())

	_, err = openDB(&params{dbType: "rocksdb"}, registry)
	require.ErrorIs(err, errUnknownDBType)
}

func TestReadGenesis(t *testing.T) {
	require := require.New(t)

	genesis := &vm.Genesis{
		InitialHeight:   1,
		ProtocolVersion: 1,
		Identities:      []types.Identity{{ID: ids.ID{1}, Balance: 5}},
	}
	genesisBytes, err := genesis.Bytes()
	require.NoError(err)
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(os.WriteFile(path, genesisBytes, 0o600))

	read, err := readGenesis(path, 0)
	require.NoError(err)
	require.Equal(genesisBytes, read)

	read, err = readGenesis(path, 100)
	require.NoError(err)
	parsed, err := vm.ParseGenesis(read)
	require.NoError(err)
	require.Equal(uint64(100), parsed.InitialHeight)
	require.Equal(genesis.Identities, parsed.Identities)

	read, err = readGenesis("", 7)
	require.NoError(err)
	parsed, err = vm.ParseGenesis(read)
	require.NoError(err)
	require.Equal(uint64(7), parsed.InitialHeight)

	_, err = readGenesis(filepath.Join(t.TempDir(), "missing.json"), 0)
	require.Error(err)
}

func newTestNode(t *testing.T) *vm.VM {
	node := (&vm.Factory{}).New()
	require.NoError(t, node.Initialize(memdb.New(), nil, vm.DefaultConfig(), prometheus.NewRegistry()))
	return node
}

func TestProducerSkipsEmptyMempool(t *testing.T) {
	require := require.New(t)
	node := newTestNode(t)

	p := newProducer(node, ids.ID{7}, vm.DefaultConfig().MaxBlockBytes)
	require.NoError(p.produce())
	require.False(node.PlatformState().HasBlocks)
}

func TestRouter(t *testing.T) {
	assert := assert.New(t)
	registry := prometheus.NewRegistry()
	node := (&vm.Factory{}).New()
	assert.NoError(node.Initialize(memdb.New(), nil, vm.DefaultConfig(), registry))

	router, err := newRouter(node, version.NewDefaultRegistry(), registry)
	assert.NoError(err)
	server := httptest.NewServer(router)
	defer server.Close()

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"transitionvm.getStatus","params":{}}`)
	resp, err := http.Post(server.URL+chainEndpoint, "application/json", bytes.NewReader(body))
	assert.NoError(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.NoError(resp.Body.Close())

	resp, err = http.Get(server.URL + metricsEndpoint)
	assert.NoError(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.NoError(resp.Body.Close())

	resp, err = http.Get(server.URL + "/ext/unknown")
	assert.NoError(err)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	assert.NoError(resp.Body.Close())
}

func TestProducerCommitsBroadcastTransitions(t *testing.T) {
	require := require.New(t)

	key, err := transitions.NewPrivateKey()
	require.NoError(err)
	keyData, err := transitions.PublicKeyData(types.KeyTypeECDSASecp256k1, key)
	require.NoError(err)
	alice, bob := ids.ID{1}, ids.ID{2}
	genesis := &vm.Genesis{
		InitialHeight:   1,
		ProtocolVersion: 1,
		Identities: []types.Identity{
			{
				ID:      alice,
				Balance: 10_000_000,
				PublicKeys: []types.IdentityPublicKey{{
					ID:            1,
					Purpose:       types.PurposeAuthentication,
					SecurityLevel: types.SecurityLevelCritical,
					Type:          types.KeyTypeECDSASecp256k1,
					Data:          keyData,
				}},
			},
			{ID: bob},
		},
	}
	genesisBytes, err := genesis.Bytes()
	require.NoError(err)

	registry := prometheus.NewRegistry()
	node := (&vm.Factory{}).New()
	require.NoError(node.Initialize(memdb.New(), genesisBytes, vm.DefaultConfig(), registry))
	router, err := newRouter(node, version.NewDefaultRegistry(), registry)
	require.NoError(err)
	server := httptest.NewServer(router)
	defer server.Close()

	pool := client.NewAddressPool(client.DefaultBaseBanPeriod)
	_, err = pool.AddURI(server.URL + chainEndpoint)
	require.NoError(err)
	c := client.New(pool, client.RequestSettings{}.WithRetries(0))
	defer c.Close()

	tx := &transitions.IdentityCreditTransferTransitionV0{
		IdentityID:  alice,
		RecipientID: bob,
		Amount:      1_000_000,
		Revision:    1,
		KeyID:       1,
	}
	require.NoError(transitions.Sign(tx, key))
	ctx := context.Background()
	_, err = c.BroadcastStateTransition(ctx, tx, client.RequestSettings{})
	require.NoError(err)

	p := newProducer(node, ids.ID{7}, vm.DefaultConfig().MaxBlockBytes)
	require.NoError(p.produce())

	status, err := c.GetStatus(ctx, client.RequestSettings{})
	require.NoError(err)
	require.True(status.HasBlocks)
	require.Equal(uint64(1), status.LastBlock.Height)
	require.Zero(status.MempoolSize)

	balance, revision, err := c.GetIdentityBalanceAndRevision(ctx, bob, client.RequestSettings{})
	require.NoError(err)
	require.Equal(uint64(1_000_000), balance)
	require.Zero(revision)
	_, revision, err = c.GetIdentityBalanceAndRevision(ctx, alice, client.RequestSettings{})
	require.NoError(err)
	require.Equal(uint64(1), revision)
}
