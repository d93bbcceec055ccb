// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/crypto"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/vm"
)

var (
	alice = ids.ID{1}
	bob   = ids.ID{2}
)

// newVMNode serves the API of a fresh VM where alice holds 10M credits.
func newVMNode(t *testing.T, aliceKey crypto.PrivateKey) *httptest.Server {
	keyData, err := transitions.PublicKeyData(types.KeyTypeECDSASecp256k1, aliceKey)
	require.NoError(t, err)
	genesis, err := json.Marshal(&vm.Genesis{
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
	})
	require.NoError(t, err)

	node := (&vm.Factory{}).New()
	require.NoError(t, node.Initialize(memdb.New(), genesis, vm.DefaultConfig(), prometheus.NewRegistry()))
	handlers, err := node.CreateHandlers()
	require.NoError(t, err)
	return httptest.NewServer(handlers[""])
}

// counting wraps [handler] and counts the requests it serves.
func counting(handler http.Handler, hits *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		handler.ServeHTTP(w, r)
	})
}

func failingNode(status int, hits *int32) *httptest.Server {
	return httptest.NewServer(counting(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}), hits))
}

type coreService struct{ height uint32 }

func (s *coreService) GetBestChainLockHeight(_ *http.Request, _ *struct{}, reply *GetBestChainLockHeightReply) error {
	reply.Height = cjson.Uint32(s.height)
	return nil
}

func newCoreNode(t *testing.T, height uint32) *httptest.Server {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	require.NoError(t, server.RegisterService(&coreService{height: height}, CoreNamespace))
	return httptest.NewServer(server)
}

func newTestClient(t *testing.T, base time.Duration, settings RequestSettings, uris ...string) *Client {
	pool := NewAddressPool(base)
	for _, uri := range uris {
		_, err := pool.AddURI(uri)
		require.NoError(t, err)
	}
	return New(pool, settings)
}

func transfer(t *testing.T, key crypto.PrivateKey, amount, revision uint64) transitions.StateTransition {
	tx := &transitions.IdentityCreditTransferTransitionV0{
		IdentityID:  alice,
		RecipientID: bob,
		Amount:      amount,
		Revision:    revision,
		KeyID:       1,
	}
	require.NoError(t, transitions.Sign(tx, key))
	return tx
}

func TestClientAgainstNode(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	key, err := transitions.NewPrivateKey()
	require.NoError(err)
	node := newVMNode(t, key)
	defer node.Close()
	c := newTestClient(t, time.Minute, RequestSettings{}, node.URL)
	defer c.Close()
	ctx := context.Background()

	status, err := c.GetStatus(ctx, RequestSettings{})
	require.NoError(err)
	require.False(status.HasBlocks)
	require.Equal(cjson.Uint64(1), status.NextHeight)
	require.Equal(cjson.Uint32(1), status.ProtocolVersion)

	identity, err := c.GetIdentity(ctx, alice, RequestSettings{})
	require.NoError(err)
	require.Equal(alice, identity.ID)
	require.Equal(uint64(10_000_000), identity.Balance)
	require.Len(identity.PublicKeys, 1)

	tx := transfer(t, key, 1_000_000, 1)
	checked, err := c.CheckTx(ctx, tx, RequestSettings{})
	require.NoError(err)
	require.True(checked.Valid)
	require.NotZero(checked.ProcessingFee)

	txHash, err := c.BroadcastStateTransition(ctx, tx, RequestSettings{})
	require.NoError(err)
	raw, err := transitions.Marshal(tx)
	require.NoError(err)
	require.Equal(transitions.HashBytes(raw), txHash)

	status, err = c.GetStatus(ctx, RequestSettings{})
	require.NoError(err)
	require.Equal(cjson.Uint32(1), status.MempoolSize)

	balance, revision, err := c.GetIdentityBalanceAndRevision(ctx, alice, RequestSettings{})
	require.NoError(err)
	require.Equal(uint64(10_000_000), balance)
	require.Zero(revision)

	upgrade, err := c.GetProtocolVersionUpgradeState(ctx, RequestSettings{})
	require.NoError(err)
	require.Equal(cjson.Uint32(1), upgrade.CurrentProtocolVersion)
	require.Empty(upgrade.Votes)

	// answers that are errors come from a healthy node
	_, err = c.GetBlock(ctx, nil, RequestSettings{})
	var rpcErr *json2.Error
	require.ErrorAs(err, &rpcErr)
	_, err = c.GetDataContract(ctx, ids.ID{9}, RequestSettings{})
	require.ErrorAs(err, &rpcErr)
	_, err = c.BroadcastStateTransition(ctx, tx, RequestSettings{})
	require.ErrorAs(err, &rpcErr)

	address, ok := c.AddressPool().Get(node.URL)
	require.True(ok)
	require.False(address.IsBanned())
}

func TestExecuteRetriesOnAnotherNode(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	key, err := transitions.NewPrivateKey()
	require.NoError(err)
	healthy := newVMNode(t, key)
	defer healthy.Close()
	var failures int32
	broken := failingNode(http.StatusServiceUnavailable, &failures)
	defer broken.Close()

	c := newTestClient(t, time.Hour, RequestSettings{}.WithRetries(3), healthy.URL, broken.URL)
	defer c.Close()

	for i := 0; i < 4; i++ {
		status, err := c.GetStatus(context.Background(), RequestSettings{})
		require.NoError(err)
		require.Equal(cjson.Uint32(1), status.ProtocolVersion)
	}

	// the broken node was tried once and then left alone
	require.Equal(int32(1), atomic.LoadInt32(&failures))
	address, ok := c.AddressPool().Get(broken.URL)
	require.True(ok)
	require.Equal(1, address.BanCount())
	address, _ = c.AddressPool().Get(healthy.URL)
	require.False(address.IsBanned())
	require.Equal(1, c.AddressPool().Available())
}

func TestExecuteReturnsLastNodeFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	var hits int32
	broken := failingNode(http.StatusInternalServerError, &hits)
	defer broken.Close()
	settings := RequestSettings{}.WithRetries(2).WithBanFailedAddress(false)
	c := newTestClient(t, time.Hour, settings, broken.URL)
	defer c.Close()

	_, err := c.GetStatus(context.Background(), RequestSettings{})
	var transportErr *TransportError
	require.ErrorAs(err, &transportErr)
	require.True(transportErr.IsNodeFailure())
	require.Equal(broken.URL, transportErr.URI)
	require.ErrorIs(err, errServerStatus)
	require.Equal(int32(3), atomic.LoadInt32(&hits))

	address, _ := c.AddressPool().Get(broken.URL)
	require.False(address.IsBanned())
}

func TestExecuteBansUntilNoAddressIsLeft(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	var hits int32
	broken := failingNode(http.StatusBadGateway, &hits)
	defer broken.Close()
	c := newTestClient(t, time.Hour, RequestSettings{}, broken.URL)
	defer c.Close()

	_, err := c.GetStatus(context.Background(), RequestSettings{})
	require.ErrorIs(err, ErrNoAvailableAddresses)
	require.Equal(int32(1), atomic.LoadInt32(&hits))
	require.Zero(c.AddressPool().Available())
}

func TestExecuteDoesNotRetryRequestErrors(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	var hits int32
	rejecting := failingNode(http.StatusBadRequest, &hits)
	defer rejecting.Close()
	c := newTestClient(t, time.Hour, RequestSettings{}.WithRetries(4), rejecting.URL)
	defer c.Close()

	_, err := c.GetStatus(context.Background(), RequestSettings{})
	var transportErr *TransportError
	require.ErrorAs(err, &transportErr)
	require.False(transportErr.IsNodeFailure())
	require.Equal(int32(1), atomic.LoadInt32(&hits))

	address, _ := c.AddressPool().Get(rejecting.URL)
	require.False(address.IsBanned())
}

func TestExecuteStopsOnCanceledContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	key, err := transitions.NewPrivateKey()
	require.NoError(err)
	node := newVMNode(t, key)
	defer node.Close()
	c := newTestClient(t, time.Hour, RequestSettings{}, node.URL)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetStatus(ctx, RequestSettings{})
	require.ErrorIs(err, context.Canceled)

	address, _ := c.AddressPool().Get(node.URL)
	require.False(address.IsBanned())
}

func TestFailedAddressIsUnbannedAfterBan(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	var hits int32
	broken := failingNode(http.StatusServiceUnavailable, &hits)
	defer broken.Close()
	c := newTestClient(t, 20*time.Millisecond, RequestSettings{}.WithRetries(0), broken.URL)
	defer c.Close()

	_, err := c.GetStatus(context.Background(), RequestSettings{})
	require.Error(err)
	address, _ := c.AddressPool().Get(broken.URL)
	require.True(address.IsBanned())

	require.Eventually(func() bool {
		address, _ := c.AddressPool().Get(broken.URL)
		return !address.IsBanned()
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(1, c.AddressPool().Available())
}

func TestCloseCancelsScheduledUnbans(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	var hits int32
	broken := failingNode(http.StatusServiceUnavailable, &hits)
	defer broken.Close()
	c := newTestClient(t, time.Hour, RequestSettings{}.WithRetries(0), broken.URL)

	_, err := c.GetStatus(context.Background(), RequestSettings{})
	require.Error(err)

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		require.FailNow("close waited for a scheduled unban")
	}

	// the ban outlives the client
	address, _ := c.AddressPool().Get(broken.URL)
	require.True(address.IsBanned())
}

func TestNoUnbanIsScheduledAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	c := newTestClient(t, time.Hour, RequestSettings{}, "http://node1")
	c.Close()

	address, ok := c.AddressPool().Get("http://node1")
	require.True(ok)
	banned, err := c.AddressPool().Ban(address)
	require.NoError(err)
	c.scheduleUnban(banned)
	c.Close()

	address, _ = c.AddressPool().Get("http://node1")
	require.True(address.IsBanned())
}

func TestConcurrentBansAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	c := newTestClient(t, time.Hour, RequestSettings{}, "http://node1", "http://node2")
	var g errgroup.Group
	for _, uri := range []string{"http://node1", "http://node2"} {
		uri := uri
		g.Go(func() error {
			address, ok := c.AddressPool().Get(uri)
			if !ok {
				return ErrAddressNotFound
			}
			c.banAddress(address)
			return nil
		})
	}
	g.Go(func() error {
		c.Close()
		return nil
	})
	require.NoError(g.Wait())
	c.Close()
}

func TestCoreClient(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	core := newCoreNode(t, 1_234)
	defer core.Close()
	c := newTestClient(t, time.Minute, RequestSettings{}, core.URL)
	defer c.Close()

	height, err := c.GetBestChainLockHeight(context.Background(), RequestSettings{})
	require.NoError(err)
	require.Equal(uint32(1_234), height)

	item, ok := c.conns.Get(PoolKeyCore)
	require.True(ok)
	require.Equal(PoolKeyCore, item.Kind())
	_, ok = c.conns.Get(PoolKeyPlatform)
	require.False(ok)
}

func TestConcurrentRequests(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	key, err := transitions.NewPrivateKey()
	require.NoError(err)
	first := newVMNode(t, key)
	defer first.Close()
	second := newVMNode(t, key)
	defer second.Close()
	var failures int32
	broken := failingNode(http.StatusServiceUnavailable, &failures)
	defer broken.Close()

	c := newTestClient(t, time.Hour, RequestSettings{}, first.URL, second.URL, broken.URL)
	defer c.Close()

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for j := 0; j < 10; j++ {
				identity, err := c.GetIdentity(ctx, alice, RequestSettings{})
				if err != nil {
					return err
				}
				if identity.ID != alice {
					return errors.New("wrong identity")
				}
			}
			return nil
		})
	}
	require.NoError(g.Wait())

	address, _ := c.AddressPool().Get(broken.URL)
	assert.True(t, address.IsBanned())
	assert.Equal(t, 2, c.AddressPool().Available())
}
