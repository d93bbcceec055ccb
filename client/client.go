// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client routes API requests to the live nodes of an address pool,
// banning nodes that fail.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/ids"

	log "github.com/inconshreveable/log15"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/vm"
)

// Client sends requests through a shared address pool and connection pool.
// It is safe for concurrent use.
type Client struct {
	log      log.Logger
	pool     *AddressPool
	conns    *ConnectionPool
	settings RequestSettings

	// lock orders scheduled unbans against Close.
	lock    sync.Mutex
	closed  bool
	closing chan struct{}
	unbans  sync.WaitGroup
}

// New returns a client over [pool]. [settings] is the base layer of every
// request's settings.
func New(pool *AddressPool, settings RequestSettings) *Client {
	return &Client{
		log:      log.New("module", "client"),
		pool:     pool,
		conns:    NewConnectionPool(),
		settings: settings,
		closing:  make(chan struct{}),
	}
}

func (c *Client) AddressPool() *AddressPool { return c.pool }

// Close cancels the scheduled unbans and closes the pooled connections.
func (c *Client) Close() {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	c.closed = true
	close(c.closing)
	c.lock.Unlock()

	c.unbans.Wait()
	c.conns.Close()
}

func broadcastStateTransitionRequest(tx string) Request[vm.BroadcastStateTransitionReply] {
	return NewRequest[vm.BroadcastStateTransitionReply](
		PoolKeyPlatform,
		"broadcastStateTransition",
		&vm.StateTransitionArgs{Tx: tx},
		RequestSettings{}.WithTimeout(20*time.Second),
	)
}

// BroadcastStateTransition submits [tx] to the mempool of a node.
func (c *Client) BroadcastStateTransition(ctx context.Context, tx transitions.StateTransition, settings RequestSettings) (ids.ID, error) {
	encoded, err := vm.EncodeStateTransition(tx)
	if err != nil {
		return ids.Empty, err
	}
	reply, err := Execute(ctx, c, broadcastStateTransitionRequest(encoded), settings)
	if err != nil {
		return ids.Empty, err
	}
	return reply.TxHash, nil
}

// CheckTx asks a node whether [tx] would be accepted into its mempool.
func (c *Client) CheckTx(ctx context.Context, tx transitions.StateTransition, settings RequestSettings) (*vm.CheckTxReply, error) {
	encoded, err := vm.EncodeStateTransition(tx)
	if err != nil {
		return nil, err
	}
	req := NewRequest[vm.CheckTxReply](PoolKeyPlatform, "checkTx", &vm.StateTransitionArgs{Tx: encoded}, RequestSettings{})
	return Execute(ctx, c, req, settings)
}

func (c *Client) GetIdentity(ctx context.Context, id ids.ID, settings RequestSettings) (*types.Identity, error) {
	req := NewRequest[vm.GetIdentityReply](PoolKeyPlatform, "getIdentity", &vm.IDArgs{ID: id}, RequestSettings{})
	reply, err := Execute(ctx, c, req, settings)
	if err != nil {
		return nil, err
	}
	return &reply.Identity, nil
}

// GetIdentityBalanceAndRevision returns the balance and revision of [id].
func (c *Client) GetIdentityBalanceAndRevision(ctx context.Context, id ids.ID, settings RequestSettings) (uint64, uint64, error) {
	req := NewRequest[vm.GetIdentityBalanceAndRevisionReply](PoolKeyPlatform, "getIdentityBalanceAndRevision", &vm.IDArgs{ID: id}, RequestSettings{})
	reply, err := Execute(ctx, c, req, settings)
	if err != nil {
		return 0, 0, err
	}
	return uint64(reply.Balance), uint64(reply.Revision), nil
}

func (c *Client) GetDataContract(ctx context.Context, id ids.ID, settings RequestSettings) (*types.DataContract, error) {
	req := NewRequest[vm.GetDataContractReply](PoolKeyPlatform, "getDataContract", &vm.IDArgs{ID: id}, RequestSettings{})
	reply, err := Execute(ctx, c, req, settings)
	if err != nil {
		return nil, err
	}
	return &reply.DataContract, nil
}

// GetBlock returns the committed block at [height], or the last committed
// block when [height] is nil.
func (c *Client) GetBlock(ctx context.Context, height *uint64, settings RequestSettings) (*vm.GetBlockReply, error) {
	args := &vm.GetBlockArgs{}
	if height != nil {
		h := cjson.Uint64(*height)
		args.Height = &h
	}
	req := NewRequest[vm.GetBlockReply](PoolKeyPlatform, "getBlock", args, RequestSettings{})
	return Execute(ctx, c, req, settings)
}

func (c *Client) GetProtocolVersionUpgradeState(ctx context.Context, settings RequestSettings) (*vm.GetProtocolVersionUpgradeStateReply, error) {
	req := NewRequest[vm.GetProtocolVersionUpgradeStateReply](PoolKeyPlatform, "getProtocolVersionUpgradeState", nil, RequestSettings{})
	return Execute(ctx, c, req, settings)
}

// GetStatus returns the chain tip of a node. Status calls give up early.
func (c *Client) GetStatus(ctx context.Context, settings RequestSettings) (*vm.GetStatusReply, error) {
	req := NewRequest[vm.GetStatusReply](PoolKeyPlatform, "getStatus", nil, RequestSettings{}.WithTimeout(3*time.Second))
	return Execute(ctx, c, req, settings)
}

// GetBestChainLockHeightReply is the reply of the core API.
type GetBestChainLockHeightReply struct {
	Height cjson.Uint32 `json:"height"`
}

// GetBestChainLockHeight returns the core chain height of the best chain
// lock a node has seen.
func (c *Client) GetBestChainLockHeight(ctx context.Context, settings RequestSettings) (uint32, error) {
	req := NewRequest[GetBestChainLockHeightReply](PoolKeyCore, "getBestChainLockHeight", nil, RequestSettings{})
	reply, err := Execute(ctx, c, req, settings)
	if err != nil {
		return 0, err
	}
	return uint32(reply.Height), nil
}
