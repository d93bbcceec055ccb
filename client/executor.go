// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var errUnknownPoolKey = errors.New("unknown client kind")

// Request describes one API call whose result decodes into R.
type Request[R any] interface {
	Kind() PoolKey
	Method() string
	Args() interface{}
	// Overrides are the settings of this request type. They sit between the
	// client settings and the settings of a single call.
	Overrides() RequestSettings
}

type request[R any] struct {
	kind      PoolKey
	method    string
	args      interface{}
	overrides RequestSettings
}

// NewRequest returns a request calling [method] of the API of [kind].
func NewRequest[R any](kind PoolKey, method string, args interface{}, overrides RequestSettings) Request[R] {
	if args == nil {
		args = struct{}{}
	}
	return &request[R]{
		kind:      kind,
		method:    method,
		args:      args,
		overrides: overrides,
	}
}

func (r *request[R]) Kind() PoolKey              { return r.kind }
func (r *request[R]) Method() string             { return r.method }
func (r *request[R]) Args() interface{}          { return r.args }
func (r *request[R]) Overrides() RequestSettings { return r.overrides }

type caller interface {
	call(ctx context.Context, timeout time.Duration, method string, args, reply interface{}) (Address, error)
}

func (c *Client) caller(kind PoolKey) (caller, error) {
	switch kind {
	case PoolKeyPlatform:
		return c.conns.Platform(func() *PlatformClient { return NewPlatformClient(c.pool) }), nil
	case PoolKeyCore:
		return c.conns.Core(func() *CoreClient { return NewCoreClient(c.pool) }), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownPoolKey, kind)
	}
}

// Execute runs [req] with up to Retries+1 attempts. Attempts follow each
// other without delay. A node failure bans the failed address when
// BanFailedAddress is set; any other failure is returned at once.
func Execute[R any](ctx context.Context, c *Client, req Request[R], settings RequestSettings) (*R, error) {
	applied := c.settings.Override(req.Overrides()).Override(settings).Finalize()

	var lastErr error
	for attempt := 0; attempt <= applied.Retries; attempt++ {
		conn, err := c.caller(req.Kind())
		if err != nil {
			return nil, err
		}

		reply := new(R)
		address, err := conn.call(ctx, applied.Timeout, req.Method(), req.Args(), reply)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		var transportErr *TransportError
		if !errors.As(err, &transportErr) || !transportErr.IsNodeFailure() {
			return nil, err
		}
		c.log.Debug("retrying after node failure",
			"method", req.Method(),
			"uri", address.uri,
			"attempt", attempt+1,
			"retries", applied.Retries,
		)
		if applied.BanFailedAddress {
			c.banAddress(address)
		}
	}
	return nil, lastErr
}

// banAddress bans the pooled copy of [address] and schedules its unban.
func (c *Client) banAddress(address Address) {
	current, ok := c.pool.Get(address.uri)
	if !ok {
		c.log.Warn("failed address is no longer pooled", "uri", address.uri)
		return
	}
	banned, err := c.pool.Ban(current)
	if err != nil {
		c.log.Warn("couldn't ban address", "uri", address.uri, "error", err)
		return
	}
	c.log.Info("address banned",
		"uri", banned.uri,
		"banCount", banned.banCount,
		"bannedUntil", banned.bannedUntil,
	)
	c.scheduleUnban(banned)
}

// scheduleUnban clears the ban of [banned] once it expired, unless the
// address was banned again or removed in the meantime. Nothing is scheduled
// once the client is closed.
func (c *Client) scheduleUnban(banned Address) {
	delay := banned.bannedUntil.Sub(c.pool.clock.Time())

	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return
	}
	c.unbans.Add(1)
	go func() {
		defer c.unbans.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-c.closing:
			return
		}
		unbanned, err := c.pool.unbanExpired(banned)
		if err != nil {
			c.log.Warn("couldn't unban address", "uri", banned.uri, "error", err)
			return
		}
		if unbanned {
			c.log.Debug("address unbanned", "uri", banned.uri)
		}
	}()
}
