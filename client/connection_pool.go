// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"fmt"
	"sync"

	log "github.com/inconshreveable/log15"
)

// PoolKey is the kind of client a connection pool entry holds.
type PoolKey uint8

const (
	PoolKeyPlatform PoolKey = iota
	PoolKeyCore
)

func (k PoolKey) String() string {
	switch k {
	case PoolKeyPlatform:
		return "platform"
	case PoolKeyCore:
		return "core"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// PoolItem is a client stored in the connection pool.
type PoolItem interface {
	Kind() PoolKey
	Close()
}

// ConnectionPool caches one client per kind. A miss always builds a new
// client; it never waits for a slot.
type ConnectionPool struct {
	log log.Logger

	lock  sync.RWMutex
	items map[PoolKey]PoolItem
}

func NewConnectionPool() *ConnectionPool {
	return &ConnectionPool{
		log:   log.New("module", "client"),
		items: make(map[PoolKey]PoolItem),
	}
}

func (p *ConnectionPool) Get(key PoolKey) (PoolItem, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	item, ok := p.items[key]
	return item, ok
}

// Put stores [item] under [key], closing the client it replaces.
func (p *ConnectionPool) Put(key PoolKey, item PoolItem) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if old, ok := p.items[key]; ok && old != item {
		old.Close()
	}
	p.items[key] = item
}

func (p *ConnectionPool) getOrCreate(key PoolKey, create func() PoolItem) PoolItem {
	if item, ok := p.Get(key); ok {
		return item
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if item, ok := p.items[key]; ok {
		return item
	}
	item := create()
	p.items[key] = item
	return item
}

// Platform returns the pooled platform client, creating it with [create] on
// a miss. It panics if the entry holds another kind of client.
func (p *ConnectionPool) Platform(create func() *PlatformClient) *PlatformClient {
	item := p.getOrCreate(PoolKeyPlatform, func() PoolItem { return create() })
	platform, ok := item.(*PlatformClient)
	if !ok {
		p.log.Crit("connection pool entry has the wrong kind", "key", PoolKeyPlatform, "kind", item.Kind())
		panic(fmt.Sprintf("connection pool entry %s holds a %s client", PoolKeyPlatform, item.Kind()))
	}
	return platform
}

// Core returns the pooled core client, creating it with [create] on a miss.
// It panics if the entry holds another kind of client.
func (p *ConnectionPool) Core(create func() *CoreClient) *CoreClient {
	item := p.getOrCreate(PoolKeyCore, func() PoolItem { return create() })
	core, ok := item.(*CoreClient)
	if !ok {
		p.log.Crit("connection pool entry has the wrong kind", "key", PoolKeyCore, "kind", item.Kind())
		panic(fmt.Sprintf("connection pool entry %s holds a %s client", PoolKeyCore, item.Kind()))
	}
	return core
}

// Close closes every pooled client and empties the pool.
func (p *ConnectionPool) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()

	for key, item := range p.items {
		item.Close()
		delete(p.items, key)
	}
}
