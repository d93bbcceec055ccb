// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/utils/timer/mockable"

	log "github.com/inconshreveable/log15"
)

// DefaultBaseBanPeriod is the first ban period of an address.
const DefaultBaseBanPeriod = time.Minute

var (
	errSubscriptionClosed = errors.New("subscription closed")
	errSubscriptionFull   = errors.New("subscription full")
)

// ChangeKind tells subscribers whether an address became usable.
type ChangeKind uint8

const (
	ChangeInsert ChangeKind = iota
	ChangeRemove
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "insert"
	case ChangeRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change is one update of the set of usable addresses.
type Change struct {
	Kind ChangeKind
	URI  string
}

// Subscription receives address changes. Delivery is at most once: a change
// that does not fit the buffer is dropped.
type Subscription struct {
	lock   sync.Mutex
	ch     chan Change
	closed bool
}

func newSubscription(capacity int) *Subscription {
	return &Subscription{ch: make(chan Change, capacity)}
}

// Changes is closed by [Close].
func (s *Subscription) Changes() <-chan Change { return s.ch }

// Close stops the subscription. The pool forgets it on its next broadcast.
func (s *Subscription) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send never blocks.
func (s *Subscription) send(change Change) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return errSubscriptionClosed
	}
	select {
	case s.ch <- change:
		return nil
	default:
		return errSubscriptionFull
	}
}

// AddressPool is the set of node addresses requests are routed to. Bans
// expire lazily: an address whose ban deadline passed is live again even
// before it is unbanned. It is safe for concurrent use.
type AddressPool struct {
	log           log.Logger
	clock         *mockable.Clock
	baseBanPeriod time.Duration

	lock          sync.RWMutex
	addresses     map[string]Address
	subscriptions []*Subscription
}

// NewAddressPool returns an empty pool. Bans start at [baseBanPeriod].
func NewAddressPool(baseBanPeriod time.Duration) *AddressPool {
	return &AddressPool{
		log:           log.New("module", "client"),
		clock:         &mockable.Clock{},
		baseBanPeriod: baseBanPeriod,
		addresses:     make(map[string]Address),
	}
}

// ParseAddressPool builds a pool with the default ban period from a comma
// separated list of URIs. Any malformed URI fails the whole list.
func ParseAddressPool(list string) (*AddressPool, error) {
	pool := NewAddressPool(DefaultBaseBanPeriod)
	for _, uri := range strings.Split(list, ",") {
		address, err := ParseAddress(uri)
		if err != nil {
			return nil, err
		}
		pool.Add(address)
	}
	return pool, nil
}

// AddURI parses [uri] and adds it. It returns false if the address was
// already in the pool.
func (p *AddressPool) AddURI(uri string) (bool, error) {
	address, err := ParseAddress(uri)
	if err != nil {
		return false, err
	}
	return p.Add(address), nil
}

// Add inserts or replaces [address] and notifies subscribers. It returns
// false if the address was already in the pool.
func (p *AddressPool) Add(address Address) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.add(address)
}

func (p *AddressPool) add(address Address) bool {
	kind := ChangeInsert
	if address.IsBanned() {
		kind = ChangeRemove
	}
	p.broadcast(Change{Kind: kind, URI: address.uri})
	_, exists := p.addresses[address.uri]
	p.addresses[address.uri] = address
	return !exists
}

// Ban bans the pooled copy of [address] for base*e^banCount and returns the
// updated address.
func (p *AddressPool) Ban(address Address) (Address, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	current, ok := p.addresses[address.uri]
	if !ok {
		return Address{}, fmt.Errorf("%w: %s", ErrAddressNotFound, address.uri)
	}
	delete(p.addresses, address.uri)
	banned := current.banned(p.baseBanPeriod, p.clock.Time())
	p.add(banned)
	return banned, nil
}

// Unban clears the ban record of [address].
func (p *AddressPool) Unban(address Address) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	current, ok := p.addresses[address.uri]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAddressNotFound, address.uri)
	}
	delete(p.addresses, address.uri)
	p.add(current.unbanned())
	return nil
}

// unbanExpired unbans [banned] if its pooled copy still carries the same
// ban and that ban is over. It reports whether the address was unbanned.
func (p *AddressPool) unbanExpired(banned Address) (bool, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	current, ok := p.addresses[banned.uri]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrAddressNotFound, banned.uri)
	}
	if !current.IsBanned() || current.banCount != banned.banCount || current.bannedUntil.After(p.clock.Time()) {
		return false, nil
	}
	delete(p.addresses, banned.uri)
	p.add(current.unbanned())
	return true, nil
}

// Get returns the pooled copy of [uri].
func (p *AddressPool) Get(uri string) (Address, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	address, ok := p.addresses[uri]
	return address, ok
}

// LiveAddresses returns the addresses that are not banned at the current
// time, ordered by URI.
func (p *AddressPool) LiveAddresses() []Address {
	p.lock.RLock()
	defer p.lock.RUnlock()

	return p.live()
}

func (p *AddressPool) live() []Address {
	now := p.clock.Time()
	live := make([]Address, 0, len(p.addresses))
	for _, address := range p.addresses {
		if address.IsLive(now) {
			live = append(live, address)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].uri < live[j].uri })
	return live
}

// Available is the number of live addresses.
func (p *AddressPool) Available() int {
	return len(p.LiveAddresses())
}

// Len is the number of addresses, banned or not.
func (p *AddressPool) Len() int {
	p.lock.RLock()
	defer p.lock.RUnlock()

	return len(p.addresses)
}

// Subscribe returns a subscription that first receives an insert for every
// live address and then every later change.
func (p *AddressPool) Subscribe(capacity int) *Subscription {
	p.lock.Lock()
	defer p.lock.Unlock()

	sub := newSubscription(capacity)
	for _, address := range p.live() {
		if err := sub.send(Change{Kind: ChangeInsert, URI: address.uri}); err != nil {
			p.log.Warn("dropping address change", "uri", address.uri, "change", ChangeInsert, "error", err)
		}
	}
	p.subscriptions = append(p.subscriptions, sub)
	return sub
}

// broadcast must be called with the write lock held. Closed subscriptions
// are forgotten.
func (p *AddressPool) broadcast(change Change) {
	kept := p.subscriptions[:0]
	for _, sub := range p.subscriptions {
		switch err := sub.send(change); err {
		case errSubscriptionClosed:
			continue
		case errSubscriptionFull:
			p.log.Warn("subscriber is full, dropping address change", "uri", change.URI, "change", change.Kind)
		}
		kept = append(kept, sub)
	}
	for i := len(kept); i < len(p.subscriptions); i++ {
		p.subscriptions[i] = nil
	}
	p.subscriptions = kept
}
