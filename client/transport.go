// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/rpc/v2/json2"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/inconshreveable/log15"
)

const (
	PlatformNamespace = "transitionvm"
	CoreNamespace     = "core"

	subscriptionCapacity = 256
)

var ErrNoAvailableAddresses = errors.New("no available addresses")

// TransportError is a failed call to one node.
type TransportError struct {
	URI string
	Err error

	nodeFailure bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URI, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsNodeFailure reports whether the node is to blame. Only node failures are
// retried on another address.
func (e *TransportError) IsNodeFailure() bool { return e.nodeFailure }

// transport sends JSON-RPC calls of one namespace to the live addresses of a
// pool, round robin.
type transport struct {
	log       log.Logger
	namespace string
	pool      *AddressPool
	http      *http.Client
	sub       *Subscription

	lock      sync.Mutex
	endpoints mapset.Set[string]
	next      int
}

func newTransport(namespace string, pool *AddressPool) *transport {
	return &transport{
		log:       log.New("module", "client", "namespace", namespace),
		namespace: namespace,
		pool:      pool,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sub:       pool.Subscribe(subscriptionCapacity),
		endpoints: mapset.NewThreadUnsafeSet[string](),
	}
}

// sync applies the pending address changes. It must be called with the
// lock held.
func (t *transport) sync() {
	for {
		select {
		case change, ok := <-t.sub.Changes():
			if !ok {
				return
			}
			switch change.Kind {
			case ChangeInsert:
				t.endpoints.Add(change.URI)
			case ChangeRemove:
				t.endpoints.Remove(change.URI)
			}
		default:
			return
		}
	}
}

// selectAddress returns the next live address. Addresses whose ban expired
// without an unban are picked up from the pool.
func (t *transport) selectAddress() (Address, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.sync()

	uris := t.endpoints.ToSlice()
	sort.Strings(uris)
	now := t.pool.clock.Time()
	live := make([]Address, 0, len(uris))
	for _, uri := range uris {
		address, ok := t.pool.Get(uri)
		if ok && address.IsLive(now) {
			live = append(live, address)
		}
	}
	if len(live) == 0 {
		live = t.pool.LiveAddresses()
		for _, address := range live {
			t.endpoints.Add(address.uri)
		}
	}
	if len(live) == 0 {
		return Address{}, ErrNoAvailableAddresses
	}
	address := live[t.next%len(live)]
	t.next++
	return address, nil
}

// call executes [method] on the next live address and decodes the result
// into [reply]. It returns the address the call was sent to.
func (t *transport) call(ctx context.Context, timeout time.Duration, method string, args, reply interface{}) (Address, error) {
	address, err := t.selectAddress()
	if err != nil {
		return Address{}, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = t.post(attemptCtx, address.uri, t.namespace+"."+method, args, reply)
	if err == nil {
		return address, nil
	}
	transportErr := &TransportError{URI: address.uri, Err: err}
	if ctx.Err() == nil {
		transportErr.nodeFailure = isNodeFailure(err)
	}
	t.log.Debug("request failed", "uri", address.uri, "method", method, "nodeFailure", transportErr.nodeFailure, "error", err)
	return address, transportErr
}

var (
	errServerStatus  = errors.New("unexpected status")
	errEncodeRequest = errors.New("couldn't encode request")
)

// statusError is a non 200 response.
type statusError struct{ code int }

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: %d %s", errServerStatus, e.code, http.StatusText(e.code))
}

func (e *statusError) Unwrap() error { return errServerStatus }

func (t *transport) post(ctx context.Context, uri, method string, args, reply interface{}) error {
	body, err := json2.EncodeClientRequest(method, args)
	if err != nil {
		return fmt.Errorf("%w %s: %v", errEncodeRequest, method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &statusError{code: resp.StatusCode}
	}
	return json2.DecodeClientResponse(resp.Body, reply)
}

// isNodeFailure reports whether [err] says the node is unusable rather than
// the request being wrong. A json2 error is an answer from a healthy node.
func isNodeFailure(err error) bool {
	var rpcErr *json2.Error
	if errors.As(err, &rpcErr) || errors.Is(err, errEncodeRequest) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code >= http.StatusInternalServerError || status.code == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	// Undecodable bodies.
	return !errors.Is(err, context.Canceled)
}

func (t *transport) close() {
	t.sub.Close()
	t.http.CloseIdleConnections()
}

// PlatformClient calls the transitionvm API.
type PlatformClient struct{ *transport }

func NewPlatformClient(pool *AddressPool) *PlatformClient {
	return &PlatformClient{transport: newTransport(PlatformNamespace, pool)}
}

func (*PlatformClient) Kind() PoolKey { return PoolKeyPlatform }

func (c *PlatformClient) Close() { c.transport.close() }

// CoreClient calls the core chain API the same nodes expose.
type CoreClient struct{ *transport }

func NewCoreClient(pool *AddressPool) *CoreClient {
	return &CoreClient{transport: newTransport(CoreNamespace, pool)}
}

func (*CoreClient) Kind() PoolKey { return PoolKeyCore }

func (c *CoreClient) Close() { c.transport.close() }
