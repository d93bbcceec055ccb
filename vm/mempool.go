// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/ids"
	mapset "github.com/deckarep/golang-set/v2"
)

var (
	errMempoolFull = errors.New("mempool is full")
	errDuplicateTx = errors.New("transition already in mempool")
)

type pendingTx struct {
	hash ids.ID
	raw  []byte
}

// mempool holds transitions admitted by check-tx until a proposal drains
// them. It is safe for concurrent use.
type mempool struct {
	lock     sync.Mutex
	maxSize  int
	maxBytes int
	bytes    int
	txs      []pendingTx
	hashes   mapset.Set[ids.ID]
}

func newMempool(maxSize, maxBytes int) *mempool {
	return &mempool{
		maxSize:  maxSize,
		maxBytes: maxBytes,
		hashes:   mapset.NewThreadUnsafeSet[ids.ID](),
	}
}

func (m *mempool) Add(hash ids.ID, raw []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.hashes.Contains(hash) {
		return fmt.Errorf("%w: %s", errDuplicateTx, hash)
	}
	if len(m.txs) >= m.maxSize || m.bytes+len(raw) > m.maxBytes {
		return fmt.Errorf("%w: %d txs, %d bytes", errMempoolFull, len(m.txs), m.bytes)
	}
	m.txs = append(m.txs, pendingTx{hash: hash, raw: raw})
	m.hashes.Add(hash)
	m.bytes += len(raw)
	return nil
}

// Pending returns the oldest transitions whose sizes add up to at most
// [maxBytes] without removing them. Transitions are removed when the block
// including them commits.
func (m *mempool) Pending(maxBytes uint64) [][]byte {
	m.lock.Lock()
	defer m.lock.Unlock()

	var (
		txs  [][]byte
		size uint64
	)
	for _, tx := range m.txs {
		if size+uint64(len(tx.raw)) > maxBytes {
			break
		}
		size += uint64(len(tx.raw))
		txs = append(txs, tx.raw)
	}
	return txs
}

// Remove drops the transitions of [hashes] that are in the mempool.
func (m *mempool) Remove(hashes []ids.ID) {
	m.lock.Lock()
	defer m.lock.Unlock()

	drop := mapset.NewThreadUnsafeSet(hashes...)
	if m.hashes.Intersect(drop).Cardinality() == 0 {
		return
	}
	kept := m.txs[:0]
	for _, tx := range m.txs {
		if drop.Contains(tx.hash) {
			m.hashes.Remove(tx.hash)
			m.bytes -= len(tx.raw)
			continue
		}
		kept = append(kept, tx)
	}
	m.txs = kept
}

func (m *mempool) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.txs)
}
