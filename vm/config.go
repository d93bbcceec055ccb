// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"
)

var (
	errZeroBlocksPerEpoch = errors.New("blocks per epoch must be positive")
	errZeroQuorumSize     = errors.New("quorum size must be positive")
	errZeroMaxBlockBytes  = errors.New("max block bytes must be positive")
	errMempoolSize        = errors.New("mempool size must be positive")
)

// Config is the node local configuration of the VM. None of it is consensus
// critical except BlocksPerEpoch and QuorumSize, which every node of a
// network must agree on.
type Config struct {
	BlocksPerEpoch uint64 `json:"blocksPerEpoch"`
	// QuorumSize is the number of validators protocol upgrade votes are
	// counted against.
	QuorumSize    uint64 `json:"quorumSize"`
	MaxBlockBytes uint64 `json:"maxBlockBytes"`

	MempoolSize       int `json:"mempoolSize"`
	MempoolMaxTxBytes int `json:"mempoolMaxTxBytes"`
	BlockCacheSize    int `json:"blockCacheSize"`
}

// DefaultConfig returns the configuration used when no value is overridden.
func DefaultConfig() Config {
	return Config{
		BlocksPerEpoch:    576,
		QuorumSize:        100,
		MaxBlockBytes:     2 * 1024 * 1024,
		MempoolSize:       4096,
		MempoolMaxTxBytes: 64 * 1024 * 1024,
		BlockCacheSize:    1024,
	}
}

// Verify returns an error if the configuration cannot run a node.
func (c *Config) Verify() error {
	switch {
	case c.BlocksPerEpoch == 0:
		return errZeroBlocksPerEpoch
	case c.QuorumSize == 0:
		return errZeroQuorumSize
	case c.MaxBlockBytes == 0:
		return errZeroMaxBlockBytes
	case c.MempoolSize <= 0 || c.MempoolMaxTxBytes <= 0:
		return fmt.Errorf("%w: %d txs, %d bytes", errMempoolSize, c.MempoolSize, c.MempoolMaxTxBytes)
	case c.BlockCacheSize < 0:
		return fmt.Errorf("negative block cache size %d", c.BlockCacheSize)
	default:
		return nil
	}
}
