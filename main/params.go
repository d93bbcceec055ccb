// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/transitionvm/vm"
)

const (
	versionKey        = "version"
	configFileKey     = "config-file"
	dbDirKey          = "db-dir"
	dbTypeKey         = "db-type"
	httpHostKey       = "http-host"
	httpPortKey       = "http-port"
	genesisFileKey    = "genesis-file"
	initialHeightKey  = "initial-height"
	blocksPerEpochKey = "blocks-per-epoch"
	quorumSizeKey     = "quorum-size"
	maxBlockBytesKey  = "max-block-bytes"
	mempoolSizeKey    = "mempool-size"
	logLevelKey       = "log-level"
	blockIntervalKey  = "block-interval"
	proposerKey       = "proposer-pro-tx-hash"

	leveldbType = "leveldb"
	memdbType   = "memdb"
)

var errUnknownDBType = errors.New("unknown db type")

func buildFlagSet() *flag.FlagSet {
	defaults := vm.DefaultConfig()
	fs := flag.NewFlagSet(vm.Name, flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.String(configFileKey, "", "Path to a config file whose keys are the flag names")
	fs.String(dbDirKey, "db", "Directory of the leveldb database")
	fs.String(dbTypeKey, leveldbType, "Database type, leveldb or memdb")
	fs.String(httpHostKey, "127.0.0.1", "Address the API listens on")
	fs.Uint(httpPortKey, 9650, "Port the API listens on")
	fs.String(genesisFileKey, "", "Path to the JSON genesis. Empty starts from the empty genesis")
	fs.Uint64(initialHeightKey, 0, "Height of the first block. Zero keeps the genesis value")
	fs.Uint64(blocksPerEpochKey, defaults.BlocksPerEpoch, "Number of blocks in an epoch")
	fs.Uint64(quorumSizeKey, defaults.QuorumSize, "Number of validators protocol upgrade votes count against")
	fs.Uint64(maxBlockBytesKey, defaults.MaxBlockBytes, "Byte budget of the transitions of a block")
	fs.Int(mempoolSizeKey, defaults.MempoolSize, "Maximum number of transitions in the mempool")
	fs.String(logLevelKey, "info", "Log level")
	fs.Duration(blockIntervalKey, 0, "If positive, commits a block of the mempool every interval")
	fs.String(proposerKey, ids.Empty.String(), "Proposer of the blocks committed by the block interval")

	return fs
}

// getViper returns the viper environment for the node binary
func getViper() (*viper.Viper, error) {
	v := viper.New()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	if configFile := v.GetString(configFileKey); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("couldn't read config file %q: %w", configFile, err)
		}
	}
	return v, nil
}

// params are the settings of one node.
type params struct {
	dbDir         string
	dbType        string
	httpAddr      string
	genesis       []byte
	config        vm.Config
	logLevel      string
	blockInterval time.Duration
	proposer      ids.ID
}

func getParams(v *viper.Viper) (*params, error) {
	p := &params{
		dbDir:         v.GetString(dbDirKey),
		dbType:        v.GetString(dbTypeKey),
		httpAddr:      fmt.Sprintf("%s:%d", v.GetString(httpHostKey), v.GetUint(httpPortKey)),
		logLevel:      v.GetString(logLevelKey),
		blockInterval: v.GetDuration(blockIntervalKey),
	}
	switch p.dbType {
	case leveldbType, memdbType:
	default:
		return nil, fmt.Errorf("%w %q", errUnknownDBType, p.dbType)
	}

	p.config = vm.DefaultConfig()
	p.config.BlocksPerEpoch = v.GetUint64(blocksPerEpochKey)
	p.config.QuorumSize = v.GetUint64(quorumSizeKey)
	p.config.MaxBlockBytes = v.GetUint64(maxBlockBytesKey)
	p.config.MempoolSize = v.GetInt(mempoolSizeKey)
	if err := p.config.Verify(); err != nil {
		return nil, err
	}

	proposer, err := ids.FromString(v.GetString(proposerKey))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", proposerKey, err)
	}
	p.proposer = proposer

	p.genesis, err = readGenesis(v.GetString(genesisFileKey), v.GetUint64(initialHeightKey))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// readGenesis loads the genesis file and applies the initial height
// override.
func readGenesis(path string, initialHeight uint64) ([]byte, error) {
	var genesisBytes []byte
	if path != "" {
		var err error
		genesisBytes, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("couldn't read genesis: %w", err)
		}
	}
	if initialHeight == 0 {
		return genesisBytes, nil
	}
	genesis, err := vm.ParseGenesis(genesisBytes)
	if err != nil {
		return nil, err
	}
	genesis.InitialHeight = initialHeight
	return genesis.Bytes()
}
