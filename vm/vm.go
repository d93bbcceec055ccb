// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vm orchestrates blocks: it runs proposed transitions through the
// validation pipeline and the execution engine inside one store layer per
// block, distributes epoch fee pools, moves the protocol version forward
// and commits the block on finalize.
package vm

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/gorilla/rpc/v2"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/execution"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/version"
)

const (
	Name = "transitionvm"

	// Version of this VM.
	Version = "v1.0.0"
)

var (
	// ID is a unique identifier for this VM
	ID = ids.ID{'t', 'r', 'a', 'n', 's', 'i', 't', 'i', 'o', 'n'}

	errNotInitialized = errors.New("vm is not initialized")
)

// VM executes blocks of state transitions.
type VM struct {
	config   Config
	registry version.Provider

	drive   *drive.Drive
	engine  *execution.Engine
	state   State
	mempool *mempool
	metrics *metrics

	// blockLock serializes block execution. At most one executed block waits
	// for finalization at a time.
	blockLock sync.Mutex
	executed  *executedBlock

	// stateLock guards [platform] together with the committed drive state,
	// so readers never see one without the other.
	stateLock sync.RWMutex
	platform  PlatformState
	// commits counts the commits started, including failed ones.
	commits uint64
}

// New returns a VM that resolves protocol versions through [registry].
func New(registry version.Provider) *VM {
	return &VM{registry: registry}
}

// Initialize this vm.
// [db] holds the committed state. If it is empty, the state is created from
// [genesisBytes].
func (vm *VM) Initialize(
	db database.Database,
	genesisBytes []byte,
	config Config,
	registerer prometheus.Registerer,
) error {
	log.Info("Initializing Transition VM", "Version", Version)
	if err := config.Verify(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	vm.config = config
	if vm.registry == nil {
		vm.registry = version.NewDefaultRegistry()
	}

	d, err := drive.New(registerer)
	if err != nil {
		return err
	}
	vm.drive = d
	vm.engine = execution.NewEngine(d)
	vm.state, err = NewState(db, config.BlockCacheSize, registerer)
	if err != nil {
		return err
	}
	vm.mempool = newMempool(config.MempoolSize, config.MempoolMaxTxBytes)
	vm.metrics, err = newMetrics(Name, registerer)
	if err != nil {
		return err
	}

	initialized, err := vm.state.IsInitialized()
	if err != nil {
		return err
	}
	if !initialized {
		if err := vm.initGenesis(genesisBytes); err != nil {
			log.Error("error while initializing genesis", "error", err)
			return err
		}
	}

	platform, err := vm.state.GetPlatformState()
	if err != nil {
		return fmt.Errorf("%w: %v", errNotInitialized, err)
	}
	// a node that does not know the running version must not execute blocks
	if !vm.registry.Contains(platform.CurrentProtocolVersion) {
		return fmt.Errorf("%w: chain runs %d", version.ErrUnknownProtocolVersion, platform.CurrentProtocolVersion)
	}
	vm.platform = *platform
	log.Info("Transition VM initialized",
		"nextHeight", platform.NextHeight(),
		"appHash", platform.AppHash,
		"protocolVersion", platform.CurrentProtocolVersion,
	)
	return nil
}

func (vm *VM) initGenesis(genesisBytes []byte) error {
	genesis, err := ParseGenesis(genesisBytes)
	if err != nil {
		return err
	}
	if err := genesis.verify(vm.registry); err != nil {
		return err
	}
	protocolVersion := genesis.ProtocolVersion
	if protocolVersion == 0 {
		protocolVersion = vm.registry.Latest().ProtocolVersion
	}
	matrix, err := vm.registry.Get(protocolVersion)
	if err != nil {
		return err
	}

	db := vm.state.DriveDB()
	if err := vm.drive.ApplyFree(db, genesis.operations(), &matrix.Fees); err != nil {
		return fmt.Errorf("error while applying genesis: %w", err)
	}
	appHash, err := vm.drive.RootHash(db)
	if err != nil {
		return err
	}
	platform := &PlatformState{
		InitialHeight:            genesis.InitialHeight,
		AppHash:                  appHash,
		CurrentProtocolVersion:   protocolVersion,
		NextEpochProtocolVersion: protocolVersion,
		ContactContractID:        genesis.ContactContractID,
	}
	if err := vm.state.SetPlatformState(platform); err != nil {
		return err
	}
	if err := vm.state.SetInitialized(); err != nil {
		return fmt.Errorf("error while setting db to initialized: %w", err)
	}

	// Flush VM's database to underlying db
	if err := vm.state.Commit(); err != nil {
		log.Error("error while committing db", "error", err)
		return err
	}
	log.Info("genesis applied",
		"identities", len(genesis.Identities),
		"contracts", len(genesis.Contracts),
		"appHash", appHash,
	)
	return nil
}

// Shutdown discards an unfinalized block and closes the state.
func (vm *VM) Shutdown() error {
	vm.blockLock.Lock()
	defer vm.blockLock.Unlock()

	vm.discardExecuted()
	if vm.state == nil {
		return nil
	}
	return vm.state.Close()
}

// CreateHandlers returns a map where:
// Keys: The path extension for this VM's API (empty in this case)
// Values: The handler for the API
func (vm *VM) CreateHandlers() (map[string]http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return map[string]http.Handler{
		"": server,
	}, server.RegisterService(&Service{vm: vm}, Name)
}

// PlatformState returns a copy of the committed platform state.
func (vm *VM) PlatformState() PlatformState {
	vm.stateLock.RLock()
	defer vm.stateLock.RUnlock()

	return vm.platform
}

// PendingTransactions returns mempool transitions up to [maxBytes] for the
// next proposal.
func (vm *VM) PendingTransactions(maxBytes uint64) [][]byte {
	return vm.mempool.Pending(maxBytes)
}

// DropRemoved evicts the transitions a proposal removed from the mempool.
// Committed transitions are evicted by FinalizeBlock.
func (vm *VM) DropRemoved(records []TxRecord) {
	var hashes []ids.ID
	for _, record := range records {
		if record.Action == TxRemoved {
			hashes = append(hashes, transitions.HashBytes(record.Tx))
		}
	}
	if len(hashes) == 0 {
		return
	}
	vm.mempool.Remove(hashes)
	vm.metrics.mempoolSize.Set(float64(vm.mempool.Len()))
}

// readCommitted runs [f] against the committed drive state.
func (vm *VM) readCommitted(f func(db database.Database, platform *PlatformState) error) error {
	vm.stateLock.RLock()
	defer vm.stateLock.RUnlock()

	return f(vm.state.DriveDB(), &vm.platform)
}
