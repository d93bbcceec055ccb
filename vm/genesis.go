// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

var (
	errZeroInitialHeight  = errors.New("initial height must be positive")
	errDuplicateGenesisID = errors.New("duplicate genesis identifier")
)

// Genesis is the state the chain starts from.
type Genesis struct {
	InitialHeight uint64 `json:"initialHeight"`
	// ProtocolVersion is the version the first epoch runs. Zero selects the
	// latest known version.
	ProtocolVersion   uint32               `json:"protocolVersion"`
	Identities        []types.Identity     `json:"identities"`
	Contracts         []types.DataContract `json:"contracts"`
	ContactContractID ids.ID               `json:"contactContractId"`
}

// ParseGenesis decodes a JSON genesis. Empty input is the empty genesis.
func ParseGenesis(bytes []byte) (*Genesis, error) {
	g := &Genesis{InitialHeight: 1}
	if len(bytes) == 0 {
		return g, nil
	}
	if err := json.Unmarshal(bytes, g); err != nil {
		return nil, fmt.Errorf("cannot parse genesis: %w", err)
	}
	return g, nil
}

// Bytes returns the JSON form ParseGenesis reads.
func (g *Genesis) Bytes() ([]byte, error) {
	return json.Marshal(g)
}

func (g *Genesis) verify(registry version.Provider) error {
	if g.InitialHeight == 0 {
		return errZeroInitialHeight
	}
	if g.ProtocolVersion != 0 && !registry.Contains(g.ProtocolVersion) {
		return fmt.Errorf("%w: genesis protocol version %d", version.ErrUnknownProtocolVersion, g.ProtocolVersion)
	}
	seen := make(map[ids.ID]struct{}, len(g.Identities)+len(g.Contracts))
	for _, identity := range g.Identities {
		if _, ok := seen[identity.ID]; ok {
			return fmt.Errorf("%w: identity %s", errDuplicateGenesisID, identity.ID)
		}
		seen[identity.ID] = struct{}{}
	}
	for _, contract := range g.Contracts {
		if _, ok := seen[contract.ID]; ok {
			return fmt.Errorf("%w: contract %s", errDuplicateGenesisID, contract.ID)
		}
		seen[contract.ID] = struct{}{}
	}
	return nil
}

// operations returns the writes that create the genesis state.
func (g *Genesis) operations() []drive.DriveOperation {
	ops := make([]drive.DriveOperation, 0, len(g.Identities)+len(g.Contracts))
	for _, identity := range g.Identities {
		ops = append(ops, &drive.InsertIdentity{Identity: identity})
	}
	for _, contract := range g.Contracts {
		ops = append(ops, &drive.InsertContract{Contract: contract})
	}
	return ops
}
