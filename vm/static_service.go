// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/gorilla/rpc/v2"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/version"
)

// StaticService serves the calls that need no chain state.
type StaticService struct{ registry version.Provider }

// CreateStaticHandlers returns the handlers of the static API.
func CreateStaticHandlers(registry version.Provider) (map[string]http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return map[string]http.Handler{
		"": server,
	}, server.RegisterService(&StaticService{registry: registry}, Name)
}

// BuildGenesisArgs are the arguments for BuildGenesis
type BuildGenesisArgs struct {
	Genesis  Genesis             `json:"genesis"`
	Encoding formatting.Encoding `json:"encoding"`
}

// BuildGenesisReply is the reply from BuildGenesis
type BuildGenesisReply struct {
	Bytes    string              `json:"bytes"`
	Encoding formatting.Encoding `json:"encoding"`
}

// BuildGenesis checks a genesis and returns the bytes a chain is created
// with.
func (ss *StaticService) BuildGenesis(_ *http.Request, args *BuildGenesisArgs, reply *BuildGenesisReply) error {
	if args.Genesis.InitialHeight == 0 {
		args.Genesis.InitialHeight = 1
	}
	if err := args.Genesis.verify(ss.registry); err != nil {
		return err
	}
	genesisBytes, err := args.Genesis.Bytes()
	if err != nil {
		return err
	}
	bytes, err := formatting.EncodeWithChecksum(args.Encoding, genesisBytes)
	if err != nil {
		return fmt.Errorf("couldn't encode genesis as string: %w", err)
	}
	reply.Bytes = bytes
	reply.Encoding = args.Encoding
	return nil
}

// DecodeStateTransitionReply is the reply from DecodeStateTransition
type DecodeStateTransitionReply struct {
	TxHash           ids.ID                      `json:"txHash"`
	Kind             string                      `json:"kind"`
	StructureVersion cjson.Uint32                `json:"structureVersion"`
	Size             cjson.Uint32                `json:"size"`
	Transition       transitions.StateTransition `json:"transition"`
}

// DecodeStateTransition parses a hex encoded state transition without
// validating it.
func (ss *StaticService) DecodeStateTransition(_ *http.Request, args *StateTransitionArgs, reply *DecodeStateTransitionReply) error {
	raw, err := args.decode()
	if err != nil {
		return err
	}
	tx, err := transitions.Parse(raw)
	if err != nil {
		return err
	}
	reply.TxHash = transitions.HashBytes(raw)
	reply.Kind = tx.Kind().String()
	reply.StructureVersion = cjson.Uint32(tx.StructureVersion())
	reply.Size = cjson.Uint32(len(raw))
	reply.Transition = tx
	return nil
}
