// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/types"
)

var (
	_ Action = &DataContractCreateAction{}
	_ Action = &DataContractUpdateAction{}
)

type DataContractCreateAction struct {
	Contract types.DataContract
}

func NewDataContractCreateAction(contract *types.DataContract) (*DataContractCreateAction, error) {
	owned, err := clone(contract)
	if err != nil {
		return nil, err
	}
	return &DataContractCreateAction{Contract: owned}, nil
}

func (*DataContractCreateAction) Kind() types.TransitionKind { return types.KindDataContractCreate }

func (a *DataContractCreateAction) Operations() []drive.DriveOperation {
	return []drive.DriveOperation{&drive.InsertContract{Contract: a.Contract}}
}

type DataContractUpdateAction struct {
	Contract types.DataContract
}

func NewDataContractUpdateAction(contract *types.DataContract) (*DataContractUpdateAction, error) {
	owned, err := clone(contract)
	if err != nil {
		return nil, err
	}
	return &DataContractUpdateAction{Contract: owned}, nil
}

func (*DataContractUpdateAction) Kind() types.TransitionKind { return types.KindDataContractUpdate }

func (a *DataContractUpdateAction) Operations() []drive.DriveOperation {
	return []drive.DriveOperation{&drive.InsertContract{Contract: a.Contract}}
}
