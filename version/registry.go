// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

import (
	"fmt"
)

var _ Provider = &Registry{}

// Provider is the read side of the registry handed to every component that
// needs version dependent behavior.
type Provider interface {
	Get(protocolVersion uint32) (*FeatureMatrix, error)
	Latest() *FeatureMatrix
	First() *FeatureMatrix
	Contains(protocolVersion uint32) bool
}

// Registry maps protocol versions to their feature matrices. It is built once
// at startup and only read afterwards.
type Registry struct {
	matrices []*FeatureMatrix
}

// NewRegistry returns a registry of [matrices]. Protocol versions must start
// above zero and increase by exactly one.
func NewRegistry(matrices ...*FeatureMatrix) (*Registry, error) {
	if len(matrices) == 0 {
		return nil, errNoMatrices
	}
	if matrices[0].ProtocolVersion == 0 {
		return nil, errZeroProtocolValue
	}
	for i := 1; i < len(matrices); i++ {
		if matrices[i].ProtocolVersion != matrices[i-1].ProtocolVersion+1 {
			return nil, fmt.Errorf("%w: %d follows %d",
				errNonContiguous, matrices[i].ProtocolVersion, matrices[i-1].ProtocolVersion)
		}
	}
	copied := make([]*FeatureMatrix, len(matrices))
	copy(copied, matrices)
	return &Registry{matrices: copied}, nil
}

// NewDefaultRegistry returns the registry of every published protocol version.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(V1(), V2())
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the matrix of [protocolVersion].
func (r *Registry) Get(protocolVersion uint32) (*FeatureMatrix, error) {
	if !r.Contains(protocolVersion) {
		return nil, fmt.Errorf("%w: %d (known %d..%d)",
			ErrUnknownProtocolVersion, protocolVersion, r.First().ProtocolVersion, r.Latest().ProtocolVersion)
	}
	return r.matrices[protocolVersion-r.matrices[0].ProtocolVersion], nil
}

func (r *Registry) Latest() *FeatureMatrix { return r.matrices[len(r.matrices)-1] }

func (r *Registry) First() *FeatureMatrix { return r.matrices[0] }

func (r *Registry) Contains(protocolVersion uint32) bool {
	first := r.matrices[0].ProtocolVersion
	return protocolVersion >= first && protocolVersion <= r.Latest().ProtocolVersion
}
