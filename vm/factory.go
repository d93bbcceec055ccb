// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/transitionvm/version"
)

// Factory builds VMs that share one set of protocol versions.
type Factory struct {
	// Registry defaults to every version this node knows.
	Registry version.Provider
}

// New returns an uninitialized VM.
func (f *Factory) New() *VM {
	registry := f.Registry
	if registry == nil {
		registry = version.NewDefaultRegistry()
	}
	return New(registry)
}
