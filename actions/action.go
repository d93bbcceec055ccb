// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package actions holds validated transitions in the form the execution
// engine applies. An action owns all of its data and cannot fail for
// protocol reasons.
package actions

import (
	"github.com/jinzhu/copier"

	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/types"
)

// Action is a validated transition.
type Action interface {
	Kind() types.TransitionKind
	// Operations are the writes the action performs, excluding fee payment.
	Operations() []drive.DriveOperation
}

// clone deep copies [src] so an action never aliases transition memory.
func clone[T any](src *T) (T, error) {
	var dst T
	err := copier.CopyWithOption(&dst, src, copier.Option{DeepCopy: true})
	return dst, err
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
