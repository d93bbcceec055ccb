// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProtocolVersion is returned for a protocol version outside
	// the published range.
	ErrUnknownProtocolVersion = errors.New("unknown protocol version")
	// ErrUnknownVersionMismatch matches every *UnknownVersionMismatchError
	// through errors.Is.
	ErrUnknownVersionMismatch = errors.New("unknown version mismatch")

	errNoMatrices        = errors.New("registry needs at least one feature matrix")
	errNonContiguous     = errors.New("protocol versions must be contiguous and ascending")
	errZeroProtocolValue = errors.New("protocol version 0 is reserved")
)

// UnknownVersionMismatchError is returned when a method is dispatched with a
// method version this code does not implement. It is always fatal for the
// operation that hit it.
type UnknownVersionMismatchError struct {
	Method        string
	KnownVersions []FeatureVersion
	Received      FeatureVersion
}

func (e *UnknownVersionMismatchError) Error() string {
	return fmt.Sprintf("%s: method %s received version %d, known versions %v",
		ErrUnknownVersionMismatch, e.Method, e.Received, e.KnownVersions)
}

func (e *UnknownVersionMismatchError) Is(target error) bool {
	return target == ErrUnknownVersionMismatch
}

// Mismatch builds the error for [method] called with [received].
func Mismatch(method string, received FeatureVersion, known ...FeatureVersion) error {
	return &UnknownVersionMismatchError{
		Method:        method,
		KnownVersions: known,
		Received:      received,
	}
}
