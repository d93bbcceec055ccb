// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"fmt"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

// ErrOverflow is returned by every credit computation that would wrap.
var ErrOverflow = errors.New("credit arithmetic overflow")

// AddCredits returns a+b or ErrOverflow.
func AddCredits(a, b uint64) (uint64, error) {
	sum, err := safemath.Add64(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// SubCredits returns a-b or ErrOverflow when b > a.
func SubCredits(a, b uint64) (uint64, error) {
	diff, err := safemath.Sub64(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d - %d", ErrOverflow, a, b)
	}
	return diff, nil
}

// MulCredits returns a*b or ErrOverflow.
func MulCredits(a, b uint64) (uint64, error) {
	product, err := safemath.Mul64(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, a, b)
	}
	return product, nil
}

// FeeResult is the cost of applying a set of operations.
type FeeResult struct {
	StorageFee    uint64 `serialize:"true" json:"storageFee"`
	ProcessingFee uint64 `serialize:"true" json:"processingFee"`
}

// Total is the sum of the storage and processing fees.
func (f FeeResult) Total() (uint64, error) {
	return AddCredits(f.StorageFee, f.ProcessingFee)
}

// Add accumulates [o] into [f]. [f] is left untouched on overflow.
func (f *FeeResult) Add(o FeeResult) error {
	storage, err := AddCredits(f.StorageFee, o.StorageFee)
	if err != nil {
		return err
	}
	processing, err := AddCredits(f.ProcessingFee, o.ProcessingFee)
	if err != nil {
		return err
	}
	f.StorageFee = storage
	f.ProcessingFee = processing
	return nil
}

// AddProcessing accumulates a processing-only cost.
func (f *FeeResult) AddProcessing(credits uint64) error {
	return f.Add(FeeResult{ProcessingFee: credits})
}
