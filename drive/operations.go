// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"encoding/binary"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

// OpType is the kind of a low level operation.
type OpType uint8

const (
	OpPut OpType = iota
	OpDelete
)

// Operation is a single low level mutation of one key.
type Operation struct {
	Type    OpType
	Subtree Subtree
	Key     []byte
	Value   []byte
}

// DriveOperation is a high level mutation. It is lowered against the current
// state into Operations.
type DriveOperation interface {
	lower(c *opContext) error
}

type opContext struct {
	drive    *Drive
	db       database.Database
	fees     *version.FeeVersion
	estimate bool

	fee     types.FeeResult
	applied []Operation
}

func (c *opContext) addStorage(bytes uint64) error {
	credits, err := types.MulCredits(bytes, c.fees.StorageDiskUsageCreditPerByte)
	if err != nil {
		return err
	}
	return c.fee.Add(types.FeeResult{StorageFee: credits})
}

func (c *opContext) addProcessing(bytes uint64, perByte uint64) error {
	credits, err := types.MulCredits(bytes, perByte)
	if err != nil {
		return err
	}
	credits, err = types.AddCredits(credits, c.fees.StorageSeekCost)
	if err != nil {
		return err
	}
	return c.fee.AddProcessing(credits)
}

// get reads [key]. A missing key returns nil without error.
func (c *opContext) get(subtree Subtree, key []byte) ([]byte, error) {
	value, err := subtreeDB(subtree, c.db).Get(key)
	switch {
	case err == database.ErrNotFound:
		return nil, c.addProcessing(0, c.fees.StorageLoadCreditPerByte)
	case err != nil:
		return nil, err
	}
	return value, c.addProcessing(uint64(len(value)), c.fees.StorageLoadCreditPerByte)
}

// put writes [value]. Estimates charge storage for every byte written;
// applying charges only for bytes the key grows by, so the applied fee never
// exceeds the estimate.
func (c *opContext) put(subtree Subtree, key []byte, value []byte) error {
	db := subtreeDB(subtree, c.db)
	size := uint64(len(key) + len(value))
	stored := size
	if !c.estimate {
		old, err := db.Get(key)
		switch {
		case err == database.ErrNotFound:
		case err != nil:
			return err
		default:
			stored = 0
			if len(value) > len(old) {
				stored = uint64(len(value) - len(old))
			}
		}
	}
	if err := c.addStorage(stored); err != nil {
		return err
	}
	if err := c.addProcessing(size, c.fees.StorageProcessingCreditPerByte); err != nil {
		return err
	}
	if err := db.Put(key, value); err != nil {
		return err
	}
	c.applied = append(c.applied, Operation{Type: OpPut, Subtree: subtree, Key: key, Value: value})
	return nil
}

func (c *opContext) delete(subtree Subtree, key []byte) error {
	if err := c.addProcessing(uint64(len(key)), c.fees.StorageProcessingCreditPerByte); err != nil {
		return err
	}
	if err := subtreeDB(subtree, c.db).Delete(key); err != nil {
		return err
	}
	c.applied = append(c.applied, Operation{Type: OpDelete, Subtree: subtree, Key: key})
	return nil
}

func (c *opContext) getUint64(subtree Subtree, key []byte) (uint64, bool, error) {
	b, err := c.get(subtree, key)
	if err != nil || b == nil {
		return 0, false, err
	}
	v, err := parseUint64(b)
	return v, true, err
}

func (c *opContext) putUint64(subtree Subtree, key []byte, v uint64) error {
	return c.put(subtree, key, uint64Bytes(v))
}

func (c *opContext) run(ops []DriveOperation) error {
	for i, op := range ops {
		if err := op.lower(c); err != nil {
			return fmt.Errorf("operation %d (%T): %w", i, op, err)
		}
	}
	return nil
}

// Estimate lowers [ops] against a scratch layer over [db] and returns the
// worst case fee. [db] is never modified.
func (d *Drive) Estimate(db database.Database, ops []DriveOperation, fees *version.FeeVersion) (types.FeeResult, error) {
	scratch := versiondb.New(db)
	defer scratch.Abort()

	c := &opContext{drive: d, db: scratch, fees: fees, estimate: true}
	if err := c.run(ops); err != nil {
		return types.FeeResult{}, err
	}
	return c.fee, nil
}

// Apply lowers and writes [ops] into [db] and returns the exact fee. On error
// [db] may hold a partial write and the caller must discard it.
func (d *Drive) Apply(db database.Database, ops []DriveOperation, fees *version.FeeVersion) (types.FeeResult, []Operation, error) {
	c := &opContext{drive: d, db: db, fees: fees}
	if err := c.run(ops); err != nil {
		return types.FeeResult{}, nil, err
	}
	return c.fee, c.applied, nil
}

// ApplyFree writes [ops] of system operations that nobody is charged for.
func (d *Drive) ApplyFree(db database.Database, ops []DriveOperation, fees *version.FeeVersion) error {
	_, _, err := d.Apply(db, ops, fees)
	return err
}

func parseUint64(b []byte) (uint64, error) {
	if len(b) != wrappers.LongLen {
		return 0, fmt.Errorf("%w: integer of %d bytes", ErrCorruptedState, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
