// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/transitionvm/types"
)

var _ DriveOperation = &MarkAssetLockUsed{}

// IsAssetLockUsed reports whether [outpoint] has already funded an identity.
func (d *Drive) IsAssetLockUsed(db database.Database, outpoint types.Outpoint) (bool, error) {
	return subtreeDB(SubtreeAssetLocks, db).Has(outpoint.Bytes())
}

// MarkAssetLockUsed consumes an outpoint. The stored value is the number of
// credits it was worth.
type MarkAssetLockUsed struct {
	Outpoint types.Outpoint
	Credits  uint64
}

func (o *MarkAssetLockUsed) lower(c *opContext) error {
	return c.putUint64(SubtreeAssetLocks, o.Outpoint.Bytes(), o.Credits)
}
