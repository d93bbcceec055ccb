// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"encoding/binary"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

var (
	_ DriveOperation = &RecordProposedVersion{}
	_ DriveOperation = &ClearVersionVotes{}
)

// FetchVersionCounts returns how many proposers currently propose each
// protocol version.
func (d *Drive) FetchVersionCounts(db database.Database) (map[uint32]uint64, error) {
	it := subtreeDB(SubtreeVersions, db).NewIteratorWithPrefix([]byte{versionCounterPrefix})
	defer it.Release()

	counts := make(map[uint32]uint64)
	for it.Next() {
		key := it.Key()
		if len(key) != 1+wrappers.IntLen {
			return nil, fmt.Errorf("%w: version counter key of %d bytes", ErrCorruptedState, len(key))
		}
		count, err := parseUint64(it.Value())
		if err != nil {
			return nil, err
		}
		counts[binary.BigEndian.Uint32(key[1:])] = count
	}
	return counts, it.Error()
}

// RecordProposedVersion stores the version a proposer signals and moves its
// vote between the counters.
type RecordProposedVersion struct {
	ProTxHash ids.ID
	Version   uint32
}

func (o *RecordProposedVersion) lower(c *opContext) error {
	proposedKey := versionProposedKey(o.ProTxHash)
	previous, err := c.get(SubtreeVersions, proposedKey)
	if err != nil {
		return err
	}
	if previous != nil {
		if len(previous) != wrappers.IntLen {
			return fmt.Errorf("%w: proposed version of %d bytes", ErrCorruptedState, len(previous))
		}
		old := binary.BigEndian.Uint32(previous)
		if old == o.Version {
			return nil
		}
		oldKey := versionCounterKey(old)
		count, _, err := c.getUint64(SubtreeVersions, oldKey)
		if err != nil {
			return err
		}
		if count <= 1 {
			err = c.delete(SubtreeVersions, oldKey)
		} else {
			err = c.putUint64(SubtreeVersions, oldKey, count-1)
		}
		if err != nil {
			return err
		}
	}
	newKey := versionCounterKey(o.Version)
	count, _, err := c.getUint64(SubtreeVersions, newKey)
	if err != nil {
		return err
	}
	if err := c.putUint64(SubtreeVersions, newKey, count+1); err != nil {
		return err
	}
	return c.put(SubtreeVersions, proposedKey, uint32Bytes(o.Version))
}

// ClearVersionVotes drops every proposed version and counter.
type ClearVersionVotes struct{}

func (o *ClearVersionVotes) lower(c *opContext) error {
	keys, err := collectKeys(c.db, SubtreeVersions, nil)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.delete(SubtreeVersions, key); err != nil {
			return err
		}
	}
	return nil
}
