// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/transitionvm/types"
)

func TestDefaultRegistry(t *testing.T) {
	require := require.New(t)

	r := NewDefaultRegistry()
	require.Equal(uint32(1), r.First().ProtocolVersion)
	require.Equal(uint32(2), r.Latest().ProtocolVersion)

	for v := r.First().ProtocolVersion; v <= r.Latest().ProtocolVersion; v++ {
		m, err := r.Get(v)
		require.NoError(err)
		require.Equal(v, m.ProtocolVersion)
	}

	_, err := r.Get(0)
	require.ErrorIs(err, ErrUnknownProtocolVersion)
	_, err = r.Get(3)
	require.ErrorIs(err, ErrUnknownProtocolVersion)
	require.False(r.Contains(3))
}

func TestEveryKindRegisteredInEveryVersion(t *testing.T) {
	require := require.New(t)

	r := NewDefaultRegistry()
	for v := r.First().ProtocolVersion; v <= r.Latest().ProtocolVersion; v++ {
		m, err := r.Get(v)
		require.NoError(err)
		for _, kind := range types.AllTransitionKinds {
			versions, err := m.Transition(kind)
			require.NoError(err, "kind %s at version %d", kind, v)
			if versions.Signature == SignedByIdentity {
				require.Positive(versions.AllowedPurposes.Cardinality(), kind.String())
				require.Positive(versions.AllowedSecurityLevels.Cardinality(), kind.String())
			}
		}
	}
}

func TestNewRegistryRejectsGaps(t *testing.T) {
	require := require.New(t)

	_, err := NewRegistry()
	require.ErrorIs(err, errNoMatrices)

	v3 := V2()
	v3.ProtocolVersion = 3
	_, err = NewRegistry(V1(), v3)
	require.ErrorIs(err, errNonContiguous)

	v0 := V1()
	v0.ProtocolVersion = 0
	_, err = NewRegistry(v0)
	require.ErrorIs(err, errZeroProtocolValue)
}

func TestMatricesAreIndependent(t *testing.T) {
	require := require.New(t)

	v1, v2 := V1(), V2()
	v2.Transitions[types.KindIdentityUpdate].AllowedPurposes.Add(types.PurposeOwner)
	require.False(v1.Transitions[types.KindIdentityUpdate].AllowedPurposes.Contains(types.PurposeOwner))
	require.Equal(FeatureVersion(0), v1.Execution.CheckTx)
	require.Equal(FeatureVersion(1), v2.Execution.CheckTx)
}

func TestUnknownVersionMismatch(t *testing.T) {
	require := require.New(t)

	err := Mismatch("validate_fees", 7, 0)
	require.ErrorIs(err, ErrUnknownVersionMismatch)

	var mismatch *UnknownVersionMismatchError
	require.True(errors.As(err, &mismatch))
	require.Equal(FeatureVersion(7), mismatch.Received)
	require.Equal([]FeatureVersion{0}, mismatch.KnownVersions)

	m := V1()
	delete(m.Transitions, types.KindMasternodeVote)
	_, err = m.Transition(types.KindMasternodeVote)
	require.ErrorIs(err, ErrUnknownVersionMismatch)
}
