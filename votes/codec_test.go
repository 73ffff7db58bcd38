// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package votes

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestVoteRoundTrip(t *testing.T) {
	candidate := ids.GenerateTestID()

	cases := []Vote{
		&Backing{
			Attestation:    []byte{0xde, 0xad},
			ValidatorIndex: 3,
			CandidateHash:  candidate,
		},
		&ApprovalCheck{Statement: statementFor(candidate, 3)},
		&DisputePositive{Statement: statementFor(candidate, 3)},
		&DisputeNegative{Statement: statementFor(candidate, 3)},
	}

	for _, vote := range cases {
		raw, err := Bytes(vote)
		require.NoError(t, err)

		parsed, err := Parse(raw)
		require.NoError(t, err)
		require.IsType(t, vote, parsed)
		require.Equal(t, vote, parsed)
		require.Equal(t, vote.Positive(), parsed.Positive())
	}
}

func TestVoteEqual(t *testing.T) {
	candidate := ids.GenerateTestID()

	positive := &DisputePositive{Statement: statementFor(candidate, 3)}
	negative := &DisputeNegative{Statement: statementFor(candidate, 3)}

	require.True(t, Equal(positive, &DisputePositive{Statement: statementFor(candidate, 3)}))
	// Same statement, different variant tag: not equal.
	require.False(t, Equal(positive, negative))

	other := &DisputePositive{Statement: statementFor(candidate, 4)}
	require.False(t, Equal(positive, other))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x01, 0xff})
	require.Error(t, err)
}
