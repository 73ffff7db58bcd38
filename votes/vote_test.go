// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package votes

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func statementFor(candidate ids.ID, validator ValidatorIndex) Statement {
	st := Statement{
		CandidateHash:  candidate,
		ValidatorIndex: validator,
	}
	for i := range st.Signature {
		st.Signature[i] = byte(validator) + byte(i)
	}
	return st
}

func TestVotePolarity(t *testing.T) {
	candidate := ids.GenerateTestID()

	cases := []struct {
		name     string
		vote     Vote
		positive bool
	}{
		{
			name: "backing",
			vote: &Backing{
				Attestation:    []byte{1, 2, 3},
				ValidatorIndex: 7,
				CandidateHash:  candidate,
			},
			positive: true,
		},
		{
			name:     "approval check",
			vote:     &ApprovalCheck{Statement: statementFor(candidate, 7)},
			positive: true,
		},
		{
			name:     "dispute positive",
			vote:     &DisputePositive{Statement: statementFor(candidate, 7)},
			positive: true,
		},
		{
			name:     "dispute negative",
			vote:     &DisputeNegative{Statement: statementFor(candidate, 7)},
			positive: false,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.positive, tt.vote.Positive())
			require.Equal(t, ValidatorIndex(7), tt.vote.Validator())
			require.Equal(t, candidate, tt.vote.Candidate())
		})
	}
}

func TestBackedCandidateVotes(t *testing.T) {
	candidate := ids.GenerateTestID()
	bc := &BackedCandidate{
		CandidateHash:    candidate,
		ValidatorIndices: []ValidatorIndex{2, 5, 9},
		ValidityVotes:    [][]byte{{0xaa}, {0xbb}, {0xcc}},
	}

	fragments := bc.Votes()
	require.Len(t, fragments, 3)
	for i, fragment := range fragments {
		require.Equal(t, bc.ValidatorIndices[i], fragment.Validator())
		require.Equal(t, candidate, fragment.Candidate())
		require.True(t, fragment.Positive())
	}
}

func TestBackedCandidateVotesMismatchedLengths(t *testing.T) {
	bc := &BackedCandidate{
		CandidateHash:    ids.GenerateTestID(),
		ValidatorIndices: []ValidatorIndex{2, 5, 9},
		ValidityVotes:    [][]byte{{0xaa}},
	}
	require.Len(t, bc.Votes(), 1)
}
