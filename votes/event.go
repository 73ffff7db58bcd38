// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package votes

import "github.com/luxfi/ids"

// Quorum is the outcome of evaluating a candidate's vote tally against the
// supermajority threshold.
type Quorum uint8

const (
	// QuorumNone means neither side has reached a supermajority.
	QuorumNone Quorum = iota
	// QuorumValid means the positive side reached a supermajority.
	QuorumValid
	// QuorumInvalid means the negative side reached a supermajority.
	QuorumInvalid
)

func (q Quorum) String() string {
	switch q {
	case QuorumNone:
		return "None"
	case QuorumValid:
		return "Valid"
	case QuorumInvalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// EventKind identifies the outcome of storing a single vote.
type EventKind uint8

const (
	// Stored indicates a new, non-conflicting vote was recorded. A replay of
	// an identical vote also reports Stored without touching storage.
	Stored EventKind = iota
	// DisputeDetected indicates the vote is the first to give its candidate
	// both a positive and a negative vote.
	DisputeDetected
	// DoubleVote indicates a validator cast a second, differing vote for the
	// same candidate and session. The stored vote is kept unchanged.
	DoubleVote
	// SupermajorityReached indicates the vote pushed one side of the tally
	// over the supermajority threshold.
	SupermajorityReached
	// ObsoleteVoteDiscarded indicates the vote was rejected because its
	// session is already pruned.
	ObsoleteVoteDiscarded
)

func (k EventKind) String() string {
	switch k {
	case Stored:
		return "Stored"
	case DisputeDetected:
		return "DisputeDetected"
	case DoubleVote:
		return "DoubleVote"
	case SupermajorityReached:
		return "SupermajorityReached"
	case ObsoleteVoteDiscarded:
		return "ObsoleteVoteDiscarded"
	default:
		return "Unknown"
	}
}

// Event is the outcome of one stored vote. Storing a batch yields one event
// per input vote, in input order.
type Event struct {
	Kind      EventKind
	Candidate ids.ID
	Validator ValidatorIndex

	// Votes carries the vote pair for DoubleVote (stored first, incoming
	// second) and DisputeDetected (opposing vote first, incoming second).
	Votes []Vote

	// Quorum is set for SupermajorityReached.
	Quorum Quorum
}
