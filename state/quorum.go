// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"fmt"

	"github.com/luxfi/votesdb/votes"
)

// Threshold is the supermajority fraction. A side reaches quorum when its
// voter count is strictly greater than Numerator/Denominator of the
// validator-set size.
type Threshold struct {
	Numerator   uint64
	Denominator uint64
}

// DefaultThreshold is the canonical two-thirds supermajority.
var DefaultThreshold = Threshold{Numerator: 2, Denominator: 3}

// Valid reports whether the threshold is a usable fraction.
func (t Threshold) Valid() error {
	if t.Denominator == 0 {
		return fmt.Errorf("threshold denominator must be non-zero")
	}
	if t.Numerator >= t.Denominator {
		return fmt.Errorf("threshold %d/%d is never reachable", t.Numerator, t.Denominator)
	}
	return nil
}

// Met reports whether count out of total voters strictly exceeds the
// threshold fraction. Integer arithmetic only; no rounding ambiguity.
func (t Threshold) Met(count, total int) bool {
	if count < 0 || total <= 0 {
		return false
	}
	return uint64(count)*t.Denominator > uint64(total)*t.Numerator
}

// CheckQuorum evaluates a candidate's tally against the validator-set size.
// It is a pure function of its arguments; the caller maintains the tally.
func CheckQuorum(positive, negative, validatorCount int, threshold Threshold) votes.Quorum {
	switch {
	case threshold.Met(positive, validatorCount):
		return votes.QuorumValid
	case threshold.Met(negative, validatorCount):
		return votes.QuorumInvalid
	default:
		return votes.QuorumNone
	}
}
