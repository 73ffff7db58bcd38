// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state implements the persistent side of the dispute votes database:
// the on-disk key schema, the transactional vote store, the supermajority
// evaluation and session-based pruning.
//
// Storage layout:
//
//	vote/prune/waterlevel                                  pruning watermark
//	vote/s_{session}/c_{candidate}/v_{validator}           full vote payload
//	vote/s_{session}/v_{validator}/c_{candidate}           presence marker
//
// Both per-session layouts share the "vote/s_{session}/" prefix so an entire
// session, both indices included, is removed by one prefix sweep.
package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/luxfi/ids"

	"github.com/luxfi/votesdb/votes"
)

// watermarkKey tracks the session index up to which pruning has completed.
// It lives outside every session prefix so pruning a session never touches it.
var watermarkKey = []byte("vote/prune/waterlevel")

// votesRoot is the common prefix of all per-session keys. The watermark key
// deliberately does not match it.
const votesRoot = "vote/s_"

// sessionPrefix returns the common prefix of every key belonging to the given
// session. The trailing slash keeps prefixes of distinct sessions from
// overlapping: without it "vote/s_5" would also match "vote/s_50/...".
func sessionPrefix(session votes.SessionIndex) []byte {
	return []byte(fmt.Sprintf("%s%d/", votesRoot, session))
}

// candidateKey is the candidate-major key holding the full vote payload.
// "Did validator V vote on candidate C" is a point lookup on this key.
func candidateKey(session votes.SessionIndex, candidate ids.ID, validator votes.ValidatorIndex) []byte {
	return []byte(fmt.Sprintf("%s%d/c_%s/v_%d", votesRoot, session, candidate, validator))
}

// candidatePrefix is the common prefix of all candidate-major keys for one
// candidate; scanning it enumerates every vote stored for the candidate.
func candidatePrefix(session votes.SessionIndex, candidate ids.ID) []byte {
	return []byte(fmt.Sprintf("%s%d/c_%s/", votesRoot, session, candidate))
}

// validatorKey is the validator-major key holding a presence marker.
func validatorKey(session votes.SessionIndex, validator votes.ValidatorIndex, candidate ids.ID) []byte {
	return []byte(fmt.Sprintf("%s%d/v_%d/c_%s", votesRoot, session, validator, candidate))
}

// parseValidatorKey decodes a validator-major key back into its triple. The
// second return value is false for keys of any other shape, candidate-major
// keys included.
func parseValidatorKey(key []byte) (votes.SessionIndex, votes.ValidatorIndex, ids.ID, bool) {
	s := string(key)
	if !strings.HasPrefix(s, votesRoot) {
		return 0, 0, ids.Empty, false
	}
	parts := strings.Split(s[len(votesRoot):], "/")
	if len(parts) != 3 {
		return 0, 0, ids.Empty, false
	}
	session, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, ids.Empty, false
	}
	if !strings.HasPrefix(parts[1], "v_") || !strings.HasPrefix(parts[2], "c_") {
		return 0, 0, ids.Empty, false
	}
	validator, err := strconv.ParseUint(parts[1][2:], 10, 32)
	if err != nil {
		return 0, 0, ids.Empty, false
	}
	candidate, err := ids.FromString(parts[2][2:])
	if err != nil {
		return 0, 0, ids.Empty, false
	}
	return votes.SessionIndex(session), votes.ValidatorIndex(validator), candidate, true
}
