// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package votes defines the vote model of the dispute votes database: the
// tagged union of votes a validator can cast on a candidate block, and the
// events derived from storing them.
package votes

import (
	"github.com/luxfi/ids"
)

// SessionIndex identifies a consensus session. Sessions are totally ordered
// and monotonically increasing over the lifetime of the system.
type SessionIndex uint32

// ValidatorIndex identifies a validator's seat within a session.
type ValidatorIndex uint32

// SignatureLen is the length of a statement signature in bytes.
const SignatureLen = 64

// Statement is a signed statement about a candidate, carried by approval and
// dispute votes.
type Statement struct {
	CandidateHash  ids.ID             `serialize:"true" json:"candidateHash"`
	ValidatorIndex ValidatorIndex     `serialize:"true" json:"validatorIndex"`
	Signature      [SignatureLen]byte `serialize:"true" json:"signature"`
}

// Vote is a single vote cast by a validator on a candidate.
//
// Exactly one vote may be durably stored per (session, validator, candidate);
// a differing second vote for the same triple is a double vote.
type Vote interface {
	// Validator returns the index of the validator that cast the vote.
	Validator() ValidatorIndex
	// Candidate returns the hash of the candidate the vote refers to.
	Candidate() ids.ID
	// Positive reports whether the vote supports the validity of the
	// candidate.
	Positive() bool
}

// Backing is a fragment of a backed candidate: one validator's validity
// attestation cast while seconding the candidate. Always positive.
type Backing struct {
	Attestation    []byte         `serialize:"true" json:"attestation"`
	ValidatorIndex ValidatorIndex `serialize:"true" json:"validatorIndex"`
	CandidateHash  ids.ID         `serialize:"true" json:"candidateHash"`
}

func (b *Backing) Validator() ValidatorIndex { return b.ValidatorIndex }
func (b *Backing) Candidate() ids.ID         { return b.CandidateHash }
func (*Backing) Positive() bool              { return true }

// ApprovalCheck is a vote cast during secondary approval checking. Always
// positive.
type ApprovalCheck struct {
	Statement Statement `serialize:"true" json:"statement"`
}

func (a *ApprovalCheck) Validator() ValidatorIndex { return a.Statement.ValidatorIndex }
func (a *ApprovalCheck) Candidate() ids.ID         { return a.Statement.CandidateHash }
func (*ApprovalCheck) Positive() bool              { return true }

// DisputePositive is an explicit vote for the validity of a candidate, cast
// during an active dispute.
type DisputePositive struct {
	Statement Statement `serialize:"true" json:"statement"`
}

func (d *DisputePositive) Validator() ValidatorIndex { return d.Statement.ValidatorIndex }
func (d *DisputePositive) Candidate() ids.ID         { return d.Statement.CandidateHash }
func (*DisputePositive) Positive() bool              { return true }

// DisputeNegative is an explicit vote against the validity of a candidate,
// cast during an active dispute.
type DisputeNegative struct {
	Statement Statement `serialize:"true" json:"statement"`
}

func (d *DisputeNegative) Validator() ValidatorIndex { return d.Statement.ValidatorIndex }
func (d *DisputeNegative) Candidate() ids.ID         { return d.Statement.CandidateHash }
func (*DisputeNegative) Positive() bool              { return false }

// BackedCandidate is a candidate together with the validity attestations of
// the validators that backed it.
type BackedCandidate struct {
	CandidateHash    ids.ID           `serialize:"true" json:"candidateHash"`
	ValidatorIndices []ValidatorIndex `serialize:"true" json:"validatorIndices"`
	ValidityVotes    [][]byte         `serialize:"true" json:"validityVotes"`
}

// Votes extracts one Backing vote per attestation from the backed candidate.
// Indices without a matching attestation are skipped.
func (bc *BackedCandidate) Votes() []Vote {
	n := len(bc.ValidatorIndices)
	if len(bc.ValidityVotes) < n {
		n = len(bc.ValidityVotes)
	}
	fragments := make([]Vote, 0, n)
	for i := 0; i < n; i++ {
		fragments = append(fragments, &Backing{
			Attestation:    bc.ValidityVotes[i],
			ValidatorIndex: bc.ValidatorIndices[i],
			CandidateHash:  bc.CandidateHash,
		})
	}
	return fragments
}
