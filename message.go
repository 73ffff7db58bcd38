// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package votesdb

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/votesdb/state"
	"github.com/luxfi/votesdb/votes"
)

// MessageType identifies the message kind
type MessageType uint32

const (
	// StoreVoteMsg asks the service to record a batch of votes.
	StoreVoteMsg MessageType = iota
	// QueryMsg asks which sessions and candidates a validator voted on.
	QueryMsg
	// SessionChangeMsg signals that a new session started.
	SessionChangeMsg
	// ActiveLeavesMsg signals activated and deactivated chain heads.
	ActiveLeavesMsg
	// BlockFinalizedMsg signals a finalized block.
	BlockFinalizedMsg
	// ShutdownMsg asks the service to stop.
	ShutdownMsg
)

// String returns the string representation of the message type
func (m MessageType) String() string {
	switch m {
	case StoreVoteMsg:
		return "StoreVote"
	case QueryMsg:
		return "Query"
	case SessionChangeMsg:
		return "SessionChange"
	case ActiveLeavesMsg:
		return "ActiveLeaves"
	case BlockFinalizedMsg:
		return "BlockFinalized"
	case ShutdownMsg:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// StoreVoteResult is the reply to a StoreVote request.
type StoreVoteResult struct {
	Events []votes.Event
	Err    error
}

// QueryResult is the reply to a Query request.
type QueryResult struct {
	Votes []state.SessionCandidate
	Err   error
}

// Message is one inbound item for the service loop: a request carrying a
// response channel, or a lifecycle signal.
type Message struct {
	Type MessageType

	// StoreVote request
	Session votes.SessionIndex
	Votes   []votes.Vote
	StoreCh chan<- StoreVoteResult

	// Query request
	Validator votes.ValidatorIndex
	QueryCh   chan<- QueryResult

	// ActiveLeaves signal
	Activated   []ids.ID
	Deactivated []ids.ID

	// BlockFinalized signal
	Finalized ids.ID
}
