// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package votesdb is the persistent vote ledger of a consensus participant.
// It records backing, approval and dispute votes cast by validators on
// candidate blocks, detects double votes, reports supermajorities and prunes
// sessions old enough to be irrelevant to active disputes.
//
// The service processes one inbound message at a time; every store and prune
// call runs to completion before the next message is read, so the single loop
// is the sole writer of the underlying database.
package votesdb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/votesdb/config"
	"github.com/luxfi/votesdb/metrics"
	"github.com/luxfi/votesdb/state"
	"github.com/luxfi/votesdb/votes"
)

// ErrShuttingDown is returned for requests submitted after shutdown began.
var ErrShuttingDown = errors.New("votes database is shutting down")

// ValidatorSets resolves the validator-set size of a session. Supplied by the
// session-tracking collaborator.
type ValidatorSets = state.ValidatorSets

// VotesDB is the votes database service: a request loop in front of the vote
// store and pruning engine. It owns the store handle; nothing else writes to
// the database.
type VotesDB struct {
	log     log.Logger
	cfg     config.Config
	store   *state.Store
	metrics *metrics.Metrics

	msgs chan Message

	mu     sync.Mutex
	state  State
	closed chan struct{}

	// activeLeaves tracks the chain heads we were asked to work on.
	activeLeaves map[ids.ID]struct{}
}

// Parameters bundles the collaborators of a VotesDB.
type Parameters struct {
	// DB is the backing key-value database. Required. Provisioning the
	// database file is the caller's concern.
	DB database.Database

	// Validators resolves validator-set sizes. Required.
	Validators ValidatorSets

	Config     config.Config
	Log        log.Logger
	Registerer metric.Registerer

	// Namespace prefixes metric names. Defaults to "votesdb".
	Namespace string
}

// New creates a votes database service on top of the given database handle.
func New(params Parameters) (*VotesDB, error) {
	if params.Log == nil {
		params.Log = log.NoLog{}
	}
	if params.Namespace == "" {
		params.Namespace = "votesdb"
	}
	if params.Config == (config.Config{}) {
		params.Config = config.Default()
	}
	if err := params.Config.Validate(); err != nil {
		return nil, err
	}

	m, err := metrics.New(params.Namespace, params.Registerer)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	store, err := state.NewStore(state.StoreConfig{
		DB:      params.DB,
		Log:     params.Log,
		Metrics: m,
		Threshold: state.Threshold{
			Numerator:   params.Config.QuorumNumerator,
			Denominator: params.Config.QuorumDenominator,
		},
		Validators:       params.Validators,
		MaxItemsPerBatch: params.Config.MaxItemsPerBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("opening vote store: %w", err)
	}

	return &VotesDB{
		log:          params.Log,
		cfg:          params.Config,
		store:        store,
		metrics:      m,
		msgs:         make(chan Message, params.Config.RequestBuffer),
		closed:       make(chan struct{}),
		activeLeaves: make(map[ids.ID]struct{}),
	}, nil
}

// Store returns the underlying vote store. Intended for read-only use and
// tests; all writes must go through the service loop.
func (v *VotesDB) Store() *state.Store {
	return v.store
}

// State returns the lifecycle state of the service.
func (v *VotesDB) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Run consumes inbound messages until the context is canceled or a Shutdown
// message arrives. Messages are handled strictly one at a time; the loop
// suspends only while waiting for the next one. Per-item failures are logged
// and do not terminate the loop.
func (v *VotesDB) Run(ctx context.Context) error {
	v.mu.Lock()
	if v.state != Idle {
		v.mu.Unlock()
		return fmt.Errorf("votes database already %s", v.state)
	}
	v.state = Running
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.state = Stopped
		v.mu.Unlock()
		close(v.closed)
	}()

	for {
		select {
		case <-ctx.Done():
			v.log.Info("votes database stopping", log.String("reason", ctx.Err().Error()))
			return nil
		case msg := <-v.msgs:
			if msg.Type == ShutdownMsg {
				v.log.Info("votes database stopping", log.String("reason", "shutdown requested"))
				return nil
			}
			v.handle(msg)
		}
	}
}

func (v *VotesDB) handle(msg Message) {
	switch msg.Type {
	case StoreVoteMsg:
		events, err := v.store.StoreVotes(msg.Session, msg.Votes)
		if err != nil {
			v.log.Warn("failed to store votes",
				log.Uint64("session", uint64(msg.Session)),
				log.String("error", err.Error()),
			)
		}
		if msg.StoreCh != nil {
			msg.StoreCh <- StoreVoteResult{Events: events, Err: err}
		}

	case QueryMsg:
		found, err := v.store.Query(msg.Validator)
		if err != nil {
			v.log.Warn("failed to query validator votes",
				log.Uint64("validator", uint64(msg.Validator)),
				log.String("error", err.Error()),
			)
		}
		if msg.QueryCh != nil {
			msg.QueryCh <- QueryResult{Votes: found, Err: err}
		}

	case SessionChangeMsg:
		v.onSessionChange(msg.Session)

	case ActiveLeavesMsg:
		for _, leaf := range msg.Deactivated {
			delete(v.activeLeaves, leaf)
		}
		for _, leaf := range msg.Activated {
			v.activeLeaves[leaf] = struct{}{}
		}

	case BlockFinalizedMsg:
		// Finalization does not affect vote retention; sessions do.
		v.log.Debug("block finalized", log.Stringer("block", msg.Finalized))
	}
}

// onSessionChange checks pruning eligibility: everything older than the
// retention window behind the new session is deleted.
func (v *VotesDB) onSessionChange(session votes.SessionIndex) {
	retention := votes.SessionIndex(v.cfg.RetentionSessions)
	if session <= retention {
		return
	}
	target := session - retention
	if err := v.store.PruneOlderThan(target); err != nil {
		v.log.Warn("failed to prune votes",
			log.Uint64("target", uint64(target)),
			log.String("error", err.Error()),
		)
	}
}

// submit enqueues a message unless the service is already shut down or the
// caller's context expires first.
func (v *VotesDB) submit(ctx context.Context, msg Message) error {
	select {
	case v.msgs <- msg:
		return nil
	case <-v.closed:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StoreVote submits a batch of votes for a session and waits for the derived
// events.
func (v *VotesDB) StoreVote(ctx context.Context, session votes.SessionIndex, voteBatch []votes.Vote) ([]votes.Event, error) {
	respCh := make(chan StoreVoteResult, 1)
	err := v.submit(ctx, Message{
		Type:    StoreVoteMsg,
		Session: session,
		Votes:   voteBatch,
		StoreCh: respCh,
	})
	if err != nil {
		return nil, err
	}
	select {
	case resp := <-respCh:
		return resp.Events, resp.Err
	case <-v.closed:
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Query reports every (session, candidate) pair the validator voted on.
func (v *VotesDB) Query(ctx context.Context, validator votes.ValidatorIndex) ([]state.SessionCandidate, error) {
	respCh := make(chan QueryResult, 1)
	err := v.submit(ctx, Message{
		Type:      QueryMsg,
		Validator: validator,
		QueryCh:   respCh,
	})
	if err != nil {
		return nil, err
	}
	select {
	case resp := <-respCh:
		return resp.Votes, resp.Err
	case <-v.closed:
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NotifySessionChange signals that a new session started, triggering a
// pruning eligibility check.
func (v *VotesDB) NotifySessionChange(ctx context.Context, session votes.SessionIndex) error {
	return v.submit(ctx, Message{Type: SessionChangeMsg, Session: session})
}

// UpdateActiveLeaves signals activated and deactivated chain heads.
func (v *VotesDB) UpdateActiveLeaves(ctx context.Context, activated, deactivated []ids.ID) error {
	return v.submit(ctx, Message{
		Type:        ActiveLeavesMsg,
		Activated:   activated,
		Deactivated: deactivated,
	})
}

// NotifyFinalized signals a finalized block.
func (v *VotesDB) NotifyFinalized(ctx context.Context, blockID ids.ID) error {
	return v.submit(ctx, Message{Type: BlockFinalizedMsg, Finalized: blockID})
}

// Shutdown asks the loop to exit after the messages already queued ahead of
// it. It does not wait for the exit.
func (v *VotesDB) Shutdown(ctx context.Context) error {
	return v.submit(ctx, Message{Type: ShutdownMsg})
}
