// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package votesdb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/votesdb/config"
	"github.com/luxfi/votesdb/state"
	"github.com/luxfi/votesdb/votes"
)

type staticValidators int

func (s staticValidators) ValidatorCount(votes.SessionIndex) (int, error) {
	return int(s), nil
}

func statementFor(candidate ids.ID, validator votes.ValidatorIndex) votes.Statement {
	st := votes.Statement{
		CandidateHash:  candidate,
		ValidatorIndex: validator,
	}
	for i := range st.Signature {
		st.Signature[i] = byte(validator) + byte(i)
	}
	return st
}

func positiveVote(candidate ids.ID, validator votes.ValidatorIndex) votes.Vote {
	return &votes.DisputePositive{Statement: statementFor(candidate, validator)}
}

func negativeVote(candidate ids.ID, validator votes.ValidatorIndex) votes.Vote {
	return &votes.DisputeNegative{Statement: statementFor(candidate, validator)}
}

// newTestService starts a service loop and returns it together with a stop
// function that waits for the loop to exit.
func newTestService(t *testing.T, cfg config.Config) (*VotesDB, func()) {
	t.Helper()

	v, err := New(Parameters{
		DB:         memdb.New(),
		Validators: staticValidators(10),
		Config:     cfg,
		Log:        log.NoLog{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- v.Run(ctx)
	}()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("service loop did not exit")
		}
	}
	return v, stop
}

func TestServiceStoreAndQuery(t *testing.T) {
	v, stop := newTestService(t, config.Default())
	defer stop()

	ctx := context.Background()
	candidate := ids.GenerateTestID()

	events, err := v.StoreVote(ctx, 5, []votes.Vote{positiveVote(candidate, 3)})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, votes.Stored, events[0].Kind)

	events, err = v.StoreVote(ctx, 5, []votes.Vote{negativeVote(candidate, 4)})
	require.NoError(t, err)
	require.Equal(t, votes.DisputeDetected, events[0].Kind)

	found, err := v.Query(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []state.SessionCandidate{{Session: 5, Candidate: candidate}}, found)
}

func TestServiceSessionChangeTriggersPruning(t *testing.T) {
	cfg := config.Default()
	cfg.RetentionSessions = 2
	v, stop := newTestService(t, cfg)
	defer stop()

	ctx := context.Background()
	candidate := ids.GenerateTestID()

	_, err := v.StoreVote(ctx, 1, []votes.Vote{positiveVote(candidate, 3)})
	require.NoError(t, err)

	// Session 10 with a retention of 2 prunes everything below session 8.
	require.NoError(t, v.NotifySessionChange(ctx, 10))

	// The loop is strictly sequential, so a later request observes the prune.
	events, err := v.StoreVote(ctx, 1, []votes.Vote{positiveVote(candidate, 4)})
	require.NoError(t, err)
	require.Equal(t, votes.ObsoleteVoteDiscarded, events[0].Kind)
	require.Equal(t, votes.SessionIndex(8), v.Store().Watermark())

	found, err := v.Query(ctx, 3)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestServiceSessionChangeWithinRetention(t *testing.T) {
	cfg := config.Default()
	cfg.RetentionSessions = 100
	v, stop := newTestService(t, cfg)
	defer stop()

	ctx := context.Background()
	require.NoError(t, v.NotifySessionChange(ctx, 50))

	events, err := v.StoreVote(ctx, 1, []votes.Vote{positiveVote(ids.GenerateTestID(), 3)})
	require.NoError(t, err)
	require.Equal(t, votes.Stored, events[0].Kind)
}

func TestServiceActiveLeavesAndFinalization(t *testing.T) {
	v, stop := newTestService(t, config.Default())
	defer stop()

	ctx := context.Background()
	leafA := ids.GenerateTestID()
	leafB := ids.GenerateTestID()

	require.NoError(t, v.UpdateActiveLeaves(ctx, []ids.ID{leafA, leafB}, nil))
	require.NoError(t, v.UpdateActiveLeaves(ctx, nil, []ids.ID{leafA}))
	require.NoError(t, v.NotifyFinalized(ctx, leafB))

	// The loop keeps serving requests after lifecycle signals.
	_, err := v.StoreVote(ctx, 1, []votes.Vote{positiveVote(ids.GenerateTestID(), 1)})
	require.NoError(t, err)
}

func TestServiceShutdown(t *testing.T) {
	v, err := New(Parameters{
		DB:         memdb.New(),
		Validators: staticValidators(10),
		Log:        log.NoLog{},
	})
	require.NoError(t, err)
	require.Equal(t, Idle, v.State())

	done := make(chan error, 1)
	go func() {
		done <- v.Run(context.Background())
	}()

	ctx := context.Background()
	_, err = v.StoreVote(ctx, 1, []votes.Vote{positiveVote(ids.GenerateTestID(), 1)})
	require.NoError(t, err)

	require.NoError(t, v.Shutdown(ctx))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service loop did not exit")
	}
	require.Equal(t, Stopped, v.State())

	// Requests after shutdown fail instead of hanging.
	_, err = v.StoreVote(ctx, 1, []votes.Vote{positiveVote(ids.GenerateTestID(), 1)})
	require.ErrorIs(t, err, ErrShuttingDown)
}

func TestServiceRunTwice(t *testing.T) {
	v, stop := newTestService(t, config.Default())
	defer stop()

	require.Eventually(t, func() bool {
		return v.State() == Running
	}, time.Second, 10*time.Millisecond)

	require.Error(t, v.Run(context.Background()))
}

func TestServiceErrorsDoNotStopLoop(t *testing.T) {
	db := memdb.New()
	v, err := New(Parameters{
		DB:         db,
		Validators: staticValidators(10),
		Log:        log.NoLog{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- v.Run(ctx)
	}()

	// Corrupt an entry behind the store's back: the affected request fails,
	// the loop keeps serving.
	candidate := ids.GenerateTestID()
	vote := positiveVote(candidate, 3)
	require.NoError(t, db.Put(
		[]byte(fmt.Sprintf("vote/s_5/c_%s/v_3", candidate)),
		[]byte("garbage"),
	))

	_, err = v.StoreVote(ctx, 5, []votes.Vote{vote})
	require.ErrorIs(t, err, state.ErrCorruptedEntry)

	// Still serving.
	events, err := v.StoreVote(ctx, 5, []votes.Vote{positiveVote(ids.GenerateTestID(), 4)})
	require.NoError(t, err)
	require.Equal(t, votes.Stored, events[0].Kind)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service loop did not exit")
	}
}

func TestMessageTypeString(t *testing.T) {
	for msgType, want := range map[MessageType]string{
		StoreVoteMsg:      "StoreVote",
		QueryMsg:          "Query",
		SessionChangeMsg:  "SessionChange",
		ActiveLeavesMsg:   "ActiveLeaves",
		BlockFinalizedMsg: "BlockFinalized",
		ShutdownMsg:       "Shutdown",
		MessageType(99):   "Unknown",
	} {
		require.Equal(t, want, msgType.String())
	}
	require.Equal(t, "Idle", Idle.String())
	require.Equal(t, "Running", Running.String())
	require.Equal(t, "Stopped", Stopped.String())
}
