// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/votesdb/metrics"
	"github.com/luxfi/votesdb/votes"
)

var (
	// ErrCorruptedEntry means a stored entry failed to decode with the schema
	// that wrote it. Every entry was written by this package, so this is
	// storage corruption or a schema mismatch and is not retried.
	ErrCorruptedEntry = errors.New("stored vote entry failed to decode")
)

// DefaultMaxItemsPerBatch bounds the number of staged operations per pruning
// transaction.
const DefaultMaxItemsPerBatch = 1024

// ValidatorSets reports the validator-set size of a session, needed to
// evaluate supermajorities.
type ValidatorSets interface {
	ValidatorCount(session votes.SessionIndex) (int, error)
}

// SessionCandidate is one (session, candidate) pair a validator voted on.
type SessionCandidate struct {
	Session   votes.SessionIndex
	Candidate ids.ID
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// DB is the backing key-value store. Required.
	DB database.Database

	Log     log.Logger
	Metrics *metrics.Metrics

	// Validators resolves validator-set sizes. Required.
	Validators ValidatorSets

	// Threshold is the supermajority fraction. Defaults to 2/3.
	Threshold Threshold

	// MaxItemsPerBatch bounds staged deletions per pruning transaction.
	// Defaults to DefaultMaxItemsPerBatch.
	MaxItemsPerBatch int
}

type tallyKey struct {
	session   votes.SessionIndex
	candidate ids.ID
}

// tally counts distinct voters per polarity for one (session, candidate).
type tally struct {
	positive int
	negative int
}

func (t tally) disputed() bool {
	return t.positive > 0 && t.negative > 0
}

// Store is the transactional write path of the votes database. It owns the
// database handle; the votes database service is its only writer, and the
// mutex is the serialization point required for read-then-write atomicity per
// key.
type Store struct {
	db         database.Database
	log        log.Logger
	metrics    *metrics.Metrics
	validators ValidatorSets
	threshold  Threshold
	maxItems   int

	mu sync.RWMutex
	// watermark mirrors the persisted value: all sessions strictly below it
	// are fully pruned.
	watermark votes.SessionIndex
	// tallies caches committed per-candidate voter counts, lazily rebuilt
	// from a candidate-prefix scan on first touch.
	tallies map[tallyKey]tally
}

// NewStore opens a vote store on top of the given database, reading the
// pruning watermark left by previous runs.
func NewStore(config StoreConfig) (*Store, error) {
	if config.DB == nil {
		return nil, errors.New("store requires a database")
	}
	if config.Validators == nil {
		return nil, errors.New("store requires a validator set source")
	}
	if config.Log == nil {
		config.Log = log.NoLog{}
	}
	if config.Threshold == (Threshold{}) {
		config.Threshold = DefaultThreshold
	}
	if err := config.Threshold.Valid(); err != nil {
		return nil, err
	}
	if config.MaxItemsPerBatch <= 0 {
		config.MaxItemsPerBatch = DefaultMaxItemsPerBatch
	}
	if config.Metrics == nil {
		m, err := metrics.New("votesdb", nil)
		if err != nil {
			return nil, err
		}
		config.Metrics = m
	}

	s := &Store{
		db:         config.DB,
		log:        config.Log,
		metrics:    config.Metrics,
		validators: config.Validators,
		threshold:  config.Threshold,
		maxItems:   config.MaxItemsPerBatch,
		tallies:    make(map[tallyKey]tally),
	}

	watermark, err := s.readWatermark()
	if err != nil {
		return nil, err
	}
	s.watermark = watermark
	return s, nil
}

// Watermark returns the session index below which all data is pruned.
func (s *Store) Watermark() votes.SessionIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermark
}

// StoreVotes records a batch of votes for a session within one atomic batch
// and returns one event per input vote, in input order. A batch for an
// already pruned session is rejected without touching storage: every vote
// reports ObsoleteVoteDiscarded and no error is returned, so callers can log
// and continue.
func (s *Store) StoreVotes(session votes.SessionIndex, voteBatch []votes.Vote) ([]votes.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]votes.Event, 0, len(voteBatch))

	if session < s.watermark {
		s.log.Warn("dropping request to store obsolete votes",
			log.Uint64("session", uint64(session)),
			log.Uint64("watermark", uint64(s.watermark)),
		)
		for _, vote := range voteBatch {
			events = append(events, votes.Event{
				Kind:      votes.ObsoleteVoteDiscarded,
				Candidate: vote.Candidate(),
				Validator: vote.Validator(),
			})
		}
		s.metrics.ObsoleteVotes.Add(float64(len(voteBatch)))
		return events, nil
	}

	dbBatch := s.db.NewBatch()
	// staged holds writes belonging to this batch, keyed by candidate-major
	// key, so a duplicate input inside one call is seen as a replay.
	staged := make(map[string][]byte)
	// deltas holds tally increments to merge into the cache only if the
	// batch commits.
	deltas := make(map[tallyKey]tally)

	for _, vote := range voteBatch {
		event, err := s.storeOne(session, vote, dbBatch, staged, deltas)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := dbBatch.Write(); err != nil {
		return nil, fmt.Errorf("committing vote batch: %w", err)
	}

	for k, d := range deltas {
		t := s.tallies[k]
		t.positive += d.positive
		t.negative += d.negative
		s.tallies[k] = t
	}
	return events, nil
}

// storeOne classifies a single vote and stages its writes. The returned event
// is one of Stored, DisputeDetected, DoubleVote or SupermajorityReached;
// the three non-conflict kinds are mutually exclusive escalation tiers of the
// same accepted vote.
func (s *Store) storeOne(
	session votes.SessionIndex,
	vote votes.Vote,
	dbBatch database.Batch,
	staged map[string][]byte,
	deltas map[tallyKey]tally,
) (votes.Event, error) {
	raw, err := votes.Bytes(vote)
	if err != nil {
		return votes.Event{}, fmt.Errorf("serializing vote: %w", err)
	}

	candidate := vote.Candidate()
	validator := vote.Validator()
	ck := candidateKey(session, candidate, validator)

	prev, ok := staged[string(ck)]
	if !ok {
		prev, err = s.db.Get(ck)
		if errors.Is(err, database.ErrNotFound) {
			prev = nil
		} else if err != nil {
			return votes.Event{}, fmt.Errorf("reading stored vote: %w", err)
		}
	}

	if prev != nil {
		if bytes.Equal(prev, raw) {
			// Identical vote replayed; idempotent no-op, but the event still
			// occupies its slot in the output.
			s.metrics.VoteReplays.Inc()
			return votes.Event{
				Kind:      votes.Stored,
				Candidate: candidate,
				Validator: validator,
			}, nil
		}
		stored, err := votes.Parse(prev)
		if err != nil {
			return votes.Event{}, fmt.Errorf("%w: session %d candidate %s validator %d: %v",
				ErrCorruptedEntry, session, candidate, validator, err)
		}
		// First writer wins; the conflict itself is the signal.
		s.log.Warn("double vote detected",
			log.Uint64("session", uint64(session)),
			log.Stringer("candidate", candidate),
			log.Uint64("validator", uint64(validator)),
		)
		s.metrics.DoubleVotes.Inc()
		return votes.Event{
			Kind:      votes.DoubleVote,
			Candidate: candidate,
			Validator: validator,
			Votes:     []votes.Vote{stored, vote},
		}, nil
	}

	if err := dbBatch.Put(ck, raw); err != nil {
		return votes.Event{}, fmt.Errorf("staging vote: %w", err)
	}
	if err := dbBatch.Put(validatorKey(session, validator, candidate), nil); err != nil {
		return votes.Event{}, fmt.Errorf("staging vote marker: %w", err)
	}
	staged[string(ck)] = raw

	k := tallyKey{session: session, candidate: candidate}
	base, err := s.loadTally(k)
	if err != nil {
		return votes.Event{}, err
	}
	delta := deltas[k]
	before := tally{
		positive: base.positive + delta.positive,
		negative: base.negative + delta.negative,
	}
	if vote.Positive() {
		delta.positive++
	} else {
		delta.negative++
	}
	deltas[k] = delta
	after := tally{
		positive: base.positive + delta.positive,
		negative: base.negative + delta.negative,
	}

	event := votes.Event{
		Kind:      votes.Stored,
		Candidate: candidate,
		Validator: validator,
	}

	if after.disputed() && !before.disputed() {
		opposite, err := s.findOpposite(session, candidate, vote.Positive(), staged)
		if err != nil {
			return votes.Event{}, err
		}
		event.Kind = votes.DisputeDetected
		event.Votes = []votes.Vote{opposite, vote}
	}

	validatorCount, err := s.validators.ValidatorCount(session)
	if err != nil {
		// Without the set size the supermajority cannot be evaluated; the
		// vote is still stored.
		s.log.Warn("unknown validator set size",
			log.Uint64("session", uint64(session)),
			log.String("error", err.Error()),
		)
		s.countAccepted(event)
		return event, nil
	}

	quorumBefore := CheckQuorum(before.positive, before.negative, validatorCount, s.threshold)
	quorumAfter := CheckQuorum(after.positive, after.negative, validatorCount, s.threshold)
	if quorumAfter != votes.QuorumNone && quorumBefore == votes.QuorumNone {
		event.Kind = votes.SupermajorityReached
		event.Votes = nil
		event.Quorum = quorumAfter
	}
	s.countAccepted(event)
	return event, nil
}

func (s *Store) countAccepted(event votes.Event) {
	s.metrics.VotesStored.Inc()
	switch event.Kind {
	case votes.DisputeDetected:
		s.metrics.DisputesDetected.Inc()
	case votes.SupermajorityReached:
		s.metrics.Supermajorities.Inc()
	}
}

// loadTally returns the committed voter counts for a candidate, scanning its
// candidate-major prefix on first touch and caching the result. Incremental
// evaluation afterwards is O(1) per vote.
func (s *Store) loadTally(k tallyKey) (tally, error) {
	if t, ok := s.tallies[k]; ok {
		return t, nil
	}

	var t tally
	it := s.db.NewIteratorWithPrefix(candidatePrefix(k.session, k.candidate))
	defer it.Release()
	for it.Next() {
		vote, err := votes.Parse(it.Value())
		if err != nil {
			return tally{}, fmt.Errorf("%w: key %q: %v", ErrCorruptedEntry, it.Key(), err)
		}
		if vote.Positive() {
			t.positive++
		} else {
			t.negative++
		}
	}
	if err := it.Error(); err != nil {
		return tally{}, fmt.Errorf("scanning candidate votes: %w", err)
	}

	s.tallies[k] = t
	return t, nil
}

// findOpposite returns a stored or staged vote for the candidate with the
// opposite polarity to `positive`. Called only when the tally proves one
// exists.
func (s *Store) findOpposite(
	session votes.SessionIndex,
	candidate ids.ID,
	positive bool,
	staged map[string][]byte,
) (votes.Vote, error) {
	prefix := candidatePrefix(session, candidate)

	it := s.db.NewIteratorWithPrefix(prefix)
	defer it.Release()
	for it.Next() {
		vote, err := votes.Parse(it.Value())
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrCorruptedEntry, it.Key(), err)
		}
		if vote.Positive() != positive {
			return vote, nil
		}
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("scanning candidate votes: %w", err)
	}

	for key, raw := range staged {
		if !bytes.HasPrefix([]byte(key), prefix) {
			continue
		}
		vote, err := votes.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrCorruptedEntry, key, err)
		}
		if vote.Positive() != positive {
			return vote, nil
		}
	}
	return nil, nil
}

// Query returns every (session, candidate) pair the validator voted on,
// ordered by session then candidate. It is a scan over the validator-major
// index.
func (s *Store) Query(validator votes.ValidatorIndex) ([]SessionCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it := s.db.NewIteratorWithPrefix([]byte(votesRoot))
	defer it.Release()

	var out []SessionCandidate
	for it.Next() {
		session, val, candidate, ok := parseValidatorKey(it.Key())
		if !ok || val != validator {
			continue
		}
		out = append(out, SessionCandidate{Session: session, Candidate: candidate})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("scanning validator votes: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Session != out[j].Session {
			return out[i].Session < out[j].Session
		}
		return bytes.Compare(out[i].Candidate[:], out[j].Candidate[:]) < 0
	})
	return out, nil
}

func (s *Store) readWatermark() (votes.SessionIndex, error) {
	raw, err := s.db.Get(watermarkKey)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading watermark: %w", err)
	}
	return decodeSession(raw)
}

func encodeSession(session votes.SessionIndex) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(session))
	return b
}

func decodeSession(raw []byte) (votes.SessionIndex, error) {
	if len(raw) != 4 {
		return 0, fmt.Errorf("%w: watermark has length %d", ErrCorruptedEntry, len(raw))
	}
	return votes.SessionIndex(binary.BigEndian.Uint32(raw)), nil
}
