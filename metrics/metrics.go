// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes counters for the dispute votes database.
package metrics

import (
	"github.com/luxfi/metric"
)

// Metrics counts vote store and pruning outcomes.
type Metrics struct {
	VotesStored      metric.Counter
	VoteReplays      metric.Counter
	DoubleVotes      metric.Counter
	DisputesDetected metric.Counter
	Supermajorities  metric.Counter
	ObsoleteVotes    metric.Counter
	PruneRuns        metric.Counter
	PrunedKeys       metric.Counter
}

// New creates the metrics for the votes database under the given namespace.
// Counters are self-registering when created with NewCounter.
func New(namespace string, registerer metric.Registerer) (*Metrics, error) {
	m := &Metrics{}

	m.VotesStored = metric.NewCounter(metric.CounterOpts{
		Name: namespace + "_votes_stored",
		Help: "Number of new votes durably recorded",
	})
	m.VoteReplays = metric.NewCounter(metric.CounterOpts{
		Name: namespace + "_vote_replays",
		Help: "Number of identical votes replayed and dropped as no-ops",
	})
	m.DoubleVotes = metric.NewCounter(metric.CounterOpts{
		Name: namespace + "_double_votes",
		Help: "Number of conflicting second votes detected",
	})
	m.DisputesDetected = metric.NewCounter(metric.CounterOpts{
		Name: namespace + "_disputes_detected",
		Help: "Number of candidates that gained both a positive and a negative vote",
	})
	m.Supermajorities = metric.NewCounter(metric.CounterOpts{
		Name: namespace + "_supermajorities",
		Help: "Number of candidates whose tally crossed the supermajority threshold",
	})
	m.ObsoleteVotes = metric.NewCounter(metric.CounterOpts{
		Name: namespace + "_obsolete_votes",
		Help: "Number of votes discarded for referencing an already pruned session",
	})
	m.PruneRuns = metric.NewCounter(metric.CounterOpts{
		Name: namespace + "_prune_runs",
		Help: "Number of completed pruning passes",
	})
	m.PrunedKeys = metric.NewCounter(metric.CounterOpts{
		Name: namespace + "_pruned_keys",
		Help: "Number of keys deleted by pruning",
	})

	return m, nil
}
