// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"fmt"

	"github.com/luxfi/log"

	"github.com/luxfi/votesdb/votes"
)

// PruneOlderThan deletes all data for every session strictly below target and
// advances the watermark to target. Sessions are swept strictly in increasing
// order; skipping one would orphan its keys forever.
//
// Deletions are committed in batches of at most MaxItemsPerBatch. Each
// checkpoint batch also carries the watermark, set to the session currently
// being swept, so a crash mid-prune leaves the watermark consistent with
// exactly the deletions already committed: everything below the persisted
// watermark is absent, and at most one in-flight batch of work is repeated on
// restart.
func (s *Store) PruneOlderThan(target votes.SessionIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watermark >= target {
		return nil
	}

	batch := s.db.NewBatch()
	staged := 0
	deleted := 0

	// commit atomically applies the staged deletions together with the
	// watermark: all sessions strictly below level are fully deleted once the
	// batch lands.
	commit := func(level votes.SessionIndex) error {
		if err := batch.Put(watermarkKey, encodeSession(level)); err != nil {
			return fmt.Errorf("staging watermark: %w", err)
		}
		if err := batch.Write(); err != nil {
			return fmt.Errorf("committing prune batch: %w", err)
		}
		s.watermark = level
		batch = s.db.NewBatch()
		staged = 0
		return nil
	}

	for cursor := s.watermark; cursor < target; cursor++ {
		it := s.db.NewIteratorWithPrefix(sessionPrefix(cursor))
		for it.Next() {
			key := append([]byte(nil), it.Key()...)
			if err := batch.Delete(key); err != nil {
				it.Release()
				return fmt.Errorf("staging deletion: %w", err)
			}
			staged++
			deleted++
			if staged >= s.maxItems {
				if err := commit(cursor); err != nil {
					it.Release()
					return err
				}
			}
		}
		err := it.Error()
		it.Release()
		if err != nil {
			return fmt.Errorf("iterating session %d: %w", cursor, err)
		}
	}

	if err := commit(target); err != nil {
		return err
	}

	for k := range s.tallies {
		if k.session < target {
			delete(s.tallies, k)
		}
	}

	s.metrics.PruneRuns.Inc()
	s.metrics.PrunedKeys.Add(float64(deleted))
	s.log.Info("pruned votes",
		log.Uint64("watermark", uint64(target)),
		log.Int("deletedKeys", deleted),
	)
	return nil
}
