// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the configuration of the votes database service.
package config

import (
	"encoding/json"
	"fmt"
)

const (
	// DefaultRetentionSessions is the number of sessions kept before votes
	// become eligible for pruning. It covers open and shut, local and remote
	// disputes.
	DefaultRetentionSessions = 100

	// DefaultMaxItemsPerBatch bounds staged operations per pruning batch.
	DefaultMaxItemsPerBatch = 1024

	// DefaultRequestBuffer is the capacity of the service's inbound queue.
	DefaultRequestBuffer = 64
)

// Config configures the votes database service.
type Config struct {
	// RetentionSessions is how many sessions back from the current one votes
	// are retained.
	RetentionSessions uint32 `json:"retentionSessions"`

	// MaxItemsPerBatch bounds the size of a single pruning transaction.
	MaxItemsPerBatch int `json:"maxItemsPerBatch"`

	// QuorumNumerator / QuorumDenominator form the supermajority fraction; a
	// side wins when its voter count strictly exceeds that fraction of the
	// validator set.
	QuorumNumerator   uint64 `json:"quorumNumerator"`
	QuorumDenominator uint64 `json:"quorumDenominator"`

	// RequestBuffer is the capacity of the inbound request queue.
	RequestBuffer int `json:"requestBuffer"`
}

// Default returns the configuration used when no overrides are provided.
func Default() Config {
	return Config{
		RetentionSessions: DefaultRetentionSessions,
		MaxItemsPerBatch:  DefaultMaxItemsPerBatch,
		QuorumNumerator:   2,
		QuorumDenominator: 3,
		RequestBuffer:     DefaultRequestBuffer,
	}
}

// Parse resolves a configuration from optional JSON bytes layered over the
// defaults.
func Parse(b []byte) (Config, error) {
	c := Default()
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.RetentionSessions == 0 {
		return fmt.Errorf("retentionSessions must be positive")
	}
	if c.MaxItemsPerBatch <= 0 {
		return fmt.Errorf("maxItemsPerBatch must be positive")
	}
	if c.QuorumDenominator == 0 {
		return fmt.Errorf("quorumDenominator must be non-zero")
	}
	if c.QuorumNumerator >= c.QuorumDenominator {
		return fmt.Errorf("quorum fraction %d/%d is never reachable",
			c.QuorumNumerator, c.QuorumDenominator)
	}
	if c.RequestBuffer <= 0 {
		return fmt.Errorf("requestBuffer must be positive")
	}
	return nil
}
